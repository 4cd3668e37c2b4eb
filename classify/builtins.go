package classify

import (
	"context"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Built-in classifier registry names.
const (
	ClassifierGRPC  = "grpc"
	ClassifierNever = "never"
)

// RegisterBuiltins registers core classifiers into reg.
func RegisterBuiltins(reg *Registry) {
	if reg == nil {
		return
	}
	reg.Register(ClassifierGRPC, GRPC{})
	reg.Register(ClassifierNever, Never{})
}

// Code maps a status code to its retry class. The mapping is total: any code
// not listed as transient, including OK and out-of-range values, is Permanent.
func Code(c codes.Code) Class {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return Retryable
	default:
		return Permanent
	}
}

// GRPC classifies errors by their gRPC status code.
//
// Caller cancellation is Permanent; a per-attempt deadline is Retryable since
// the outer context is checked separately by the retry loop.
type GRPC struct{}

func (GRPC) Classify(err error) Outcome {
	switch {
	case errors.Is(err, ErrNotConverged):
		return Outcome{Class: Retryable, Reason: "not_converged", Code: codes.OK}
	case errors.Is(err, context.Canceled):
		return Outcome{Class: Permanent, Reason: "context_canceled", Code: codes.Canceled}
	case errors.Is(err, context.DeadlineExceeded):
		return Outcome{Class: Retryable, Reason: "context_deadline_exceeded", Code: codes.DeadlineExceeded}
	}

	st, ok := status.FromError(err)
	if !ok {
		return Outcome{Class: Permanent, Reason: "non_status_error", Code: codes.Unknown}
	}
	code := st.Code()
	return Outcome{Class: Code(code), Reason: "grpc_" + code.String(), Code: code}
}

// Never treats every failure as Permanent, so operations run exactly once.
type Never struct{}

func (Never) Classify(err error) Outcome {
	out := GRPC{}.Classify(err)
	out.Class = Permanent
	if out.Reason != "not_converged" {
		out.Reason = "not_idempotent"
	}
	return out
}

// NotIdempotent keeps the classification of Base (GRPC when nil) and relabels
// transient failures "not_idempotent". Paired with a single-attempt policy, a
// transient failure of a call that is unsafe to repeat ends as exhausted
// rather than permanent.
type NotIdempotent struct {
	Base Classifier
}

func (c NotIdempotent) Classify(err error) Outcome {
	base := c.Base
	if base == nil {
		base = GRPC{}
	}
	out := base.Classify(err)
	if out.Class == Retryable {
		out.Reason = "not_idempotent"
	}
	return out
}
