package retry

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aponysus/tableadmin/classify"
)

// Kind is the terminal cause of a failed operation.
type Kind int

const (
	// KindPermanent means the service rejected the request.
	KindPermanent Kind = iota + 1
	// KindExhausted means the retry policy or budget ran out while the
	// failure was still retryable.
	KindExhausted
	// KindCancelled means the completion queue shut down first.
	KindCancelled
	// KindNotConverged means a poll ran out of budget before its success
	// predicate held.
	KindNotConverged
)

func (k Kind) String() string {
	switch k {
	case KindPermanent:
		return "permanent"
	case KindExhausted:
		return "exhausted"
	case KindCancelled:
		return "cancelled"
	case KindNotConverged:
		return "not_converged"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same Kind.
var (
	ErrPermanent = errors.New("tableadmin: permanent failure")
	ErrExhausted = errors.New("tableadmin: retry policy exhausted")
	ErrCancelled = errors.New("tableadmin: operation cancelled")
	// ErrNotConverged is the same value poll operations feed to the retry policy.
	ErrNotConverged = classify.ErrNotConverged
)

// Error is the terminal error of a retried operation.
type Error struct {
	Kind     Kind
	Op       string
	Attempts int
	// Reason is the classification or budget reason of the final decision.
	Reason string
	// Err is the last attempt's error, or nil for cancellations that happened
	// between attempts.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var msg string
	switch e.Kind {
	case KindPermanent:
		msg = "permanent error"
	case KindExhausted:
		msg = fmt.Sprintf("retry policy exhausted after %d attempts", e.Attempts)
	case KindCancelled:
		msg = "cancelled by completion queue shutdown"
	case KindNotConverged:
		msg = fmt.Sprintf("not converged after %d attempts", e.Attempts)
	default:
		msg = "failed"
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil && !errors.Is(e.Err, classify.ErrNotConverged) {
		msg += ": " + e.Err.Error()
	}
	return "tableadmin: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrPermanent:
		return e.Kind == KindPermanent
	case ErrExhausted:
		return e.Kind == KindExhausted
	case ErrCancelled:
		return e.Kind == KindCancelled
	case ErrNotConverged:
		return e.Kind == KindNotConverged
	}
	return false
}

// GRPCStatus lets status.Code and status.FromError see through the wrapper.
// The underlying status is reported when there is one; otherwise cancellation
// maps to Canceled and non-convergence to DeadlineExceeded.
func (e *Error) GRPCStatus() *status.Status {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindNotConverged:
		return status.New(codes.DeadlineExceeded, e.Error())
	case KindCancelled:
		if st, ok := status.FromError(e.Err); ok && e.Err != nil {
			return st
		}
		return status.New(codes.Canceled, e.Error())
	}
	if e.Err == nil {
		return status.New(codes.Unknown, e.Error())
	}
	if st, ok := status.FromError(e.Err); ok {
		return st
	}
	return status.FromContextError(e.Err)
}

// KindOf returns the Kind of the *Error in err's chain, or 0 if there is none.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}
