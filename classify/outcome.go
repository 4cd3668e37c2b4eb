// Package classify maps RPC failures onto the two classes the retry engine
// understands: Retryable and Permanent.
package classify

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
)

// Class is the retry class of a failure.
type Class int

const (
	// Permanent failures are surfaced immediately.
	Permanent Class = iota
	// Retryable failures may succeed on a later attempt.
	Retryable
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrNotConverged is reported by poll operations when a response arrived but
// the success predicate did not hold yet. It is always Retryable.
var ErrNotConverged = errors.New("tableadmin: not converged")

// Outcome describes the classification of a single failed attempt.
type Outcome struct {
	Class  Class
	Reason string

	// Code is the status code the decision was based on. It is codes.Unknown
	// for errors that carry no status.
	Code codes.Code
}

// Retryable reports whether the outcome allows another attempt.
func (o Outcome) Retryable() bool { return o.Class == Retryable }

// Classifier decides the class of a failed attempt. err is never nil.
type Classifier interface {
	Classify(err error) Outcome
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) Outcome

func (f ClassifierFunc) Classify(err error) Outcome { return f(err) }
