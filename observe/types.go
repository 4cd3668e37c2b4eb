// Package observe defines the lifecycle callbacks emitted by retry loops and
// poll operations, and the Timeline record describing one operation.
package observe

import (
	"context"
	"time"

	"github.com/aponysus/tableadmin/classify"
)

// OpKind distinguishes blocking retry loops from asynchronous polls.
type OpKind string

const (
	KindSync OpKind = "sync"
	KindPoll OpKind = "poll"
)

// OpInfo identifies one logical operation.
type OpInfo struct {
	ID   string
	Name string
	Kind OpKind
}

// AttemptRecord describes a single RPC attempt.
type AttemptRecord struct {
	Attempt   int
	StartTime time.Time
	EndTime   time.Time

	// Outcome is zero for successful attempts.
	Outcome classify.Outcome
	Err     error

	// Backoff is the delay waited before this attempt.
	Backoff time.Duration

	BudgetAllowed bool
	BudgetReason  string
}

// Timeline is the structured record of a single operation and all of its attempts.
type Timeline struct {
	Op    OpInfo
	Start time.Time
	End   time.Time

	// Attributes holds operation-level metadata (terminal kind, budget name, etc.).
	Attributes map[string]string

	Attempts []AttemptRecord
	FinalErr error
}

// Observer receives lifecycle callbacks for a single operation.
//
// Poll operations call the observer from completion queue workers, so
// implementations must be safe for concurrent use and must not block.
type Observer interface {
	OnStart(ctx context.Context, op OpInfo)
	OnAttempt(ctx context.Context, op OpInfo, rec AttemptRecord)
	OnSuccess(ctx context.Context, op OpInfo, tl Timeline)
	OnFailure(ctx context.Context, op OpInfo, tl Timeline)
}
