// Package budget gates retry attempts so that a burst of failures across many
// operations cannot turn into a retry storm against the service.
package budget

import "context"

// Standard Decision.Reason strings.
const (
	ReasonAllowed        = "allowed"
	ReasonNoBudget       = "no_budget"
	ReasonBudgetNotFound = "budget_not_found"
	ReasonBudgetNil      = "budget_nil"
	ReasonBudgetDenied   = "budget_denied"
)

// Decision is the result of a budget check.
type Decision struct {
	Allowed bool
	Reason  string

	// Release, when non-nil, is called exactly once after an allowed attempt finishes.
	Release func()
}

// Budget gates retry attempts. The first attempt of an operation is never
// gated; retry is the zero-based index of the retry being requested.
//
// Implementations must be safe for concurrent use: unlike retry and backoff
// policies, one budget is shared by every operation that names it.
type Budget interface {
	AllowAttempt(ctx context.Context, op string, retry int) Decision
}
