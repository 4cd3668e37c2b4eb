package budget

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// UnlimitedBudget allows every attempt.
type UnlimitedBudget struct{}

func (UnlimitedBudget) AllowAttempt(context.Context, string, int) Decision {
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// TokenBucketBudget is a token bucket shared by every operation that uses it.
//
// It starts full (capacity tokens) and refills at refillPerSecond tokens/second.
// Each retry consumes one token.
type TokenBucketBudget struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func NewTokenBucketBudget(capacity int, refillPerSecond float64) *TokenBucketBudget {
	if capacity < 0 {
		capacity = 0
	}
	if refillPerSecond < 0 || math.IsNaN(refillPerSecond) || math.IsInf(refillPerSecond, 0) {
		refillPerSecond = 0
	}
	return &TokenBucketBudget{
		limiter: rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
		now:     time.Now,
	}
}

func (b *TokenBucketBudget) AllowAttempt(context.Context, string, int) Decision {
	if b == nil || b.limiter == nil {
		return Decision{Allowed: false, Reason: ReasonBudgetNil}
	}
	if b.limiter.AllowN(b.now(), 1) {
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}
	return Decision{Allowed: false, Reason: ReasonBudgetDenied}
}

// Tokens returns the number of tokens currently available.
func (b *TokenBucketBudget) Tokens() float64 {
	if b == nil || b.limiter == nil {
		return 0
	}
	return b.limiter.TokensAt(b.now())
}
