package policy

import (
	"time"

	"github.com/aponysus/tableadmin/backoff"
)

// Option mutates a CallPolicy under construction.
type Option func(*CallPolicy)

// New builds a normalized CallPolicy starting from DefaultCallPolicy. If the
// options produce an invalid policy, the default is returned instead.
func New(opts ...Option) CallPolicy {
	p := DefaultCallPolicy()
	p.Meta.Source = PolicySourceStatic
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	normalized, err := p.Normalize()
	if err != nil {
		fallback, _ := DefaultCallPolicy().Normalize()
		return fallback
	}
	return normalized
}

// MaxAttempts bounds the call by attempt count.
func MaxAttempts(n int) Option {
	return func(p *CallPolicy) {
		p.Retry.Kind = RetryAttempts
		p.Retry.MaxAttempts = n
	}
}

// MaxElapsed bounds the call by time spent retrying.
func MaxElapsed(d time.Duration) Option {
	return func(p *CallPolicy) {
		p.Retry.Kind = RetryElapsed
		p.Retry.MaxElapsed = d
	}
}

func Classifier(name string) Option {
	return func(p *CallPolicy) { p.Retry.Classifier = name }
}

// ExponentialBackoff sets the initial and maximum delay.
func ExponentialBackoff(initial, max time.Duration) Option {
	return func(p *CallPolicy) {
		p.Backoff.Initial = initial
		p.Backoff.Max = max
	}
}

func Multiplier(m float64) Option {
	return func(p *CallPolicy) { p.Backoff.Multiplier = m }
}

func Jitter(kind backoff.JitterKind) Option {
	return func(p *CallPolicy) { p.Backoff.Jitter = kind }
}

func Idempotent(v bool) Option {
	return func(p *CallPolicy) { p.Idempotent = Bool(v) }
}

func Budget(name string) Option {
	return func(p *CallPolicy) { p.Budget = name }
}

// PollingDefaults switches to the time-bounded policy used for consistency
// polling.
func PollingDefaults() Option {
	return func(p *CallPolicy) {
		p.Retry = DefaultPollingPolicy().Retry
	}
}
