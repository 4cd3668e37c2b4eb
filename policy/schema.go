// Package policy defines the configuration schema for retried and polled
// calls and builds retry and backoff prototypes from it.
package policy

import (
	"strings"
	"time"

	"github.com/aponysus/tableadmin/backoff"
	"github.com/aponysus/tableadmin/classify"
	"github.com/aponysus/tableadmin/retry"
)

// RetryKind selects the retry policy strategy.
type RetryKind string

const (
	// RetryAttempts bounds the number of attempts.
	RetryAttempts RetryKind = "attempts"
	// RetryElapsed bounds the wall-clock time spent retrying.
	RetryElapsed RetryKind = "elapsed"
)

type RetryConfig struct {
	Kind        RetryKind     `yaml:"kind"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	MaxElapsed  time.Duration `yaml:"max_elapsed,omitempty"`
	// Classifier names a classifier in the classify registry. Empty selects
	// the gRPC classifier.
	Classifier string `yaml:"classifier,omitempty"`
}

type BackoffConfig struct {
	Initial        time.Duration      `yaml:"initial"`
	Max            time.Duration      `yaml:"max"`
	Multiplier     float64            `yaml:"multiplier"`
	Jitter         backoff.JitterKind `yaml:"jitter"`
	JitterFraction float64            `yaml:"jitter_fraction,omitempty"`
}

type PolicySource string

const (
	PolicySourceUnknown PolicySource = "unknown"
	PolicySourceStatic  PolicySource = "static"
	PolicySourceFile    PolicySource = "file"
	PolicySourceLKG     PolicySource = "lkg"
	PolicySourceDefault PolicySource = "default"
)

type NormalizationInfo struct {
	Changed       bool
	ChangedFields []string
}

type Metadata struct {
	Source        PolicySource
	Normalization NormalizationInfo
}

// CallPolicy configures how one admin method is retried or polled.
type CallPolicy struct {
	Retry   RetryConfig   `yaml:"retry"`
	Backoff BackoffConfig `yaml:"backoff"`
	// Idempotent overrides whether the method may be retried at all. Nil
	// keeps the method's own default.
	Idempotent *bool `yaml:"idempotent,omitempty"`
	// Budget names a budget in the budget registry. Empty means no budget.
	Budget string `yaml:"budget,omitempty"`

	Meta Metadata `yaml:"-"`
}

const (
	DefaultMaxAttempts    = 10
	DefaultMaxElapsed     = 10 * time.Minute
	DefaultInitialBackoff = 10 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Minute
	DefaultMultiplier     = 2.0
)

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		Initial:        DefaultInitialBackoff,
		Max:            DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
		Jitter:         backoff.JitterWindow,
		JitterFraction: backoff.DefaultJitterFraction,
	}
}

// DefaultCallPolicy is used for short administrative calls.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{
		Retry:   RetryConfig{Kind: RetryAttempts, MaxAttempts: DefaultMaxAttempts},
		Backoff: defaultBackoff(),
		Meta:    Metadata{Source: PolicySourceDefault},
	}
}

// DefaultPollingPolicy is used while waiting for replication to converge.
func DefaultPollingPolicy() CallPolicy {
	return CallPolicy{
		Retry:   RetryConfig{Kind: RetryElapsed, MaxElapsed: DefaultMaxElapsed},
		Backoff: defaultBackoff(),
		Meta:    Metadata{Source: PolicySourceDefault},
	}
}

// Bool returns a pointer to v, for CallPolicy.Idempotent.
func Bool(v bool) *bool { return &v }

// IsIdempotent resolves Idempotent against the method's default.
func (p CallPolicy) IsIdempotent(def bool) bool {
	if p.Idempotent == nil {
		return def
	}
	return *p.Idempotent
}

// IsZero reports whether p carries no configuration.
func (p CallPolicy) IsZero() bool {
	return p.Retry == (RetryConfig{}) &&
		p.Backoff == (BackoffConfig{}) &&
		p.Idempotent == nil &&
		p.Budget == ""
}

// RetryPolicy builds a retry policy prototype. Non-idempotent methods are
// capped at a single attempt but keep their classification, so a transient
// failure ends as exhausted and a rejection as permanent.
func (p CallPolicy) RetryPolicy(idempotentByDefault bool, opts ...retry.PolicyOption) retry.Policy {
	c := classify.Lookup(p.Retry.Classifier)
	if !p.IsIdempotent(idempotentByDefault) {
		opts = append([]retry.PolicyOption{retry.WithClassifier(classify.NotIdempotent{Base: c})}, opts...)
		return retry.NewLimitedAttempts(1, opts...)
	}
	opts = append([]retry.PolicyOption{retry.WithClassifier(c)}, opts...)

	if p.Retry.Kind == RetryElapsed {
		return retry.NewLimitedTime(p.Retry.MaxElapsed, opts...)
	}
	return retry.NewLimitedAttempts(p.Retry.MaxAttempts, opts...)
}

// BackoffPolicy builds a backoff policy prototype.
func (p CallPolicy) BackoffPolicy() backoff.Policy {
	return &backoff.Exponential{
		Initial:        p.Backoff.Initial,
		Max:            p.Backoff.Max,
		Multiplier:     p.Backoff.Multiplier,
		Jitter:         p.Backoff.Jitter,
		JitterFraction: p.Backoff.JitterFraction,
	}
}

const (
	maxRetryAttempts = 100

	minBackoffFloor      = 1 * time.Millisecond
	maxBackoffCeiling    = 1 * time.Hour
	maxBackoffMultiplier = 10.0
	minElapsedFloor      = 1 * time.Millisecond
)

// Normalize fills defaults and clamps out-of-range values. It returns a
// *NormalizeError for values that cannot be repaired.
func (p CallPolicy) Normalize() (CallPolicy, error) {
	normalized := p
	norm := &normalized.Meta.Normalization

	markChanged := func(field string) {
		norm.Changed = true
		for _, f := range norm.ChangedFields {
			if f == field {
				return
			}
		}
		norm.ChangedFields = append(norm.ChangedFields, field)
	}

	switch normalized.Retry.Kind {
	case "":
		normalized.Retry.Kind = RetryAttempts
		markChanged("retry.kind")
	case RetryAttempts, RetryElapsed:
	default:
		return CallPolicy{}, &NormalizeError{
			Field:   "retry.kind",
			Value:   string(normalized.Retry.Kind),
			Allowed: []string{string(RetryAttempts), string(RetryElapsed)},
		}
	}

	if normalized.Retry.Kind == RetryAttempts {
		if normalized.Retry.MaxAttempts == 0 {
			normalized.Retry.MaxAttempts = DefaultMaxAttempts
			markChanged("retry.max_attempts")
		}
		if normalized.Retry.MaxAttempts < 1 {
			normalized.Retry.MaxAttempts = 1
			markChanged("retry.max_attempts")
		} else if normalized.Retry.MaxAttempts > maxRetryAttempts {
			normalized.Retry.MaxAttempts = maxRetryAttempts
			markChanged("retry.max_attempts")
		}
	} else {
		if normalized.Retry.MaxElapsed <= 0 {
			normalized.Retry.MaxElapsed = DefaultMaxElapsed
			markChanged("retry.max_elapsed")
		}
		if normalized.Retry.MaxElapsed < minElapsedFloor {
			normalized.Retry.MaxElapsed = minElapsedFloor
			markChanged("retry.max_elapsed")
		}
	}

	if name := strings.TrimSpace(normalized.Retry.Classifier); name != normalized.Retry.Classifier {
		normalized.Retry.Classifier = name
		markChanged("retry.classifier")
	}

	if normalized.Backoff.Initial <= 0 {
		normalized.Backoff.Initial = DefaultInitialBackoff
		markChanged("backoff.initial")
	}
	if normalized.Backoff.Initial < minBackoffFloor {
		normalized.Backoff.Initial = minBackoffFloor
		markChanged("backoff.initial")
	}

	if normalized.Backoff.Max <= 0 {
		normalized.Backoff.Max = DefaultMaxBackoff
		markChanged("backoff.max")
	}
	if normalized.Backoff.Max > maxBackoffCeiling {
		normalized.Backoff.Max = maxBackoffCeiling
		markChanged("backoff.max")
	}
	if normalized.Backoff.Max < normalized.Backoff.Initial {
		normalized.Backoff.Max = normalized.Backoff.Initial
		markChanged("backoff.max")
	}

	if normalized.Backoff.Multiplier == 0 {
		normalized.Backoff.Multiplier = DefaultMultiplier
		markChanged("backoff.multiplier")
	}
	if normalized.Backoff.Multiplier < 1 {
		normalized.Backoff.Multiplier = 1
		markChanged("backoff.multiplier")
	} else if normalized.Backoff.Multiplier > maxBackoffMultiplier {
		normalized.Backoff.Multiplier = maxBackoffMultiplier
		markChanged("backoff.multiplier")
	}

	switch normalized.Backoff.Jitter {
	case "":
		normalized.Backoff.Jitter = backoff.JitterWindow
		markChanged("backoff.jitter")
	case backoff.JitterNone, backoff.JitterWindow, backoff.JitterFull, backoff.JitterEqual:
	default:
		return CallPolicy{}, &NormalizeError{
			Field: "backoff.jitter",
			Value: string(normalized.Backoff.Jitter),
			Allowed: []string{
				string(backoff.JitterNone), string(backoff.JitterWindow),
				string(backoff.JitterFull), string(backoff.JitterEqual),
			},
		}
	}

	if normalized.Backoff.JitterFraction <= 0 {
		normalized.Backoff.JitterFraction = backoff.DefaultJitterFraction
		markChanged("backoff.jitter_fraction")
	} else if normalized.Backoff.JitterFraction > 1 {
		normalized.Backoff.JitterFraction = 1
		markChanged("backoff.jitter_fraction")
	}

	if name := strings.TrimSpace(normalized.Budget); name != normalized.Budget {
		normalized.Budget = name
		markChanged("budget")
	}

	return normalized, nil
}
