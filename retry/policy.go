package retry

import (
	"time"

	"github.com/aponysus/tableadmin/classify"
)

// Verdict is a retry policy's decision about a failed attempt.
type Verdict int

const (
	GiveUp Verdict = iota
	Retry
)

func (v Verdict) String() string {
	if v == Retry {
		return "retry"
	}
	return "give_up"
}

// Policy decides whether a failed attempt may be followed by another one.
//
// A Policy carries per-operation state and is not safe for concurrent use.
// Configure a prototype and Clone it for every logical operation.
type Policy interface {
	// OnFailure classifies err and records it. Permanent errors yield GiveUp
	// without consuming budget; retryable errors yield GiveUp once the
	// policy is exhausted.
	OnFailure(err error) Verdict
	// IsExhausted reports whether the budget has run out. Once true it stays true.
	IsExhausted() bool
	// Classify returns the classification OnFailure would apply to err.
	Classify(err error) classify.Outcome
	// Clone returns a fresh policy with the same configuration and no history.
	Clone() Policy
}

// IsPermanent reports whether p classifies err as permanent.
func IsPermanent(p Policy, err error) bool {
	return p.Classify(err).Class == classify.Permanent
}

type policyConfig struct {
	classifier classify.Classifier
	clock      func() time.Time
}

// PolicyOption configures a retry policy.
type PolicyOption func(*policyConfig)

// WithClassifier sets the classifier used to split failures into retryable
// and permanent. Defaults to classify.GRPC.
func WithClassifier(c classify.Classifier) PolicyOption {
	return func(cfg *policyConfig) {
		if c != nil {
			cfg.classifier = c
		}
	}
}

// WithPolicyClock sets the clock used by time-bounded policies.
func WithPolicyClock(f func() time.Time) PolicyOption {
	return func(cfg *policyConfig) {
		if f != nil {
			cfg.clock = f
		}
	}
}

func newPolicyConfig(opts []PolicyOption) policyConfig {
	cfg := policyConfig{classifier: classify.GRPC{}, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// LimitedAttempts allows at most n invocations: the n-th retryable failure
// exhausts the policy.
type LimitedAttempts struct {
	cfg      policyConfig
	max      int
	failures int
}

// NewLimitedAttempts returns a policy allowing n total attempts. n below 1 is
// treated as 1.
func NewLimitedAttempts(n int, opts ...PolicyOption) *LimitedAttempts {
	if n < 1 {
		n = 1
	}
	return &LimitedAttempts{cfg: newPolicyConfig(opts), max: n}
}

// MaxAttempts returns the configured attempt limit.
func (p *LimitedAttempts) MaxAttempts() int { return p.max }

func (p *LimitedAttempts) OnFailure(err error) Verdict {
	if p.Classify(err).Class == classify.Permanent {
		return GiveUp
	}
	if p.failures < p.max {
		p.failures++
	}
	if p.IsExhausted() {
		return GiveUp
	}
	return Retry
}

func (p *LimitedAttempts) IsExhausted() bool { return p.failures >= p.max }

func (p *LimitedAttempts) Classify(err error) classify.Outcome {
	return p.cfg.classifier.Classify(err)
}

func (p *LimitedAttempts) Clone() Policy {
	return &LimitedAttempts{cfg: p.cfg, max: p.max}
}

// LimitedTime allows retries until a wall-clock deadline computed when the
// policy is created or cloned.
type LimitedTime struct {
	cfg      policyConfig
	max      time.Duration
	deadline time.Time
}

// NewLimitedTime returns a policy that stops retrying d after construction.
func NewLimitedTime(d time.Duration, opts ...PolicyOption) *LimitedTime {
	if d < 0 {
		d = 0
	}
	cfg := newPolicyConfig(opts)
	return &LimitedTime{cfg: cfg, max: d, deadline: cfg.clock().Add(d)}
}

// MaxElapsed returns the configured time limit.
func (p *LimitedTime) MaxElapsed() time.Duration { return p.max }

// Deadline returns the instant after which the policy is exhausted.
func (p *LimitedTime) Deadline() time.Time { return p.deadline }

func (p *LimitedTime) OnFailure(err error) Verdict {
	if p.Classify(err).Class == classify.Permanent {
		return GiveUp
	}
	if p.IsExhausted() {
		return GiveUp
	}
	return Retry
}

func (p *LimitedTime) IsExhausted() bool { return !p.cfg.clock().Before(p.deadline) }

func (p *LimitedTime) Classify(err error) classify.Outcome {
	return p.cfg.classifier.Classify(err)
}

func (p *LimitedTime) Clone() Policy {
	return &LimitedTime{cfg: p.cfg, max: p.max, deadline: p.cfg.clock().Add(p.max)}
}
