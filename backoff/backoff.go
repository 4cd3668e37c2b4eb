// Package backoff computes the pacing between retry attempts.
//
// A Policy is a prototype: each logical operation clones its own instance so
// random state is never shared across goroutines.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// JitterKind selects how a nominal delay is randomized.
type JitterKind string

const (
	// JitterNone returns the nominal delay unchanged.
	JitterNone JitterKind = "none"
	// JitterWindow picks uniformly in [nominal*(1-f), nominal*(1+f)].
	JitterWindow JitterKind = "window"
	// JitterFull picks uniformly in [0, nominal].
	JitterFull JitterKind = "full"
	// JitterEqual picks uniformly in [nominal/2, nominal].
	JitterEqual JitterKind = "equal"
)

// DefaultJitterFraction is the half-width of the window used by JitterWindow.
const DefaultJitterFraction = 0.5

// Policy computes the delay before the next attempt.
//
// attempt is the zero-based retry index: NextDelay(0) is the delay before the
// second invocation.
type Policy interface {
	NextDelay(attempt int) time.Duration
	Clone() Policy
}

// Exponential grows the delay by Multiplier per attempt, capped at Max.
type Exponential struct {
	Initial        time.Duration
	Max            time.Duration
	Multiplier     float64
	Jitter         JitterKind
	JitterFraction float64

	rng *rand.Rand
}

// NewExponential returns an Exponential policy with window jitter.
func NewExponential(initial, max time.Duration, multiplier float64) *Exponential {
	return &Exponential{
		Initial:        initial,
		Max:            max,
		Multiplier:     multiplier,
		Jitter:         JitterWindow,
		JitterFraction: DefaultJitterFraction,
		rng:            newRand(),
	}
}

// Nominal returns the un-jittered delay for attempt.
func (e *Exponential) Nominal(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	initial := e.Initial
	if initial < 0 {
		initial = 0
	}
	mult := e.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(initial) * math.Pow(mult, float64(attempt))
	if e.Max > 0 && (math.IsInf(d, 0) || math.IsNaN(d) || d > float64(e.Max)) {
		return e.Max
	}
	if math.IsInf(d, 0) || math.IsNaN(d) || d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (e *Exponential) NextDelay(attempt int) time.Duration {
	if e.rng == nil {
		e.rng = newRand()
	}
	return capBackoff(applyJitter(e.rng, e.Nominal(attempt), e.Jitter, e.JitterFraction), e.Max)
}

func (e *Exponential) Clone() Policy {
	c := *e
	c.rng = newRand()
	return &c
}

// Constant waits the same delay before every retry.
type Constant time.Duration

func (c Constant) NextDelay(int) time.Duration {
	if c < 0 {
		return 0
	}
	return time.Duration(c)
}

func (c Constant) Clone() Policy { return c }

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// applyJitter returns the jittered delay unconverted; capBackoff clamps it
// before the Duration conversion.
func applyJitter(rng *rand.Rand, d time.Duration, kind JitterKind, fraction float64) float64 {
	nominal := float64(d)
	switch kind {
	case JitterNone:
		return nominal
	case JitterFull:
		return rng.Float64() * nominal
	case JitterEqual:
		half := nominal / 2
		return half + rng.Float64()*half
	case JitterWindow, "":
		if fraction <= 0 {
			fraction = DefaultJitterFraction
		}
		if fraction > 1 {
			fraction = 1
		}
		lo := nominal * (1 - fraction)
		width := nominal * 2 * fraction
		return lo + rng.Float64()*width
	default:
		return nominal
	}
}

// capBackoff converts v to a Duration in [0, max], saturating at MaxInt64
// when max is 0.
func capBackoff(v float64, max time.Duration) time.Duration {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if max > 0 && v >= float64(max) {
		return max
	}
	if v >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v)
}
