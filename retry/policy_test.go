package retry

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aponysus/tableadmin/classify"
)

var (
	errTransient = status.Error(codes.Unavailable, "try-again")
	errDenied    = status.Error(codes.PermissionDenied, "uh-oh")
)

func TestLimitedAttempts_ExhaustsAfterN(t *testing.T) {
	p := NewLimitedAttempts(3)

	if v := p.OnFailure(errTransient); v != Retry {
		t.Fatalf("failure 1 verdict=%v, want retry", v)
	}
	if v := p.OnFailure(errTransient); v != Retry {
		t.Fatalf("failure 2 verdict=%v, want retry", v)
	}
	if p.IsExhausted() {
		t.Fatalf("exhausted after 2 failures")
	}
	if v := p.OnFailure(errTransient); v != GiveUp {
		t.Fatalf("failure 3 verdict=%v, want give_up", v)
	}
	if !p.IsExhausted() {
		t.Fatalf("expected exhausted after 3 failures")
	}
	if v := p.OnFailure(errTransient); v != GiveUp || !p.IsExhausted() {
		t.Fatalf("exhaustion is not monotonic")
	}
}

func TestLimitedAttempts_PermanentDoesNotConsumeBudget(t *testing.T) {
	p := NewLimitedAttempts(2)
	for i := 0; i < 5; i++ {
		if v := p.OnFailure(errDenied); v != GiveUp {
			t.Fatalf("verdict=%v, want give_up", v)
		}
	}
	if p.IsExhausted() {
		t.Fatalf("permanent errors consumed budget")
	}
	if !IsPermanent(p, errDenied) || IsPermanent(p, errTransient) {
		t.Fatalf("IsPermanent mismatch")
	}
}

func TestLimitedAttempts_MinimumOne(t *testing.T) {
	p := NewLimitedAttempts(0)
	if p.MaxAttempts() != 1 {
		t.Fatalf("max=%d, want 1", p.MaxAttempts())
	}
	if v := p.OnFailure(errTransient); v != GiveUp {
		t.Fatalf("verdict=%v, want give_up", v)
	}
}

func TestLimitedAttempts_CloneResetsState(t *testing.T) {
	proto := NewLimitedAttempts(1)
	proto.OnFailure(errTransient)
	if !proto.IsExhausted() {
		t.Fatalf("expected prototype exhausted")
	}
	c := proto.Clone()
	if c.IsExhausted() {
		t.Fatalf("clone inherited exhaustion")
	}
}

func TestLimitedAttempts_NotConvergedIsRetryable(t *testing.T) {
	p := NewLimitedAttempts(2)
	if v := p.OnFailure(classify.ErrNotConverged); v != Retry {
		t.Fatalf("verdict=%v, want retry", v)
	}
}

func TestLimitedAttempts_NeverClassifier(t *testing.T) {
	p := NewLimitedAttempts(5, WithClassifier(classify.Never{}))
	if v := p.OnFailure(errTransient); v != GiveUp {
		t.Fatalf("verdict=%v, want give_up", v)
	}
}

func TestLimitedTime_UsesClock(t *testing.T) {
	now := time.Unix(100, 0)
	clock := func() time.Time { return now }
	p := NewLimitedTime(time.Second, WithPolicyClock(clock))

	if v := p.OnFailure(errTransient); v != Retry {
		t.Fatalf("verdict=%v, want retry", v)
	}
	now = now.Add(999 * time.Millisecond)
	if p.IsExhausted() {
		t.Fatalf("exhausted before deadline")
	}
	now = now.Add(time.Millisecond)
	if v := p.OnFailure(errTransient); v != GiveUp {
		t.Fatalf("verdict=%v, want give_up", v)
	}
	if !p.IsExhausted() {
		t.Fatalf("expected exhausted at deadline")
	}

	c := p.Clone().(*LimitedTime)
	if c.IsExhausted() {
		t.Fatalf("clone should restart the deadline")
	}
	if want := now.Add(time.Second); !c.Deadline().Equal(want) {
		t.Fatalf("deadline=%v, want %v", c.Deadline(), want)
	}
}

func TestLimitedTime_PermanentShortCircuits(t *testing.T) {
	p := NewLimitedTime(time.Hour)
	if v := p.OnFailure(errDenied); v != GiveUp {
		t.Fatalf("verdict=%v, want give_up", v)
	}
	if p.IsExhausted() {
		t.Fatalf("permanent error exhausted a time policy")
	}
}

func TestLimitedAttempts_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("exactly n retryable failures exhaust the policy", prop.ForAll(
		func(n int) bool {
			p := NewLimitedAttempts(n)
			for i := 1; i < n; i++ {
				if p.OnFailure(errTransient) != Retry || p.IsExhausted() {
					return false
				}
			}
			return p.OnFailure(errTransient) == GiveUp && p.IsExhausted()
		},
		gen.IntRange(1, 50),
	))

	properties.Property("permanent errors give up regardless of n", prop.ForAll(
		func(n int) bool {
			p := NewLimitedAttempts(n)
			return p.OnFailure(errDenied) == GiveUp && !p.IsExhausted()
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
