package completion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManual_FIFOAndTimers(t *testing.T) {
	m := NewManual()

	var order []string
	calls := 0
	m.RunAsync(func(context.Context) (any, error) {
		calls++
		return 7, nil
	}, func(ev Event, ok bool) {
		if !ok || ev.Value != 7 {
			t.Errorf("rpc event=%+v ok=%v", ev, ok)
		}
		order = append(order, "rpc")
	})
	m.MakeRelativeTimer(25*time.Millisecond, func(ev Event, ok bool) {
		if !ok || ev.Kind != TimerExpired {
			t.Errorf("timer event=%+v ok=%v", ev, ok)
		}
		order = append(order, "timer")
	})

	if m.Size() != 2 {
		t.Fatalf("size=%d, want 2", m.Size())
	}
	if kinds := m.PendingKinds(); len(kinds) != 2 || kinds[0] != RPCCompleted || kinds[1] != TimerExpired {
		t.Fatalf("kinds=%v", kinds)
	}
	if calls != 0 {
		t.Fatalf("rpc ran before completion was simulated")
	}

	if !m.SimulateCompletion(true) || !m.SimulateCompletion(true) {
		t.Fatalf("expected two completions")
	}
	if m.SimulateCompletion(true) {
		t.Fatalf("expected empty queue")
	}
	if len(order) != 2 || order[0] != "rpc" || order[1] != "timer" {
		t.Fatalf("order=%v", order)
	}
	if timers := m.Timers(); len(timers) != 1 || timers[0] != 25*time.Millisecond {
		t.Fatalf("timers=%v", timers)
	}
}

func TestManual_CancelledCompletionSkipsRPC(t *testing.T) {
	m := NewManual()

	var got Event
	var gotOK = true
	m.RunAsync(func(context.Context) (any, error) {
		t.Errorf("rpc ran on cancelled completion")
		return nil, nil
	}, func(ev Event, ok bool) { got, gotOK = ev, ok })

	m.SimulateCompletion(false)
	if gotOK || !errors.Is(got.Err, ErrShutdown) {
		t.Fatalf("event=%+v ok=%v", got, gotOK)
	}
}

func TestManual_ShutdownCancelsPendingAndRejectsNew(t *testing.T) {
	m := NewManual()

	notified := 0
	for i := 0; i < 3; i++ {
		m.MakeRelativeTimer(time.Second, func(_ Event, ok bool) {
			if ok {
				t.Errorf("timer completed ok during shutdown")
			}
			notified++
		})
	}
	m.Shutdown()
	m.Shutdown()

	if notified != 3 || m.Size() != 0 {
		t.Fatalf("notified=%d size=%d", notified, m.Size())
	}

	var ok = true
	h := m.RunAsync(func(context.Context) (any, error) { return nil, nil }, func(_ Event, o bool) { ok = o })
	if ok || h.Valid() {
		t.Fatalf("submission after shutdown: ok=%v handle=%+v", ok, h)
	}
}

func TestManual_RunUntilIdleFollowsChains(t *testing.T) {
	m := NewManual()

	var step func(n int) Continuation
	step = func(n int) Continuation {
		return func(Event, bool) {
			if n > 0 {
				m.MakeRelativeTimer(time.Millisecond, step(n-1))
			}
		}
	}
	m.MakeRelativeTimer(time.Millisecond, step(4))

	if got := m.RunUntilIdle(true, 100); got != 5 {
		t.Fatalf("completions=%d, want 5", got)
	}
	if got := m.RunUntilIdle(true, 100); got != 0 {
		t.Fatalf("completions=%d, want 0", got)
	}
}
