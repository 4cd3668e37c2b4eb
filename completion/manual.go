package completion

import (
	"context"
	"sync"
	"time"
)

type manualOp struct {
	handle Handle
	kind   EventKind
	fn     Func
	cont   Continuation
}

// Manual is a completion queue without goroutines. Submissions wait in FIFO
// order until a test completes them with SimulateCompletion, which runs the
// continuation on the caller's goroutine.
type Manual struct {
	mu      sync.Mutex
	pending []manualOp
	timers  []time.Duration
	next    uint32
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManual returns an empty manual queue.
func NewManual() *Manual {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manual{ctx: ctx, cancel: cancel}
}

// RunAsync queues op without running it. SimulateCompletion(true) runs it on
// the caller's goroutine; SimulateCompletion(false) cancels it unrun.
func (m *Manual) RunAsync(op Func, cont Continuation) Handle {
	return m.submit(manualOp{kind: RPCCompleted, fn: op, cont: cont}, 0)
}

// MakeRelativeTimer records d and queues a timer that expires when simulated.
func (m *Manual) MakeRelativeTimer(d time.Duration, cont Continuation) Handle {
	return m.submit(manualOp{kind: TimerExpired, cont: cont}, d)
}

func (m *Manual) submit(op manualOp, d time.Duration) Handle {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		op.cont(Event{Kind: op.kind, Err: ErrShutdown}, false)
		return Handle{}
	}
	if op.kind == TimerExpired {
		m.timers = append(m.timers, d)
	}
	m.next++
	op.handle = Handle{index: m.next, gen: 1}
	m.pending = append(m.pending, op)
	m.mu.Unlock()
	return op.handle
}

// SimulateCompletion completes the oldest pending submission. With ok, an RPC
// submission runs its function and a timer expires; without ok, the
// submission is cancelled. It returns false if nothing was pending.
func (m *Manual) SimulateCompletion(ok bool) bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	op := m.pending[0]
	m.pending[0] = manualOp{}
	m.pending = m.pending[1:]
	m.mu.Unlock()

	ev := Event{Kind: op.kind}
	switch {
	case !ok:
		ev.Err = ErrShutdown
	case op.kind == RPCCompleted:
		ev.Value, ev.Err = op.fn(m.ctx)
	}
	op.cont(ev, ok)
	return true
}

// RunUntilIdle completes pending submissions, including ones scheduled by
// continuations, until none remain or limit completions have run. It returns
// the number of completions.
func (m *Manual) RunUntilIdle(ok bool, limit int) int {
	n := 0
	for n < limit && m.SimulateCompletion(ok) {
		n++
	}
	return n
}

// Size returns the number of pending submissions.
func (m *Manual) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// PendingKinds returns the kinds of pending submissions, oldest first.
func (m *Manual) PendingKinds() []EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]EventKind, len(m.pending))
	for i, op := range m.pending {
		kinds[i] = op.kind
	}
	return kinds
}

// Timers returns the delay of every timer scheduled so far.
func (m *Manual) Timers() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timers...)
}

// Shutdown cancels every pending submission, in order, and rejects new ones.
func (m *Manual) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancel()
	m.mu.Unlock()

	for m.SimulateCompletion(false) {
	}
}
