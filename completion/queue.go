// Package completion multiplexes asynchronous RPC completions and relative
// timers onto a small pool of workers that run continuations.
//
// Every submission receives exactly one notification. A notification with
// ok == false means the queue shut down before the work completed; the
// continuation must treat the operation as cancelled.
package completion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// ErrShutdown is the error carried by events delivered with ok == false.
var ErrShutdown = errors.New("completion: queue shut down")

// EventKind identifies what a notification is about.
type EventKind int

const (
	RPCCompleted EventKind = iota + 1
	TimerExpired
)

func (k EventKind) String() string {
	switch k {
	case RPCCompleted:
		return "rpc_completed"
	case TimerExpired:
		return "timer_expired"
	default:
		return "unknown"
	}
}

// Event is delivered to a continuation. For RPCCompleted, Value and Err hold
// the RPC result.
type Event struct {
	Kind  EventKind
	Value any
	Err   error
}

// Continuation receives the single notification of a submission. ok is false
// when the queue shut down first. Continuations run on queue workers and must
// not block.
type Continuation func(ev Event, ok bool)

// Func is an asynchronous unit of work. ctx is cancelled when the queue shuts
// down; implementations must return promptly once it is.
type Func func(ctx context.Context) (any, error)

// Handle identifies a submission. Handles are generation-checked, so a stale
// handle never refers to a later submission reusing the same slot.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether h was returned for an accepted submission.
func (h Handle) Valid() bool { return h.gen != 0 }

// Scheduler is the part of a completion queue used by operations.
// *Queue and *Manual implement it.
type Scheduler interface {
	RunAsync(op Func, cont Continuation) Handle
	MakeRelativeTimer(d time.Duration, cont Continuation) Handle
	// Size returns the number of submissions not yet notified.
	Size() int
}

type slot struct {
	gen   uint32
	live  bool
	kind  EventKind
	cont  Continuation
	timer *time.Timer
}

type delivery struct {
	cont Continuation
	ev   Event
	ok   bool
}

// Queue is a completion queue backed by a worker pool.
type Queue struct {
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	slots    []slot
	free     []uint32
	live     int
	ready    []delivery
	closed   bool
	stopping bool

	ctx     context.Context
	cancel  context.CancelFunc
	rpcs    sync.WaitGroup
	workers errgroup.Group

	shutdownOnce sync.Once
	done         chan struct{}
}

type options struct {
	workers int
	logger  *slog.Logger
}

// Option configures a Queue.
type Option func(*options)

// WithWorkers sets the number of goroutines running continuations.
// Defaults to runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger used for continuation panics and shutdown.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New starts a completion queue. Call Shutdown to release its workers.
func New(opts ...Option) *Queue {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger: o.logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	for i := 0; i < o.workers; i++ {
		q.workers.Go(q.work)
	}
	return q
}

// RunAsync runs op on its own goroutine and delivers its result to cont on a
// worker. After Shutdown, cont is notified inline with ok == false.
func (q *Queue) RunAsync(op Func, cont Continuation) Handle {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		cont(Event{Kind: RPCCompleted, Err: ErrShutdown}, false)
		return Handle{}
	}
	h := q.alloc(RPCCompleted, cont)
	q.rpcs.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.rpcs.Done()
		v, err := op(q.ctx)
		q.complete(h, Event{Kind: RPCCompleted, Value: v, Err: err})
	}()
	return h
}

// MakeRelativeTimer delivers a TimerExpired event to cont after d. After
// Shutdown, cont is notified inline with ok == false.
func (q *Queue) MakeRelativeTimer(d time.Duration, cont Continuation) Handle {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		cont(Event{Kind: TimerExpired, Err: ErrShutdown}, false)
		return Handle{}
	}
	h := q.alloc(TimerExpired, cont)
	q.slots[h.index].timer = time.AfterFunc(d, func() {
		q.complete(h, Event{Kind: TimerExpired})
	})
	q.mu.Unlock()
	return h
}

// Size returns the number of submissions not yet notified.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.live + len(q.ready)
}

// Shutdown stops accepting work, cancels in-flight RPCs and timers, delivers
// a cancellation to every outstanding submission and waits for the workers
// to drain. It is idempotent and must not be called from a continuation.
func (q *Queue) Shutdown() {
	q.shutdownOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		cancelled := 0
		for i := range q.slots {
			s := &q.slots[i]
			if !s.live {
				continue
			}
			if s.timer != nil {
				s.timer.Stop()
			}
			q.ready = append(q.ready, delivery{
				cont: s.cont,
				ev:   Event{Kind: s.kind, Err: ErrShutdown},
				ok:   false,
			})
			q.release(uint32(i))
			cancelled++
		}
		q.cond.Broadcast()
		q.mu.Unlock()

		q.logger.Debug("completion queue shutting down", slog.Int("cancelled", cancelled))

		q.cancel()
		q.rpcs.Wait()

		q.mu.Lock()
		q.stopping = true
		q.cond.Broadcast()
		q.mu.Unlock()

		_ = q.workers.Wait()
		close(q.done)
	})
	<-q.done
}

// Done returns a channel closed once Shutdown has finished.
func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) alloc(kind EventKind, cont Continuation) Handle {
	var idx uint32
	if n := len(q.free); n > 0 {
		idx = q.free[n-1]
		q.free = q.free[:n-1]
	} else {
		q.slots = append(q.slots, slot{})
		idx = uint32(len(q.slots) - 1)
	}
	s := &q.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.live = true
	s.kind = kind
	s.cont = cont
	q.live++
	return Handle{index: idx, gen: s.gen}
}

func (q *Queue) release(idx uint32) {
	s := &q.slots[idx]
	s.live = false
	s.cont = nil
	s.timer = nil
	q.free = append(q.free, idx)
	q.live--
}

// complete claims h's slot and queues its notification. A slot already
// claimed by Shutdown is left alone.
func (q *Queue) complete(h Handle, ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := &q.slots[h.index]
	if !s.live || s.gen != h.gen {
		return
	}
	q.ready = append(q.ready, delivery{cont: s.cont, ev: ev, ok: true})
	q.release(h.index)
	q.cond.Signal()
}

func (q *Queue) work() error {
	for {
		q.mu.Lock()
		for len(q.ready) == 0 && !q.stopping {
			q.cond.Wait()
		}
		if len(q.ready) == 0 {
			q.mu.Unlock()
			return nil
		}
		d := q.ready[0]
		q.ready[0] = delivery{}
		q.ready = q.ready[1:]
		q.mu.Unlock()

		q.deliver(d)
	}
}

func (q *Queue) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("completion continuation panicked",
				slog.String("event", d.ev.Kind.String()),
				slog.Any("panic", r),
			)
		}
	}()
	d.cont(d.ev, d.ok)
}
