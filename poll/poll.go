// Package poll runs asynchronous convergence checks on a completion queue.
//
// A poll operation is a strictly sequential state machine: it issues an RPC,
// waits for it, applies a success predicate and, if the predicate does not
// hold yet or the RPC failed with a retryable error, waits on a backoff timer
// before issuing the next RPC. At most one RPC or timer is outstanding per
// operation and the calling goroutine never blocks.
package poll

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aponysus/tableadmin/backoff"
	"github.com/aponysus/tableadmin/budget"
	"github.com/aponysus/tableadmin/classify"
	"github.com/aponysus/tableadmin/completion"
	"github.com/aponysus/tableadmin/future"
	"github.com/aponysus/tableadmin/observe"
	"github.com/aponysus/tableadmin/retry"
)

// Call issues one RPC of the poll.
type Call[T any] func(ctx context.Context) (T, error)

// Predicate reports whether a response shows the awaited state was reached.
type Predicate[T any] func(T) bool

// Phase is the state of a poll operation.
type Phase int

const (
	Idle Phase = iota
	AwaitingRPC
	EvaluatingResult
	HandlingFailure
	AwaitingTimer
	Resolved
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingRPC:
		return "awaiting_rpc"
	case EvaluatingResult:
		return "evaluating_result"
	case HandlingFailure:
		return "handling_failure"
	case AwaitingTimer:
		return "awaiting_timer"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// PanicError is returned when the success predicate panics.
type PanicError struct {
	Op    string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tableadmin: %s: panic in success predicate: %v", e.Op, e.Value)
}

// Defaults used when no prototypes are given.
const (
	DefaultMaxAttempts = 10
)

type options struct {
	retry     retry.Policy
	backoff   backoff.Policy
	budget    budget.Budget
	observer  observe.Observer
	clock     func() time.Time
	phaseHook func(Phase)
}

// Option configures a poll operation.
type Option func(*options)

// WithRetryPolicy sets the retry policy prototype. Every not-converged
// response and every retryable failure consumes one unit of its budget.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.retry = p }
}

// WithBackoff sets the backoff policy prototype.
func WithBackoff(b backoff.Policy) Option {
	return func(o *options) { o.backoff = b }
}

// WithBudget gates every retry with b.
func WithBudget(b budget.Budget) Option {
	return func(o *options) { o.budget = b }
}

// WithObserver sets the observer.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClock sets the clock used for timelines.
func WithClock(f func() time.Time) Option {
	return func(o *options) { o.clock = f }
}

// WithPhaseHook calls f on every state transition. f runs on queue workers.
func WithPhaseHook(f func(Phase)) Option {
	return func(o *options) { o.phaseHook = f }
}

type operation[T any] struct {
	ctx      context.Context
	cq       completion.Scheduler
	call     Call[T]
	pred     Predicate[T]
	retry    retry.Policy
	backoff  backoff.Policy
	budget   budget.Budget
	observer observe.Observer
	clock    func() time.Time
	hook     func(Phase)
	promise  *future.Promise[T]

	op observe.OpInfo
	tl observe.Timeline

	// Mutated only by the operation's single outstanding continuation.
	phase        Phase
	attempts     int
	retries      int
	timers       int
	delay        time.Duration
	attemptStart time.Time
	release      func()
	budgetReason string
}

// Start begins a poll and returns the future it resolves. A nil pred accepts
// the first successful response, which turns Start into an asynchronous retry
// of a single call.
//
// ctx is passed to every RPC. Once ctx is done the next RPC fails or is not
// issued and the future resolves with ctx.Err(); a pending backoff timer is
// not interrupted.
func Start[T any](ctx context.Context, cq completion.Scheduler, name string, call Call[T], pred Predicate[T], opts ...Option) *future.Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.retry == nil {
		cfg.retry = retry.NewLimitedAttempts(DefaultMaxAttempts)
	}
	if cfg.backoff == nil {
		cfg.backoff = backoff.NewExponential(retry.DefaultInitialBackoff, retry.DefaultMaxBackoff, retry.DefaultMultiplier)
	}
	if cfg.observer == nil {
		cfg.observer = observe.NoopObserver{}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}

	o := &operation[T]{
		ctx:          ctx,
		cq:           cq,
		call:         call,
		pred:         pred,
		retry:        cfg.retry.Clone(),
		backoff:      cfg.backoff.Clone(),
		budget:       cfg.budget,
		observer:     cfg.observer,
		clock:        cfg.clock,
		hook:         cfg.phaseHook,
		promise:      future.NewPromise[T](),
		op:           observe.OpInfo{ID: uuid.NewString(), Name: name, Kind: observe.KindPoll},
		budgetReason: budget.ReasonNoBudget,
	}
	o.tl = observe.Timeline{
		Op:         o.op,
		Start:      o.clock(),
		Attributes: make(map[string]string, 2),
	}

	o.observer.OnStart(ctx, o.op)
	o.issue()
	return o.promise.Future()
}

func (o *operation[T]) transition(p Phase) {
	o.phase = p
	if o.hook != nil {
		o.hook(p)
	}
}

func (o *operation[T]) issue() {
	if err := o.ctx.Err(); err != nil {
		o.resolveErr(err)
		return
	}
	o.transition(AwaitingRPC)
	o.attemptStart = o.clock()

	attemptCtx := observe.WithAttemptInfo(observe.WithoutTimelineCapture(o.ctx), observe.AttemptInfo{
		Op:      o.op,
		Attempt: o.attempts,
	})
	call := o.call
	o.cq.RunAsync(func(qctx context.Context) (any, error) {
		ctx, cancel := context.WithCancel(attemptCtx)
		defer cancel()
		stop := context.AfterFunc(qctx, cancel)
		defer stop()
		return call(ctx)
	}, o.onRPC)
}

func (o *operation[T]) onRPC(ev completion.Event, ok bool) {
	if o.release != nil {
		o.release()
		o.release = nil
	}
	if !ok {
		o.cancelled(ev.Err)
		return
	}

	rec := observe.AttemptRecord{
		Attempt:       o.attempts,
		StartTime:     o.attemptStart,
		EndTime:       o.clock(),
		Backoff:       o.delay,
		BudgetAllowed: true,
		BudgetReason:  o.budgetReason,
	}
	o.attempts++

	if ev.Err != nil {
		o.transition(HandlingFailure)
		o.fail(rec, ev.Err)
		return
	}

	o.transition(EvaluatingResult)
	v, _ := ev.Value.(T)
	converged, err := o.evaluate(v)
	if err != nil {
		rec.Err = err
		o.record(rec)
		o.resolveErr(err)
		return
	}
	if converged {
		o.record(rec)
		o.resolve(v)
		return
	}
	o.fail(rec, classify.ErrNotConverged)
}

func (o *operation[T]) evaluate(v T) (converged bool, err error) {
	if o.pred == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Op: o.op.Name, Value: r}
		}
	}()
	return o.pred(v), nil
}

func (o *operation[T]) fail(rec observe.AttemptRecord, err error) {
	rec.Err = err
	rec.Outcome = o.retry.Classify(err)
	verdict := o.retry.OnFailure(err)
	o.record(rec)

	if verdict == retry.GiveUp {
		o.resolveErr(o.terminal(err, rec.Outcome))
		return
	}

	decision := o.allowRetry()
	if !decision.Allowed {
		o.resolveErr(&retry.Error{Kind: retry.KindExhausted, Op: o.op.Name, Attempts: o.attempts, Reason: decision.Reason, Err: err})
		return
	}
	o.budgetReason = decision.Reason
	o.release = decision.Release

	o.delay = o.backoff.NextDelay(o.retries)
	o.retries++
	o.timers++
	o.transition(AwaitingTimer)
	o.cq.MakeRelativeTimer(o.delay, o.onTimer)
}

func (o *operation[T]) onTimer(ev completion.Event, ok bool) {
	if !ok {
		if o.release != nil {
			o.release()
			o.release = nil
		}
		o.cancelled(ev.Err)
		return
	}
	o.issue()
}

func (o *operation[T]) allowRetry() budget.Decision {
	if o.budget == nil {
		return budget.Decision{Allowed: true, Reason: budget.ReasonNoBudget}
	}
	d := o.budget.AllowAttempt(o.ctx, o.op.Name, o.retries)
	if d.Reason == "" {
		if d.Allowed {
			d.Reason = budget.ReasonAllowed
		} else {
			d.Reason = budget.ReasonBudgetDenied
		}
	}
	return d
}

func (o *operation[T]) terminal(err error, out classify.Outcome) error {
	if ctxErr := o.ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctxErr
	}
	kind := retry.KindExhausted
	switch {
	case errors.Is(err, classify.ErrNotConverged):
		kind = retry.KindNotConverged
	case out.Class == classify.Permanent:
		kind = retry.KindPermanent
	}
	return &retry.Error{Kind: kind, Op: o.op.Name, Attempts: o.attempts, Reason: out.Reason, Err: err}
}

func (o *operation[T]) cancelled(cause error) {
	if cause == nil {
		cause = completion.ErrShutdown
	}
	o.resolveErr(&retry.Error{Kind: retry.KindCancelled, Op: o.op.Name, Attempts: o.attempts, Reason: "queue_shutdown", Err: cause})
}

func (o *operation[T]) record(rec observe.AttemptRecord) {
	o.tl.Attempts = append(o.tl.Attempts, rec)
	o.observer.OnAttempt(o.ctx, o.op, rec)
}

func (o *operation[T]) finish(err error) {
	o.transition(Resolved)
	o.tl.End = o.clock()
	o.tl.FinalErr = err
	o.tl.Attributes[observe.AttrTimers] = strconv.Itoa(o.timers)
	if err == nil {
		o.observer.OnSuccess(o.ctx, o.op, o.tl)
	} else {
		if k := retry.KindOf(err); k != 0 {
			o.tl.Attributes[observe.AttrTerminal] = k.String()
		} else {
			o.tl.Attributes[observe.AttrTerminal] = "context"
		}
		o.observer.OnFailure(o.ctx, o.op, o.tl)
	}
	observe.PublishTimeline(o.ctx, o.tl)
}

func (o *operation[T]) resolve(v T) {
	o.finish(nil)
	o.promise.SetValue(v)
}

func (o *operation[T]) resolveErr(err error) {
	o.finish(err)
	o.promise.SetError(err)
}
