// Package retry implements retry policies, the terminal error taxonomy and the
// blocking retry loop used for short administrative calls.
package retry

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"

	"github.com/aponysus/tableadmin/backoff"
	"github.com/aponysus/tableadmin/budget"
	"github.com/aponysus/tableadmin/classify"
	"github.com/aponysus/tableadmin/observe"
)

type Operation func(ctx context.Context) error
type OperationValue[T any] func(ctx context.Context) (T, error)

// Default prototypes used when an Executor is built without them.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 10 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMultiplier     = 2.0
)

// Executor runs operations in a blocking retry loop. It holds policy
// prototypes; every call clones its own instances.
type Executor struct {
	retry    Policy
	backoff  backoff.Policy
	budget   budget.Budget
	observer observe.Observer
	clock    func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	RetryPolicy Policy
	Backoff     backoff.Policy
	Budget      budget.Budget
	Observer    observe.Observer
	Clock       func() time.Time
	// Sleep waits between attempts. It must return ctx.Err() when ctx ends first.
	Sleep func(context.Context, time.Duration) error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// NewExecutor creates an Executor with default options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	var cfg ExecutorOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return NewExecutorFromOptions(cfg)
}

// NewExecutorFromOptions creates an Executor from a config struct.
func NewExecutorFromOptions(opts ExecutorOptions) *Executor {
	e := &Executor{
		retry:    opts.RetryPolicy,
		backoff:  opts.Backoff,
		budget:   opts.Budget,
		observer: opts.Observer,
		clock:    opts.Clock,
		sleep:    opts.Sleep,
	}
	if e.retry == nil {
		e.retry = NewLimitedAttempts(DefaultMaxAttempts)
	}
	if e.backoff == nil {
		e.backoff = backoff.NewExponential(DefaultInitialBackoff, DefaultMaxBackoff, DefaultMultiplier)
	}
	if e.observer == nil {
		e.observer = observe.NoopObserver{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.sleep == nil {
		e.sleep = gax.Sleep
	}
	return e
}

// WithRetryPolicy sets the retry policy prototype.
func WithRetryPolicy(p Policy) ExecutorOption {
	return func(o *ExecutorOptions) { o.RetryPolicy = p }
}

// WithBackoff sets the backoff policy prototype.
func WithBackoff(b backoff.Policy) ExecutorOption {
	return func(o *ExecutorOptions) { o.Backoff = b }
}

// WithBudget sets a budget shared by every call made through the executor.
func WithBudget(b budget.Budget) ExecutorOption {
	return func(o *ExecutorOptions) { o.Budget = b }
}

// WithObserver sets the observer.
func WithObserver(obs observe.Observer) ExecutorOption {
	return func(o *ExecutorOptions) { o.Observer = obs }
}

// WithClock sets the clock function used for timelines.
func WithClock(f func() time.Time) ExecutorOption {
	return func(o *ExecutorOptions) { o.Clock = f }
}

// WithSleep replaces the blocking sleep between attempts.
func WithSleep(f func(context.Context, time.Duration) error) ExecutorOption {
	return func(o *ExecutorOptions) { o.Sleep = f }
}

// RetryPolicy returns the executor's retry policy prototype.
func (e *Executor) RetryPolicy() Policy { return e.retry }

// Backoff returns the executor's backoff policy prototype.
func (e *Executor) Backoff() backoff.Policy { return e.backoff }

// Observer returns the executor's observer.
func (e *Executor) Observer() observe.Observer { return e.observer }

type callConfig struct {
	retry   Policy
	backoff backoff.Policy
	budget  budget.Budget
	attrs   map[string]string
}

// CallOption overrides executor settings for a single call.
type CallOption func(*callConfig)

// OverrideRetryPolicy uses p as the prototype for this call.
func OverrideRetryPolicy(p Policy) CallOption {
	return func(c *callConfig) {
		if p != nil {
			c.retry = p
		}
	}
}

// OverrideBackoff uses b as the prototype for this call.
func OverrideBackoff(b backoff.Policy) CallOption {
	return func(c *callConfig) {
		if b != nil {
			c.backoff = b
		}
	}
}

// OverrideBudget gates this call's retries with b instead of the executor's budget.
func OverrideBudget(b budget.Budget) CallOption {
	return func(c *callConfig) { c.budget = b }
}

// WithAttribute adds an attribute to the call's timeline.
func WithAttribute(key, value string) CallOption {
	return func(c *callConfig) {
		if c.attrs == nil {
			c.attrs = make(map[string]string)
		}
		c.attrs[key] = value
	}
}

func (e *Executor) Do(ctx context.Context, name string, op Operation, opts ...CallOption) error {
	_, err := DoValue(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// DoValue runs op until it succeeds, fails permanently, or the retry policy
// gives up. Cancellation of ctx ends the loop with ctx.Err().
func DoValue[T any](ctx context.Context, exec *Executor, name string, op OperationValue[T], opts ...CallOption) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if exec == nil {
		exec = DefaultExecutor()
	}

	r := exec.start(ctx, name, opts)

	var out T
	err := r.call(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	r.finish(ctx, err)
	if err != nil {
		return zero, err
	}
	return out, nil
}

// run is the state of one logical operation. Paginated listings share one run
// across pages so the retry budget covers the whole listing.
type run struct {
	exec    *Executor
	op      observe.OpInfo
	retry   Policy
	backoff backoff.Policy
	budget  budget.Budget
	tl      observe.Timeline

	attempts int
	retries  int
}

func (e *Executor) start(ctx context.Context, name string, opts []CallOption) *run {
	cfg := callConfig{retry: e.retry, backoff: e.backoff, budget: e.budget}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r := &run{
		exec:    e,
		op:      observe.OpInfo{ID: uuid.NewString(), Name: name, Kind: observe.KindSync},
		retry:   cfg.retry.Clone(),
		backoff: cfg.backoff.Clone(),
		budget:  cfg.budget,
	}
	r.tl = observe.Timeline{
		Op:         r.op,
		Start:      e.clock(),
		Attributes: make(map[string]string, len(cfg.attrs)+1),
	}
	for k, v := range cfg.attrs {
		r.tl.Attributes[k] = v
	}
	e.observer.OnStart(ctx, r.op)
	return r
}

// call runs one logical request until success or a terminal error.
func (r *run) call(ctx context.Context, op Operation) error {
	var delay time.Duration
	budgetReason := budget.ReasonNoBudget
	var release func()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := observe.AttemptRecord{
			Attempt:       r.attempts,
			StartTime:     r.exec.clock(),
			Backoff:       delay,
			BudgetAllowed: true,
			BudgetReason:  budgetReason,
		}
		attemptCtx := observe.WithAttemptInfo(observe.WithoutTimelineCapture(ctx), observe.AttemptInfo{
			Op:      r.op,
			Attempt: r.attempts,
		})

		err := op(attemptCtx)
		if release != nil {
			release()
			release = nil
		}
		r.attempts++
		rec.EndTime = r.exec.clock()

		if err == nil {
			r.record(ctx, rec)
			return nil
		}

		rec.Err = err
		rec.Outcome = r.retry.Classify(err)
		verdict := r.retry.OnFailure(err)
		r.record(ctx, rec)

		if verdict == GiveUp {
			return r.terminal(ctx, err, rec.Outcome)
		}

		decision := r.allowRetry(ctx)
		if !decision.Allowed {
			return &Error{Kind: KindExhausted, Op: r.op.Name, Attempts: r.attempts, Reason: decision.Reason, Err: err}
		}
		budgetReason = decision.Reason
		release = decision.Release

		delay = r.backoff.NextDelay(r.retries)
		r.retries++
		if err := r.exec.sleep(ctx, delay); err != nil {
			if release != nil {
				release()
			}
			return err
		}
	}
}

func (r *run) allowRetry(ctx context.Context) budget.Decision {
	if r.budget == nil {
		return budget.Decision{Allowed: true, Reason: budget.ReasonNoBudget}
	}
	d := r.budget.AllowAttempt(ctx, r.op.Name, r.retries)
	if d.Reason == "" {
		if d.Allowed {
			d.Reason = budget.ReasonAllowed
		} else {
			d.Reason = budget.ReasonBudgetDenied
		}
	}
	return d
}

func (r *run) record(ctx context.Context, rec observe.AttemptRecord) {
	r.tl.Attempts = append(r.tl.Attempts, rec)
	r.exec.observer.OnAttempt(ctx, r.op, rec)
}

func (r *run) terminal(ctx context.Context, err error, out classify.Outcome) error {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctxErr
	}
	kind := KindExhausted
	if out.Class == classify.Permanent {
		kind = KindPermanent
	}
	return &Error{Kind: kind, Op: r.op.Name, Attempts: r.attempts, Reason: out.Reason, Err: err}
}

func (r *run) finish(ctx context.Context, err error) {
	r.tl.End = r.exec.clock()
	r.tl.FinalErr = err
	if err == nil {
		r.exec.observer.OnSuccess(ctx, r.op, r.tl)
	} else {
		if k := KindOf(err); k != 0 {
			r.tl.Attributes[observe.AttrTerminal] = k.String()
		} else {
			r.tl.Attributes[observe.AttrTerminal] = "context"
		}
		r.exec.observer.OnFailure(ctx, r.op, r.tl)
	}
	observe.PublishTimeline(ctx, r.tl)
}

func (r *run) setPages(n int) {
	r.tl.Attributes[observe.AttrPages] = strconv.Itoa(n)
}
