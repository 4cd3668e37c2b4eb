// Package admin is a table administration client. Short calls run in a
// blocking retry loop; the Async variants and consistency waits run as poll
// operations on a completion queue and return futures.
//
// Each method resolves its call policy from a controlplane.Provider when one
// is configured, falling back to the client defaults. Methods that are not
// safe to repeat make a single attempt unless their policy marks them
// idempotent.
package admin

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aponysus/tableadmin/budget"
	"github.com/aponysus/tableadmin/completion"
	"github.com/aponysus/tableadmin/controlplane"
	"github.com/aponysus/tableadmin/observe"
	"github.com/aponysus/tableadmin/policy"
	"github.com/aponysus/tableadmin/poll"
	"github.com/aponysus/tableadmin/retry"
)

// ErrInvalidConfig is returned by New for unusable arguments.
var ErrInvalidConfig = errors.New("tableadmin: invalid admin client config")

// MethodWaitForConsistency names the consistency poll in policy lookups and
// timelines. Its default policy is time-bounded.
const MethodWaitForConsistency = "WaitForConsistency"

// TableAdmin manages the tables of one instance.
type TableAdmin struct {
	stub     Stub
	project  string
	instance string
	parent   string

	exec     *retry.Executor
	cq       completion.Scheduler
	provider controlplane.Provider
	budgets  *budget.Registry
	observer observe.Observer
	logger   *slog.Logger

	defaults policy.CallPolicy
	polling  policy.CallPolicy
}

type options struct {
	exec     *retry.Executor
	cq       completion.Scheduler
	provider controlplane.Provider
	budgets  *budget.Registry
	observer observe.Observer
	logger   *slog.Logger
	defaults *policy.CallPolicy
	polling  *policy.CallPolicy
}

// Option configures a TableAdmin.
type Option func(*options)

// WithExecutor sets the executor for blocking calls. Its observer, clock and
// sleep are used; retry and backoff prototypes come from call policies.
func WithExecutor(exec *retry.Executor) Option {
	return func(o *options) { o.exec = exec }
}

// WithCompletionQueue sets the queue for asynchronous calls. Defaults to
// completion.Default().
func WithCompletionQueue(cq completion.Scheduler) Option {
	return func(o *options) { o.cq = cq }
}

// WithPolicyProvider looks up per-method call policies.
func WithPolicyProvider(p controlplane.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithBudgetRegistry resolves the budget names used by call policies.
func WithBudgetRegistry(r *budget.Registry) Option {
	return func(o *options) { o.budgets = r }
}

// WithObserver sets the observer for poll operations, and for blocking calls
// when no executor is given.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger for policy fallbacks and budget misses. Defaults
// to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCallPolicy replaces the default policy of single calls.
func WithCallPolicy(p policy.CallPolicy) Option {
	return func(o *options) { o.defaults = &p }
}

// WithPollingPolicy replaces the default policy of consistency waits.
func WithPollingPolicy(p policy.CallPolicy) Option {
	return func(o *options) { o.polling = &p }
}

// New returns a client for projects/<project>/instances/<instance>.
func New(stub Stub, project, instance string, opts ...Option) (*TableAdmin, error) {
	if stub == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "stub is nil")
	}
	project = strings.TrimSpace(project)
	instance = strings.TrimSpace(instance)
	if project == "" || instance == "" {
		return nil, errors.Wrapf(ErrInvalidConfig, "project %q and instance %q must be set", project, instance)
	}

	var cfg options
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	defaults, err := normalized(cfg.defaults, policy.New())
	if err != nil {
		return nil, errors.Wrap(err, "call policy")
	}
	polling, err := normalized(cfg.polling, policy.New(policy.PollingDefaults()))
	if err != nil {
		return nil, errors.Wrap(err, "polling policy")
	}

	a := &TableAdmin{
		stub:     stub,
		project:  project,
		instance: instance,
		parent:   "projects/" + project + "/instances/" + instance,
		exec:     cfg.exec,
		cq:       cfg.cq,
		provider: cfg.provider,
		budgets:  cfg.budgets,
		observer: cfg.observer,
		logger:   cfg.logger,
		defaults: defaults,
		polling:  polling,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.exec == nil {
		a.exec = retry.NewExecutor(retry.WithObserver(a.observer))
	}
	if a.observer == nil {
		a.observer = a.exec.Observer()
	}
	if a.cq == nil {
		a.cq = completion.Default()
	}
	if a.budgets == nil {
		a.budgets = budget.NewRegistry()
	}

	return a, nil
}

func normalized(p *policy.CallPolicy, def policy.CallPolicy) (policy.CallPolicy, error) {
	if p == nil {
		return def, nil
	}
	return p.Normalize()
}

// Project returns the project ID the client was created with.
func (a *TableAdmin) Project() string { return a.project }

// InstanceID returns the bare instance ID, without the project prefix.
func (a *TableAdmin) InstanceID() string { return a.instance }

// InstanceName returns "projects/<project>/instances/<instance>".
func (a *TableAdmin) InstanceName() string { return a.parent }

// TableName returns the full resource name of tableID.
func (a *TableAdmin) TableName(tableID string) string {
	return a.parent + "/tables/" + tableID
}

// policyFor returns the policy of method. A provider miss keeps def; a
// fallback policy returned with an error is used and logged.
func (a *TableAdmin) policyFor(ctx context.Context, method string, def policy.CallPolicy) policy.CallPolicy {
	if a.provider == nil {
		return def
	}
	pol, err := a.provider.CallPolicy(ctx, method)
	switch {
	case err == nil && !pol.IsZero():
		return pol
	case err != nil && !pol.IsZero():
		a.logger.WarnContext(ctx, "using fallback call policy",
			slog.String("method", method),
			slog.String("source", string(pol.Meta.Source)),
			slog.Any("error", err),
		)
		return pol
	case err != nil && !errors.Is(err, controlplane.ErrPolicyNotFound):
		a.logger.WarnContext(ctx, "call policy lookup failed, using default",
			slog.String("method", method),
			slog.Any("error", err),
		)
	}
	return def
}

// budgetFor resolves name. An unknown budget denies every retry.
func (a *TableAdmin) budgetFor(ctx context.Context, method, name string) budget.Budget {
	b, err := a.budgets.Resolve(name)
	if err != nil {
		a.logger.WarnContext(ctx, "retry budget not found, retries denied",
			slog.String("method", method),
			slog.String("budget", name),
		)
		return denyBudget{reason: budget.ReasonBudgetNotFound}
	}
	return b
}

type denyBudget struct{ reason string }

func (d denyBudget) AllowAttempt(context.Context, string, int) budget.Decision {
	return budget.Decision{Allowed: false, Reason: d.reason}
}

func (a *TableAdmin) callOptions(ctx context.Context, method string, idempotent bool) []retry.CallOption {
	pol := a.policyFor(ctx, method, a.defaults)
	opts := []retry.CallOption{
		retry.OverrideRetryPolicy(pol.RetryPolicy(idempotent)),
		retry.OverrideBackoff(pol.BackoffPolicy()),
	}
	if pol.Budget != "" {
		opts = append(opts,
			retry.OverrideBudget(a.budgetFor(ctx, method, pol.Budget)),
			retry.WithAttribute(observe.AttrBudget, pol.Budget),
		)
	}
	return opts
}

func (a *TableAdmin) pollOptions(ctx context.Context, method string, idempotent bool, def policy.CallPolicy) []poll.Option {
	pol := a.policyFor(ctx, method, def)
	opts := []poll.Option{
		poll.WithRetryPolicy(pol.RetryPolicy(idempotent)),
		poll.WithBackoff(pol.BackoffPolicy()),
		poll.WithObserver(a.observer),
	}
	if pol.Budget != "" {
		opts = append(opts, poll.WithBudget(a.budgetFor(ctx, method, pol.Budget)))
	}
	return opts
}

func doCall[T any](ctx context.Context, a *TableAdmin, method string, idempotent bool, op retry.OperationValue[T]) (T, error) {
	return retry.DoValue(ctx, a.exec, method, op, a.callOptions(ctx, method, idempotent)...)
}
