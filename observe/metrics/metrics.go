// Package metrics exports operation and completion queue metrics to
// Prometheus.
package metrics

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aponysus/tableadmin/classify"
	"github.com/aponysus/tableadmin/completion"
	"github.com/aponysus/tableadmin/observe"
)

const namespace = "tableadmin"

// Observer records attempts, terminal results and operation latency.
type Observer struct {
	observe.BaseObserver

	attempts *prometheus.CounterVec
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewObserver registers the observer's collectors with reg. A nil reg leaves
// them unregistered.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of RPC attempts by outcome.",
		}, []string{"op", "kind", "outcome"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of finished operations by result.",
		}, []string{"op", "kind", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations including retries and backoff.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}, []string{"op", "kind"}),
	}
}

func (o *Observer) OnAttempt(_ context.Context, op observe.OpInfo, rec observe.AttemptRecord) {
	o.attempts.WithLabelValues(op.Name, string(op.Kind), attemptOutcome(rec)).Inc()
}

func (o *Observer) OnSuccess(_ context.Context, op observe.OpInfo, tl observe.Timeline) {
	o.finish(op, tl, "success")
}

func (o *Observer) OnFailure(_ context.Context, op observe.OpInfo, tl observe.Timeline) {
	result := tl.Attributes[observe.AttrTerminal]
	if result == "" {
		result = "unknown"
	}
	o.finish(op, tl, result)
}

func (o *Observer) finish(op observe.OpInfo, tl observe.Timeline, result string) {
	o.results.WithLabelValues(op.Name, string(op.Kind), result).Inc()
	o.duration.WithLabelValues(op.Name, string(op.Kind)).Observe(tl.End.Sub(tl.Start).Seconds())
}

func attemptOutcome(rec observe.AttemptRecord) string {
	switch {
	case rec.Err == nil:
		return "success"
	case errors.Is(rec.Err, classify.ErrNotConverged):
		return "not_converged"
	default:
		return rec.Outcome.Class.String()
	}
}

// RegisterQueue exports the number of outstanding submissions of q as a
// gauge labelled with name.
func RegisterQueue(reg prometheus.Registerer, name string, q completion.Scheduler) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "completion_queue_pending",
		Help:        "Submissions waiting for their completion notification.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 {
		return float64(q.Size())
	})
	if err := reg.Register(gauge); err != nil {
		return errors.Wrap(err, "metrics: register completion queue gauge")
	}
	return nil
}
