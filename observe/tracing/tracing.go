// Package tracing records operations as OpenTelemetry spans, with one span
// event per attempt.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/tableadmin/observe"
)

const instrumentationName = "github.com/aponysus/tableadmin"

// Observer starts a span when an operation starts and ends it when the
// operation finishes.
type Observer struct {
	tracer trace.Tracer
	spans  sync.Map // op ID -> trace.Span
}

// NewObserver uses tp, or the global tracer provider when tp is nil.
func NewObserver(tp trace.TracerProvider) *Observer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Observer{tracer: tp.Tracer(instrumentationName)}
}

func (o *Observer) OnStart(ctx context.Context, op observe.OpInfo) {
	_, span := o.tracer.Start(ctx, "tableadmin."+op.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tableadmin.op_id", op.ID),
			attribute.String("tableadmin.kind", string(op.Kind)),
		),
	)
	o.spans.Store(op.ID, span)
}

func (o *Observer) OnAttempt(_ context.Context, op observe.OpInfo, rec observe.AttemptRecord) {
	span, ok := o.span(op)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("attempt", rec.Attempt),
		attribute.Int64("backoff_ms", rec.Backoff.Milliseconds()),
		attribute.Int64("latency_ms", rec.EndTime.Sub(rec.StartTime).Milliseconds()),
	}
	if rec.Err != nil {
		attrs = append(attrs,
			attribute.String("class", rec.Outcome.Class.String()),
			attribute.String("reason", rec.Outcome.Reason),
			attribute.String("error", rec.Err.Error()),
		)
	}
	span.AddEvent("attempt", trace.WithAttributes(attrs...))
}

func (o *Observer) OnSuccess(_ context.Context, op observe.OpInfo, tl observe.Timeline) {
	span, ok := o.take(op)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("tableadmin.attempts", len(tl.Attempts)))
	span.SetStatus(otelcodes.Ok, "")
	span.End()
}

func (o *Observer) OnFailure(_ context.Context, op observe.OpInfo, tl observe.Timeline) {
	span, ok := o.take(op)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.Int("tableadmin.attempts", len(tl.Attempts)),
		attribute.String("tableadmin.terminal", tl.Attributes[observe.AttrTerminal]),
	)
	if tl.FinalErr != nil {
		span.RecordError(tl.FinalErr)
		span.SetStatus(otelcodes.Error, tl.FinalErr.Error())
	} else {
		span.SetStatus(otelcodes.Error, "")
	}
	span.End()
}

func (o *Observer) span(op observe.OpInfo) (trace.Span, bool) {
	v, ok := o.spans.Load(op.ID)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (o *Observer) take(op observe.OpInfo) (trace.Span, bool) {
	v, ok := o.spans.LoadAndDelete(op.ID)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}
