package observe_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aponysus/tableadmin/classify"
	"github.com/aponysus/tableadmin/observe"
)

type countingObserver struct {
	observe.BaseObserver
	starts, attempts, successes, failures int
}

func (c *countingObserver) OnStart(context.Context, observe.OpInfo) { c.starts++ }
func (c *countingObserver) OnAttempt(context.Context, observe.OpInfo, observe.AttemptRecord) {
	c.attempts++
}
func (c *countingObserver) OnSuccess(context.Context, observe.OpInfo, observe.Timeline) {
	c.successes++
}
func (c *countingObserver) OnFailure(context.Context, observe.OpInfo, observe.Timeline) {
	c.failures++
}

func TestNoopAndBaseObserver_HandleEvents(t *testing.T) {
	ctx := context.Background()
	op := observe.OpInfo{ID: "1", Name: "op", Kind: observe.KindSync}
	rec := observe.AttemptRecord{Attempt: 1}
	tl := observe.Timeline{Op: op}

	for _, obs := range []observe.Observer{observe.NoopObserver{}, observe.BaseObserver{}} {
		obs.OnStart(ctx, op)
		obs.OnAttempt(ctx, op, rec)
		obs.OnSuccess(ctx, op, tl)
		obs.OnFailure(ctx, op, tl)
	}

	if !observe.IsNoop(nil) || !observe.IsNoop(observe.NoopObserver{}) || !observe.IsNoop(&observe.NoopObserver{}) {
		t.Fatalf("expected noop observers to be detected")
	}
	if observe.IsNoop(observe.BaseObserver{}) {
		t.Fatalf("BaseObserver is not noop")
	}
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	m := observe.MultiObserver{Observers: []observe.Observer{a, nil, b}}

	ctx := context.Background()
	op := observe.OpInfo{Name: "op"}
	m.OnStart(ctx, op)
	m.OnAttempt(ctx, op, observe.AttemptRecord{})
	m.OnAttempt(ctx, op, observe.AttemptRecord{})
	m.OnSuccess(ctx, op, observe.Timeline{})
	m.OnFailure(ctx, op, observe.Timeline{})

	for i, c := range []*countingObserver{a, b} {
		if c.starts != 1 || c.attempts != 2 || c.successes != 1 || c.failures != 1 {
			t.Fatalf("observer %d got %+v", i, c)
		}
	}
}

func TestTimelineCapture(t *testing.T) {
	ctx, capture := observe.RecordTimeline(context.Background())
	if capture.Timeline() != nil {
		t.Fatalf("expected empty capture")
	}

	inner := observe.WithoutTimelineCapture(ctx)
	observe.PublishTimeline(inner, observe.Timeline{Op: observe.OpInfo{Name: "nested"}})
	if capture.Timeline() != nil {
		t.Fatalf("nested operation filled the capture")
	}

	observe.PublishTimeline(ctx, observe.Timeline{Op: observe.OpInfo{Name: "outer"}})
	if got := capture.Timeline(); got == nil || got.Op.Name != "outer" {
		t.Fatalf("timeline=%+v, want outer", got)
	}

	var nilCapture *observe.TimelineCapture
	if nilCapture.Timeline() != nil {
		t.Fatalf("nil capture should return nil")
	}
}

func TestAttemptInfo_RoundTrip(t *testing.T) {
	ctx := observe.WithAttemptInfo(context.Background(), observe.AttemptInfo{Op: observe.OpInfo{Name: "x"}, Attempt: 2})
	info, ok := observe.AttemptFromContext(ctx)
	if !ok || info.Attempt != 2 || info.Op.Name != "x" {
		t.Fatalf("info=%+v ok=%v", info, ok)
	}
	if _, ok := observe.AttemptFromContext(context.Background()); ok {
		t.Fatalf("expected no attempt info")
	}
}

func TestLogObserver_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := observe.NewLogObserver(logger)

	ctx := context.Background()
	op := observe.OpInfo{ID: "abc", Name: "CheckConsistency", Kind: observe.KindPoll}
	start := time.Unix(0, 0)

	obs.OnStart(ctx, op)
	obs.OnAttempt(ctx, op, observe.AttemptRecord{Attempt: 0, StartTime: start, EndTime: start})
	obs.OnAttempt(ctx, op, observe.AttemptRecord{
		Attempt:   1,
		StartTime: start,
		EndTime:   start.Add(time.Millisecond),
		Outcome:   classify.Outcome{Class: classify.Retryable, Reason: "grpc_Unavailable"},
		Err:       errors.New("unavailable"),
	})
	obs.OnFailure(ctx, op, observe.Timeline{
		Op:         op,
		Attributes: map[string]string{observe.AttrTerminal: "exhausted"},
		FinalErr:   errors.New("gave up"),
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3:\n%s", len(lines), buf.String())
	}

	var last map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if last["level"] != "WARN" || last["op_id"] != "abc" || last["terminal"] != "exhausted" {
		t.Fatalf("unexpected failure record: %v", last)
	}
}
