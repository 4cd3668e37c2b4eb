package admin

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aponysus/tableadmin/completion"
	"github.com/aponysus/tableadmin/future"
	"github.com/aponysus/tableadmin/observe"
	"github.com/aponysus/tableadmin/policy"
	"github.com/aponysus/tableadmin/retry"
)

func newManualAdmin(t *testing.T, stub Stub, opts ...Option) (*TableAdmin, *completion.Manual) {
	t.Helper()
	cq := completion.NewManual()
	t.Cleanup(cq.Shutdown)
	return newTestAdmin(t, stub, append([]Option{WithCompletionQueue(cq)}, opts...)...), cq
}

func TestAsyncWaitForConsistency_Simple(t *testing.T) {
	stub := &fakeStub{checkConsistency: func(n int, req *CheckConsistencyRequest) (*CheckConsistencyResponse, error) {
		if req.Name != testInstance+"/tables/test-table" || req.ConsistencyToken != "test-async-token" {
			return nil, status.Errorf(codes.InvalidArgument, "request=%+v", req)
		}
		switch n {
		case 1:
			return nil, status.Error(codes.Unavailable, "try again")
		case 2:
			return &CheckConsistencyResponse{Consistent: false}, nil
		default:
			return &CheckConsistencyResponse{Consistent: true}, nil
		}
	}}
	a, cq := newManualAdmin(t, stub)

	f := a.AsyncWaitForConsistency(context.Background(), "test-table", "test-async-token")
	if f.Ready() {
		t.Fatalf("future resolved before any completion")
	}

	// rpc (unavailable), timer, rpc (inconsistent), timer
	for i := 0; i < 4; i++ {
		if cq.Size() != 1 {
			t.Fatalf("step %d: pending=%d, want 1", i, cq.Size())
		}
		cq.SimulateCompletion(true)
		if f.Ready() {
			t.Fatalf("step %d: future resolved early", i)
		}
	}
	cq.SimulateCompletion(true)

	got, err, ok := f.Result()
	if !ok {
		t.Fatalf("future not resolved after the consistent response")
	}
	if err != nil || got != Consistent {
		t.Fatalf("got=%v err=%v, want consistent", got, err)
	}
	if n := stub.count(MethodCheckConsistency); n != 3 {
		t.Fatalf("calls=%d, want 3", n)
	}
	if n := len(cq.Timers()); n != 2 {
		t.Fatalf("timers=%d, want 2", n)
	}
	if cq.Size() != 0 {
		t.Fatalf("pending=%d, want 0", cq.Size())
	}
}

func TestAsyncWaitForConsistency_Failure(t *testing.T) {
	stub := &fakeStub{fallback: status.Error(codes.PermissionDenied, "oh no")}
	a, cq := newManualAdmin(t, stub)

	f := a.AsyncWaitForConsistency(context.Background(), "test-table", "test-async-token")
	if f.Ready() {
		t.Fatalf("future resolved before any completion")
	}
	cq.SimulateCompletion(true)

	_, err, ok := f.Result()
	if !ok {
		t.Fatalf("future not resolved after a permanent error")
	}
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code=%v, want PermissionDenied", status.Code(err))
	}
	if !errors.Is(err, retry.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
	if cq.Size() != 0 {
		t.Fatalf("pending=%d, want 0", cq.Size())
	}
}

func TestAsyncWaitForConsistency_NotConverged(t *testing.T) {
	stub := &fakeStub{checkConsistency: func(int, *CheckConsistencyRequest) (*CheckConsistencyResponse, error) {
		return &CheckConsistencyResponse{}, nil
	}}
	a, cq := newManualAdmin(t, stub, WithPollingPolicy(policy.New(policy.MaxAttempts(3))))

	f := a.AsyncWaitForConsistency(context.Background(), "t", "token")
	cq.RunUntilIdle(true, 100)

	_, err, ok := f.Result()
	if !ok {
		t.Fatalf("future not resolved")
	}
	if !errors.Is(err, retry.ErrNotConverged) {
		t.Fatalf("expected ErrNotConverged, got %v", err)
	}
	if status.Code(err) != codes.DeadlineExceeded {
		t.Fatalf("code=%v, want DeadlineExceeded", status.Code(err))
	}
	if n := stub.count(MethodCheckConsistency); n != 3 {
		t.Fatalf("calls=%d, want 3", n)
	}
}

func TestAsyncWaitForConsistency_QueueShutdown(t *testing.T) {
	stub := &fakeStub{checkConsistency: func(int, *CheckConsistencyRequest) (*CheckConsistencyResponse, error) {
		return &CheckConsistencyResponse{}, nil
	}}
	a, cq := newManualAdmin(t, stub)

	f := a.AsyncWaitForConsistency(context.Background(), "t", "token")
	cq.SimulateCompletion(true) // inconsistent; a timer is now pending
	cq.Shutdown()

	_, err, ok := f.Result()
	if !ok {
		t.Fatalf("future not resolved by shutdown")
	}
	if !errors.Is(err, retry.ErrCancelled) || !errors.Is(err, completion.ErrShutdown) {
		t.Fatalf("err=%v, want cancelled by shutdown", err)
	}
}

func TestWaitForConsistency_Blocking(t *testing.T) {
	stub := &fakeStub{checkConsistency: func(n int, _ *CheckConsistencyRequest) (*CheckConsistencyResponse, error) {
		return &CheckConsistencyResponse{Consistent: n >= 3}, nil
	}}
	q := completion.New(completion.WithWorkers(2))
	t.Cleanup(q.Shutdown)
	a := newTestAdmin(t, stub,
		WithCompletionQueue(q),
		WithPollingPolicy(policy.New(
			policy.PollingDefaults(),
			policy.ExponentialBackoff(time.Millisecond, time.Millisecond),
		)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got, err := a.WaitForConsistency(ctx, "t", "token")
	if err != nil || got != Consistent {
		t.Fatalf("got=%v err=%v, want consistent", got, err)
	}
	if n := stub.count(MethodCheckConsistency); n != 3 {
		t.Fatalf("calls=%d, want 3", n)
	}
}

func resultOf[T any](f *future.Future[T]) func() (bool, error) {
	return func() (bool, error) {
		_, err, ok := f.Result()
		return ok, err
	}
}

func TestAsyncCalls_PermanentFailureResolvesAfterOneCompletion(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(a *TableAdmin) func() (bool, error){
		"CreateTable": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncCreateTable(ctx, "the-table", TableConfig{}))
		},
		"GetTable": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncGetTable(ctx, "the-table", Full))
		},
		"DeleteTable": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncDeleteTable(ctx, "the-table"))
		},
		"ModifyColumnFamilies": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncModifyColumnFamilies(ctx, "the-table"))
		},
		"DropRowsByPrefix": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncDropRowsByPrefix(ctx, "the-table", "prefix"))
		},
		"DropAllRows": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncDropAllRows(ctx, "the-table"))
		},
		"GenerateConsistencyToken": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncGenerateConsistencyToken(ctx, "the-table"))
		},
		"CheckConsistency": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncCheckConsistency(ctx, "the-table", "token"))
		},
		"GetIamPolicy": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncGetIamPolicy(ctx, "the-table"))
		},
		"SetIamPolicy": func(a *TableAdmin) func() (bool, error) {
			return resultOf(a.AsyncSetIamPolicy(ctx, "the-table", testPolicy("test-tag")))
		},
	}
	for name, start := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &fakeStub{fallback: errDenied}
			a, cq := newManualAdmin(t, stub)

			result := start(a)
			if cq.Size() != 1 {
				t.Fatalf("pending=%d, want 1", cq.Size())
			}
			cq.SimulateCompletion(true)
			if cq.Size() != 0 {
				t.Fatalf("pending=%d, want 0", cq.Size())
			}
			ok, err := result()
			if !ok {
				t.Fatalf("future not resolved")
			}
			if status.Code(err) != codes.PermissionDenied {
				t.Fatalf("code=%v, want PermissionDenied (err=%v)", status.Code(err), err)
			}
		})
	}
}

func TestAsyncGetIamPolicy(t *testing.T) {
	stub := &fakeStub{getIamPolicy: func(_ int, req *GetIamPolicyRequest) (*IamPolicy, error) {
		if req.Resource != testTable {
			return nil, status.Errorf(codes.InvalidArgument, "resource=%q", req.Resource)
		}
		return &IamPolicy{Version: 3, Etag: "random-tag"}, nil
	}}
	a, cq := newManualAdmin(t, stub)

	f := a.AsyncGetIamPolicy(context.Background(), "the-table")
	if f.WaitFor(time.Millisecond) {
		t.Fatalf("future resolved before completion")
	}
	cq.SimulateCompletion(true)

	p, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Version != 3 || p.Etag != "random-tag" {
		t.Fatalf("policy=%+v", p)
	}
}

func TestAsyncGetTable_RetriesOnTimer(t *testing.T) {
	stub := &fakeStub{getTable: func(n int, req *GetTableRequest) (*Table, error) {
		if n == 1 {
			return nil, errUnavailable
		}
		return &Table{Name: req.Name}, nil
	}}
	a, cq := newManualAdmin(t, stub)

	f := a.AsyncGetTable(context.Background(), "the-table", Full)
	cq.SimulateCompletion(true)
	if kinds := cq.PendingKinds(); len(kinds) != 1 || kinds[0] != completion.TimerExpired {
		t.Fatalf("pending=%v, want one timer", kinds)
	}
	cq.RunUntilIdle(true, 10)

	table, err, ok := f.Result()
	if !ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if table.Name != testTable {
		t.Fatalf("name=%q, want %q", table.Name, testTable)
	}
}

func TestAsyncCreateTable_NotRetried(t *testing.T) {
	stub := &fakeStub{fallback: errUnavailable}
	a, cq := newManualAdmin(t, stub)

	f := a.AsyncCreateTable(context.Background(), "new-table", TableConfig{})
	cq.SimulateCompletion(true)

	_, err, ok := f.Result()
	if !ok {
		t.Fatalf("future not resolved")
	}
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("code=%v, want Unavailable", status.Code(err))
	}
	if k := retry.KindOf(err); k != retry.KindExhausted {
		t.Fatalf("kind=%v, want exhausted", k)
	}
	if n := len(cq.Timers()); n != 0 {
		t.Fatalf("timers=%d, want 0", n)
	}
}

func TestAsync_ObserverSeesPollTimeline(t *testing.T) {
	var timelines []observe.Timeline
	obs := &timelineObserver{onFailure: func(tl observe.Timeline) { timelines = append(timelines, tl) }}
	stub := &fakeStub{fallback: errDenied}
	a, cq := newManualAdmin(t, stub, WithObserver(obs))

	a.AsyncDeleteTable(context.Background(), "the-table")
	cq.SimulateCompletion(true)

	if len(timelines) != 1 {
		t.Fatalf("timelines=%d, want 1", len(timelines))
	}
	tl := timelines[0]
	if tl.Op.Name != MethodDeleteTable || tl.Op.Kind != observe.KindPoll {
		t.Fatalf("op=%+v", tl.Op)
	}
	if tl.Attributes[observe.AttrTerminal] != "permanent" {
		t.Fatalf("terminal=%q, want permanent", tl.Attributes[observe.AttrTerminal])
	}
}

type timelineObserver struct {
	observe.BaseObserver
	onFailure func(observe.Timeline)
}

func (o *timelineObserver) OnFailure(_ context.Context, _ observe.OpInfo, tl observe.Timeline) {
	o.onFailure(tl)
}
