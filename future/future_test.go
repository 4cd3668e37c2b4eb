package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPromise_SetOnce(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	if f.Ready() {
		t.Fatalf("new future should not be ready")
	}
	if _, _, ok := f.Result(); ok {
		t.Fatalf("Result reported resolved before Set")
	}

	if !p.SetValue(1) {
		t.Fatalf("first Set returned false")
	}
	if p.SetValue(2) || p.SetError(errors.New("late")) {
		t.Fatalf("second Set returned true")
	}

	for i := 0; i < 3; i++ {
		v, err, ok := f.Result()
		if !ok || v != 1 || err != nil {
			t.Fatalf("read %d: v=%d err=%v ok=%v", i, v, err, ok)
		}
	}
}

func TestPromise_ConcurrentSetResolvesOnce(t *testing.T) {
	p := NewPromise[int]()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if p.SetValue(i) {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins=%d, want 1", wins)
	}
	if !p.Future().Ready() {
		t.Fatalf("future not ready")
	}
}

func TestFuture_WaitFor(t *testing.T) {
	p := NewPromise[string]()
	f := p.Future()

	if f.WaitFor(time.Millisecond) {
		t.Fatalf("WaitFor returned true on unresolved future")
	}
	if f.WaitFor(0) {
		t.Fatalf("WaitFor(0) returned true on unresolved future")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.SetValue("ok")
	}()
	if !f.WaitFor(5 * time.Second) {
		t.Fatalf("WaitFor timed out")
	}
	if !f.WaitFor(0) {
		t.Fatalf("WaitFor after resolution should return immediately")
	}
}

func TestFuture_GetHonorsContext(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}

	wantErr := errors.New("boom")
	p.SetError(wantErr)
	v, err := f.Get(context.Background())
	if v != 0 || !errors.Is(err, wantErr) {
		t.Fatalf("v=%d err=%v", v, err)
	}

	// A resolved future wins over a cancelled context.
	if _, err := f.Get(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("err=%v, want %v", err, wantErr)
	}
}

func TestResolved(t *testing.T) {
	f := Resolved(3, nil)
	select {
	case <-f.Done():
	default:
		t.Fatalf("Done channel not closed")
	}
	f.Wait()
	if v, err := f.Get(context.Background()); v != 3 || err != nil {
		t.Fatalf("v=%d err=%v", v, err)
	}
}
