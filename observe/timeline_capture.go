package observe

import (
	"context"
	"sync/atomic"
)

// TimelineCapture receives the finished timeline of the next operation started
// with a context returned by RecordTimeline.
type TimelineCapture struct {
	tl atomic.Pointer[Timeline]
}

// Timeline returns the captured timeline, or nil until the operation finishes.
func (c *TimelineCapture) Timeline() *Timeline {
	if c == nil {
		return nil
	}
	return c.tl.Load()
}

type timelineCaptureKey struct{}

// RecordTimeline returns a derived context that requests timeline capture,
// plus a holder for retrieving the completed timeline.
func RecordTimeline(ctx context.Context) (context.Context, *TimelineCapture) {
	if ctx == nil {
		ctx = context.Background()
	}
	capture := &TimelineCapture{}
	return context.WithValue(ctx, timelineCaptureKey{}, capture), capture
}

type disabledTimelineCapture struct{}

// WithoutTimelineCapture hides any capture from ctx. Retry loops and polls
// pass such a context to the RPC so nested operations cannot fill the
// caller's capture.
func WithoutTimelineCapture(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(timelineCaptureKey{}).(*TimelineCapture); !ok {
		return ctx
	}
	return context.WithValue(ctx, timelineCaptureKey{}, disabledTimelineCapture{})
}

// PublishTimeline stores tl in the capture attached to ctx, if any.
func PublishTimeline(ctx context.Context, tl Timeline) {
	if ctx == nil {
		return
	}
	capture, ok := ctx.Value(timelineCaptureKey{}).(*TimelineCapture)
	if !ok || capture == nil {
		return
	}
	capture.tl.Store(&tl)
}
