package observe

import "context"

// BaseObserver implements Observer with no-op methods.
//
// Users can embed BaseObserver to implement only the callbacks they need.
type BaseObserver struct{}

func (BaseObserver) OnStart(context.Context, OpInfo)                {}
func (BaseObserver) OnAttempt(context.Context, OpInfo, AttemptRecord) {}
func (BaseObserver) OnSuccess(context.Context, OpInfo, Timeline)      {}
func (BaseObserver) OnFailure(context.Context, OpInfo, Timeline)      {}

// MultiObserver fans out events to multiple observers.
type MultiObserver struct {
	Observers []Observer
}

func (m MultiObserver) OnStart(ctx context.Context, op OpInfo) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnStart(ctx, op)
		}
	}
}

func (m MultiObserver) OnAttempt(ctx context.Context, op OpInfo, rec AttemptRecord) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnAttempt(ctx, op, rec)
		}
	}
}

func (m MultiObserver) OnSuccess(ctx context.Context, op OpInfo, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnSuccess(ctx, op, tl)
		}
	}
}

func (m MultiObserver) OnFailure(ctx context.Context, op OpInfo, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnFailure(ctx, op, tl)
		}
	}
}
