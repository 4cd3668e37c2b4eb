package observe

import "context"

// NoopObserver implements Observer with no-op methods.
type NoopObserver struct{}

func (NoopObserver) OnStart(context.Context, OpInfo)                {}
func (NoopObserver) OnAttempt(context.Context, OpInfo, AttemptRecord) {}
func (NoopObserver) OnSuccess(context.Context, OpInfo, Timeline)      {}
func (NoopObserver) OnFailure(context.Context, OpInfo, Timeline)      {}

// IsNoop reports whether obs is nil or a NoopObserver.
func IsNoop(obs Observer) bool {
	switch obs.(type) {
	case nil, NoopObserver, *NoopObserver:
		return true
	default:
		return false
	}
}
