package completion

import (
	"log/slog"
	"sync"
)

var (
	defaultMu    sync.Mutex
	defaultQueue *Queue
)

// Default returns the process-wide queue, starting it on first use.
func Default() *Queue {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultQueue == nil {
		defaultQueue = New()
	}
	return defaultQueue
}

// SetDefault installs q as the process-wide queue. It must be called before
// Default is first used; later calls log a warning and do nothing.
func SetDefault(q *Queue) {
	if q == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultQueue != nil {
		slog.Warn("completion: SetDefault called after default queue was started; ignoring")
		return
	}
	defaultQueue = q
}
