package retry

import (
	"log/slog"
	"sync"
)

var (
	globalMu   sync.Mutex
	globalExec *Executor
)

// DefaultExecutor returns the shared, lazily-initialized default executor.
// It uses NewExecutor() if SetGlobal has not been called.
func DefaultExecutor() *Executor {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalExec == nil {
		globalExec = NewExecutor()
	}
	return globalExec
}

// SetGlobal configures the default executor.
// It must be called before DefaultExecutor() is used (e.g. at startup).
// If called after initialization, it logs a warning and does nothing.
func SetGlobal(exec *Executor) {
	if exec == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalExec != nil {
		slog.Warn("retry: SetGlobal called after default executor was initialized; ignoring")
		return
	}
	globalExec = exec
}
