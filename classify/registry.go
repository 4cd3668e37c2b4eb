package classify

import (
	"strings"
	"sync"

	"github.com/aponysus/tableadmin/internal"
)

// Registry is a thread-safe name → Classifier map. Policies refer to
// classifiers by name so they can be loaded from configuration.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Classifier
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Classifier)}
}

// DefaultRegistry returns a new registry holding the builtin classifiers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register associates name with c. Empty names and nil classifiers are ignored.
func (r *Registry) Register(name string, c Classifier) {
	if r == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" || internal.IsTypedNil(c) {
		return
	}

	r.mu.Lock()
	if r.m == nil {
		r.m = make(map[string]Classifier)
	}
	r.m[name] = c
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Classifier, bool) {
	if r == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	c, ok := r.m[name]
	r.mu.RUnlock()
	return c, ok && c != nil
}

// Lookup returns the classifier registered under name, or GRPC{} when name is
// empty or unknown.
func (r *Registry) Lookup(name string) Classifier {
	if c, ok := r.Get(name); ok {
		return c
	}
	return GRPC{}
}

var global = DefaultRegistry()

// Global returns the process-wide registry consulted when policies name a
// classifier.
func Global() *Registry { return global }

// Lookup resolves name in the global registry.
func Lookup(name string) Classifier { return global.Lookup(name) }
