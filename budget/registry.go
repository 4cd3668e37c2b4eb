package budget

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/aponysus/tableadmin/internal"
)

// Registry is a thread-safe name → Budget map. Call policies reference budgets
// by name.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Budget
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Budget)}
}

// Register registers a budget with validation.
// It returns an error if the registry is nil, the name is empty, or the budget is nil/typed-nil.
func (r *Registry) Register(name string, b Budget) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("budget name cannot be empty")
	}
	if internal.IsTypedNil(b) {
		return errors.Newf("budget %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.m == nil {
		r.m = make(map[string]Budget)
	}
	r.m[name] = b
	return nil
}

// MustRegister registers a budget and panics on error.
func (r *Registry) MustRegister(name string, b Budget) {
	if err := r.Register(name, b); err != nil {
		panic("budget.Registry.MustRegister: " + err.Error())
	}
}

func (r *Registry) Get(name string) (Budget, bool) {
	if r == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	b, ok := r.m[name]
	r.mu.RUnlock()
	return b, ok && b != nil
}

// Resolve returns the budget for name. An empty name resolves to nil with no
// error; an unknown name is an error.
func (r *Registry) Resolve(name string) (Budget, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	b, ok := r.Get(name)
	if !ok {
		return nil, errors.Newf("%s: %q", ReasonBudgetNotFound, name)
	}
	return b, nil
}
