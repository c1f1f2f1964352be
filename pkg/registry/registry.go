package registry

import (
	"context"
	"sync"

	"github.com/aretw0/golem/pkg/flow"
)

// Registry manages the actions and checks that flow definitions refer to by name.
// It implements flow.Resolver.
type Registry struct {
	mu         sync.RWMutex
	actions    map[string]flow.Action
	predicates map[string]flow.Predicate
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string]flow.Action),
		predicates: make(map[string]flow.Predicate),
	}
}

// Register adds an action to the registry.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(name string, action flow.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = action
}

// RegisterFunc adds a function as an action.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, d flow.Dialog) error) {
	r.Register(name, flow.ActionFunc(fn))
}

// RegisterCheck adds a named requirement predicate.
func (r *Registry) RegisterCheck(name string, p flow.Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

// Action implements flow.Resolver.
func (r *Registry) Action(name string) (flow.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Predicate implements flow.Resolver.
func (r *Registry) Predicate(name string) (flow.Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[name]
	return p, ok
}
