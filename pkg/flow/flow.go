package flow

import (
	"slices"

	"github.com/aretw0/golem/pkg/domain"
)

// Flow is a named collection of states. Immutable after load.
type Flow struct {
	Name    string
	Intents []string

	states map[string]*State
	order  []string
}

// State returns a state by its local name.
func (f *Flow) State(name string) (*State, bool) {
	s, ok := f.states[name]
	return s, ok
}

// States returns the states in declaration order.
func (f *Flow) States() []*State {
	out := make([]*State, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.states[name])
	}
	return out
}

// Root returns the full name of the flow's root state.
func (f *Flow) Root() string {
	return domain.StateName(f.Name, RootState)
}

// MatchesIntent reports whether the flow declares the intent.
func (f *Flow) MatchesIntent(intent string) bool {
	return slices.Contains(f.Intents, intent)
}

// StateForIntent returns the first state of this flow that handles the intent.
func (f *Flow) StateForIntent(intent string) (string, bool) {
	for _, name := range f.order {
		if s := f.states[name]; s.HandlesIntent(intent) {
			return s.FullName(), true
		}
	}
	return "", false
}
