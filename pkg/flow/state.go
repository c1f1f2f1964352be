package flow

import (
	"slices"

	"github.com/aretw0/golem/pkg/domain"
)

// RootState is the entry state every flow must declare.
const RootState = "root"

// Requirement gates a state's action. When Check fails, Action runs instead.
type Requirement struct {
	Name   string
	Check  Predicate
	Action Action
}

// EntityRequirement is met when the entity is present with age at most maxAge.
func EntityRequirement(entity string, maxAge int, remediation Action) Requirement {
	return Requirement{
		Name: entity,
		Check: func(c *domain.Context) bool {
			_, ok := c.Get(entity, maxAge)
			return ok
		},
		Action: remediation,
	}
}

// State is a node of a flow's state machine.
type State struct {
	Flow         string
	Name         string
	Action       Action
	Requirements []Requirement
	Accepts      []string
	Intents      []string
}

// FullName returns "flow.state".
func (s *State) FullName() string {
	return domain.StateName(s.Flow, s.Name)
}

// AcceptsAny reports whether the state accepts any of the given entity names while active.
func (s *State) AcceptsAny(entities []string) bool {
	for _, e := range entities {
		if slices.Contains(s.Accepts, e) {
			return true
		}
	}
	return false
}

// HandlesIntent reports whether the state declares the intent.
func (s *State) HandlesIntent(intent string) bool {
	return slices.Contains(s.Intents, intent)
}
