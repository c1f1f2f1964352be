package runtime

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
)

// Step names the precedence rule that produced a Decision.
type Step int

const (
	StepNone Step = iota
	StepOverride
	StepIntent
	StepAccept
	StepFallback
)

func (s Step) String() string {
	switch s {
	case StepOverride:
		return "override"
	case StepIntent:
		return "intent"
	case StepAccept:
		return "accept"
	case StepFallback:
		return "fallback"
	}
	return "none"
}

// Decision is the transition chosen for a turn.
type Decision struct {
	Step Step
	// State is the resolved full state name. Empty for StepNone.
	State string
}

// Resolver picks the next state of a turn. It never mutates the context.
type Resolver struct {
	flows        *flow.Registry
	intentMaxAge int
	logger       *slog.Logger
}

// NewResolver creates a resolver over flows.
// intentMaxAge limits the age of intents considered; domain.AnyAge disables the limit.
func NewResolver(flows *flow.Registry, intentMaxAge int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{flows: flows, intentMaxAge: intentMaxAge, logger: logger}
}

// Resolve applies, in order: the explicit _state override, the intent, in-place
// acceptance of this turn's entities and the fallback to the current flow's root.
// A rule whose target does not exist or equals the current state yields to the next rule.
func (r *Resolver) Resolve(current string, c *domain.Context, fresh []string) Decision {
	if v, ok := c.Get(domain.EntityState, 0); ok {
		if target, ok := domain.ParseTarget(v); ok {
			if name, err := ResolveName(r.flows, current, c, target); err != nil {
				r.logger.Warn("override target not found", "target", target.String(), "state", current)
			} else if name != current {
				return Decision{Step: StepOverride, State: name}
			}
		}
	}

	if intent, ok := c.Intent(r.intentMaxAge); ok && intent != "" {
		if name, ok := r.stateForIntent(current, intent); !ok {
			r.logger.Error("found intent but no flow present for it", "intent", intent, "state", current)
		} else if name != current {
			return Decision{Step: StepIntent, State: name}
		}
	}

	if st, ok := r.flows.State(current); ok && st.AcceptsAny(fresh) {
		return Decision{Step: StepAccept, State: current}
	}

	if root := r.rootOf(current); root != current {
		return Decision{Step: StepFallback, State: root}
	}
	return Decision{Step: StepNone}
}

// stateForIntent asks the current flow first, then every flow in declaration order.
func (r *Resolver) stateForIntent(current, intent string) (string, bool) {
	if f, ok := r.flows.Flow(flowOf(r.flows, current)); ok {
		if name, ok := f.StateForIntent(intent); ok {
			return name, true
		}
	}
	for _, f := range r.flows.Flows() {
		if f.MatchesIntent(intent) {
			return f.Root(), true
		}
	}
	return "", false
}

func (r *Resolver) rootOf(current string) string {
	if f, ok := r.flows.Flow(flowOf(r.flows, current)); ok {
		return f.Root()
	}
	return r.flows.Default().Root()
}

// flowOf returns the flow of a state name, or the default flow for a session without state.
func flowOf(flows *flow.Registry, current string) string {
	if name, _, ok := domain.SplitStateName(current); ok {
		return name
	}
	return flows.Default().Name
}

// ResolveName turns a target into an existing full state name.
// Bare names are relative to the current flow, an ":action" suffix is ignored
// and history offsets count back from the most recent entry.
func ResolveName(flows *flow.Registry, current string, c *domain.Context, t domain.Target) (string, error) {
	var name string
	switch t.Kind {
	case domain.TargetByHistoryOffset:
		entry, ok := c.HistoryState(t.Offset)
		if !ok {
			return "", &domain.ResolutionError{Target: t.String(), Current: current}
		}
		name = entry.Name
	default:
		name, _, _ = strings.Cut(t.Name, ":")
		if name == "" {
			return "", &domain.ResolutionError{Target: t.String(), Current: current}
		}
		if !strings.Contains(name, ".") {
			name = domain.StateName(flowOf(flows, current), name)
		}
	}

	if _, ok := flows.State(name); !ok {
		return "", &domain.ResolutionError{Target: name, Current: current}
	}
	return name, nil
}

func describe(d Decision) string {
	if d.Step == StepNone {
		return "none"
	}
	return fmt.Sprintf("%s -> %s", d.Step, d.State)
}
