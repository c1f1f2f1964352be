package flow

import (
	"fmt"
	"strings"

	"github.com/aretw0/golem/pkg/domain"
)

// reservedChars separate flow, state and action in target names ("flow.state:action").
const reservedChars = ".:"

// Registry maps flow names to flows. It is read-only after Load and safe for concurrent readers.
type Registry struct {
	flows map[string]*Flow
	order []string
}

// Load links definitions into a Registry.
// The first definition is the default flow.
func Load(defs []Definition, resolver Resolver) (*Registry, error) {
	if len(defs) == 0 {
		return nil, &domain.ConfigurationError{Reason: "no flows defined"}
	}

	r := &Registry{flows: make(map[string]*Flow, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, &domain.ConfigurationError{Reason: "flow without a name"}
		}
		if strings.ContainsAny(def.Name, reservedChars) {
			return nil, &domain.ConfigurationError{Flow: def.Name, Reason: fmt.Sprintf("flow name must not contain %q", reservedChars)}
		}
		if _, dup := r.flows[def.Name]; dup {
			return nil, &domain.ConfigurationError{Flow: def.Name, Reason: "duplicate flow name"}
		}
		f, err := link(def, resolver)
		if err != nil {
			return nil, err
		}
		r.flows[def.Name] = f
		r.order = append(r.order, def.Name)
	}
	return r, nil
}

func link(def Definition, resolver Resolver) (*Flow, error) {
	f := &Flow{
		Name:    def.Name,
		Intents: append([]string(nil), def.Intents...),
		states:  make(map[string]*State, len(def.States)),
	}

	for _, sd := range def.States {
		if sd.Name == "" {
			return nil, &domain.ConfigurationError{Flow: def.Name, Reason: "state without a name"}
		}
		if strings.ContainsAny(sd.Name, reservedChars) {
			return nil, &domain.ConfigurationError{Flow: def.Name, State: sd.Name, Reason: fmt.Sprintf("state name must not contain %q", reservedChars)}
		}
		if _, dup := f.states[sd.Name]; dup {
			return nil, &domain.ConfigurationError{Flow: def.Name, State: sd.Name, Reason: "duplicate state name"}
		}

		action, err := resolveAction(def.Name, sd.Name, sd.Action, resolver)
		if err != nil {
			return nil, err
		}

		st := &State{
			Flow:    def.Name,
			Name:    sd.Name,
			Action:  action,
			Accepts: append([]string(nil), sd.Accepts...),
			Intents: append([]string(nil), sd.Intents...),
		}
		for i, rd := range sd.Requires {
			req, err := resolveRequirement(def.Name, sd.Name, i, rd, resolver)
			if err != nil {
				return nil, err
			}
			st.Requirements = append(st.Requirements, req)
		}

		f.states[sd.Name] = st
		f.order = append(f.order, sd.Name)
	}

	if _, ok := f.states[RootState]; !ok {
		return nil, &domain.ConfigurationError{Flow: def.Name, Reason: "missing root state"}
	}
	return f, nil
}

func resolveAction(flowName, stateName string, ad ActionDefinition, resolver Resolver) (Action, error) {
	switch {
	case ad.Handler != nil:
		return ad.Handler, nil
	case ad.Ref != "":
		if resolver == nil {
			return nil, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("action %q referenced without an action registry", ad.Ref)}
		}
		a, ok := resolver.Action(ad.Ref)
		if !ok {
			return nil, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("unknown action %q", ad.Ref)}
		}
		return a, nil
	case ad.Type == ActionTypeText || (ad.Type == "" && ad.Text != ""):
		return TextAction{
			Message: domain.Message{Text: ad.Text, Buttons: ad.Buttons},
			Next:    ad.Next,
		}, nil
	case ad.Type != "":
		return nil, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("unknown action type %q", ad.Type)}
	}
	// States without an action are allowed; the engine logs and skips them.
	return nil, nil
}

func resolveRequirement(flowName, stateName string, i int, rd RequirementDefinition, resolver Resolver) (Requirement, error) {
	remediation, err := resolveAction(flowName, stateName, rd.Action, resolver)
	if err != nil {
		return Requirement{}, err
	}
	if remediation == nil {
		return Requirement{}, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("requirement #%d has no action", i)}
	}

	switch {
	case rd.Predicate != nil:
		return Requirement{Name: fmt.Sprintf("requirement#%d", i), Check: rd.Predicate, Action: remediation}, nil
	case rd.Check != "":
		if resolver == nil {
			return Requirement{}, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("check %q referenced without an action registry", rd.Check)}
		}
		p, ok := resolver.Predicate(rd.Check)
		if !ok {
			return Requirement{}, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("unknown check %q", rd.Check)}
		}
		return Requirement{Name: rd.Check, Check: p, Action: remediation}, nil
	case rd.Entity != "":
		maxAge := domain.AnyAge
		if rd.MaxAge != nil {
			maxAge = *rd.MaxAge
		}
		return EntityRequirement(rd.Entity, maxAge, remediation), nil
	}
	return Requirement{}, &domain.ConfigurationError{Flow: flowName, State: stateName, Reason: fmt.Sprintf("requirement #%d needs an entity or a check", i)}
}

// Flow returns a flow by name.
func (r *Registry) Flow(name string) (*Flow, bool) {
	f, ok := r.flows[name]
	return f, ok
}

// Flows returns all flows in declaration order.
func (r *Registry) Flows() []*Flow {
	out := make([]*Flow, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.flows[name])
	}
	return out
}

// Default returns the first declared flow.
func (r *Registry) Default() *Flow {
	return r.flows[r.order[0]]
}

// State looks up a state by its full name.
func (r *Registry) State(fullName string) (*State, bool) {
	flowName, stateName, ok := domain.SplitStateName(fullName)
	if !ok {
		return nil, false
	}
	f, ok := r.flows[flowName]
	if !ok {
		return nil, false
	}
	return f.State(stateName)
}
