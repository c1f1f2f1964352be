package dsl

import (
	"context"
	"fmt"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
)

// Builder manages the definition construction.
type Builder struct {
	flows    map[string]*FlowBuilder
	order    []string
	resolver flow.Resolver
}

// New creates a new builder.
func New() *Builder {
	return &Builder{
		flows: make(map[string]*FlowBuilder),
	}
}

// WithResolver lets states reference registered actions by name through Ref.
func (b *Builder) WithResolver(r flow.Resolver) *Builder {
	b.resolver = r
	return b
}

// Flow creates a new flow, or returns the existing builder for that name.
func (b *Builder) Flow(name string) *FlowBuilder {
	if fb, ok := b.flows[name]; ok {
		return fb
	}
	fb := &FlowBuilder{
		def:     flow.Definition{Name: name},
		states:  make(map[string]*StateBuilder),
		builder: b,
	}
	b.flows[name] = fb
	b.order = append(b.order, name)
	return fb
}

// Definitions returns the definitions in declaration order.
func (b *Builder) Definitions() []flow.Definition {
	defs := make([]flow.Definition, 0, len(b.order))
	for _, name := range b.order {
		fb := b.flows[name]
		def := fb.def
		def.States = make([]flow.StateDefinition, 0, len(fb.order))
		for _, s := range fb.order {
			def.States = append(def.States, fb.states[s].def)
		}
		defs = append(defs, def)
	}
	return defs
}

// Build links the definitions into a registry.
func (b *Builder) Build() (*flow.Registry, error) {
	reg, err := flow.Load(b.Definitions(), b.resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to build flow registry: %w", err)
	}
	return reg, nil
}

// FlowBuilder provides a fluent API for configuring a flow.
type FlowBuilder struct {
	def     flow.Definition
	states  map[string]*StateBuilder
	order   []string
	builder *Builder
}

// Intents declares the intents that route into this flow's root.
func (f *FlowBuilder) Intents(intents ...string) *FlowBuilder {
	f.def.Intents = append(f.def.Intents, intents...)
	return f
}

// State creates a new state, or returns the existing builder for that name.
func (f *FlowBuilder) State(name string) *StateBuilder {
	if sb, ok := f.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{
		def:  flow.StateDefinition{Name: name},
		flow: f,
	}
	f.states[name] = sb
	f.order = append(f.order, name)
	return sb
}

// Flow switches to another flow of the same builder.
func (f *FlowBuilder) Flow(name string) *FlowBuilder {
	return f.builder.Flow(name)
}

// Build ends the chain and builds every flow of the parent builder.
func (f *FlowBuilder) Build() (*flow.Registry, error) {
	return f.builder.Build()
}

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	def  flow.StateDefinition
	flow *FlowBuilder
}

// Do sets the state's action.
func (s *StateBuilder) Do(fn func(ctx context.Context, d flow.Dialog) error) *StateBuilder {
	s.def.Action = flow.ActionDefinition{Handler: flow.ActionFunc(fn)}
	return s
}

// Action sets the state's action from any flow.Action.
func (s *StateBuilder) Action(a flow.Action) *StateBuilder {
	s.def.Action = flow.ActionDefinition{Handler: a}
	return s
}

// Ref makes the state use a registered action.
func (s *StateBuilder) Ref(name string) *StateBuilder {
	s.def.Action = flow.ActionDefinition{Ref: name}
	return s
}

// Say makes the state send a fixed text.
func (s *StateBuilder) Say(text string) *StateBuilder {
	s.def.Action = flow.ActionDefinition{Type: flow.ActionTypeText, Text: text}
	return s
}

// Then sets the state to move to after a Say.
func (s *StateBuilder) Then(next string) *StateBuilder {
	s.def.Action.Next = next
	return s
}

// Accepts declares entities that keep the state active and re-run its action.
func (s *StateBuilder) Accepts(entities ...string) *StateBuilder {
	s.def.Accepts = append(s.def.Accepts, entities...)
	return s
}

// HandlesIntent declares intents routed to this state while its flow is active.
func (s *StateBuilder) HandlesIntent(intents ...string) *StateBuilder {
	s.def.Intents = append(s.def.Intents, intents...)
	return s
}

// Requires gates the state on an entity of any age.
func (s *StateBuilder) Requires(entity string, remediation flow.Action) *StateBuilder {
	s.def.Requires = append(s.def.Requires, flow.RequirementDefinition{
		Entity: entity,
		Action: flow.ActionDefinition{Handler: remediation},
	})
	return s
}

// RequiresFresh gates the state on an entity not older than maxAge.
func (s *StateBuilder) RequiresFresh(entity string, maxAge int, remediation flow.Action) *StateBuilder {
	s.def.Requires = append(s.def.Requires, flow.RequirementDefinition{
		Entity: entity,
		MaxAge: &maxAge,
		Action: flow.ActionDefinition{Handler: remediation},
	})
	return s
}

// RequiresThat gates the state on a custom predicate.
func (s *StateBuilder) RequiresThat(p flow.Predicate, remediation flow.Action) *StateBuilder {
	s.def.Requires = append(s.def.Requires, flow.RequirementDefinition{
		Predicate: p,
		Action:    flow.ActionDefinition{Handler: remediation},
	})
	return s
}

// State switches to another state of the same flow.
func (s *StateBuilder) State(name string) *StateBuilder {
	return s.flow.State(name)
}

// Flow switches to another flow.
func (s *StateBuilder) Flow(name string) *FlowBuilder {
	return s.flow.builder.Flow(name)
}

// Build ends the chain and builds every flow of the parent builder.
func (s *StateBuilder) Build() (*flow.Registry, error) {
	return s.flow.builder.Build()
}

// Say returns an action that sends a fixed text.
func Say(text string) flow.Action {
	return flow.TextAction{Message: domain.TextMessage(text)}
}
