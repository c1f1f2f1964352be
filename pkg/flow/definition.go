package flow

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ActionTypeText is the built-in action that sends a fixed message.
const ActionTypeText = "text"

// Definition is the parsed, not yet linked, form of a flow.
type Definition struct {
	Name    string            `mapstructure:"name"`
	Intents []string          `mapstructure:"intent"`
	States  []StateDefinition `mapstructure:"-"`
}

// StateDefinition declares a state.
type StateDefinition struct {
	Name     string                  `mapstructure:"name"`
	Action   ActionDefinition        `mapstructure:"action"`
	Accepts  []string                `mapstructure:"accept"`
	Intents  []string                `mapstructure:"intent"`
	Requires []RequirementDefinition `mapstructure:"require"`
}

// RequirementDefinition declares a precondition of a state.
// Either Entity or Check must be set.
type RequirementDefinition struct {
	Entity string           `mapstructure:"entity"`
	MaxAge *int             `mapstructure:"max_age"`
	Check  string           `mapstructure:"check"`
	Action ActionDefinition `mapstructure:"action"`

	// Predicate takes precedence over Check for programmatic definitions.
	Predicate Predicate `mapstructure:"-"`
}

// ActionDefinition references a registered action or declares a built-in one.
// In YAML a plain string is a reference.
type ActionDefinition struct {
	Ref     string          `mapstructure:"ref"`
	Type    string          `mapstructure:"type"`
	Text    string          `mapstructure:"text"`
	Buttons []domain.Button `mapstructure:"buttons"`
	Next    string          `mapstructure:"next"`

	// Handler takes precedence over everything else for programmatic definitions.
	Handler Action `mapstructure:"-"`
}

// IsZero reports whether nothing was declared.
func (a ActionDefinition) IsZero() bool {
	return a.Handler == nil && a.Ref == "" && a.Type == "" && a.Text == ""
}

var actionDefinitionType = reflect.TypeOf(ActionDefinition{})

// actionRefHook turns `action: name` into ActionDefinition{Ref: name}.
func actionRefHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to == actionDefinitionType && from.Kind() == reflect.String {
		return ActionDefinition{Ref: data.(string)}, nil
	}
	return data, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       actionRefHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// DecodeDefinition builds a Definition from loosely typed data.
// "states" may be a mapping of state name to body or a list of bodies carrying a name.
// Mapping entries are ordered by name, with root first.
func DecodeDefinition(name string, raw map[string]any) (Definition, error) {
	def := Definition{Name: name}

	body := make(map[string]any, len(raw))
	for k, v := range raw {
		body[k] = v
	}
	rawStates := body["states"]
	delete(body, "states")
	delete(body, "name")

	if err := decode(body, &def); err != nil {
		return def, &domain.ConfigurationError{Flow: name, Reason: err.Error()}
	}
	def.Name = name

	states, err := decodeStates(name, rawStates)
	if err != nil {
		return def, err
	}
	def.States = states
	return def, nil
}

func decodeStates(flowName string, raw any) ([]StateDefinition, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for n := range v {
			names = append(names, n)
		}
		sort.Slice(names, func(i, j int) bool {
			if names[i] == RootState || names[j] == RootState {
				return names[i] == RootState
			}
			return names[i] < names[j]
		})
		out := make([]StateDefinition, 0, len(names))
		for _, n := range names {
			sd, err := decodeState(flowName, n, v[n])
			if err != nil {
				return nil, err
			}
			out = append(out, sd)
		}
		return out, nil
	case []any:
		out := make([]StateDefinition, 0, len(v))
		for i, item := range v {
			sd, err := decodeState(flowName, "", item)
			if err != nil {
				return nil, err
			}
			if sd.Name == "" {
				return nil, &domain.ConfigurationError{Flow: flowName, Reason: fmt.Sprintf("state #%d has no name", i)}
			}
			out = append(out, sd)
		}
		return out, nil
	}
	return nil, &domain.ConfigurationError{Flow: flowName, Reason: fmt.Sprintf("states must be a mapping or a list, got %T", raw)}
}

func decodeState(flowName, name string, raw any) (StateDefinition, error) {
	sd := StateDefinition{Name: name}
	if raw == nil {
		return sd, nil
	}
	if err := decode(raw, &sd); err != nil {
		return sd, &domain.ConfigurationError{Flow: flowName, State: name, Reason: err.Error()}
	}
	if name != "" {
		sd.Name = name
	}
	return sd, nil
}
