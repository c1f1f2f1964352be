package loam

import (
	"github.com/aretw0/golem/pkg/domain"
)

// StateMetadata is the front matter of a state document.
// A document at "<flow>/<state>.md" declares state <state> of flow <flow>;
// Flow and State override the path.
type StateMetadata struct {
	Flow  string `json:"flow,omitempty" yaml:"flow,omitempty" mapstructure:"flow"`
	State string `json:"state,omitempty" yaml:"state,omitempty" mapstructure:"state"`

	// FlowIntent lists the intents of the whole flow. Set it on the root state.
	FlowIntent []string `json:"flow_intent,omitempty" yaml:"flow_intent,omitempty" mapstructure:"flow_intent"`

	// Intent lists the intents handled by this state while its flow is active.
	Intent []string `json:"intent,omitempty" yaml:"intent,omitempty" mapstructure:"intent"`

	// Action references a registered action. Without it the document body is sent as text.
	Action  string          `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
	Next    string          `json:"next,omitempty" yaml:"next,omitempty" mapstructure:"next"`
	Buttons []domain.Button `json:"buttons,omitempty" yaml:"buttons,omitempty" mapstructure:"buttons"`

	Accept  []string         `json:"accept,omitempty" yaml:"accept,omitempty" mapstructure:"accept"`
	Require []map[string]any `json:"require,omitempty" yaml:"require,omitempty" mapstructure:"require"`

	// Metadata is free-form and ignored by the engine.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" mapstructure:"metadata"`
}
