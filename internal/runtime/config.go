package runtime

import (
	"time"

	"github.com/aretw0/golem/pkg/domain"
)

// Config holds the engine settings that used to be process-wide.
type Config struct {
	// ApologyText is sent once when an action fails.
	ApologyText string

	// InactiveCallbacks maps a callback state to the silence after which it fires.
	InactiveCallbacks map[string]time.Duration

	// LogMessages forwards bot messages to the turn logger.
	LogMessages bool

	// SchemaVersion tags persisted contexts. A stored context with another version is discarded.
	SchemaVersion string

	// TurnTimeout bounds one turn, and with it how long the session lock is held. Zero disables it.
	TurnTimeout time.Duration

	// IntentMaxAge limits how old an intent may be to trigger a transition.
	// domain.AnyAge accepts intents of any age.
	IntentMaxAge int

	// ChannelName is used for sessions whose channel cannot be resolved from the record.
	ChannelName string
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		ApologyText:   "Oh no! You broke me! :(",
		SchemaVersion: "1.32",
		TurnTimeout:   30 * time.Second,
		IntentMaxAge:  domain.AnyAge,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ApologyText == "" {
		c.ApologyText = def.ApologyText
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = def.SchemaVersion
	}
	return c
}
