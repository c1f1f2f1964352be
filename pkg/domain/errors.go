package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownChannel is returned when no channel adapter matches a session.
var ErrUnknownChannel = errors.New("unknown channel")

// ConfigurationError reports malformed or duplicate flow and state definitions.
type ConfigurationError struct {
	Flow   string
	State  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.State != "":
		return fmt.Sprintf("invalid flow configuration at %s.%s: %s", e.Flow, e.State, e.Reason)
	case e.Flow != "":
		return fmt.Sprintf("invalid flow configuration in %s: %s", e.Flow, e.Reason)
	}
	return "invalid flow configuration: " + e.Reason
}

// ResolutionError reports a transition target that does not exist.
type ResolutionError struct {
	Target  string
	Current string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("state %s does not exist, staying at %s", e.Target, e.Current)
}

// ActionError wraps a failure raised by a state action.
type ActionError struct {
	SessionID string
	Previous  string
	State     string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action of state %s failed (session %s, from %s): %v", e.State, e.SessionID, e.Previous, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// PersistenceError reports an unreachable store or a corrupt payload.
type PersistenceError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
