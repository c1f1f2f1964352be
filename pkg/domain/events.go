package domain

import (
	"context"
	"time"
)

// TurnEvent describes a processed turn.
type TurnEvent struct {
	SessionID  string        `json:"session_id"`
	Type       EventType     `json:"type"`
	Entities   []string      `json:"entities"`
	FromState  string        `json:"from_state"`
	ToState    string        `json:"to_state"`
	AcceptedAt time.Time     `json:"accepted_at"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// TransitionEvent describes a state change.
type TransitionEvent struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart   func(context.Context, *TurnEvent)
	OnTurnEnd     func(context.Context, *TurnEvent)
	OnStateChange func(context.Context, *TransitionEvent)
	OnActionError func(context.Context, *ActionError)
}
