package ports

import (
	"context"

	"github.com/aretw0/golem/pkg/domain"
)

// SessionStore defines the interface for persisting session records.
// State and context of one session must never be observed in an inconsistent pairing.
type SessionStore interface {
	// Save persists the record for a given session ID.
	Save(ctx context.Context, sessionID string, rec *domain.Record) error

	// Load retrieves the record for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Record, error)

	// Clear removes the state pointer and the context of a session.
	Clear(ctx context.Context, sessionID string) error

	// List returns the IDs of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
