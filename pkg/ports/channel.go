package ports

import (
	"context"

	"github.com/aretw0/golem/pkg/domain"
)

// Channel is a messaging platform adapter.
type Channel interface {
	// Name identifies the adapter in persisted records.
	Name() string

	// Prefix is the session id prefix owned by the adapter.
	Prefix() string

	// ProcessingStart is called before a turn runs (e.g. to show a typing indicator).
	ProcessingStart(ctx context.Context, s domain.Session) error

	// ProcessingEnd is called once the turn is persisted.
	ProcessingEnd(ctx context.Context, s domain.Session) error

	// PostMessage delivers one outbound message.
	PostMessage(ctx context.Context, s domain.Session, msg domain.Message) error

	// StateChange reports the new state of a session.
	StateChange(ctx context.Context, s domain.Session, state string) error
}

// ChannelResolver finds the channel that owns a session.
type ChannelResolver interface {
	ForSession(s domain.Session) (Channel, error)
}
