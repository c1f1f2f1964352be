package ports

import (
	"context"

	"github.com/aretw0/golem/pkg/domain"
)

// TurnLogger records processed turns and bot messages.
// It is called after user-facing work is done, so it may be slow.
type TurnLogger interface {
	LogTurn(ctx context.Context, turn *domain.TurnEvent, entities map[string]any) error
	LogBotMessage(ctx context.Context, sessionID, state string, msg domain.Message) error
}

// Recorder captures conversations as test transcripts.
type Recorder interface {
	// Start begins a recording and returns the reply to show the user.
	Start(ctx context.Context, sessionID string) domain.Message

	// Stop ends a recording and returns the reply (usually the transcript).
	Stop(ctx context.Context, sessionID string) domain.Message

	RecordUserMessage(ctx context.Context, sessionID string, t domain.EventType, entities map[string]any)
	RecordBotMessage(ctx context.Context, sessionID string, msg domain.Message)
	RecordStateChange(ctx context.Context, sessionID string, state string)
}
