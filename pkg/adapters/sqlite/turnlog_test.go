package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/golem/pkg/adapters/sqlite"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnLog_Turns(t *testing.T) {
	log := sqlite.NewTurnLog(openDB(t))
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	states := []string{"default.root", "billing.root", "billing.pay"}
	from := ""
	for i, to := range states {
		ev := &domain.TurnEvent{
			SessionID:  "tg_1",
			Type:       domain.EventMessage,
			FromState:  from,
			ToState:    to,
			AcceptedAt: at.Add(time.Duration(i) * time.Second),
			Duration:   1500 * time.Microsecond,
		}
		if i == 2 {
			ev.Err = errors.New("disk full")
		}
		require.NoError(t, log.LogTurn(ctx, ev, map[string]any{"step": i}))
		from = to
	}
	require.NoError(t, log.LogTurn(ctx, &domain.TurnEvent{SessionID: "tg_2", Type: domain.EventSchedule}, nil))

	turns, err := log.Turns(ctx, "tg_1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "billing.root", turns[0].ToState)
	assert.Equal(t, "billing.pay", turns[1].ToState)
	assert.Equal(t, "billing.root", turns[1].FromState)
	assert.Equal(t, map[string]any{"step": float64(2)}, turns[1].Entities)
	assert.Equal(t, 1500*time.Microsecond, turns[1].Duration)
	assert.Equal(t, "disk full", turns[1].Error)
	assert.True(t, at.Add(2*time.Second).Equal(turns[1].AcceptedAt))
	assert.Less(t, turns[0].ID, turns[1].ID)

	other, err := log.Turns(ctx, "tg_2", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Empty(t, other[0].Entities)
}

func TestTurnLog_BotMessages(t *testing.T) {
	log := sqlite.NewTurnLog(openDB(t))
	ctx := context.Background()

	require.NoError(t, log.LogBotMessage(ctx, "tg_1", "default.root", domain.TextMessage("Hello!")))
	require.NoError(t, log.LogBotMessage(ctx, "tg_1", "default.root", domain.Message{
		Text:    "Pick one",
		Buttons: []domain.Button{{Title: "Orders", Payload: map[string]any{"intent": "orders"}}},
	}))

	msgs, err := log.BotMessages(ctx, "tg_1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello!", msgs[0].Message.Text)
	assert.Empty(t, msgs[0].Message.Buttons)
	require.Len(t, msgs[1].Message.Buttons, 1)
	assert.Equal(t, "orders", msgs[1].Message.Buttons[0].Payload["intent"])
	assert.WithinDuration(t, time.Now(), msgs[1].At, time.Minute)
}
