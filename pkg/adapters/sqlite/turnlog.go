package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/oklog/ulid/v2"
)

// Turn is a logged turn.
type Turn struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Type       string         `json:"type"`
	FromState  string         `json:"from_state"`
	ToState    string         `json:"to_state"`
	Entities   map[string]any `json:"entities"`
	AcceptedAt time.Time      `json:"accepted_at"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
}

// BotMessage is a logged outbound message.
type BotMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	State     string         `json:"state"`
	Message   domain.Message `json:"message"`
	At        time.Time      `json:"at"`
}

// TurnLog implements ports.TurnLogger. Row ids are ULIDs, so rows sort by time.
type TurnLog struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var _ ports.TurnLogger = (*TurnLog)(nil)

// NewTurnLog wraps a database opened with Open.
func NewTurnLog(db *sql.DB) *TurnLog {
	return &TurnLog{
		db:      db,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (l *TurnLog) newID(at time.Time) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), l.entropy).String()
}

// LogTurn implements ports.TurnLogger.
func (l *TurnLog) LogTurn(ctx context.Context, turn *domain.TurnEvent, entities map[string]any) error {
	if entities == nil {
		entities = map[string]any{}
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	var errText sql.NullString
	if turn.Err != nil {
		errText = sql.NullString{String: turn.Err.Error(), Valid: true}
	}
	at := turn.AcceptedAt
	if at.IsZero() {
		at = l.now()
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, type, from_state, to_state, entities, accepted_at, duration_us, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.newID(at), turn.SessionID, string(turn.Type), turn.FromState, turn.ToState, string(data),
		at.UTC().Format(time.RFC3339Nano), turn.Duration.Microseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("log turn %s: %w", turn.SessionID, err)
	}
	return nil
}

// LogBotMessage implements ports.TurnLogger.
func (l *TurnLog) LogBotMessage(ctx context.Context, sessionID, state string, msg domain.Message) error {
	var buttons sql.NullString
	if len(msg.Buttons) > 0 {
		data, err := json.Marshal(msg.Buttons)
		if err != nil {
			return fmt.Errorf("encode buttons: %w", err)
		}
		buttons = sql.NullString{String: string(data), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO bot_messages (id, session_id, state, text, buttons) VALUES (?, ?, ?, ?, ?)`,
		l.newID(l.now()), sessionID, state, msg.Text, buttons,
	)
	if err != nil {
		return fmt.Errorf("log bot message %s: %w", sessionID, err)
	}
	return nil
}

// Turns returns the most recent turns of a session, oldest first.
func (l *TurnLog) Turns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, type, from_state, to_state, entities, accepted_at, duration_us, error
		FROM (SELECT * FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?)
		ORDER BY id`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t        Turn
			entities string
			accepted string
			micros   int64
			errText  sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Type, &t.FromState, &t.ToState, &entities, &accepted, &micros, &errText); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(entities), &t.Entities); err != nil {
			return nil, fmt.Errorf("decode turn %s: %w", t.ID, err)
		}
		if t.AcceptedAt, err = time.Parse(time.RFC3339Nano, accepted); err != nil {
			return nil, fmt.Errorf("decode turn %s: %w", t.ID, err)
		}
		t.Duration = time.Duration(micros) * time.Microsecond
		t.Error = errText.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// BotMessages returns the messages sent to a session, oldest first.
func (l *TurnLog) BotMessages(ctx context.Context, sessionID string) ([]BotMessage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, state, text, buttons FROM bot_messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query bot messages: %w", err)
	}
	defer rows.Close()

	var out []BotMessage
	for rows.Next() {
		var (
			m       BotMessage
			buttons sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.State, &m.Message.Text, &buttons); err != nil {
			return nil, fmt.Errorf("scan bot message: %w", err)
		}
		if buttons.Valid {
			if err := json.Unmarshal([]byte(buttons.String), &m.Message.Buttons); err != nil {
				return nil, fmt.Errorf("decode bot message %s: %w", m.ID, err)
			}
		}
		id, err := ulid.ParseStrict(m.ID)
		if err != nil {
			return nil, fmt.Errorf("decode bot message id %s: %w", m.ID, err)
		}
		m.At = ulid.Time(id.Time()).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
