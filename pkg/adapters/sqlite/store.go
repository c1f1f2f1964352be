package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
)

// Store implements ports.SessionStore on the sessions table.
type Store struct {
	db *sql.DB
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore wraps a database opened with Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts the whole record in one statement.
func (s *Store) Save(ctx context.Context, sessionID string, rec *domain.Record) error {
	var active int64
	if !rec.ActiveAt.IsZero() {
		active = rec.ActiveAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, context, interface, session, version, active_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			context = excluded.context,
			interface = excluded.interface,
			session = COALESCE(excluded.session, sessions.session),
			version = excluded.version,
			active_at = CASE WHEN excluded.active_at = 0 THEN sessions.active_at ELSE excluded.active_at END,
			updated_at = excluded.updated_at`,
		sessionID, rec.State, rec.Context, rec.Interface, nullable(rec.Session), rec.Version, active,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite save %s: %w", sessionID, err)
	}
	return nil
}

// Load reads the record. A cleared session has no context and does not exist.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	var (
		rec    domain.Record
		active int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT state, context, interface, session, version, active_at
		FROM sessions WHERE id = ? AND context IS NOT NULL`, sessionID,
	).Scan(&rec.State, &rec.Context, &rec.Interface, &rec.Session, &rec.Version, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load %s: %w", sessionID, err)
	}
	if active != 0 {
		rec.ActiveAt = time.Unix(0, active).UTC()
	}
	return &rec, nil
}

// Clear drops the state pointer and the context. The channel binding is kept.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = '', context = NULL WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("sqlite clear %s: %w", sessionID, err)
	}
	return nil
}

// List returns the ids of sessions holding a context, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE context IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite list: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
