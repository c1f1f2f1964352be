package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/golem/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Hash names. Each hash is keyed by session id.
const (
	hashState     = "session_state"
	hashContext   = "session_context"
	hashInterface = "session_interface"
	hashSession   = "chat_session"
	hashActive    = "session_active"
	keyVersion    = "dialog_version"
)

// Store implements ports.SessionStore on a set of Redis hashes.
type Store struct {
	client backend.UniversalClient
	prefix string
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix namespaces every key, e.g. "golem:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to the Redis server at addr.
func New(addr string, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client so the locker and scheduler can share it.
func (s *Store) Client() backend.UniversalClient {
	return s.client
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Save writes every field of the record in one MULTI/EXEC block.
func (s *Store) Save(ctx context.Context, sessionID string, rec *domain.Record) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HSet(ctx, s.key(hashState), sessionID, rec.State)
		pipe.HSet(ctx, s.key(hashContext), sessionID, rec.Context)
		pipe.HSet(ctx, s.key(hashInterface), sessionID, rec.Interface)
		if len(rec.Session) > 0 {
			pipe.HSet(ctx, s.key(hashSession), sessionID, rec.Session)
		}
		if !rec.ActiveAt.IsZero() {
			pipe.HSet(ctx, s.key(hashActive), sessionID, rec.ActiveAt.UnixNano())
		}
		pipe.Set(ctx, s.key(keyVersion), rec.Version, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", sessionID, err)
	}
	return nil
}

// Load reads the record. A session without a context blob does not exist.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	var state, blob, iface, raw, active, version *backend.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		state = pipe.HGet(ctx, s.key(hashState), sessionID)
		blob = pipe.HGet(ctx, s.key(hashContext), sessionID)
		iface = pipe.HGet(ctx, s.key(hashInterface), sessionID)
		raw = pipe.HGet(ctx, s.key(hashSession), sessionID)
		active = pipe.HGet(ctx, s.key(hashActive), sessionID)
		version = pipe.Get(ctx, s.key(keyVersion))
		return nil
	})
	if err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("redis load %s: %w", sessionID, err)
	}

	ctxBlob, err := blob.Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", sessionID, err)
	}

	rec := &domain.Record{
		State:     optional(state),
		Context:   ctxBlob,
		Interface: optional(iface),
		Version:   optional(version),
	}
	if b, err := raw.Bytes(); err == nil {
		rec.Session = b
	}
	if v := optional(active); v != "" {
		nanos, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis load %s: malformed active time %q: %w", sessionID, v, err)
		}
		rec.ActiveAt = time.Unix(0, nanos).UTC()
	}
	return rec, nil
}

// optional returns the command value, or "" when the field is missing.
func optional(cmd *backend.StringCmd) string {
	v, err := cmd.Result()
	if err != nil {
		return ""
	}
	return v
}

// Clear removes the state pointer and the context blob.
// The channel binding and activity time are kept for reconstruction.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HDel(ctx, s.key(hashState), sessionID)
		pipe.HDel(ctx, s.key(hashContext), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis clear %s: %w", sessionID, err)
	}
	return nil
}

// List returns the ids of sessions holding a context, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.HKeys(ctx, s.key(hashContext)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
