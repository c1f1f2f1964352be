// Package recorder captures conversations as YAML transcripts that can be
// replayed as regression tests.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Step is one line of a transcript. Exactly one field is set.
type Step struct {
	User  *UserStep `yaml:"user,omitempty"`
	Bot   string    `yaml:"bot,omitempty"`
	State string    `yaml:"state,omitempty"`
}

// UserStep is an inbound event.
type UserStep struct {
	Type     domain.EventType `yaml:"type"`
	Entities map[string]any   `yaml:"entities,omitempty"`
}

// Transcript is a recorded conversation.
type Transcript struct {
	Session   string    `yaml:"session"`
	StartedAt time.Time `yaml:"started_at"`
	Steps     []Step    `yaml:"steps"`
}

// Recorder implements ports.Recorder in memory, one transcript per session.
type Recorder struct {
	mu       sync.Mutex
	sessions map[string]*Transcript
	dir      string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithDir also writes finished transcripts to dir.
func WithDir(dir string) Option {
	return func(r *Recorder) {
		r.dir = dir
	}
}

// WithLogger configures a logger for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// New creates a recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		sessions: make(map[string]*Transcript),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins (or restarts) the transcript of a session.
func (r *Recorder) Start(ctx context.Context, sessionID string) domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = &Transcript{Session: sessionID, StartedAt: r.now().UTC()}
	return domain.TextMessage("Recording started. Talk to the bot, then send test_record stop.")
}

// Stop ends the transcript and returns it as YAML.
func (r *Recorder) Stop(ctx context.Context, sessionID string) domain.Message {
	r.mu.Lock()
	tr, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if !ok {
		return domain.TextMessage("Nothing is being recorded.")
	}
	data, err := yaml.Marshal(tr)
	if err != nil {
		r.logger.Error("failed to encode transcript", "session_id", sessionID, "err", err)
		return domain.TextMessage("Recording stopped, but the transcript could not be encoded.")
	}
	if r.dir != "" {
		if err := r.write(tr, data); err != nil {
			r.logger.Error("failed to write transcript", "session_id", sessionID, "err", err)
		}
	}
	return domain.TextMessage(string(data))
}

func (r *Recorder) write(tr *Transcript, data []byte) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.yaml", strings.ReplaceAll(tr.Session, string(filepath.Separator), "_"), tr.StartedAt.Format("20060102T150405"))
	return os.WriteFile(filepath.Join(r.dir, name), data, 0o644)
}

func (r *Recorder) append(sessionID string, step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tr, ok := r.sessions[sessionID]; ok {
		tr.Steps = append(tr.Steps, step)
	}
}

// RecordUserMessage implements ports.Recorder. The test_record entity itself is left out.
func (r *Recorder) RecordUserMessage(ctx context.Context, sessionID string, t domain.EventType, entities map[string]any) {
	var kept map[string]any
	for k, v := range entities {
		if k == domain.EntityTestRecord {
			continue
		}
		if kept == nil {
			kept = make(map[string]any, len(entities))
		}
		kept[k] = v
	}
	r.append(sessionID, Step{User: &UserStep{Type: t, Entities: kept}})
}

// RecordBotMessage implements ports.Recorder.
func (r *Recorder) RecordBotMessage(ctx context.Context, sessionID string, msg domain.Message) {
	r.append(sessionID, Step{Bot: msg.Text})
}

// RecordStateChange implements ports.Recorder.
func (r *Recorder) RecordStateChange(ctx context.Context, sessionID string, state string) {
	r.append(sessionID, Step{State: state})
}

// Recording reports whether a session is being recorded.
func (r *Recorder) Recording(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Parse decodes a transcript written by Stop.
func Parse(data []byte) (*Transcript, error) {
	var tr Transcript
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &tr, nil
}
