package channel

import (
	"context"
	"sync"

	"github.com/aretw0/golem/pkg/domain"
)

// Recording keeps every interaction in memory, for tests and local tools.
type Recording struct {
	name   string
	prefix string

	mu       sync.Mutex
	messages map[string][]domain.Message
	states   map[string][]string
	started  map[string]int
	ended    map[string]int
	failWith error
}

// NewRecording creates a recording channel.
func NewRecording(name, prefix string) *Recording {
	return &Recording{
		name:     name,
		prefix:   prefix,
		messages: make(map[string][]domain.Message),
		states:   make(map[string][]string),
		started:  make(map[string]int),
		ended:    make(map[string]int),
	}
}

// FailDeliveries makes PostMessage return err, after recording the message.
func (c *Recording) FailDeliveries(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

func (c *Recording) Name() string   { return c.name }
func (c *Recording) Prefix() string { return c.prefix }

func (c *Recording) ProcessingStart(ctx context.Context, s domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[s.ID]++
	return nil
}

func (c *Recording) ProcessingEnd(ctx context.Context, s domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended[s.ID]++
	return nil
}

func (c *Recording) PostMessage(ctx context.Context, s domain.Session, msg domain.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[s.ID] = append(c.messages[s.ID], msg)
	return c.failWith
}

func (c *Recording) StateChange(ctx context.Context, s domain.Session, state string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[s.ID] = append(c.states[s.ID], state)
	return nil
}

// Messages returns the messages posted to a session.
func (c *Recording) Messages(sessionID string) []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages[sessionID]...)
}

// Texts returns the text of every message posted to a session.
func (c *Recording) Texts(sessionID string) []string {
	msgs := c.Messages(sessionID)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

// StateChanges returns the reported states of a session.
func (c *Recording) StateChanges(sessionID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.states[sessionID]...)
}

// Turns returns how many processing start and end notifications a session got.
func (c *Recording) Turns(sessionID string) (started, ended int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started[sessionID], c.ended[sessionID]
}

// Reset forgets everything recorded for a session.
func (c *Recording) Reset(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, sessionID)
	delete(c.states, sessionID)
	delete(c.started, sessionID)
	delete(c.ended, sessionID)
}
