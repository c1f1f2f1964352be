package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Reserved entity names.
const (
	// EntityIntent holds the classified purpose of the most recent message.
	EntityIntent = "intent"

	// EntityState requests an explicit state override. Honoured only at age 0.
	EntityState = "_state"

	// EntityInactive is set on wake-ups fired by inactivity callbacks.
	EntityInactive = "_inactive"

	// EntityTestRecord toggles the conversation test recorder.
	EntityTestRecord = "test_record"
)

// AnyAge disables the age filter of Context.Get.
const AnyAge = -1

// Entity is a value with an age counted in processed turns since it was last set.
type Entity struct {
	Value any `json:"value"`
	Age   int `json:"age"`
}

// HistoryEntry records a visit to a state.
type HistoryEntry struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"ts"`
}

// Context is the per-session conversation memory.
// It is mutated by exactly one turn at a time.
type Context struct {
	Counter  int                `json:"counter"`
	Entities map[string]*Entity `json:"entities"`
	History  []HistoryEntry     `json:"history"`
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		Entities: make(map[string]*Entity),
		History:  []HistoryEntry{},
	}
}

// Get returns the value of an entity if its age is at most maxAge.
// A negative maxAge accepts any age.
func (c *Context) Get(name string, maxAge int) (any, bool) {
	e, ok := c.Entities[name]
	if !ok {
		return nil, false
	}
	if maxAge >= 0 && e.Age > maxAge {
		return nil, false
	}
	return e.Value, true
}

// GetString is Get for string-valued entities.
func (c *Context) GetString(name string, maxAge int) (string, bool) {
	v, ok := c.Get(name, maxAge)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Age returns the age of an entity.
func (c *Context) Age(name string) (int, bool) {
	e, ok := c.Entities[name]
	if !ok {
		return 0, false
	}
	return e.Age, true
}

// Set stores a value with age 0.
func (c *Context) Set(name string, value any) {
	if c.Entities == nil {
		c.Entities = make(map[string]*Entity)
	}
	c.Entities[name] = &Entity{Value: value}
}

// Intent returns the current intent if its age is at most maxAge.
func (c *Context) Intent(maxAge int) (string, bool) {
	return c.GetString(EntityIntent, maxAge)
}

// AddEntities merges the entities extracted in this turn.
// Every existing entity ages by one, then the new ones are stored with age 0.
// The returned slice lists the new entity names in sorted order.
func (c *Context) AddEntities(entities map[string]any) []string {
	for _, e := range c.Entities {
		e.Age++
	}
	keys := make([]string, 0, len(entities))
	for name, value := range entities {
		c.Set(name, value)
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// AddState appends a visit to the history.
func (c *Context) AddState(name string, at time.Time) {
	c.History = append(c.History, HistoryEntry{Name: name, Timestamp: at})
}

// HistoryState returns the entry offset steps from the end of the history.
// Offset 1 is the most recent entry.
func (c *Context) HistoryState(offset int) (HistoryEntry, bool) {
	idx := len(c.History) - offset
	if offset < 1 || idx < 0 {
		return HistoryEntry{}, false
	}
	return c.History[idx], true
}

// Clone returns a deep copy of the context.
// Entity values are copied by reference.
func (c *Context) Clone() *Context {
	next := &Context{
		Counter:  c.Counter,
		Entities: make(map[string]*Entity, len(c.Entities)),
		History:  make([]HistoryEntry, len(c.History)),
	}
	for k, e := range c.Entities {
		cp := *e
		next.Entities[k] = &cp
	}
	copy(next.History, c.History)
	return next
}

// Debug renders the context for diagnostics.
func (c *Context) Debug() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render context: %w", err)
	}
	return string(data), nil
}

// wireContext is the persisted shape. The intent field mirrors the intent entity.
type wireContext struct {
	Counter  int                `json:"counter"`
	Entities map[string]*Entity `json:"entities"`
	History  []HistoryEntry     `json:"history"`
	Intent   *Entity            `json:"intent,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c *Context) MarshalJSON() ([]byte, error) {
	w := wireContext{
		Counter:  c.Counter,
		Entities: c.Entities,
		History:  c.History,
		Intent:   c.Entities[EntityIntent],
	}
	if w.Entities == nil {
		w.Entities = map[string]*Entity{}
	}
	if w.History == nil {
		w.History = []HistoryEntry{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Context) UnmarshalJSON(data []byte) error {
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Counter = w.Counter
	c.Entities = w.Entities
	if c.Entities == nil {
		c.Entities = make(map[string]*Entity)
	}
	if _, ok := c.Entities[EntityIntent]; !ok && w.Intent != nil {
		c.Entities[EntityIntent] = w.Intent
	}
	c.History = w.History
	if c.History == nil {
		c.History = []HistoryEntry{}
	}
	return nil
}
