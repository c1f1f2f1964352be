package domain

import "time"

// Record is the persisted form of a session.
type Record struct {
	// State is the current state pointer ("flow.state"), empty for a session that never moved.
	State string `json:"state"`

	// Context is the JSON encoded Context.
	Context []byte `json:"context"`

	// Interface is the channel adapter name.
	Interface string `json:"interface"`

	// Session is the raw session blob used to rebuild the channel binding after restarts.
	Session []byte `json:"session,omitempty"`

	// Version is the schema version the context was written with.
	Version string `json:"version"`

	// ActiveAt is the time of the last user-originated event.
	ActiveAt time.Time `json:"active_at"`
}

// Clone returns a copy that shares no byte slices with r.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Context = append([]byte(nil), r.Context...)
	cp.Session = append([]byte(nil), r.Session...)
	return &cp
}
