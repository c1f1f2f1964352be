package channel

import (
	"fmt"
	"sync"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
)

// Registry maps channel names and session prefixes to adapters.
// It implements ports.ChannelResolver.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]ports.Channel
	byPrefix map[string]ports.Channel
}

// NewRegistry creates a registry holding the given channels.
func NewRegistry(channels ...ports.Channel) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]ports.Channel),
		byPrefix: make(map[string]ports.Channel),
	}
	for _, ch := range channels {
		if err := r.Register(ch); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a channel. Names and prefixes must be unique.
func (r *Registry) Register(ch ports.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[ch.Name()]; dup {
		return fmt.Errorf("channel %q already registered", ch.Name())
	}
	if _, dup := r.byPrefix[ch.Prefix()]; dup {
		return fmt.Errorf("channel prefix %q already registered", ch.Prefix())
	}
	r.byName[ch.Name()] = ch
	r.byPrefix[ch.Prefix()] = ch
	return nil
}

// ForSession resolves by the session's channel name, then by its id prefix.
func (r *Registry) ForSession(s domain.Session) (ports.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ch, ok := r.byName[s.Channel]; ok {
		return ch, nil
	}
	if prefix, _, err := domain.ParseSessionID(s.ID); err == nil {
		if ch, ok := r.byPrefix[prefix]; ok {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChannel, s.ID)
}

// FromSessionID rebuilds a session from its id.
func (r *Registry) FromSessionID(id string) (domain.Session, error) {
	prefix, chatID, err := domain.ParseSessionID(id)
	if err != nil {
		return domain.Session{}, err
	}
	r.mu.RLock()
	ch, ok := r.byPrefix[prefix]
	r.mu.RUnlock()
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: prefix %q", domain.ErrUnknownChannel, prefix)
	}
	return domain.NewSession(prefix, ch.Name(), chatID), nil
}

// Names lists the registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
