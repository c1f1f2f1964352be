package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
)

// Mask replaces the value of a masked entity.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks the values of entities whose names match any pattern.
// Masking is lossy: the bot reads back the mask, so only name entities the
// dialog never needs again (card numbers, passwords after verification).
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, rec *domain.Record) error {
	if len(rec.Context) == 0 {
		return m.next.Save(ctx, sessionID, rec)
	}

	var c domain.Context
	if err := c.UnmarshalJSON(rec.Context); err != nil {
		return fmt.Errorf("pii: decode context: %w", err)
	}
	masked := false
	for name, ent := range c.Entities {
		if m.sensitive(name) {
			c.Entities[name] = &domain.Entity{Value: Mask, Age: ent.Age}
			masked = true
		}
	}
	if !masked {
		return m.next.Save(ctx, sessionID, rec)
	}

	blob, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("pii: encode context: %w", err)
	}
	cloned := rec.Clone()
	cloned.Context = blob
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) sensitive(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Clear(ctx context.Context, sessionID string) error {
	return m.next.Clear(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
