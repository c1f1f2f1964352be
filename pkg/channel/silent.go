package channel

import (
	"context"

	"github.com/aretw0/golem/pkg/domain"
)

// Silent accepts everything and delivers nothing. Request/response surfaces
// (HTTP, MCP) use it and return the turn's messages to their caller instead.
type Silent struct {
	name   string
	prefix string
}

// NewSilent creates a silent channel.
func NewSilent(name, prefix string) *Silent {
	return &Silent{name: name, prefix: prefix}
}

func (c *Silent) Name() string   { return c.name }
func (c *Silent) Prefix() string { return c.prefix }

func (c *Silent) ProcessingStart(context.Context, domain.Session) error { return nil }
func (c *Silent) ProcessingEnd(context.Context, domain.Session) error   { return nil }
func (c *Silent) PostMessage(context.Context, domain.Session, domain.Message) error {
	return nil
}
func (c *Silent) StateChange(context.Context, domain.Session, string) error { return nil }
