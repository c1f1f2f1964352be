package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Rule maps a text pattern to an entity.
// Value is stored when set; otherwise the first capture group, or the whole
// match, becomes the value.
type Rule struct {
	Entity  string `yaml:"entity" mapstructure:"entity"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Value   any    `yaml:"value,omitempty" mapstructure:"value"`

	re *regexp.Regexp
}

// Payload is the shape of a raw inbound message understood by Rules.
// A bare string is treated as Text.
type Payload struct {
	Text     string         `mapstructure:"text"`
	Postback map[string]any `mapstructure:"postback"`
	Entities map[string]any `mapstructure:"entities"`
}

// Rules implements ports.EntityExtractor with ordered regular expressions.
type Rules struct {
	rules    []Rule
	textKey  string
	sanitize bool
	logger   *slog.Logger
}

var _ ports.EntityExtractor = (*Rules)(nil)

// Option configures Rules.
type Option func(*Rules)

// WithTextEntity also stores the sanitized message text under name.
func WithTextEntity(name string) Option {
	return func(r *Rules) {
		r.textKey = name
	}
}

// WithoutSanitize skips input sanitizing, for trusted sources.
func WithoutSanitize() Option {
	return func(r *Rules) {
		r.sanitize = false
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rules) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRules compiles the rules. Patterns are case-insensitive.
func NewRules(rules []Rule, opts ...Option) (*Rules, error) {
	x := &Rules{sanitize: true, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(x)
	}
	for _, rule := range rules {
		if rule.Entity == "" {
			return nil, fmt.Errorf("rule %q: entity is required", rule.Pattern)
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Entity, err)
		}
		rule.re = re
		x.rules = append(x.rules, rule)
	}
	return x, nil
}

// Extract implements ports.EntityExtractor.
// Postback payloads and explicit entities are returned as they are; text is
// matched against every rule, the first match per entity wins.
func (x *Rules) Extract(ctx context.Context, raw any) (map[string]any, error) {
	p, err := decode(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for k, v := range p.Postback {
		out[k] = v
	}
	for k, v := range p.Entities {
		out[k] = v
	}
	if len(p.Postback) > 0 || p.Text == "" {
		return out, nil
	}

	text := p.Text
	if x.sanitize {
		if text, err = Sanitize(text); err != nil {
			return nil, err
		}
	}
	text = strings.TrimSpace(text)
	if x.textKey != "" {
		out[x.textKey] = text
	}
	for _, rule := range x.rules {
		if _, done := out[rule.Entity]; done {
			continue
		}
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		switch {
		case rule.Value != nil:
			out[rule.Entity] = rule.Value
		case len(m) > 1:
			out[rule.Entity] = m[1]
		default:
			out[rule.Entity] = m[0]
		}
	}
	x.logger.Debug("extracted entities", "count", len(out))
	return out, nil
}

func decode(raw any) (Payload, error) {
	var p Payload
	switch v := raw.(type) {
	case nil:
		return p, nil
	case string:
		p.Text = v
		return p, nil
	case domain.Button:
		p.Postback = v.Payload
		return p, nil
	}
	if err := mapstructure.Decode(raw, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
