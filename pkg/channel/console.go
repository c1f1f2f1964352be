package channel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Console prints bot messages to a terminal. Text is rendered as markdown
// when the output is a TTY and printed plainly otherwise.
type Console struct {
	out        io.Writer
	render     func(string) (string, error)
	profile    termenv.Profile
	showStates bool

	mu sync.Mutex
}

// ConsoleOption configures the Console.
type ConsoleOption func(*Console)

// WithStateTrace prints state changes as dim lines.
func WithStateTrace(enabled bool) ConsoleOption {
	return func(c *Console) {
		c.showStates = enabled
	}
}

// WithPlainOutput disables markdown rendering and colors.
func WithPlainOutput() ConsoleOption {
	return func(c *Console) {
		c.render = nil
		c.profile = termenv.Ascii
	}
}

// NewConsole creates a console channel writing to out (stdout when nil).
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	if out == nil {
		out = os.Stdout
	}
	c := &Console{out: out, profile: termenv.Ascii}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.profile = termenv.ColorProfile()
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
			c.render = r.Render
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) Name() string   { return "console" }
func (c *Console) Prefix() string { return "console" }

func (c *Console) ProcessingStart(context.Context, domain.Session) error { return nil }
func (c *Console) ProcessingEnd(context.Context, domain.Session) error   { return nil }

// PostMessage prints the text followed by numbered buttons.
func (c *Console) PostMessage(ctx context.Context, s domain.Session, msg domain.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := msg.Text
	if c.render != nil {
		if rendered, err := c.render(text); err == nil {
			text = rendered
		}
	}
	if _, err := fmt.Fprintln(c.out, strings.TrimSpace(text)); err != nil {
		return err
	}
	for i, b := range msg.Buttons {
		label := c.profile.String(fmt.Sprintf("  [%d] %s", i+1, b.Title)).Foreground(c.profile.Color("#a78bfa"))
		if _, err := fmt.Fprintln(c.out, label); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) StateChange(ctx context.Context, s domain.Session, state string) error {
	if !c.showStates {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, c.profile.String("  -> "+state).Faint())
	return err
}

// Banner prints the CLI banner.
func (c *Console) Banner(bot string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.profile.String("  golem").Foreground(c.profile.Color("#818cf8")).Bold())
	fmt.Fprintln(c.out, c.profile.String("  talking to "+bot+", /quit to leave").Foreground(c.profile.Color("#c084fc")))
	fmt.Fprintln(c.out)
}
