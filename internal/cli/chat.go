package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/golem/pkg/domain"
)

// ChatOptions configures an interactive console conversation.
type ChatOptions struct {
	SessionID string
	Fresh     bool
	In        io.Reader
	Out       io.Writer
}

// Chat reads user lines from In and feeds them to the bot until EOF, /quit or ctx is done.
//
// Lines are free text run through the configured extractor. A few commands are handled locally:
//
//	/quit             leave
//	/reset            forget the session
//	/state            print the stored state and entities
//	/set name=value   send an explicit entity
//	/goto flow.state  send a _state override
func Chat(ctx context.Context, app *App, opts ChatOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Fresh {
		if err := app.Bot.Clear(ctx, opts.SessionID); err != nil {
			return err
		}
	}
	session, err := app.Bot.Session(opts.SessionID)
	if err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// Greet with the default flow's root on a new session.
	if _, err := app.Bot.Inspect(ctx, session.ID); err != nil {
		if err := send(ctx, app, session, domain.EventMessage, nil, ""); err != nil {
			return err
		}
	}

	for {
		fmt.Fprint(opts.Out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(opts.Out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(opts.Out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		var sendErr error
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := app.Bot.Clear(ctx, session.ID); err != nil {
				return err
			}
			printSystemMessage(opts.Out, "Session %s forgotten.", session.ID)
		case "/state":
			printState(ctx, app, opts.Out, session.ID)
		case "/set":
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				printSystemMessage(opts.Out, "usage: /set name=value")
				continue
			}
			sendErr = send(ctx, app, session, domain.EventMessage, map[string]any{strings.TrimSpace(name): parseValue(value)}, "")
		case "/goto":
			sendErr = send(ctx, app, session, domain.EventPostback, map[string]any{domain.EntityState: strings.TrimSpace(arg)}, "")
		default:
			sendErr = send(ctx, app, session, domain.EventMessage, nil, line)
		}
		if sendErr != nil {
			printSystemMessage(opts.Out, "error: %v", sendErr)
		}
	}
}

func send(ctx context.Context, app *App, s domain.Session, typ domain.EventType, entities map[string]any, text string) error {
	ev := domain.Event{Type: typ, Session: s, Entities: entities}
	if entities == nil {
		ev.Raw = text
		if text == "" {
			ev.Entities = map[string]any{}
		}
	}
	out, err := app.Bot.Process(ctx, ev)
	if err != nil {
		return err
	}
	for _, e := range out.Errors {
		app.Logger.Debug("contained action failure", "state", e.State, "err", e.Err)
	}
	return nil
}

// parseValue reads JSON scalars and falls back to the raw string.
func parseValue(s string) any {
	s = strings.TrimSpace(s)
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func printState(ctx context.Context, app *App, out io.Writer, id string) {
	snap, err := app.Bot.Inspect(ctx, id)
	if err != nil {
		printSystemMessage(out, "error: %v", err)
		return
	}
	printSystemMessage(out, "state %s, turn %d", snap.State, snap.Context.Counter)
	for _, name := range sortedKeys(snap.Context.Entities) {
		e := snap.Context.Entities[name]
		printSystemMessage(out, "  %s = %v (age %d)", name, e.Value, e.Age)
	}
}
