package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/golem/internal/validator"
	"github.com/aretw0/golem/pkg/adapters/loam"
	"github.com/aretw0/golem/pkg/flow"
)

// debounce groups the burst of events an editor save produces.
const debounce = 200 * time.Millisecond

// CheckFlows prints unreachable states as warnings and returns an error for broken links.
func CheckFlows(out io.Writer, reg *flow.Registry) error {
	report := validator.Check(reg)
	for _, name := range report.Unreachable {
		printSystemMessage(out, "warning: %s is not reachable through declared transitions", name)
	}
	return report.Err()
}

// Validate loads the flows at dir and prints their summary.
func Validate(ctx context.Context, dir string, actions flow.Resolver, out io.Writer) error {
	loader, err := loam.Open(dir)
	if err != nil {
		return err
	}
	reg, err := loader.Load(ctx, actions)
	if err != nil {
		return err
	}
	PrintFlows(out, reg)
	return CheckFlows(out, reg)
}

// Watch validates dir now and again after every change until ctx is done.
// Validation errors are printed, not returned, so editing can go on.
func Watch(ctx context.Context, dir string, actions flow.Resolver, out io.Writer, logger *slog.Logger) error {
	loader, err := loam.Open(dir)
	if err != nil {
		return err
	}
	check := func() {
		reg, err := loader.Load(ctx, actions)
		if err != nil {
			printSystemMessage(out, "invalid: %v", err)
			return
		}
		PrintFlows(out, reg)
		if err := CheckFlows(out, reg); err != nil {
			printSystemMessage(out, "invalid: %v", err)
			return
		}
		printSystemMessage(out, "flows are valid")
	}
	check()

	changes, err := loader.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("Starting Watcher", "path", dir)

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Debug("document changed", "id", id)
			timer = time.After(debounce)
		case <-timer:
			timer = nil
			fmt.Fprintln(out)
			check()
		}
	}
}
