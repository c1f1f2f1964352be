package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/aretw0/golem/pkg/flow"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it remembers the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, ">>> %s\n", fmt.Sprintf(format, args...))
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// PrintFlows writes a summary of the loaded flows.
func PrintFlows(out io.Writer, reg *flow.Registry) {
	for i, f := range reg.Flows() {
		label := f.Name
		if i == 0 {
			label += " (default)"
		}
		if len(f.Intents) > 0 {
			label += fmt.Sprintf(" intents=%v", f.Intents)
		}
		fmt.Fprintln(out, label)
		for _, st := range f.States() {
			line := "  " + st.FullName()
			if len(st.Accepts) > 0 {
				line += fmt.Sprintf(" accepts=%v", st.Accepts)
			}
			if len(st.Intents) > 0 {
				line += fmt.Sprintf(" intents=%v", st.Intents)
			}
			if n := len(st.Requirements); n > 0 {
				line += fmt.Sprintf(" requirements=%d", n)
			}
			if st.Action == nil {
				line += " (no action)"
			}
			fmt.Fprintln(out, line)
		}
	}
}
