package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
)

// Report lists the problems found in a registry.
type Report struct {
	// Broken lists "next" targets that do not resolve to a state.
	Broken []string

	// Unreachable lists states that no declared transition or intent leads to.
	// Registered actions may still move there, so these are warnings.
	Unreachable []string
}

// Err returns an error when the report holds broken links.
func (r Report) Err() error {
	if len(r.Broken) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Broken), strings.Join(r.Broken, "\n- "))
}

// Check crawls the registry from the default root. Flow roots with intents,
// and states with intents inside a reached flow, are entry points too.
func Check(reg *flow.Registry) Report {
	var report Report

	edges := make(map[string][]string)
	for _, f := range reg.Flows() {
		for _, s := range f.States() {
			actions := []flow.Action{s.Action}
			for _, req := range s.Requirements {
				actions = append(actions, req.Action)
			}
			for _, a := range actions {
				ta, ok := a.(flow.TextAction)
				if !ok || ta.Next == "" {
					continue
				}
				to, err := runtime.ResolveName(reg, s.FullName(), nil, domain.ByName(ta.Next))
				if err != nil {
					report.Broken = append(report.Broken, fmt.Sprintf("%s: next %q does not resolve to a state", s.FullName(), ta.Next))
					continue
				}
				edges[s.FullName()] = append(edges[s.FullName()], to)
			}
		}
	}

	visited := make(map[string]bool)
	reachedFlows := make(map[string]bool)
	var queue []string
	visit := func(name string) {
		if !visited[name] {
			visited[name] = true
			queue = append(queue, name)
		}
	}

	visit(reg.Default().Root())
	for _, f := range reg.Flows() {
		if len(f.Intents) > 0 {
			visit(f.Root())
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		flowName, _, _ := domain.SplitStateName(current)
		if !reachedFlows[flowName] {
			reachedFlows[flowName] = true
			if f, ok := reg.Flow(flowName); ok {
				for _, s := range f.States() {
					if len(s.Intents) > 0 {
						visit(s.FullName())
					}
				}
			}
		}
		for _, to := range edges[current] {
			visit(to)
		}
	}

	for _, f := range reg.Flows() {
		for _, s := range f.States() {
			if !visited[s.FullName()] {
				report.Unreachable = append(report.Unreachable, s.FullName())
			}
		}
	}
	sort.Strings(report.Broken)
	return report
}
