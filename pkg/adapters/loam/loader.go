package loam

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/loam"
)

// Loader reads flow definitions from a Loam repository, one document per state.
type Loader struct {
	Repo *loam.TypedRepository[StateMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[StateMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode decodes numbers consistently across markdown and JSON documents.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[StateMetadata](repo)), nil
}

type stateDoc struct {
	source string
	name   string
	meta   StateMetadata
	body   string
}

// Definitions reads every document and groups states into flows.
// Flows are ordered by name with "default" first; states with root first.
func (l *Loader) Definitions(ctx context.Context) ([]flow.Definition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	byFlow := make(map[string][]stateDoc)
	seen := make(map[string]string)
	for _, listed := range docs {
		// List carries ids and metadata only; the body needs a Get.
		doc, err := l.Repo.Get(ctx, listed.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", listed.ID, err)
		}
		flowName, stateName, err := stateID(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		full := flowName + "." + stateName
		if existing, ok := seen[full]; ok {
			return nil, fmt.Errorf("collision detected: state '%s' is defined in both '%s' and '%s'", full, existing, doc.ID)
		}
		seen[full] = doc.ID
		byFlow[flowName] = append(byFlow[flowName], stateDoc{
			source: doc.ID,
			name:   stateName,
			meta:   doc.Data,
			body:   strings.TrimSpace(doc.Content),
		})
	}

	names := make([]string, 0, len(byFlow))
	for name := range byFlow {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return before(names[i], names[j], "default") })

	defs := make([]flow.Definition, 0, len(names))
	for _, name := range names {
		def, err := buildDefinition(name, byFlow[name])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Load reads the definitions and links them.
func (l *Loader) Load(ctx context.Context, resolver flow.Resolver) (*flow.Registry, error) {
	defs, err := l.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	return flow.Load(defs, resolver)
}

func buildDefinition(flowName string, states []stateDoc) (flow.Definition, error) {
	sort.Slice(states, func(i, j int) bool { return before(states[i].name, states[j].name, flow.RootState) })

	var intents []string
	bodies := make([]any, 0, len(states))
	for _, st := range states {
		if len(st.meta.FlowIntent) > 0 {
			if intents != nil {
				return flow.Definition{}, fmt.Errorf("%s: flow %s declares flow_intent more than once", st.source, flowName)
			}
			intents = st.meta.FlowIntent
		}
		bodies = append(bodies, stateBody(st))
	}

	raw := map[string]any{"states": bodies}
	if intents != nil {
		raw["intent"] = intents
	}
	def, err := flow.DecodeDefinition(flowName, raw)
	if err != nil {
		return def, fmt.Errorf("flow %s: %w", flowName, err)
	}
	return def, nil
}

func stateBody(st stateDoc) map[string]any {
	body := map[string]any{"name": st.name}
	switch {
	case st.meta.Action != "":
		body["action"] = st.meta.Action
	case st.body != "" || len(st.meta.Buttons) > 0:
		action := map[string]any{"type": flow.ActionTypeText, "text": st.body}
		if len(st.meta.Buttons) > 0 {
			action["buttons"] = st.meta.Buttons
		}
		if st.meta.Next != "" {
			action["next"] = st.meta.Next
		}
		body["action"] = action
	}
	if len(st.meta.Intent) > 0 {
		body["intent"] = st.meta.Intent
	}
	if len(st.meta.Accept) > 0 {
		body["accept"] = st.meta.Accept
	}
	if len(st.meta.Require) > 0 {
		reqs := make([]any, len(st.meta.Require))
		for i, r := range st.meta.Require {
			reqs[i] = r
		}
		body["require"] = reqs
	}
	return body
}

// stateID derives flow and state from the document path, "<flow>/<state>.md".
func stateID(docID string, meta StateMetadata) (flowName, stateName string, err error) {
	id := trimExtension(docID)
	dir, base := path.Split(id)
	flowName = strings.ReplaceAll(strings.Trim(dir, "/"), "/", "_")
	stateName = base
	if meta.Flow != "" {
		flowName = meta.Flow
	}
	if meta.State != "" {
		stateName = meta.State
	}
	if flowName == "" {
		return "", "", fmt.Errorf("%s: document outside a flow directory needs a flow field", docID)
	}
	if strings.Contains(flowName, ".") || strings.Contains(stateName, ".") {
		return "", "", fmt.Errorf("%s: flow and state names cannot contain dots", docID)
	}
	return flowName, stateName, nil
}

// before orders first ahead of everything, then lexically.
func before(a, b, first string) bool {
	if a == first || b == first {
		return a == first && b != first
	}
	return a < b
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch reports the ids of changed documents until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
