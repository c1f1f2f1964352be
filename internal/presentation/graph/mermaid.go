package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
)

// Overlay marks session progress on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// GenerateMermaid renders the registry as a Mermaid flowchart, one subgraph per flow.
// Shapes:
// - Root: ((Circle))
// - Accepts entities: [/Parallelogram/]
// - Gated by requirements: [[Subroutine]]
// - Default: [Rectangle]
// Flow intents are drawn as dotted edges from the default root.
func GenerateMermaid(reg *flow.Registry, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var edges []string
	defaultRoot := reg.Default().Root()

	for _, f := range reg.Flows() {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("flow_"+f.Name), f.Name)
		for _, s := range f.States() {
			id := sanitizeMermaidID(s.FullName())

			opener, closer := "[", "]"
			switch {
			case s.Name == flow.RootState:
				opener, closer = "((", "))"
			case len(s.Accepts) > 0:
				opener, closer = "[/", "/]"
			case len(s.Requirements) > 0:
				opener, closer = "[[", "]]"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", id, opener, s.Name, closer)

			if ta, ok := s.Action.(flow.TextAction); ok && ta.Next != "" {
				// Unresolved targets are reported by validate, not drawn.
				if to, err := runtime.ResolveName(reg, s.FullName(), nil, domain.ByName(ta.Next)); err == nil {
					arrow := "-->"
					if toFlow, _, _ := domain.SplitStateName(to); toFlow != f.Name {
						arrow = "-.->"
					}
					edges = append(edges, fmt.Sprintf("    %s %s %s", id, arrow, sanitizeMermaidID(to)))
				}
			}
			for _, intent := range s.Intents {
				edges = append(edges, fmt.Sprintf("    %s -- \"%s\" --> %s", sanitizeMermaidID(f.Root()), escape(intent), id))
			}
		}
		sb.WriteString("    end\n")

		for _, intent := range f.Intents {
			if f.Root() == defaultRoot {
				continue
			}
			edges = append(edges, fmt.Sprintf("    %s -. \"%s\" .-> %s", sanitizeMermaidID(defaultRoot), escape(intent), sanitizeMermaidID(f.Root())))
		}
	}

	for _, e := range edges {
		sb.WriteString(e)
		sb.WriteString("\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Visited {
			// History may name states that no longer exist.
			if _, ok := reg.State(name); !ok {
				continue
			}
			id := sanitizeMermaidID(name)
			if !seen[id] {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
