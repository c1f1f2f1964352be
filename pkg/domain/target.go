package domain

import (
	"strconv"
	"strings"
)

// TargetKind discriminates Target variants.
type TargetKind int

const (
	TargetByName TargetKind = iota
	TargetByHistoryOffset
)

// Target is a transition request: either a state name or a number of steps back in history.
type Target struct {
	Kind   TargetKind
	Name   string
	Offset int
}

// ByName targets a state by name. Accepted forms: "state", "flow.state", "flow.state:action".
func ByName(name string) Target {
	return Target{Kind: TargetByName, Name: name}
}

// ByHistoryOffset targets the entry offset steps from the end of the history.
func ByHistoryOffset(n int) Target {
	return Target{Kind: TargetByHistoryOffset, Offset: n}
}

// ParseTarget interprets a value coming from entities or definitions.
// Integers, and strings made only of digits, are history offsets.
func ParseTarget(v any) (Target, bool) {
	switch t := v.(type) {
	case Target:
		return t, true
	case int:
		return ByHistoryOffset(t), true
	case float64:
		return ByHistoryOffset(int(t)), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return Target{}, false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return ByHistoryOffset(n), true
		}
		return ByName(s), true
	}
	return Target{}, false
}

func (t Target) String() string {
	if t.Kind == TargetByHistoryOffset {
		return "-" + strconv.Itoa(t.Offset)
	}
	return t.Name
}

// StateName joins a flow and a local state name.
func StateName(flow, state string) string {
	return flow + "." + state
}

// SplitStateName splits "flow.state" into its parts.
func SplitStateName(name string) (flow, state string, ok bool) {
	return strings.Cut(name, ".")
}
