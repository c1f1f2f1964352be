package runtime

import (
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
)

// Gate returns the action to run when entering st.
// Requirements are checked in order against a copy of the context; the first
// unmet one supplies its remediation action and satisfied is false.
func Gate(st *flow.State, c *domain.Context) (action flow.Action, satisfied bool) {
	if len(st.Requirements) == 0 {
		return st.Action, true
	}
	view := c.Clone()
	for _, req := range st.Requirements {
		if !req.Check(view) {
			return req.Action, false
		}
	}
	return st.Action, true
}
