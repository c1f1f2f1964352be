package validator

import (
	"testing"

	"github.com/aretw0/golem/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, doc string) *flow.Registry {
	t.Helper()
	defs, err := flow.ParseYAML([]byte(doc))
	require.NoError(t, err)
	reg, err := flow.Load(defs, nil)
	require.NoError(t, err)
	return reg
}

func TestCheck_Valid(t *testing.T) {
	// root -> a -> billing.root, help by intent, billing by flow intent.
	reg := load(t, `
default:
  states:
    root:
      action: {text: Hi, next: a}
    a:
      action: {text: A, next: billing.root}
    help:
      intent: [help]
      action: {text: Help}
billing:
  intent: [billing]
  states:
    root:
      action: {text: Balance, next: "pay:init"}
    pay:
      require:
        - entity: amount
          action: {text: "How much?", next: ask}
      action: {text: Paid}
    ask:
      action: {text: Type an amount}
`)
	report := Check(reg)
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Unreachable)
}

func TestCheck_BrokenLink(t *testing.T) {
	reg := load(t, `
default:
  states:
    root:
      action: {text: Hi, next: ghost_node}
`)
	report := Check(reg)
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), `default.root: next "ghost_node" does not resolve`)
}

func TestCheck_Unreachable(t *testing.T) {
	reg := load(t, `
default:
  states:
    root:
      action: {text: Hi}
    orphan:
      action: {text: Nobody comes here}
hidden:
  states:
    root:
      action: {text: No intent}
    helped:
      intent: [help]
      action: {text: Only inside hidden}
`)
	report := Check(reg)
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"default.orphan", "hidden.root", "hidden.helped"}, report.Unreachable)
}
