package flow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botYAML = `
default:
  intent: [greeting]
  states:
    root:
      action: greet
    help:
      intent: [help]
      action:
        type: text
        text: "How can I help?"
        buttons:
          - title: Orders
            payload: {_state: orders.root}
orders:
  intent: cancel_order
  states:
    - name: root
      action: list_orders
    - name: collect_amount
      accept: [amount]
      require:
        - entity: email
          max_age: 3
          action: ask_email
        - check: is_verified
          action: verify
      action: refund
`

func actions() *registry.Registry {
	r := registry.NewRegistry()
	noop := func(ctx context.Context, d flow.Dialog) error { return nil }
	for _, name := range []string{"greet", "list_orders", "ask_email", "verify", "refund"} {
		r.RegisterFunc(name, noop)
	}
	r.RegisterCheck("is_verified", func(c *domain.Context) bool {
		v, _ := c.Get("verified", domain.AnyAge)
		return v == true
	})
	return r
}

func TestParseYAML_AndLoad(t *testing.T) {
	defs, err := flow.ParseYAML([]byte(botYAML))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "default", defs[0].Name, "flow order follows the document")

	reg, err := flow.Load(defs, actions())
	require.NoError(t, err)

	assert.Equal(t, "default", reg.Default().Name)

	orders, ok := reg.Flow("orders")
	require.True(t, ok)
	assert.True(t, orders.MatchesIntent("cancel_order"), "single intent string is lifted to a list")
	assert.Equal(t, "orders.root", orders.Root())

	st, ok := reg.State("orders.collect_amount")
	require.True(t, ok)
	assert.True(t, st.AcceptsAny([]string{"foo", "amount"}))
	require.Len(t, st.Requirements, 2)

	c := domain.NewContext()
	assert.False(t, st.Requirements[0].Check(c))
	c.Set("email", "a@b.c")
	assert.True(t, st.Requirements[0].Check(c))

	def, _ := reg.Flow("default")
	name, ok := def.StateForIntent("help")
	require.True(t, ok)
	assert.Equal(t, "default.help", name)

	help, _ := reg.State("default.help")
	text, ok := help.Action.(flow.TextAction)
	require.True(t, ok)
	assert.Equal(t, "How can I help?", text.Message.Text)
	require.Len(t, text.Message.Buttons, 1)
	assert.Equal(t, "orders.root", text.Message.Buttons[0].Payload["_state"])
}

func TestLoad_ConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"duplicate flow": `
a:
  states: {root: {action: greet}}
`,
		"unknown action": `
a:
  states: {root: {action: missing}}
`,
		"missing root": `
a:
  states: {other: {action: greet}}
`,
		"unknown check": `
a:
  states:
    root:
      action: greet
      require: [{check: nope, action: greet}]
`,
		"dotted flow name": `
support.v2:
  states: {root: {action: greet}}
`,
		"dotted state name": `
a:
  states:
    root: {action: greet}
    pay.card: {action: greet}
`,
		"state name with action suffix": `
a:
  states:
    root: {action: greet}
    "pay:init": {action: greet}
`,
		"unknown key": `
a:
  colour: blue
  states: {root: {action: greet}}
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			defs, err := flow.ParseYAML([]byte(doc))
			if err == nil {
				if name == "duplicate flow" {
					defs = append(defs, defs[0])
				}
				_, err = flow.Load(defs, actions())
			}
			var cfgErr *domain.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	_, err := flow.Load(nil, nil)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
