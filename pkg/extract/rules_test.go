package extract_test

import (
	"context"
	"testing"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopRules(t *testing.T, opts ...extract.Option) *extract.Rules {
	t.Helper()
	x, err := extract.NewRules([]extract.Rule{
		{Entity: domain.EntityIntent, Pattern: `\bcancel\b`, Value: "cancel_order"},
		{Entity: domain.EntityIntent, Pattern: `\b(bill|invoice)`, Value: "billing"},
		{Entity: "amount", Pattern: `(\d+(?:\.\d+)?)\s*(?:usd|\$)`},
		{Entity: "greeting", Pattern: `^(hi|hello)`},
	}, opts...)
	require.NoError(t, err)
	return x
}

func TestRules_Text(t *testing.T) {
	x := shopRules(t)

	tests := []struct {
		raw  any
		want map[string]any
	}{
		{"Cancel my order please", map[string]any{domain.EntityIntent: "cancel_order"}},
		{"Pay my BILL of 30 usd", map[string]any{domain.EntityIntent: "billing", "amount": "30"}},
		{"cancel the invoice", map[string]any{domain.EntityIntent: "cancel_order"}},
		{"  Hello there", map[string]any{"greeting": "Hello"}},
		{"nothing here", map[string]any{}},
		{map[string]any{"text": "12.5$"}, map[string]any{"amount": "12.5"}},
	}
	for _, tt := range tests {
		got, err := x.Extract(context.Background(), tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.raw)
	}
}

func TestRules_PostbackPassesThrough(t *testing.T) {
	x := shopRules(t)

	got, err := x.Extract(context.Background(), map[string]any{
		"text":     "cancel",
		"postback": map[string]any{domain.EntityState: "billing.pay", "amount": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{domain.EntityState: "billing.pay", "amount": 10}, got)

	got, err = x.Extract(context.Background(), domain.Button{
		Title:   "Orders",
		Payload: map[string]any{domain.EntityIntent: "orders"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{domain.EntityIntent: "orders"}, got)
}

func TestRules_ExplicitEntitiesWin(t *testing.T) {
	x := shopRules(t)

	got, err := x.Extract(context.Background(), map[string]any{
		"text":     "cancel",
		"entities": map[string]any{domain.EntityIntent: "billing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "billing", got[domain.EntityIntent])
}

func TestRules_TextEntityIsSanitized(t *testing.T) {
	x := shopRules(t, extract.WithTextEntity("text"))

	got, err := x.Extract(context.Background(), "hi\x1b[0m ")
	require.NoError(t, err)
	assert.Equal(t, "hi[0m", got["text"])
}

func TestRules_OversizedInput(t *testing.T) {
	x := shopRules(t)
	big := make([]byte, extract.DefaultMaxInputSize+1)
	for i := range big {
		big[i] = 'a'
	}

	_, err := x.Extract(context.Background(), string(big))
	assert.ErrorIs(t, err, extract.ErrInputTooLarge)

	_, err = shopRules(t, extract.WithoutSanitize()).Extract(context.Background(), string(big))
	assert.NoError(t, err)
}

func TestNewRules_Invalid(t *testing.T) {
	_, err := extract.NewRules([]extract.Rule{{Entity: "x", Pattern: "("}})
	assert.Error(t, err)

	_, err = extract.NewRules([]extract.Rule{{Pattern: "a"}})
	assert.ErrorContains(t, err, "entity is required")
}

func TestRules_UndecodablePayload(t *testing.T) {
	_, err := shopRules(t).Extract(context.Background(), map[string]any{"text": []int{1}})
	assert.Error(t, err)
}
