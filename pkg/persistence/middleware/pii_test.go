package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewPIIMiddleware([]string{"password", "^card_"})(underlying)
	ctx := context.Background()

	c := domain.NewContext()
	c.Set("username", "jdoe")
	c.Set("user_password", "secret123")
	c.Set("card_number", "4111111111111111")
	c.AddEntities(map[string]any{"amount": 42})
	blob, err := json.Marshal(c)
	require.NoError(t, err)
	rec := &domain.Record{State: "billing.root", Context: blob}

	require.NoError(t, secure.Save(ctx, "test_1", rec))
	assert.Equal(t, blob, rec.Context, "caller's record is not modified")

	stored, err := underlying.Load(ctx, "test_1")
	require.NoError(t, err)
	var got domain.Context
	require.NoError(t, json.Unmarshal(stored.Context, &got))

	v, _ := got.GetString("username", domain.AnyAge)
	assert.Equal(t, "jdoe", v)
	v, _ = got.GetString("user_password", domain.AnyAge)
	assert.Equal(t, middleware.Mask, v)
	v, _ = got.GetString("card_number", domain.AnyAge)
	assert.Equal(t, middleware.Mask, v)

	age, ok := got.Age("user_password")
	require.True(t, ok)
	assert.Equal(t, 1, age, "masking keeps the entity age")
}

func TestChain_OutermostFirst(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{"password"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	c := domain.NewContext()
	c.Set("password", "hunter2")
	blob, err := json.Marshal(c)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "test_1", &domain.Record{Context: blob}))

	loaded, err := store.Load(ctx, "test_1")
	require.NoError(t, err)
	var got domain.Context
	require.NoError(t, json.Unmarshal(loaded.Context, &got))
	v, _ := got.GetString("password", domain.AnyAge)
	assert.Equal(t, middleware.Mask, v)
}
