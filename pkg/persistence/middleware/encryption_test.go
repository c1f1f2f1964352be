package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"testing"

	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/persistence/middleware"
	"github.com/aretw0/golem/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretRecord(t *testing.T, value string) *domain.Record {
	c := domain.NewContext()
	c.Counter = 1
	c.Set("secret", value)
	blob, err := json.Marshal(c)
	require.NoError(t, err)
	return &domain.Record{
		State:     "default.root",
		Context:   blob,
		Interface: "test",
		Session:   []byte(`{"id":"test_1","chat_id":"1"}`),
		Version:   "1.32",
	}
}

func loadSecret(t *testing.T, rec *domain.Record) string {
	var c domain.Context
	require.NoError(t, json.Unmarshal(rec.Context, &c))
	v, _ := c.GetString("secret", domain.AnyAge)
	return v
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	tests.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secure := mw(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, "test_1", secretRecord(t, "my-secret-sauce")))

	stored, err := underlying.Load(ctx, "test_1")
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Context), "my-secret-sauce")
	assert.Contains(t, string(stored.Context), "__encrypted__")
	assert.NotContains(t, string(stored.Session), "chat_id")
	assert.Equal(t, "default.root", stored.State, "state pointer stays readable")

	loaded, err := secure.Load(ctx, "test_1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loadSecret(t, loaded))
	assert.JSONEq(t, `{"id":"test_1","chat_id":"1"}`, string(loaded.Session))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, "test_1", secretRecord(t, "old")))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := newStore.Load(ctx, "test_1")
	require.NoError(t, err)
	assert.Equal(t, "old", loadSecret(t, loaded))

	require.NoError(t, newStore.Save(ctx, "test_1", secretRecord(t, "new")))
	_, err = oldStore.Load(ctx, "test_1")
	assert.Error(t, err, "old key alone cannot read new-key ciphertext")
}

func TestEncryptionMiddleware_RejectsPlainBlob(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "test_1", secretRecord(t, "plain")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "test_1")
	assert.ErrorContains(t, err, "envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
