package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()
	sessionID := "test_contract-" + time.Now().Format("20060102150405")

	newRecord := func(state string) *domain.Record {
		return &domain.Record{
			State:     state,
			Context:   []byte(`{"counter":1,"entities":{},"history":[]}`),
			Interface: "test",
			Session:   []byte(`{"id":"` + sessionID + `"}`),
			Version:   "1",
			ActiveAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		rec := newRecord("default.root")
		require.NoError(t, store.Save(ctx, sessionID, rec), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.State, loaded.State)
		assert.JSONEq(t, string(rec.Context), string(loaded.Context))
		assert.Equal(t, rec.Interface, loaded.Interface)
		assert.Equal(t, rec.Version, loaded.Version)
		assert.True(t, rec.ActiveAt.Equal(loaded.ActiveAt), "active time should survive persistence")
	})

	t.Run("Overwrite keeps pairing", func(t *testing.T) {
		rec := newRecord("billing.collect_amount")
		rec.Context = []byte(`{"counter":2,"entities":{},"history":[]}`)
		require.NoError(t, store.Save(ctx, sessionID, rec))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "billing.collect_amount", loaded.State)
		assert.JSONEq(t, string(rec.Context), string(loaded.Context))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "test_missing-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, newRecord("default.root")))

		require.NoError(t, store.Clear(ctx, sessionID), "Clear should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Clear should return ErrSessionNotFound")
	})

	t.Run("Clear keeps channel binding", func(t *testing.T) {
		id := sessionID + "-bound"
		original := newRecord("default.root")
		require.NoError(t, store.Save(ctx, id, original))
		require.NoError(t, store.Clear(ctx, id))

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, sessions, id, "cleared sessions are not listed")

		// A restart carries no session blob or activity time of its own.
		restart := newRecord("default.root")
		restart.Session = nil
		restart.ActiveAt = time.Time{}
		require.NoError(t, store.Save(ctx, id, restart))
		defer func() { _ = store.Clear(ctx, id) }()

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, string(original.Session), string(loaded.Session), "binding should survive Clear")
		assert.True(t, original.ActiveAt.Equal(loaded.ActiveAt), "activity time should survive Clear")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, newRecord("default.root")))
		require.NoError(t, store.Save(ctx, id2, newRecord("default.root")))

		defer func() {
			_ = store.Clear(ctx, id1)
			_ = store.Clear(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
