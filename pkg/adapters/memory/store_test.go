package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	tests.RunSessionStoreContract(t, store)
}

func TestMemoryStore_CopyOnRead(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t_1", &domain.Record{State: "a.root", Context: []byte(`{}`)}))

	loaded, err := store.Load(ctx, "t_1")
	require.NoError(t, err)
	loaded.Context[0] = 'X'

	again, err := store.Load(ctx, "t_1")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(again.Context))
}
