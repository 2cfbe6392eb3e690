package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
)

var _ analysis.Store = (*SlotStore)(nil)

func TestSlotStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()

	_, ok, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "session-1", "first"))
	require.NoError(t, store.Save(ctx, "session-1", "second"))

	value, ok, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	require.NoError(t, store.Delete(ctx, "session-1"))
	_, ok, err = store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlotStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "k", "持続する値"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	value, ok, err := reopened.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "持続する値", value)
}
