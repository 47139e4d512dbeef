package nodestore

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_CreateReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend(zerolog.Nop())

	node := newTestNode(1, "TestNode1", 42)
	node.Attributes = map[string]string{"unit": "celsius"}
	require.NoError(t, store.CreateNode(ctx, node))

	err := store.CreateNode(ctx, newTestNode(1, "TestNode1", 0))
	assert.ErrorIs(t, err, ErrNodeExists)

	got, err := store.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Value)
	assert.Equal(t, "celsius", got.Attributes["unit"])
	assert.False(t, got.ModifiedAt.IsZero())

	got.Value = 43
	require.NoError(t, store.WriteNode(ctx, got))
	got, err = store.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, 43, got.Value)

	err = store.WriteNode(ctx, newTestNode(1, "absent", nil))
	assert.ErrorIs(t, err, ErrNodeNotFound)

	require.NoError(t, store.DeleteNode(ctx, node.ID))
	_, err = store.ReadNode(ctx, node.ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	err = store.DeleteNode(ctx, node.ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestMemoryBackend_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend(zerolog.Nop())

	node := newTestNode(1, "TestNode1", "v")
	node.Attributes = map[string]string{"k": "v"}
	require.NoError(t, store.CreateNode(ctx, node))

	got, err := store.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	got.Attributes["k"] = "mutated"

	again, err := store.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Attributes["k"])
}

func TestMemoryBackend_IterateStopsEarly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend(zerolog.Nop())

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateNode(ctx, newTestNode(1, name, nil)))
	}

	count := 0
	require.NoError(t, store.IterateNodes(ctx, func(*Node) bool {
		count++
		return count < 2
	}))
	assert.Equal(t, 2, count)
}

func TestMemoryBackend_Release(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend(zerolog.Nop())
	require.NoError(t, store.CreateNode(ctx, newTestNode(1, "a", nil)))

	require.NoError(t, store.Release())

	count := 0
	require.NoError(t, store.IterateNodes(ctx, func(*Node) bool {
		count++
		return true
	}))
	assert.Zero(t, count)
}

func TestMemoryBackend_CancelledContext(t *testing.T) {
	store := NewMemoryBackend(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.CreateNode(ctx, newTestNode(1, "a", nil))
	assert.ErrorIs(t, err, context.Canceled)
}
