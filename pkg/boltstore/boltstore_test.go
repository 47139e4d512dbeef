package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-fieldbus/pkg/nodestore"
)

func openTestBackend(t *testing.T, path string) *Backend {
	t.Helper()
	backend, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	return backend
}

func TestBoltBackend_CreateReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	backend := openTestBackend(t, filepath.Join(t.TempDir(), "nodes.db"))
	defer backend.Release()

	node := &nodestore.Node{
		ID:          nodestore.NodeID{Namespace: 1, Name: "TestNode1"},
		DisplayName: "Test Node 1",
		Value:       "v1",
	}
	require.NoError(t, backend.CreateNode(ctx, node))

	err := backend.CreateNode(ctx, node)
	assert.ErrorIs(t, err, nodestore.ErrNodeExists)

	got, err := backend.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Value)
	assert.False(t, got.ModifiedAt.IsZero())

	got.Value = "v2"
	require.NoError(t, backend.WriteNode(ctx, got))
	got, err = backend.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)

	err = backend.WriteNode(ctx, &nodestore.Node{ID: nodestore.NodeID{Namespace: 1, Name: "absent"}})
	assert.ErrorIs(t, err, nodestore.ErrNodeNotFound)

	require.NoError(t, backend.DeleteNode(ctx, node.ID))
	_, err = backend.ReadNode(ctx, node.ID)
	assert.ErrorIs(t, err, nodestore.ErrNodeNotFound)
}

func TestBoltBackend_NamespacesAreSeparateBuckets(t *testing.T) {
	ctx := context.Background()
	backend := openTestBackend(t, filepath.Join(t.TempDir(), "nodes.db"))
	defer backend.Release()

	require.NoError(t, backend.CreateNode(ctx, &nodestore.Node{ID: nodestore.NodeID{Namespace: 1, Name: "a"}, Value: "ns1"}))
	require.NoError(t, backend.CreateNode(ctx, &nodestore.Node{ID: nodestore.NodeID{Namespace: 2, Name: "a"}, Value: "ns2"}))

	got, err := backend.ReadNode(ctx, nodestore.NodeID{Namespace: 2, Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "ns2", got.Value)
}

func TestBoltBackend_IterateStopsEarly(t *testing.T) {
	ctx := context.Background()
	backend := openTestBackend(t, filepath.Join(t.TempDir(), "nodes.db"))
	defer backend.Release()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, backend.CreateNode(ctx, &nodestore.Node{ID: nodestore.NodeID{Namespace: 1, Name: name}}))
	}

	count := 0
	require.NoError(t, backend.IterateNodes(ctx, func(*nodestore.Node) bool {
		count++
		return count < 2
	}))
	assert.Equal(t, 2, count)
}

// Nodes written through one server's switch survive Release and reappear
// when a successor opens the same file and relinks it.
func TestBoltBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nodes.db")

	first := openTestBackend(t, path)
	sw := nodestore.NewSwitch(nil, zerolog.Nop())
	sw.SetBackend(1, first)
	require.NoError(t, sw.CreateNode(ctx, &nodestore.Node{ID: nodestore.NodeID{Namespace: 1, Name: "persistent"}, Value: "kept"}))
	sw.SetBackend(1, nil)
	require.NoError(t, first.Release())

	second := openTestBackend(t, path)
	defer second.Release()
	successor := nodestore.NewSwitch(nil, zerolog.Nop())
	successor.SetBackend(1, second)

	got, err := successor.ReadNode(ctx, nodestore.NodeID{Namespace: 1, Name: "persistent"})
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Value)
}
