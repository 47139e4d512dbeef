//go:build integration

package redisstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/illmade-knight/go-fieldbus/pkg/nodestore"
	"github.com/illmade-knight/go-fieldbus/pkg/redisstore"
)

const (
	testRedisImage = "redis:7-alpine"
	testRedisPort  = "6379"
)

func setupRedisContainer(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        testRedisImage,
		ExposedPorts: []string{fmt.Sprintf("%s/tcp", testRedisPort)},
		WaitingFor:   wait.ForListeningPort(nat.Port(testRedisPort)).WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port(testRedisPort))
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisBackend_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	addr := setupRedisContainer(t, ctx)

	backend, err := redisstore.New(ctx, &redisstore.Config{Addr: addr}, zerolog.Nop())
	require.NoError(t, err)

	node := &nodestore.Node{
		ID:    nodestore.NodeID{Namespace: 1, Name: "TestNode1"},
		Value: "v1",
	}
	require.NoError(t, backend.CreateNode(ctx, node))
	err = backend.CreateNode(ctx, node)
	assert.ErrorIs(t, err, nodestore.ErrNodeExists)

	got, err := backend.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Value)

	got.Value = "v2"
	require.NoError(t, backend.WriteNode(ctx, got))
	got, err = backend.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)

	err = backend.WriteNode(ctx, &nodestore.Node{ID: nodestore.NodeID{Namespace: 1, Name: "absent"}})
	assert.ErrorIs(t, err, nodestore.ErrNodeNotFound)

	count := 0
	require.NoError(t, backend.IterateNodes(ctx, func(*nodestore.Node) bool {
		count++
		return true
	}))
	assert.Equal(t, 1, count)

	require.NoError(t, backend.DeleteNode(ctx, node.ID))
	_, err = backend.ReadNode(ctx, node.ID)
	assert.ErrorIs(t, err, nodestore.ErrNodeNotFound)

	// Data outlives this client: a second backend against the same database
	// sees nodes created before Release.
	require.NoError(t, backend.CreateNode(ctx, node))
	require.NoError(t, backend.Release())

	second, err := redisstore.New(ctx, &redisstore.Config{Addr: addr}, zerolog.Nop())
	require.NoError(t, err)
	defer second.Release()

	got, err = second.ReadNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Value)
}
