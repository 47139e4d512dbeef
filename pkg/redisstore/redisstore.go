// Package redisstore provides a Redis-backed node storage backend, useful
// when several server instances need to share one namespace's nodes. Nodes
// are stored as JSON values under fieldbus:node:<namespace>:<name>.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-fieldbus/pkg/nodestore"
)

const keyPrefix = "fieldbus:node:"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string // leave empty if no password
	DB       int
}

// Backend implements nodestore.OwnedBackend on a Redis database.
type Backend struct {
	client *redis.Client
	logger zerolog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log := logger.With().Str("component", "RedisBackend").Str("redis_address", cfg.Addr).Logger()
	log.Info().Msg("Connected to Redis node backend")
	return &Backend{client: rdb, logger: log}, nil
}

func nodeKey(id nodestore.NodeID) string {
	return fmt.Sprintf("%s%d:%s", keyPrefix, id.Namespace, id.Name)
}

func marshalNode(node *nodestore.Node) ([]byte, error) {
	cp := node.Clone()
	cp.ModifiedAt = time.Now().UTC()
	js, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node %v: %w", node.ID, err)
	}
	return js, nil
}

// CreateNode stores a new node. Fails with nodestore.ErrNodeExists when the
// id is already taken.
func (b *Backend) CreateNode(ctx context.Context, node *nodestore.Node) error {
	js, err := marshalNode(node)
	if err != nil {
		return err
	}
	set, err := b.client.SetNX(ctx, nodeKey(node.ID), js, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !set {
		return fmt.Errorf("%w: %v", nodestore.ErrNodeExists, node.ID)
	}
	return nil
}

// ReadNode returns the stored node.
func (b *Backend) ReadNode(ctx context.Context, id nodestore.NodeID) (*nodestore.Node, error) {
	js, err := b.client.Get(ctx, nodeKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	node := &nodestore.Node{}
	if err := json.Unmarshal([]byte(js), node); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node %v: %w", id, err)
	}
	return node, nil
}

// WriteNode replaces an existing node.
func (b *Backend) WriteNode(ctx context.Context, node *nodestore.Node) error {
	js, err := marshalNode(node)
	if err != nil {
		return err
	}
	set, err := b.client.SetXX(ctx, nodeKey(node.ID), js, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setxx failed: %w", err)
	}
	if !set {
		return fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, node.ID)
	}
	return nil
}

// DeleteNode removes a node.
func (b *Backend) DeleteNode(ctx context.Context, id nodestore.NodeID) error {
	n, err := b.client.Del(ctx, nodeKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, id)
	}
	return nil
}

// IterateNodes scans all node keys and visits each stored node until the
// visitor returns false.
func (b *Backend) IterateNodes(ctx context.Context, visit func(*nodestore.Node) bool) error {
	iter := b.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		js, err := b.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and get
		}
		if err != nil {
			return fmt.Errorf("redis get failed for %s: %w", key, err)
		}
		node := &nodestore.Node{}
		if err := json.Unmarshal([]byte(js), node); err != nil {
			return fmt.Errorf("failed to unmarshal node at %s: %w", key, err)
		}
		if !visit(node) {
			return nil
		}
	}
	return iter.Err()
}

// Release closes the Redis client. The data stays in Redis; a later New
// against the same database sees every node again.
func (b *Backend) Release() error {
	b.logger.Info().Msg("Redis backend released")
	return b.client.Close()
}
