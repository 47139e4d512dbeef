// Package boltstore provides a bbolt-backed node storage backend. Nodes are
// stored as JSON, one bucket per namespace, so a backend survives process
// restarts and can be relinked into a fresh switch by a successor server
// instance.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/illmade-knight/go-fieldbus/pkg/nodestore"
)

// Backend implements nodestore.OwnedBackend on a bbolt database file.
type Backend struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// Open opens (or creates) the database file at path.
func Open(path string, logger zerolog.Logger) (*Backend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}
	log := logger.With().Str("component", "BoltBackend").Str("path", path).Logger()
	log.Info().Msg("Bolt backend opened")
	return &Backend{db: db, logger: log}, nil
}

func bucketName(namespace uint16) []byte {
	name := make([]byte, 2)
	binary.BigEndian.PutUint16(name, namespace)
	return name
}

// CreateNode stores a new node. Fails with nodestore.ErrNodeExists when the
// id is already taken.
func (b *Backend) CreateNode(ctx context.Context, node *nodestore.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := node.Clone()
	cp.ModifiedAt = time.Now().UTC()
	js, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal node %v: %w", node.ID, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName(node.ID.Namespace))
		if err != nil {
			return err
		}
		if bucket.Get([]byte(node.ID.Name)) != nil {
			return fmt.Errorf("%w: %v", nodestore.ErrNodeExists, node.ID)
		}
		return bucket.Put([]byte(node.ID.Name), js)
	})
}

// ReadNode returns the stored node.
func (b *Backend) ReadNode(ctx context.Context, id nodestore.NodeID) (*nodestore.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var node *nodestore.Node
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(id.Namespace))
		if bucket == nil {
			return fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, id)
		}
		js := bucket.Get([]byte(id.Name))
		if js == nil {
			return fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, id)
		}
		node = &nodestore.Node{}
		return json.Unmarshal(js, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// WriteNode replaces an existing node.
func (b *Backend) WriteNode(ctx context.Context, node *nodestore.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := node.Clone()
	cp.ModifiedAt = time.Now().UTC()
	js, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal node %v: %w", node.ID, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(node.ID.Namespace))
		if bucket == nil || bucket.Get([]byte(node.ID.Name)) == nil {
			return fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, node.ID)
		}
		return bucket.Put([]byte(node.ID.Name), js)
	})
}

// DeleteNode removes a node.
func (b *Backend) DeleteNode(ctx context.Context, id nodestore.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(id.Namespace))
		if bucket == nil || bucket.Get([]byte(id.Name)) == nil {
			return fmt.Errorf("%w: %v", nodestore.ErrNodeNotFound, id)
		}
		return bucket.Delete([]byte(id.Name))
	})
}

// errStopIteration ends a ForEach walk early without surfacing an error.
var errStopIteration = fmt.Errorf("stop iteration")

// IterateNodes visits every stored node, namespace bucket by namespace
// bucket, until the visitor returns false.
func (b *Backend) IterateNodes(ctx context.Context, visit func(*nodestore.Node) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, bucket *bolt.Bucket) error {
			return bucket.ForEach(func(_, js []byte) error {
				node := &nodestore.Node{}
				if err := json.Unmarshal(js, node); err != nil {
					return err
				}
				if !visit(node) {
					return errStopIteration
				}
				return nil
			})
		})
	})
	if err == errStopIteration {
		return nil
	}
	return err
}

// Release closes the database file. The data remains on disk; a later Open
// on the same path sees every node again.
func (b *Backend) Release() error {
	b.logger.Info().Msg("Bolt backend released")
	return b.db.Close()
}
