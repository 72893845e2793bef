// Package store defines the local durable key-value store the pipeline
// persists into: transactions, queue entries and dedup records all live
// behind this interface. Implementations must survive process restart
// (sqlite) or be explicitly test-only (memory).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Entry is one key-value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// KV is a minimal durable key-value store with prefix listing.
// Implementations must be safe for concurrent use: the ingestion path and
// the queue-drain path access the same store from different goroutines.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// Key prefixes used by the pipeline. Kept in one place so the sqlite and
// memory implementations stay schema-free.
const (
	PrefixTransaction = "txn/"
	PrefixQueue       = "queue/"
	PrefixDedup       = "dedup/"
)
