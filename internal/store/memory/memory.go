// Package memory provides an in-memory KV implementation.
// Data is lost on restart; intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/smsledger/sms-ledger/internal/store"
)

// Store is an in-memory implementation of store.KV, safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put implements store.KV.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid external modifications.
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Get implements store.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Delete implements store.KV. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// List implements store.KV, returning entries sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Entry
	for k, v := range s.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		val := make([]byte, len(v))
		copy(val, v)
		out = append(out, store.Entry{Key: k, Value: val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close implements store.KV.
func (s *Store) Close() error {
	return nil
}

var _ store.KV = (*Store)(nil)
