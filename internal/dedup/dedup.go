// Package dedup recognizes redelivered or re-ingested identical messages by
// hashing (sender, content, receipt time) and keeping the processed hashes
// in the local durable store.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/store"
)

// DefaultRetention is how long processed hashes are kept before purge.
const DefaultRetention = 90 * 24 * time.Hour

// Hash returns a deterministic digest over the exact concatenation of
// sender, content and the receipt time in milliseconds. Any change to any of
// the three inputs changes the hash.
func Hash(sender, content string, receivedAt time.Time) string {
	sum := sha256.Sum256([]byte(sender + content + strconv.FormatInt(receivedAt.UnixMilli(), 10)))
	return hex.EncodeToString(sum[:])
}

// Detector is the stateful duplicate check. The check-then-mark sequence for
// one message is made atomic with respect to concurrent identical messages
// by a reservation set guarded by a single mutex: Reserve wins for exactly
// one caller per hash until MarkProcessed or Release.
type Detector struct {
	mu       sync.Mutex
	kv       store.KV
	inFlight map[string]bool
	now      func() time.Time
}

// NewDetector creates a detector over an initialized store.
// A nil store is a programmer error and panics immediately rather than
// failing on first use.
func NewDetector(kv store.KV) *Detector {
	if kv == nil {
		panic("dedup: NewDetector called with nil store")
	}
	return &Detector{
		kv:       kv,
		inFlight: make(map[string]bool),
		now:      time.Now,
	}
}

// ensureReady guards against use of a zero-value Detector.
func (d *Detector) ensureReady() {
	if d.kv == nil {
		panic("dedup: detector used before initialization")
	}
}

// IsDuplicate reports whether the hash has already been marked processed.
func (d *Detector) IsDuplicate(ctx context.Context, hash string) (bool, error) {
	d.ensureReady()

	_, err := d.kv.Get(ctx, store.PrefixDedup+hash)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup: lookup %s: %w", hash, err)
	}
	return true, nil
}

// Reserve atomically checks the processed set and claims the hash for the
// caller. It returns false when the hash is already processed or another
// caller currently holds the reservation; in either case the message must
// be treated as a duplicate.
func (d *Detector) Reserve(ctx context.Context, hash string) (bool, error) {
	d.ensureReady()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inFlight[hash] {
		return false, nil
	}

	_, err := d.kv.Get(ctx, store.PrefixDedup+hash)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("dedup: lookup %s: %w", hash, err)
	}

	d.inFlight[hash] = true
	return true, nil
}

// MarkProcessed persists the hash and releases its reservation. Idempotent.
func (d *Detector) MarkProcessed(ctx context.Context, hash string) error {
	d.ensureReady()

	rec := domain.DedupRecord{Hash: hash, ProcessedAt: d.now()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("dedup: marshal record: %w", err)
	}
	if err := d.kv.Put(ctx, store.PrefixDedup+hash, raw); err != nil {
		return fmt.Errorf("dedup: persist %s: %w", hash, err)
	}

	d.mu.Lock()
	delete(d.inFlight, hash)
	d.mu.Unlock()
	return nil
}

// Release drops a reservation without marking the hash processed, for when
// processing fails after Reserve and the message should stay eligible.
func (d *Detector) Release(hash string) {
	d.ensureReady()

	d.mu.Lock()
	delete(d.inFlight, hash)
	d.mu.Unlock()
}

// PurgeOlderThan removes processed entries older than the retention window
// and returns how many were deleted.
func (d *Detector) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	d.ensureReady()

	entries, err := d.kv.List(ctx, store.PrefixDedup)
	if err != nil {
		return 0, fmt.Errorf("dedup: list: %w", err)
	}

	cutoff := d.now().Add(-retention)
	purged := 0
	for _, e := range entries {
		var rec domain.DedupRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			// Unreadable entry: purge it rather than keep it forever.
			rec.ProcessedAt = time.Time{}
		}
		if rec.ProcessedAt.After(cutoff) {
			continue
		}
		if err := d.kv.Delete(ctx, e.Key); err != nil {
			return purged, fmt.Errorf("dedup: purge %s: %w", e.Key, err)
		}
		purged++
	}
	return purged, nil
}
