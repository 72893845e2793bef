// Package syncer owns at-least-once delivery of transaction records to the
// remote store: local durability first, a bounded retry with exponential
// backoff, and a durable offline queue drained when connectivity returns.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/events"
	"github.com/smsledger/sms-ledger/internal/remote"
	"github.com/smsledger/sms-ledger/internal/store"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Connectivity reports whether the remote store is reachable. Drain skips a
// cycle entirely when it is not.
type Connectivity interface {
	Reachable(ctx context.Context) bool
}

// QueueEntry is the durable record of one queued sync, kept for diagnostic
// visibility alongside the transaction itself.
type QueueEntry struct {
	RecordID     string    `json:"record_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error,omitempty"`
	FailureClass string    `json:"failure_class,omitempty"`
}

// Manager drives the record state machine
// Created -> LocallyPersisted -> {RemoteConfirmed | QueuedForRetry},
// with QueuedForRetry -> RemoteConfirmed on a later successful drain.
// RemoteConfirmed is terminal; a record never regresses from it.
type Manager struct {
	kv     store.KV
	remote remote.DocumentStore
	conn   Connectivity
	bus    *events.Bus
	log    zerolog.Logger

	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// Option adjusts Manager construction.
type Option func(*Manager)

// WithMaxAttempts overrides the per-sync retry budget.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

// WithBaseDelay overrides the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(m *Manager) { m.baseDelay = d }
}

// New creates a Manager. kv and remote are required; conn may be nil, in
// which case the remote is assumed reachable.
func New(kv store.KV, rem remote.DocumentStore, conn Connectivity, bus *events.Bus, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		kv:          kv,
		remote:      rem,
		conn:        conn,
		bus:         bus,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       sleepCtx,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process takes a freshly assembled record through the state machine.
// Local persistence must succeed before any network I/O; its failure is the
// only error returned. Remote failures are absorbed into the queue.
// Invalid records are persisted for manual correction but never synced.
func (m *Manager) Process(ctx context.Context, rec *domain.PersistedTransaction) error {
	rec.State = domain.SyncStateCreated

	rec.State = domain.SyncStateLocallyPersisted
	if err := m.saveRecord(ctx, rec); err != nil {
		rec.State = domain.SyncStateCreated
		return fmt.Errorf("syncer: local persist %s: %w", rec.ID, err)
	}

	if rec.Invalid {
		return nil
	}

	m.syncOne(ctx, rec)
	return nil
}

// syncOne attempts remote delivery with the bounded retry and settles the
// record in RemoteConfirmed or QueuedForRetry.
func (m *Manager) syncOne(ctx context.Context, rec *domain.PersistedTransaction) {
	attempts, lastErr := m.attemptRemote(ctx, rec)
	if lastErr == nil {
		m.confirm(ctx, rec)
		return
	}
	m.enqueue(ctx, rec, attempts, lastErr)
}

// attemptRemote runs up to maxAttempts writes, doubling the delay between
// transient failures. Permanent failures short-circuit: retrying is futile.
func (m *Manager) attemptRemote(ctx context.Context, rec *domain.PersistedTransaction) (int, error) {
	delay := m.baseDelay
	var lastErr error

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		lastErr = m.remote.Write(ctx, *rec)
		if lastErr == nil {
			return attempt, nil
		}

		class := remote.Classify(lastErr)
		m.log.Warn().
			Err(lastErr).
			Str("record_id", rec.ID).
			Int("attempt", attempt).
			Str("failure_class", class.String()).
			Msg("remote write failed")

		if class == remote.FailurePermanent {
			return attempt, lastErr
		}
		if attempt == m.maxAttempts {
			break
		}
		if err := m.sleep(ctx, delay); err != nil {
			return attempt, lastErr
		}
		delay *= 2
	}
	return m.maxAttempts, lastErr
}

func (m *Manager) confirm(ctx context.Context, rec *domain.PersistedTransaction) {
	rec.State = domain.SyncStateRemoteConfirmed
	rec.Synced = true
	if err := m.saveRecord(ctx, rec); err != nil {
		// The remote has the record; the local flag catches up on the
		// next drain because confirm is idempotent.
		m.log.Error().Err(err).Str("record_id", rec.ID).Msg("persisting confirmed state failed")
		return
	}
	if err := m.kv.Delete(ctx, store.PrefixQueue+rec.ID); err != nil {
		m.log.Error().Err(err).Str("record_id", rec.ID).Msg("removing queue entry failed")
	}
	m.publish(events.Event{Kind: events.KindSyncCompleted, RecordID: rec.ID, OwnerID: rec.OwnerID})
	m.log.Info().Str("record_id", rec.ID).Msg("record confirmed remotely")
}

func (m *Manager) enqueue(ctx context.Context, rec *domain.PersistedTransaction, attempts int, cause error) {
	rec.State = domain.SyncStateQueuedForRetry
	if err := m.saveRecord(ctx, rec); err != nil {
		m.log.Error().Err(err).Str("record_id", rec.ID).Msg("persisting queued state failed")
	}

	entry := QueueEntry{
		RecordID:     rec.ID,
		EnqueuedAt:   m.now(),
		Attempts:     attempts,
		LastError:    cause.Error(),
		FailureClass: remote.Classify(cause).String(),
	}
	raw, err := json.Marshal(entry)
	if err == nil {
		err = m.kv.Put(ctx, store.PrefixQueue+rec.ID, raw)
	}
	if err != nil {
		m.log.Error().Err(err).Str("record_id", rec.ID).Msg("persisting queue entry failed")
	}

	m.publish(events.Event{
		Kind:     events.KindQueued,
		RecordID: rec.ID,
		OwnerID:  rec.OwnerID,
		Detail:   entry.FailureClass,
	})
	m.log.Info().
		Str("record_id", rec.ID).
		Int("attempts", attempts).
		Str("failure_class", entry.FailureClass).
		Msg("record queued for retry")
}

// DrainResult summarizes one drain cycle.
type DrainResult struct {
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Confirmed int  `json:"confirmed"`
	Remaining int  `json:"remaining"`
}

// Drain re-attempts every queued entry. When connectivity is absent the
// cycle is skipped without touching the queue. Failures stay queued for the
// next cycle; there is no backoff escalation across cycles.
func (m *Manager) Drain(ctx context.Context) (DrainResult, error) {
	if m.conn != nil && !m.conn.Reachable(ctx) {
		m.log.Debug().Msg("drain skipped, remote unreachable")
		return DrainResult{Skipped: true}, nil
	}

	entries, err := m.kv.List(ctx, store.PrefixQueue)
	if err != nil {
		return DrainResult{}, fmt.Errorf("syncer: listing queue: %w", err)
	}

	var res DrainResult
	for _, e := range entries {
		var entry QueueEntry
		if err := json.Unmarshal(e.Value, &entry); err != nil {
			m.log.Error().Err(err).Str("key", e.Key).Msg("corrupt queue entry, removing")
			_ = m.kv.Delete(ctx, e.Key)
			continue
		}

		rec, err := m.Get(ctx, entry.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			// Queue entry without a record is an orphan.
			_ = m.kv.Delete(ctx, e.Key)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("syncer: loading queued record %s: %w", entry.RecordID, err)
		}
		if rec.State == domain.SyncStateRemoteConfirmed {
			_ = m.kv.Delete(ctx, e.Key)
			continue
		}

		res.Attempted++
		m.syncOne(ctx, rec)
		if rec.State == domain.SyncStateRemoteConfirmed {
			res.Confirmed++
		} else {
			res.Remaining++
		}

		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
	return res, nil
}

// saveRecord writes the record under the transaction prefix.
func (m *Manager) saveRecord(ctx context.Context, rec *domain.PersistedTransaction) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return m.kv.Put(ctx, store.PrefixTransaction+rec.ID, raw)
}

// Get loads one record from the local store.
func (m *Manager) Get(ctx context.Context, id string) (*domain.PersistedTransaction, error) {
	raw, err := m.kv.Get(ctx, store.PrefixTransaction+id)
	if err != nil {
		return nil, err
	}
	var rec domain.PersistedTransaction
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("syncer: unmarshal record %s: %w", id, err)
	}
	return &rec, nil
}

// Save persists a record update outside the state machine, for callers such
// as enrichment that annotate already-persisted records.
func (m *Manager) Save(ctx context.Context, rec *domain.PersistedTransaction) error {
	return m.saveRecord(ctx, rec)
}

// ListByOwner returns the read model: every locally persisted record for an
// owner, in store key order.
func (m *Manager) ListByOwner(ctx context.Context, ownerID string) ([]*domain.PersistedTransaction, error) {
	entries, err := m.kv.List(ctx, store.PrefixTransaction)
	if err != nil {
		return nil, fmt.Errorf("syncer: listing records: %w", err)
	}

	var out []*domain.PersistedTransaction
	for _, e := range entries {
		var rec domain.PersistedTransaction
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			m.log.Error().Err(err).Str("key", e.Key).Msg("corrupt record skipped")
			continue
		}
		if ownerID != "" && rec.OwnerID != ownerID {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// QueueLength reports how many records await the next drain.
func (m *Manager) QueueLength(ctx context.Context) (int, error) {
	entries, err := m.kv.List(ctx, store.PrefixQueue)
	if err != nil {
		return 0, fmt.Errorf("syncer: listing queue: %w", err)
	}
	return len(entries), nil
}

func (m *Manager) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
