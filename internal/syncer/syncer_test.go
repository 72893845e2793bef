package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"

	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/events"
	"github.com/smsledger/sms-ledger/internal/logger"
	"github.com/smsledger/sms-ledger/internal/store"
	"github.com/smsledger/sms-ledger/internal/store/memory"
)

type fakeRemote struct {
	mu        sync.Mutex
	writeFunc func(rec domain.PersistedTransaction) error
	writes    []domain.PersistedTransaction
}

func (f *fakeRemote) Write(_ context.Context, rec domain.PersistedTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, rec)
	if f.writeFunc != nil {
		return f.writeFunc(rec)
	}
	return nil
}

func (f *fakeRemote) Close() error { return nil }

func (f *fakeRemote) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newTestManager(t *testing.T, rem *fakeRemote, conn Connectivity) (*Manager, *memory.Store, *[]time.Duration) {
	t.Helper()
	kv := memory.NewStore()
	m := New(kv, rem, conn, nil, logger.Nop(), WithBaseDelay(time.Millisecond))

	var slept []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, kv, &slept
}

func testRecord(id string) *domain.PersistedTransaction {
	return &domain.PersistedTransaction{
		ExtractedTransaction: domain.ExtractedTransaction{
			Amount:     decimal.NewFromInt(1500),
			Type:       domain.TransactionTypeDebit,
			Date:       "2024-12-15",
			Time:       "10:00:00",
			SourceText: "Rs. 1500 debited",
			SenderID:   "HDFCBK",
			Confidence: 0.9,
		},
		ID:      id,
		OwnerID: "owner-1",
	}
}

func TestProcessConfirmsOnFirstSuccess(t *testing.T) {
	rem := &fakeRemote{}
	m, kv, slept := newTestManager(t, rem, nil)
	ctx := context.Background()

	rec := testRecord("rec-1")
	if err := m.Process(ctx, rec); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if rec.State != domain.SyncStateRemoteConfirmed || !rec.Synced {
		t.Errorf("state = %s synced = %v, want confirmed", rec.State, rec.Synced)
	}
	if rem.writeCount() != 1 {
		t.Errorf("remote writes = %d, want 1", rem.writeCount())
	}
	if len(*slept) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", *slept)
	}

	stored, err := m.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != domain.SyncStateRemoteConfirmed {
		t.Errorf("stored state = %s", stored.State)
	}

	if _, err := kv.Get(ctx, store.PrefixQueue+"rec-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("queue entry exists for a confirmed record")
	}
}

func TestProcessRetriesTransientThenConfirms(t *testing.T) {
	calls := 0
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: 503}
		}
		return nil
	}}
	m, _, slept := newTestManager(t, rem, nil)

	rec := testRecord("rec-2")
	if err := m.Process(context.Background(), rec); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if rec.State != domain.SyncStateRemoteConfirmed {
		t.Errorf("state = %s, want confirmed after retries", rec.State)
	}
	if calls != 3 {
		t.Errorf("remote writes = %d, want 3", calls)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff delays = %v, want %v", *slept, want)
	}
}

func TestProcessQueuesAfterRetryExhaustion(t *testing.T) {
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		return &googleapi.Error{Code: 503}
	}}
	m, kv, _ := newTestManager(t, rem, nil)
	ctx := context.Background()

	rec := testRecord("rec-3")
	if err := m.Process(ctx, rec); err != nil {
		t.Fatalf("Process returned error for a remote-only failure: %v", err)
	}

	if rec.State != domain.SyncStateQueuedForRetry {
		t.Errorf("state = %s, want queued", rec.State)
	}
	if rem.writeCount() != 3 {
		t.Errorf("remote writes = %d, want the full budget of 3", rem.writeCount())
	}
	if _, err := kv.Get(ctx, store.PrefixQueue+"rec-3"); err != nil {
		t.Errorf("queue entry missing: %v", err)
	}
	if n, _ := m.QueueLength(ctx); n != 1 {
		t.Errorf("QueueLength = %d, want 1", n)
	}
}

func TestPermanentFailureShortCircuits(t *testing.T) {
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		return &googleapi.Error{Code: 403}
	}}
	m, kv, slept := newTestManager(t, rem, nil)
	ctx := context.Background()

	rec := testRecord("rec-4")
	if err := m.Process(ctx, rec); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if rem.writeCount() != 1 {
		t.Errorf("remote writes = %d, want 1 (no retries on permanent failure)", rem.writeCount())
	}
	if len(*slept) != 0 {
		t.Errorf("unexpected sleeps on permanent failure: %v", *slept)
	}
	if rec.State != domain.SyncStateQueuedForRetry {
		t.Errorf("state = %s, want queued for diagnostic visibility", rec.State)
	}

	raw, err := kv.Get(ctx, store.PrefixQueue+"rec-4")
	if err != nil {
		t.Fatalf("queue entry missing: %v", err)
	}
	if want := `"failure_class":"permanent"`; !strings.Contains(string(raw), want) {
		t.Errorf("queue entry %s missing %s", raw, want)
	}
}

func TestQueuedRecordConfirmedOnDrain(t *testing.T) {
	fail := true
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		if fail {
			return &googleapi.Error{Code: 503}
		}
		return nil
	}}
	m, kv, _ := newTestManager(t, rem, nil)
	ctx := context.Background()

	rec := testRecord("rec-5")
	if err := m.Process(ctx, rec); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rec.State != domain.SyncStateQueuedForRetry {
		t.Fatalf("state = %s, want queued before drain", rec.State)
	}

	fail = false
	res, err := m.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if res.Attempted != 1 || res.Confirmed != 1 || res.Remaining != 0 {
		t.Errorf("Drain result = %+v, want 1 attempted, 1 confirmed", res)
	}

	stored, err := m.Get(ctx, "rec-5")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != domain.SyncStateRemoteConfirmed || !stored.Synced {
		t.Errorf("stored record = state %s synced %v, want confirmed", stored.State, stored.Synced)
	}
	if _, err := kv.Get(ctx, store.PrefixQueue+"rec-5"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("queue entry not removed after successful drain")
	}
}

func TestDrainLeavesFailuresQueued(t *testing.T) {
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		return &googleapi.Error{Code: 503}
	}}
	m, _, _ := newTestManager(t, rem, nil)
	ctx := context.Background()

	if err := m.Process(ctx, testRecord("rec-6")); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	res, err := m.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if res.Attempted != 1 || res.Confirmed != 0 || res.Remaining != 1 {
		t.Errorf("Drain result = %+v, want the record still queued", res)
	}
	if n, _ := m.QueueLength(ctx); n != 1 {
		t.Errorf("QueueLength = %d, want 1", n)
	}
}

func TestDrainSkippedWhenUnreachable(t *testing.T) {
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		return &googleapi.Error{Code: 503}
	}}
	m, _, _ := newTestManager(t, rem, Static(false))
	ctx := context.Background()

	if err := m.Process(ctx, testRecord("rec-7")); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	before := rem.writeCount()

	res, err := m.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !res.Skipped {
		t.Errorf("Drain result = %+v, want skipped", res)
	}
	if rem.writeCount() != before {
		t.Errorf("remote was called during a skipped drain")
	}
}

func TestLocalPersistPrecedesRemote(t *testing.T) {
	rem := &fakeRemote{}
	kv := &failingKV{KV: memory.NewStore(), putErr: errors.New("disk full")}
	m := New(kv, rem, nil, nil, logger.Nop())

	err := m.Process(context.Background(), testRecord("rec-8"))
	if err == nil {
		t.Fatal("Process succeeded despite local persistence failure")
	}
	if rem.writeCount() != 0 {
		t.Errorf("remote write attempted before local durability")
	}
}

func TestInvalidRecordPersistedButNeverSynced(t *testing.T) {
	rem := &fakeRemote{}
	m, _, _ := newTestManager(t, rem, nil)
	ctx := context.Background()

	rec := testRecord("rec-9")
	rec.Invalid = true
	rec.ValidationErrors = []string{"amount must be positive"}

	if err := m.Process(ctx, rec); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rem.writeCount() != 0 {
		t.Errorf("invalid record was sent to the remote store")
	}

	stored, err := m.Get(ctx, "rec-9")
	if err != nil {
		t.Fatalf("invalid record not persisted locally: %v", err)
	}
	if !stored.Invalid || stored.State != domain.SyncStateLocallyPersisted {
		t.Errorf("stored record = invalid %v state %s", stored.Invalid, stored.State)
	}
}

func TestSyncEventsPublished(t *testing.T) {
	rem := &fakeRemote{writeFunc: func(domain.PersistedTransaction) error {
		return &googleapi.Error{Code: 503}
	}}
	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	kv := memory.NewStore()
	m := New(kv, rem, nil, bus, logger.Nop(), WithBaseDelay(time.Millisecond))
	m.sleep = func(context.Context, time.Duration) error { return nil }
	ctx := context.Background()

	if err := m.Process(ctx, testRecord("rec-10")); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	e := <-ch
	if e.Kind != events.KindQueued {
		t.Errorf("event = %s, want queued", e.Kind)
	}

	rem.mu.Lock()
	rem.writeFunc = nil
	rem.mu.Unlock()
	if _, err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	e = <-ch
	if e.Kind != events.KindSyncCompleted {
		t.Errorf("event = %s, want sync_completed", e.Kind)
	}
}

func TestListByOwnerFilters(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRemote{}, nil)
	ctx := context.Background()

	a := testRecord("rec-a")
	b := testRecord("rec-b")
	b.OwnerID = "owner-2"
	for _, rec := range []*domain.PersistedTransaction{a, b} {
		if err := m.Process(ctx, rec); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
	}

	got, err := m.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "rec-a" {
		t.Errorf("ListByOwner = %d records, want only rec-a", len(got))
	}

	all, err := m.ListByOwner(ctx, "")
	if err != nil {
		t.Fatalf("ListByOwner(all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListByOwner(all) = %d records, want 2", len(all))
	}
}

type failingKV struct {
	store.KV
	putErr error
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.KV.Put(ctx, key, value)
}
