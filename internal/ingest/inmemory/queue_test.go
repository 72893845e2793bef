package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/ingest"
)

func newJob(content string) *ingest.ProcessMessageJob {
	return &ingest.ProcessMessageJob{
		Message: domain.RawMessage{
			Sender:     "HDFCBK",
			Content:    content,
			ReceivedAt: time.Now(),
		},
	}
}

func TestPublishAndConsume(t *testing.T) {
	q := NewQueue(8, 2)
	defer q.Close()
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[string]bool)
	done := make(chan struct{}, 3)

	err := q.Start(ctx, func(_ context.Context, job *ingest.ProcessMessageJob) error {
		mu.Lock()
		seen[job.Message.Content] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, content := range []string{"one", "two", "three"} {
		if err := q.PublishProcessMessage(ctx, newJob(content)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs not consumed in time")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("consumed %d distinct jobs, want 3", len(seen))
	}
}

func TestPublishFillsJobDefaults(t *testing.T) {
	q := NewQueue(1, 1)
	defer q.Close()

	job := newJob("hello")
	if err := q.PublishProcessMessage(context.Background(), job); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("job id not assigned")
	}
	if job.Status != ingest.StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if job.MaxRetries != defaultMaxRetries {
		t.Errorf("max retries = %d, want %d", job.MaxRetries, defaultMaxRetries)
	}
}

func TestExhaustedRetryBudgetMarksFailed(t *testing.T) {
	q := NewQueue(1, 1)
	defer q.Close()
	ctx := context.Background()

	done := make(chan *ingest.ProcessMessageJob, 1)
	err := q.Start(ctx, func(_ context.Context, job *ingest.ProcessMessageJob) error {
		defer func() { done <- job }()
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := newJob("doomed")
	job.RetryCount = defaultMaxRetries
	job.MaxRetries = defaultMaxRetries
	if err := q.PublishProcessMessage(ctx, job); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case j := <-done:
		// Give processJob a moment to finish its bookkeeping after the
		// handler returns.
		time.Sleep(50 * time.Millisecond)
		if j.Status != ingest.StatusFailed {
			t.Errorf("status = %s, want failed", j.Status)
		}
		if j.Error == "" {
			t.Error("error detail not recorded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never handled")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, 1)
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := q.PublishProcessMessage(context.Background(), newJob("late")); err == nil {
		t.Error("Publish succeeded on a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("Start succeeded on a closed queue")
	}
}

func TestStopWaitsForInFlightJob(t *testing.T) {
	q := NewQueue(1, 1)
	ctx := context.Background()

	started := make(chan struct{})
	finished := make(chan struct{})
	err := q.Start(ctx, func(context.Context, *ingest.ProcessMessageJob) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		close(finished)
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := q.PublishProcessMessage(ctx, newJob("slow")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	<-started

	if err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case <-finished:
	default:
		t.Error("Stop returned before the in-flight job finished")
	}
}
