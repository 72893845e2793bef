// Package inmemory implements the ingest queue on Go channels. It is
// suitable for a single-instance deployment; a multi-instance deployment
// would swap in a broker behind the same Publisher/Consumer interfaces.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smsledger/sms-ledger/internal/ingest"
)

const defaultMaxRetries = 3

// Queue is an in-memory publisher and consumer, safe for concurrent use.
type Queue struct {
	jobChan   chan *ingest.ProcessMessageJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	closed    bool
}

// NewQueue creates a queue. bufferSize bounds how many jobs can wait before
// PublishProcessMessage blocks; workers is the consumer pool size.
func NewQueue(bufferSize, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *ingest.ProcessMessageJob, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
	}
}

// PublishProcessMessage implements ingest.Publisher.
func (q *Queue) PublishProcessMessage(ctx context.Context, job *ingest.ProcessMessageJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("ingest queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = ingest.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("ingest queue is closed")
	}
}

// Start implements ingest.Consumer. It launches the worker pool; each job is
// handled by exactly one worker.
func (q *Queue) Start(ctx context.Context, handler ingest.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("ingest queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler ingest.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs the handler once and re-enqueues on failure until the
// retry budget is spent.
func (q *Queue) processJob(ctx context.Context, job *ingest.ProcessMessageJob, handler ingest.Handler) {
	job.Status = ingest.StatusRunning
	now := time.Now()
	job.StartedAt = &now

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = ingest.StatusCompleted
		job.Error = ""
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = ingest.StatusFailed
		return
	}

	job.RetryCount++
	job.Status = ingest.StatusRetrying

	backoff := time.Duration(job.RetryCount) * time.Second
	time.AfterFunc(backoff, func() {
		job.Status = ingest.StatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		_ = q.PublishProcessMessage(ctx, job)
	})
}

// Stop implements ingest.Consumer. It stops the workers and waits for
// in-flight jobs, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements ingest.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ ingest.Publisher = (*Queue)(nil)
var _ ingest.Consumer = (*Queue)(nil)
