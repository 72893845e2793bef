// Package ingest decouples message intake from pipeline processing: the
// message source publishes jobs and a worker pool consumes them, so slow
// persistence or network I/O never blocks the intake path.
package ingest

import (
	"context"
	"time"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// Status is the lifecycle state of one job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// ProcessMessageJob carries one raw message through the queue.
type ProcessMessageJob struct {
	JobID string `json:"job_id"`

	Message       domain.RawMessage `json:"message"`
	IsManualEntry bool              `json:"is_manual_entry"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Handler processes one job. A returned error means the job failed and
// should be retried up to its retry budget.
type Handler func(ctx context.Context, job *ProcessMessageJob) error

// Publisher is the intake side of the queue.
type Publisher interface {
	PublishProcessMessage(ctx context.Context, job *ProcessMessageJob) error
	Close() error
}

// Consumer is the worker side of the queue.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Stop(ctx context.Context) error
}
