// Package remote defines the contract the sync manager requires from the
// remote document store, plus the failure classification that drives its
// retry decisions.
package remote

import (
	"context"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// DocumentStore is the minimum write contract the sync manager needs.
// Write is keyed by (owner, record id) and must be idempotent: writing the
// same record twice leaves one copy remotely.
type DocumentStore interface {
	Write(ctx context.Context, rec domain.PersistedTransaction) error
	Close() error
}
