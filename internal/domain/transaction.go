package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement described by a message.
type TransactionType int32

const (
	TransactionTypeUnknown = TransactionType(0)
	TransactionTypeDebit   = TransactionType(1)
	TransactionTypeCredit  = TransactionType(2)
)

// String returns the canonical name used in persisted rows and API payloads.
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDebit:
		return "DEBIT"
	case TransactionTypeCredit:
		return "CREDIT"
	default:
		return "UNKNOWN"
	}
}

// ParseTransactionType is the inverse of String. Unrecognized values map to
// TransactionTypeUnknown.
func ParseTransactionType(s string) TransactionType {
	switch s {
	case "DEBIT":
		return TransactionTypeDebit
	case "CREDIT":
		return TransactionTypeCredit
	default:
		return TransactionTypeUnknown
	}
}

// RawMessage is one notification as delivered by the message source.
// It is immutable: created at ingestion, never mutated, and discarded after
// the pipeline has processed it.
type RawMessage struct {
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"received_at"`
	ThreadID   *string   `json:"thread_id,omitempty"`
}

// ExtractedTransaction is the assembler output: one structured record per
// successfully detected financial message. Immutable after creation.
type ExtractedTransaction struct {
	Amount     decimal.Decimal `json:"amount"`
	Type       TransactionType `json:"type"`
	AccountRef *string         `json:"account_ref,omitempty"`
	Date       string          `json:"date"` // ISO-8601, YYYY-MM-DD
	Time       string          `json:"time"` // 24h HH:MM:SS
	SourceText string          `json:"source_text"`
	SenderID   string          `json:"sender_id"`
	Confidence float64         `json:"confidence"` // [0,1]
}

// SyncState tracks a persisted record through the delivery state machine.
type SyncState string

const (
	SyncStateCreated          SyncState = "CREATED"
	SyncStateLocallyPersisted SyncState = "LOCALLY_PERSISTED"
	SyncStateQueuedForRetry   SyncState = "QUEUED_FOR_RETRY"
	SyncStateRemoteConfirmed  SyncState = "REMOTE_CONFIRMED"
)

// PersistedTransaction is an ExtractedTransaction plus the bookkeeping added
// at first persistence. Owned by the sync manager until handed to a store.
// Synced flips false→true exactly once and never reverts.
type PersistedTransaction struct {
	ExtractedTransaction

	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	CreatedAt     time.Time `json:"created_at"`
	Synced        bool      `json:"synced"`
	State         SyncState `json:"state"`
	DedupHash     string    `json:"dedup_hash"`
	IsManualEntry bool      `json:"is_manual_entry"`

	// Category is filled in after the fact by enrichment, never by the
	// extraction pipeline itself.
	Category string `json:"category,omitempty"`

	// Invalid marks a record that failed validation and is kept only for
	// manual correction. Invalid records are never synced.
	Invalid          bool     `json:"invalid,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// DedupRecord is one entry in the processed-message set.
type DedupRecord struct {
	Hash        string    `json:"hash"`
	ProcessedAt time.Time `json:"processed_at"`
}
