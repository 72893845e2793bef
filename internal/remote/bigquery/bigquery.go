// Package bigquery implements remote.DocumentStore on a BigQuery table.
// Inserts carry the record id as the streaming insert id, so redelivering
// the same record during a retry storm does not duplicate rows.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/remote"
)

// TransactionRow is the persisted-record shape in the ledger table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	OwnerID       string `bigquery:"owner_id"`       // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC
	Type   string   `bigquery:"type"`   // DEBIT | CREDIT | UNKNOWN

	AccountRef bigquery.NullString `bigquery:"account_ref"` // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"`
	TransactionTime string     `bigquery:"transaction_time"` // HH:MM:SS

	SourceText string  `bigquery:"source_text"`
	SenderID   string  `bigquery:"sender_id"`
	Confidence float64 `bigquery:"confidence"`

	DedupHash     string              `bigquery:"dedup_hash"`
	IsManualEntry bool                `bigquery:"is_manual_entry"`
	Category      bigquery.NullString `bigquery:"category"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"`
}

// Store writes ledger records to one BigQuery table.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// New creates a Store with its own client.
func New(ctx context.Context, projectID, datasetID, tableID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery: creating client: %w", err)
	}
	return NewWithClient(client, projectID, datasetID, tableID), nil
}

// NewWithClient creates a Store over an existing client. Close closes the
// client.
func NewWithClient(client *bigquery.Client, projectID, datasetID, tableID string) *Store {
	return &Store{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}
}

// Write implements remote.DocumentStore.
func (s *Store) Write(ctx context.Context, rec domain.PersistedTransaction) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return fmt.Errorf("bigquery: %w: %v", remote.ErrPermanent, err)
	}

	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(s.tableID)
	saver := &bigquery.StructSaver{
		Struct:   row,
		InsertID: rec.ID,
	}
	if err := table.Inserter().Put(ctx, saver); err != nil {
		return fmt.Errorf("bigquery: inserting record %s: %w", rec.ID, err)
	}
	return nil
}

// ListByOwner reads all records for one owner, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*TransactionRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			owner_id,
			amount,
			type,
			account_ref,
			transaction_date,
			transaction_time,
			source_text,
			sender_id,
			confidence,
			dedup_hash,
			is_manual_entry,
			category,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE owner_id = @owner
		ORDER BY created_ts DESC
	`, s.projectID, s.datasetID, s.tableID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: reading query: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// Close implements remote.DocumentStore.
func (s *Store) Close() error {
	return s.client.Close()
}

func rowFromRecord(rec domain.PersistedTransaction) (*TransactionRow, error) {
	date, err := civil.ParseDate(rec.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", rec.Date, err)
	}

	row := &TransactionRow{
		TransactionID:   rec.ID,
		OwnerID:         rec.OwnerID,
		Amount:          rec.Amount.Rat(),
		Type:            rec.Type.String(),
		TransactionDate: date,
		TransactionTime: rec.Time,
		SourceText:      rec.SourceText,
		SenderID:        rec.SenderID,
		Confidence:      rec.Confidence,
		DedupHash:       rec.DedupHash,
		IsManualEntry:   rec.IsManualEntry,
		CreatedTS:       rec.CreatedAt,
	}
	if rec.AccountRef != nil {
		row.AccountRef = bigquery.NullString{StringVal: *rec.AccountRef, Valid: true}
	}
	if rec.Category != "" {
		row.Category = bigquery.NullString{StringVal: rec.Category, Valid: true}
	}
	return row, nil
}

var _ remote.DocumentStore = (*Store)(nil)
