// Package archive exports the local ledger as JSONL and uploads snapshots
// to a GCS bucket, one object per export run.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// WriteJSONL streams the records to w, one JSON object per line.
func WriteJSONL(w io.Writer, records []*domain.PersistedTransaction) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("archive: encoding record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// ObjectName builds the export object path for one run, e.g.
// "exports/2024/12/18/ledger-20241218T143045Z.jsonl".
func ObjectName(at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("exports/%s/ledger-%s.jsonl",
		at.Format("2006/01/02"), at.Format("20060102T150405Z"))
}

// Upload writes the records to gs://bucket/objectName. It assumes
// Application Default Credentials are configured.
func Upload(ctx context.Context, bucketName, objectName string, records []*domain.PersistedTransaction) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("archive: create storage client: %w", err)
	}
	defer client.Close()

	return UploadWithClient(ctx, client, bucketName, objectName, records)
}

// UploadWithClient writes the records using the provided storage client.
func UploadWithClient(ctx context.Context, client *storage.Client, bucketName, objectName string, records []*domain.PersistedTransaction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	if err := WriteJSONL(w, records); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
