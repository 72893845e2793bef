// Command export snapshots the local ledger as JSONL and uploads it to GCS,
// one object per run under exports/YYYY/MM/DD/.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/smsledger/sms-ledger/internal/archive"
	"github.com/smsledger/sms-ledger/internal/config"
	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/logger"
	"github.com/smsledger/sms-ledger/internal/store"
	"github.com/smsledger/sms-ledger/internal/store/sqlite"
)

func main() {
	var (
		bucket = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for the export (or set GCS_BUCKET env)")
		owner  = flag.String("owner", "", "export only this owner's records (default all)")
		stdout = flag.Bool("stdout", false, "write JSONL to stdout instead of uploading")
	)
	flag.Parse()

	log := logger.New()

	cfg := config.Load()
	ctx := context.Background()

	kv, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open local store")
	}
	defer kv.Close()

	records, err := loadRecords(ctx, kv, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load records")
	}

	if *stdout {
		if err := archive.WriteJSONL(os.Stdout, records); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	if *bucket == "" {
		log.Fatal().Msg("-bucket is required (or set GCS_BUCKET)")
	}

	uri, err := archive.Upload(ctx, *bucket, archive.ObjectName(time.Now()), records)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	log.Info().Int("records", len(records)).Str("uri", uri).Msg("Export complete")
}

func loadRecords(ctx context.Context, kv store.KV, owner string) ([]*domain.PersistedTransaction, error) {
	entries, err := kv.List(ctx, store.PrefixTransaction)
	if err != nil {
		return nil, err
	}

	var out []*domain.PersistedTransaction
	for _, e := range entries {
		var rec domain.PersistedTransaction
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			continue
		}
		if owner != "" && rec.OwnerID != owner {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}
