// Command sync-notion mirrors remotely confirmed transactions into a Notion
// database. The run is idempotent: pages are created, updated or archived
// until the database matches the local ledger.
package main

import (
	"context"
	"encoding/json"
	"flag"

	"github.com/smsledger/sms-ledger/internal/config"
	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/logger"
	"github.com/smsledger/sms-ledger/internal/notionmirror"
	"github.com/smsledger/sms-ledger/internal/store"
	"github.com/smsledger/sms-ledger/internal/store/sqlite"
)

func main() {
	var (
		owner  = flag.String("owner", "", "mirror only this owner's records (default all)")
		dryRun = flag.Bool("dry-run", false, "report what would change without touching Notion")
	)
	flag.Parse()

	log := logger.New()

	cfg := config.Load()
	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_DATABASE_ID are required")
	}

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
	log.Info().Int("records", len(records)).Bool("dry_run", *dryRun).Msg("Starting Notion mirror")

	client := notionmirror.NewClient(cfg.Notion.Token)
	stats, err := notionmirror.Mirror(ctx, client, cfg.Notion.DatabaseID, records, *dryRun, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Mirror failed")
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("skipped", stats.Skipped).
		Msg("Mirror complete")
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
