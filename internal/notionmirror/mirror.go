package notionmirror

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// Stats summarizes one mirror run.
type Stats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Skipped  int `json:"skipped"`
}

// Mirror reconciles the Notion database with the given records:
// confirmed valid records are created or updated, pages whose transaction id
// is no longer in the set are archived. Per-page failures are logged and do
// not abort the run.
func Mirror(ctx context.Context, client NotionService, databaseID string, records []*domain.PersistedTransaction, dryRun bool, log zerolog.Logger) (Stats, error) {
	var stats Stats

	// Only confirmed, valid records are mirrored.
	valid := make(map[string]*domain.PersistedTransaction)
	for _, rec := range records {
		if rec.Invalid || rec.State != domain.SyncStateRemoteConfirmed {
			stats.Skipped++
			continue
		}
		valid[rec.ID] = rec
	}

	pages, err := queryAllPages(ctx, client, databaseID)
	if err != nil {
		return stats, fmt.Errorf("notionmirror: querying pages: %w", err)
	}

	pageByTxID := make(map[string]notionapi.Page)
	for _, page := range pages {
		txID := extractTransactionID(page)

		// Pages without a transaction id or outside the valid set are stale.
		if txID == "" || valid[txID] == nil {
			if dryRun {
				log.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale page")
				stats.Archived++
				continue
			}
			if err := client.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale page")
				continue
			}
			stats.Archived++
			continue
		}
		pageByTxID[txID] = page
	}

	for id, rec := range valid {
		existing, exists := pageByTxID[id]

		if dryRun {
			if exists {
				log.Info().Str("transaction_id", id).Msg("[DRY RUN] Would update page")
				stats.Updated++
			} else {
				log.Info().Str("transaction_id", id).Msg("[DRY RUN] Would create page")
				stats.Created++
			}
			continue
		}

		props := RecordToProperties(rec)
		if exists {
			if _, err := client.UpdatePage(ctx, string(existing.ID), props); err != nil {
				log.Warn().Err(err).Str("transaction_id", id).Msg("Failed to update page")
				continue
			}
			stats.Updated++
		} else {
			if _, err := client.CreatePage(ctx, databaseID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", id).Msg("Failed to create page")
				continue
			}
			stats.Created++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("skipped", stats.Skipped).
		Msg("Notion mirror completed")
	return stats, nil
}

func queryAllPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
