// Command ingest replays a JSONL file of raw messages through the pipeline
// in one shot: one message object per line, then a final drain of anything
// the remote rejected along the way.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/smsledger/sms-ledger/internal/config"
	"github.com/smsledger/sms-ledger/internal/dedup"
	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/logger"
	"github.com/smsledger/sms-ledger/internal/pipeline"
	"github.com/smsledger/sms-ledger/internal/remote/bigquery"
	"github.com/smsledger/sms-ledger/internal/store/sqlite"
	"github.com/smsledger/sms-ledger/internal/syncer"
)

func main() {
	var (
		file   = flag.String("file", "", "JSONL file of raw messages, one object per line")
		manual = flag.Bool("manual", false, "mark every message as a manual entry")
	)
	flag.Parse()

	log := logger.New()

	if *file == "" {
		log.Fatal().Msg("-file is required")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	kv, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open local store")
	}
	defer kv.Close()

	remoteStore, err := bigquery.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID, cfg.BigQuery.TableID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create remote store")
	}
	defer remoteStore.Close()

	ledger := syncer.New(kv, remoteStore, syncer.NewDialProbe(cfg.Sync.ProbeAddr), nil, log,
		syncer.WithMaxAttempts(cfg.Sync.MaxAttempts),
		syncer.WithBaseDelay(cfg.Sync.BaseDelay),
	)
	pipe := pipeline.New(cfg.Sync.OwnerID, dedup.NewDetector(kv), ledger, nil, log)

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open input file")
	}
	defer f.Close()

	counts := make(map[pipeline.Outcome]int)
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg domain.RawMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Error().Err(err).Int("line", lineNo).Msg("Skipping malformed line")
			continue
		}

		res, err := pipe.Submit(ctx, msg, *manual)
		if err != nil {
			log.Error().Err(err).Int("line", lineNo).Msg("Message processing failed")
			continue
		}
		counts[res.Outcome]++
	}
	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("Reading input file failed")
	}

	drained, err := ledger.Drain(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Final drain failed")
	}

	remaining, err := ledger.QueueLength(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read queue length")
	}

	log.Info().
		Int("lines", lineNo).
		Int("processed", counts[pipeline.OutcomeProcessed]).
		Int("invalid", counts[pipeline.OutcomeInvalid]).
		Int("duplicates", counts[pipeline.OutcomeDuplicate]).
		Int("not_financial", counts[pipeline.OutcomeNotFinancial]).
		Int("extraction_misses", counts[pipeline.OutcomeExtractionMiss]).
		Int("empty", counts[pipeline.OutcomeEmpty]).
		Bool("drain_skipped", drained.Skipped).
		Int("still_queued", remaining).
		Msg("Ingest run complete")
}
