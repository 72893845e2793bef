package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smsledger/sms-ledger/internal/api/handlers"
	"github.com/smsledger/sms-ledger/internal/api/middleware"
	"github.com/smsledger/sms-ledger/internal/config"
	"github.com/smsledger/sms-ledger/internal/dedup"
	"github.com/smsledger/sms-ledger/internal/enrich"
	"github.com/smsledger/sms-ledger/internal/events"
	"github.com/smsledger/sms-ledger/internal/ingest"
	ingestmem "github.com/smsledger/sms-ledger/internal/ingest/inmemory"
	"github.com/smsledger/sms-ledger/internal/logger"
	"github.com/smsledger/sms-ledger/internal/pipeline"
	"github.com/smsledger/sms-ledger/internal/remote/bigquery"
	"github.com/smsledger/sms-ledger/internal/store/sqlite"
	"github.com/smsledger/sms-ledger/internal/syncer"
)

func main() {
	log := logger.New()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Local store first: the process is useless without durability.
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

	bus := events.NewBus()
	defer bus.Close()

	// Surface lifecycle events in the logs.
	eventCh, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	go func() {
		for e := range eventCh {
			log.Debug().
				Str("kind", string(e.Kind)).
				Str("record_id", e.RecordID).
				Str("sender", e.SenderID).
				Str("detail", e.Detail).
				Msg("pipeline event")
		}
	}()

	ledger := syncer.New(kv, remoteStore, syncer.NewDialProbe(cfg.Sync.ProbeAddr), bus, log,
		syncer.WithMaxAttempts(cfg.Sync.MaxAttempts),
		syncer.WithBaseDelay(cfg.Sync.BaseDelay),
	)

	detector := dedup.NewDetector(kv)
	pipe := pipeline.New(cfg.Sync.OwnerID, detector, ledger, bus, log)

	// Ingest queue and its worker pool.
	queue := ingestmem.NewQueue(cfg.Ingest.BufferSize, cfg.Ingest.Workers)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *ingest.ProcessMessageJob) error {
		res, err := pipe.Submit(ctx, job.Message, job.IsManualEntry)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", job.JobID).
				Str("sender", job.Message.Sender).
				Msg("Message processing failed")
			return err
		}

		log.Info().
			Str("job_id", job.JobID).
			Str("outcome", string(res.Outcome)).
			Msg("Message processed")
		return nil
	}

	if err := queue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingest workers")
	}

	// Periodic drain of the offline queue.
	go func() {
		ticker := time.NewTicker(cfg.Sync.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				res, err := ledger.Drain(workerCtx)
				if err != nil {
					log.Error().Err(err).Msg("Drain cycle failed")
					continue
				}
				if !res.Skipped && res.Attempted > 0 {
					log.Info().
						Int("attempted", res.Attempted).
						Int("confirmed", res.Confirmed).
						Int("remaining", res.Remaining).
						Msg("Drain cycle completed")
				}
			}
		}
	}()

	// Category suggestions are optional; the endpoint reports 503 when off.
	var suggester handlers.CategorySuggester
	if cfg.Enrich.Enabled {
		svc, err := enrich.NewService(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Category suggestions disabled")
		} else {
			suggester = svc
		}
	}

	messagesHandler := handlers.NewMessagesHandler(queue, log)
	transactionsHandler := handlers.NewTransactionsHandler(ledger, log)
	syncHandler := handlers.NewSyncHandler(ledger, log)
	analyzeHandler := handlers.NewAnalyzeHandler(ledger, suggester, log)
	healthHandler := handlers.NewHealthHandler()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			messagesHandler.SubmitMessage(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/drain", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.DrainNow(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			analyzeHandler.Analyze(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			healthHandler.Health(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping ingest queue")
	}

	log.Info().Msg("Server exited")
}
