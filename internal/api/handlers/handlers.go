// Package handlers implements the HTTP endpoints: message submission, the
// transaction read model, queue draining, category analysis and health.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smsledger/sms-ledger/internal/api/middleware"
	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/ingest"
	"github.com/smsledger/sms-ledger/internal/syncer"
)

// MessagesHandler accepts raw messages from the automatic source and the
// manual-entry path and hands them to the ingestion queue.
type MessagesHandler struct {
	publisher ingest.Publisher
	log       zerolog.Logger
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(publisher ingest.Publisher, log zerolog.Logger) *MessagesHandler {
	return &MessagesHandler{publisher: publisher, log: log}
}

type submitMessageRequest struct {
	Sender        string     `json:"sender"`
	Content       string     `json:"content"`
	ReceivedAt    *time.Time `json:"received_at,omitempty"`
	ThreadID      *string    `json:"thread_id,omitempty"`
	IsManualEntry bool       `json:"is_manual_entry,omitempty"`
}

// SubmitMessage handles POST /api/messages. Processing is asynchronous; the
// response only acknowledges intake.
func (h *MessagesHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Sender == "" {
		middleware.WriteError(w, http.StatusBadRequest, "sender is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "content is required")
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	job := &ingest.ProcessMessageJob{
		Message: domain.RawMessage{
			Sender:     req.Sender,
			Content:    req.Content,
			ReceivedAt: receivedAt,
			ThreadID:   req.ThreadID,
		},
		IsManualEntry: req.IsManualEntry,
	}

	if err := h.publisher.PublishProcessMessage(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue message")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue message")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// TransactionsHandler exposes the read model of persisted records.
type TransactionsHandler struct {
	ledger *syncer.Manager
	log    zerolog.Logger
}

// NewTransactionsHandler creates a transactions handler.
func NewTransactionsHandler(ledger *syncer.Manager, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger, log: log}
}

// ListTransactions handles GET /api/transactions?owner=...
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")

	records, err := h.ledger.ListByOwner(r.Context(), owner)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": records,
		"count":        len(records),
	})
}

// SyncHandler exposes the imperative drain entry point.
type SyncHandler struct {
	manager *syncer.Manager
	log     zerolog.Logger
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(manager *syncer.Manager, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{manager: manager, log: log}
}

// DrainNow handles POST /api/sync/drain.
func (h *SyncHandler) DrainNow(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Drain(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Drain failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Drain failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// CategorySuggester proposes a spending category for one record.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, rec domain.PersistedTransaction) (string, error)
}

// AnalyzeHandler annotates persisted records with suggested categories.
// This runs outside the deterministic pipeline: it only touches records that
// are already stored.
type AnalyzeHandler struct {
	ledger    *syncer.Manager
	suggester CategorySuggester
	log       zerolog.Logger
}

// NewAnalyzeHandler creates an analyze handler.
func NewAnalyzeHandler(ledger *syncer.Manager, suggester CategorySuggester, log zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{ledger: ledger, suggester: suggester, log: log}
}

// Analyze handles GET /api/analyze?owner=...&limit=N. It fills in Category
// for uncategorized valid records and reports what changed.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Analysis is not configured")
		return
	}

	ctx := r.Context()
	owner := r.URL.Query().Get("owner")

	records, err := h.ledger.ListByOwner(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	const maxPerRequest = 25
	annotated := make(map[string]string)
	for _, rec := range records {
		if rec.Category != "" || rec.Invalid {
			continue
		}
		if len(annotated) >= maxPerRequest {
			break
		}

		category, err := h.suggester.SuggestCategory(ctx, *rec)
		if err != nil {
			h.log.Warn().Err(err).Str("record_id", rec.ID).Msg("Category suggestion failed")
			continue
		}
		if category == "" {
			continue
		}

		rec.Category = category
		if err := h.ledger.Save(ctx, rec); err != nil {
			h.log.Error().Err(err).Str("record_id", rec.ID).Msg("Failed to save category")
			continue
		}
		annotated[rec.ID] = category
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"annotated": annotated,
		"count":     len(annotated),
	})
}

// HealthHandler reports liveness.
type HealthHandler struct{}

// NewHealthHandler creates a health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
