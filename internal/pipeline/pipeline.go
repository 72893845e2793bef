// Package pipeline orchestrates one message's journey: financial detection,
// duplicate check, extraction, validation and handoff to the sync manager.
// Each message is processed fully sequentially; only same-hash messages are
// serialized against each other.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smsledger/sms-ledger/internal/dedup"
	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/events"
	"github.com/smsledger/sms-ledger/internal/extract"
	"github.com/smsledger/sms-ledger/internal/logger"
	"github.com/smsledger/sms-ledger/internal/syncer"
	"github.com/smsledger/sms-ledger/internal/validate"
)

// Outcome says what the pipeline did with one message.
type Outcome string

const (
	// OutcomeProcessed: a valid record was persisted and handed to sync.
	OutcomeProcessed Outcome = "processed"
	// OutcomeEmpty: blank input, rejected before any extraction attempt.
	OutcomeEmpty Outcome = "empty"
	// OutcomeNotFinancial: no financial keywords matched.
	OutcomeNotFinancial Outcome = "not_financial"
	// OutcomeDuplicate: the message hash was already processed or in flight.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeExtractionMiss: financial, but no amount could be extracted.
	OutcomeExtractionMiss Outcome = "extraction_miss"
	// OutcomeInvalid: record assembled but failed validation; persisted
	// flagged for manual correction, never synced.
	OutcomeInvalid Outcome = "invalid"
)

// Result is the pipeline's answer for one message.
type Result struct {
	Outcome    Outcome                      `json:"outcome"`
	Record     *domain.PersistedTransaction `json:"record,omitempty"`
	Validation *validate.Result             `json:"validation,omitempty"`
}

// Pipeline wires the stages together. Construct with New.
type Pipeline struct {
	detector  *extract.ContextDetector
	assembler *extract.Assembler
	dedup     *dedup.Detector
	validator *validate.Validator
	sync      *syncer.Manager
	bus       *events.Bus
	log       zerolog.Logger

	ownerID string
	now     func() time.Time
	newID   func() string
}

// New creates a pipeline for one owner. dedupDetector and syncManager are
// required; bus may be nil.
func New(ownerID string, dedupDetector *dedup.Detector, syncManager *syncer.Manager, bus *events.Bus, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		detector:  extract.NewContextDetector(),
		assembler: extract.NewAssembler(),
		dedup:     dedupDetector,
		validator: validate.NewValidator(),
		sync:      syncManager,
		bus:       bus,
		log:       log,
		ownerID:   ownerID,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Submit processes one raw message end to end. isManualEntry marks records
// entered by hand rather than intercepted automatically.
// Only local-store failures surface as errors; everything else is an Outcome.
func (p *Pipeline) Submit(ctx context.Context, msg domain.RawMessage, isManualEntry bool) (*Result, error) {
	log := logger.WithMessage(p.log, msg.Sender, msg.ReceivedAt)

	if strings.TrimSpace(msg.Content) == "" {
		log.Debug().Msg("empty message rejected")
		return &Result{Outcome: OutcomeEmpty}, nil
	}

	if !p.detector.IsFinancial(msg.Content) {
		log.Debug().Msg("message not financial")
		return &Result{Outcome: OutcomeNotFinancial}, nil
	}
	p.publish(events.Event{Kind: events.KindFinancialDetected, SenderID: msg.Sender})

	hash := dedup.Hash(msg.Sender, msg.Content, msg.ReceivedAt)
	reserved, err := p.dedup.Reserve(ctx, hash)
	if err != nil {
		p.publish(events.Event{Kind: events.KindError, SenderID: msg.Sender, Detail: err.Error()})
		return nil, fmt.Errorf("pipeline: duplicate check: %w", err)
	}
	if !reserved {
		log.Info().Str("hash", hash).Msg("duplicate message dropped")
		p.publish(events.Event{Kind: events.KindDuplicateDetected, SenderID: msg.Sender, Detail: hash})
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	res, err := p.processReserved(ctx, msg, hash, isManualEntry, log)
	if err != nil || res.Outcome == OutcomeExtractionMiss {
		// The message stays eligible for a later retry.
		p.dedup.Release(hash)
	}
	return res, err
}

// processReserved runs extraction onward; the caller holds the hash
// reservation and releases it on failure.
func (p *Pipeline) processReserved(ctx context.Context, msg domain.RawMessage, hash string, isManualEntry bool, log zerolog.Logger) (*Result, error) {
	extracted, ok := p.assembler.Assemble(msg)
	if !ok {
		// Classification miss: financial text without a usable amount.
		// Logged for manual review, not an error.
		log.Info().Msg("no amount extracted, message skipped")
		return &Result{Outcome: OutcomeExtractionMiss}, nil
	}

	rec := &domain.PersistedTransaction{
		ExtractedTransaction: *extracted,
		ID:                   p.newID(),
		OwnerID:              p.ownerID,
		CreatedAt:            p.now(),
		State:                domain.SyncStateCreated,
		DedupHash:            hash,
		IsManualEntry:        isManualEntry,
	}
	p.publish(events.Event{Kind: events.KindParsed, RecordID: rec.ID, OwnerID: rec.OwnerID, SenderID: msg.Sender})

	validation := p.validator.Validate(*rec)
	if !validation.Valid {
		rec.Invalid = true
		rec.ValidationErrors = validation.Errors
		log.Warn().Strs("errors", validation.Errors).Msg("record failed validation")
		p.publish(events.Event{
			Kind:     events.KindValidationFailed,
			RecordID: rec.ID,
			OwnerID:  rec.OwnerID,
			Detail:   strings.Join(validation.Errors, "; "),
		})
	}

	if err := p.sync.Process(ctx, rec); err != nil {
		p.publish(events.Event{Kind: events.KindError, RecordID: rec.ID, Detail: err.Error()})
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	// Marked only after local persistence succeeded, so a crash in between
	// cannot silently drop the transaction. Marking before returning is
	// mandatory: an identical later message must not re-trigger extraction.
	if err := p.dedup.MarkProcessed(ctx, hash); err != nil {
		p.publish(events.Event{Kind: events.KindError, RecordID: rec.ID, Detail: err.Error()})
		return nil, fmt.Errorf("pipeline: marking hash processed: %w", err)
	}

	p.publish(events.Event{Kind: events.KindPersisted, RecordID: rec.ID, OwnerID: rec.OwnerID, SenderID: msg.Sender})
	log.Info().
		Str("record_id", rec.ID).
		Str("amount", rec.Amount.String()).
		Str("type", rec.Type.String()).
		Msg("message processed")

	outcome := OutcomeProcessed
	if rec.Invalid {
		outcome = OutcomeInvalid
	}
	return &Result{Outcome: outcome, Record: rec, Validation: &validation}, nil
}

func (p *Pipeline) publish(e events.Event) {
	if p.bus != nil {
		p.bus.Publish(e)
	}
}
