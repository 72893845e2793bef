package extract

import (
	"github.com/smsledger/sms-ledger/internal/domain"
)

// Confidence weights. Presence of each signal contributes its weight;
// the sum is bounded to [0,1] and adding signals never lowers the score.
const (
	confidenceAmount       = 0.4
	confidenceDefiniteType = 0.2
	confidenceAccountRef   = 0.2
	confidenceExplicitDate = 0.1
	confidenceExplicitTime = 0.1
)

// Assembler runs the individual extractors over one message and composes
// their outputs into a structured record. Pure composition, no side effects.
type Assembler struct {
	detector *ContextDetector
}

// NewAssembler returns an assembler using the default context detector.
func NewAssembler() *Assembler {
	return &Assembler{detector: NewContextDetector()}
}

// Assemble builds an ExtractedTransaction from a raw message. It returns
// (nil, false) when the message is not financial or carries no extractable
// amount; an amount is mandatory.
func (a *Assembler) Assemble(msg domain.RawMessage) (*domain.ExtractedTransaction, bool) {
	if !a.detector.IsFinancial(msg.Content) {
		return nil, false
	}

	amount, ok := ExtractPrimaryAmount(msg.Content)
	if !ok {
		return nil, false
	}

	txType := Classify(msg.Content)

	var accountRef *string
	if acct, found := ExtractPrimaryAccount(msg.Content); found {
		accountRef = &acct
	}

	date, dateExplicit, timeOfDay, timeExplicit := ExtractDateTime(msg.Content, msg.ReceivedAt)

	confidence := confidenceAmount
	if txType != domain.TransactionTypeUnknown {
		confidence += confidenceDefiniteType
	}
	if accountRef != nil {
		confidence += confidenceAccountRef
	}
	if dateExplicit {
		confidence += confidenceExplicitDate
	}
	if timeExplicit {
		confidence += confidenceExplicitTime
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &domain.ExtractedTransaction{
		Amount:     amount,
		Type:       txType,
		AccountRef: accountRef,
		Date:       date,
		Time:       timeOfDay,
		SourceText: msg.Content,
		SenderID:   msg.Sender,
		Confidence: confidence,
	}, true
}
