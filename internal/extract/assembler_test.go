package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smsledger/sms-ledger/internal/domain"
)

func TestAssembler_Assemble(t *testing.T) {
	a := NewAssembler()
	receivedAt := time.Date(2024, 12, 18, 14, 30, 45, 0, time.UTC)

	t.Run("debit with account and explicit date", func(t *testing.T) {
		msg := domain.RawMessage{
			Sender:     "HDFCBK",
			Content:    "Your account XXXXXX1234 has been debited with Rs.1,500.00 on 15-Dec-2024",
			ReceivedAt: receivedAt,
		}

		tx, ok := a.Assemble(msg)
		if !ok {
			t.Fatal("expected an extracted transaction")
		}
		if !tx.Amount.Equal(decimal.RequireFromString("1500.00")) {
			t.Errorf("amount = %s, want 1500.00", tx.Amount)
		}
		if tx.Type != domain.TransactionTypeDebit {
			t.Errorf("type = %v, want debit", tx.Type)
		}
		if tx.AccountRef == nil || *tx.AccountRef != "xxxxxx1234" {
			t.Errorf("accountRef = %v, want xxxxxx1234", tx.AccountRef)
		}
		if tx.Date != "2024-12-15" {
			t.Errorf("date = %q, want 2024-12-15", tx.Date)
		}
		if tx.SenderID != "HDFCBK" {
			t.Errorf("senderID = %q", tx.SenderID)
		}
		if tx.SourceText != msg.Content {
			t.Errorf("sourceText not preserved")
		}
	})

	t.Run("spelled out credit falls back to receipt instant", func(t *testing.T) {
		msg := domain.RawMessage{
			Sender:     "SBIINB",
			Content:    "Two Lakh rupees credited",
			ReceivedAt: receivedAt,
		}

		tx, ok := a.Assemble(msg)
		if !ok {
			t.Fatal("expected an extracted transaction")
		}
		if !tx.Amount.Equal(decimal.NewFromInt(200000)) {
			t.Errorf("amount = %s, want 200000", tx.Amount)
		}
		if tx.Type != domain.TransactionTypeCredit {
			t.Errorf("type = %v, want credit", tx.Type)
		}
		if tx.Date != "2024-12-18" {
			t.Errorf("date = %q, want 2024-12-18", tx.Date)
		}
		if tx.Time != "14:30:45" {
			t.Errorf("time = %q, want 14:30:45", tx.Time)
		}
	})

	t.Run("non financial message rejected", func(t *testing.T) {
		msg := domain.RawMessage{
			Sender:     "FRIEND",
			Content:    "movie at 7 tonight?",
			ReceivedAt: receivedAt,
		}
		if _, ok := a.Assemble(msg); ok {
			t.Error("expected rejection of non-financial text")
		}
	})

	t.Run("financial text without amount rejected", func(t *testing.T) {
		msg := domain.RawMessage{
			Sender:     "BANK",
			Content:    "your account statement is ready",
			ReceivedAt: receivedAt,
		}
		if _, ok := a.Assemble(msg); ok {
			t.Error("expected rejection when no amount is extractable")
		}
	})

	t.Run("empty content rejected", func(t *testing.T) {
		msg := domain.RawMessage{Sender: "X", Content: "", ReceivedAt: receivedAt}
		if _, ok := a.Assemble(msg); ok {
			t.Error("expected rejection of empty content")
		}
	})
}

func TestAssembler_Confidence(t *testing.T) {
	a := NewAssembler()
	receivedAt := time.Date(2024, 12, 18, 14, 30, 45, 0, time.UTC)

	assemble := func(content string) *domain.ExtractedTransaction {
		t.Helper()
		tx, ok := a.Assemble(domain.RawMessage{Sender: "BANK", Content: content, ReceivedAt: receivedAt})
		if !ok {
			t.Fatalf("Assemble(%q) rejected", content)
		}
		return tx
	}

	// Amount only: "amount" passes detection but gives no type, account,
	// date or time signal.
	weak := assemble("amount 500")
	full := assemble("Rs. 500 debited from a/c XX1234 on 15-12-2024 at 10:30:00")

	if weak.Confidence >= full.Confidence {
		t.Errorf("confidence should grow with signals: weak=%v full=%v", weak.Confidence, full.Confidence)
	}
	if full.Confidence != 1.0 {
		t.Errorf("all signals present, confidence = %v, want 1.0", full.Confidence)
	}
	if weak.Confidence < 0 || weak.Confidence > 1 {
		t.Errorf("confidence out of bounds: %v", weak.Confidence)
	}
}
