package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/smsledger/sms-ledger/internal/domain"
)

type fakeGenerator struct {
	reply string
	err   error
	seen  string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.seen = prompt
	return f.reply, f.err
}

func record() domain.PersistedTransaction {
	return domain.PersistedTransaction{
		ExtractedTransaction: domain.ExtractedTransaction{
			Amount:     decimal.NewFromInt(450),
			Type:       domain.TransactionTypeDebit,
			SourceText: "Rs. 450 paid to BigBasket",
			SenderID:   "HDFCBK",
		},
		ID:      "rec-1",
		OwnerID: "owner-1",
	}
}

func TestSuggestCategory(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{"plain json", `{"category": "groceries"}`, "groceries", false},
		{"fenced json", "```json\n{\"category\": \"dining\"}\n```", "dining", false},
		{"fenced without language", "```\n{\"category\": \"transport\"}\n```", "transport", false},
		{"surrounding prose", `Sure! {"category": "utilities"} Hope that helps.`, "utilities", false},
		{"mixed case normalized", `{"category": "Groceries"}`, "groceries", false},
		{"unknown category", `{"category": "cryptocurrency"}`, "", true},
		{"garbage output", `not json at all`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewServiceWithGenerator(&fakeGenerator{reply: tt.reply})
			got, err := svc.SuggestCategory(context.Background(), record())

			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SuggestCategory failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("category = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPromptCarriesTransactionDetails(t *testing.T) {
	gen := &fakeGenerator{reply: `{"category": "groceries"}`}
	svc := NewServiceWithGenerator(gen)

	if _, err := svc.SuggestCategory(context.Background(), record()); err != nil {
		t.Fatalf("SuggestCategory failed: %v", err)
	}

	for _, fragment := range []string{"BigBasket", "DEBIT", "450", "groceries, dining"} {
		if !strings.Contains(gen.seen, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}

func TestGeneratorErrorPropagates(t *testing.T) {
	svc := NewServiceWithGenerator(&fakeGenerator{err: errors.New("quota exceeded")})
	if _, err := svc.SuggestCategory(context.Background(), record()); err == nil {
		t.Error("expected error from generator")
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"category":"x"}`, `{"category":"x"}`},
		{"```json\n{\"category\":\"x\"}\n```", `{"category":"x"}`},
		{"  \n```\n{\"category\":\"x\"}\n```\n", `{"category":"x"}`},
		{`prefix {"category":"x"} suffix`, `{"category":"x"}`},
	}
	for _, tt := range tests {
		if got := cleanModelJSON(tt.in); got != tt.want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
