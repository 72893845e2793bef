// Package enrich suggests spending categories for persisted transactions
// using Gemini. It annotates records after the fact and is deliberately kept
// out of the deterministic extraction pipeline.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// DefaultModelName is the Gemini model used for category suggestions.
const DefaultModelName = "gemini-2.0-flash"

// DefaultCategories is the closed taxonomy offered to the model.
var DefaultCategories = []string{
	"groceries", "dining", "transport", "utilities", "rent", "shopping",
	"entertainment", "health", "salary", "transfer", "fees", "other",
}

// Generator abstracts the model call for testing.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// geminiGenerator calls the real Gemini API.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("enrich: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("enrich: empty response from model")
	}
	return text, nil
}

// Service suggests categories for transaction records.
type Service struct {
	gen        Generator
	categories []string
}

// NewService creates a Service backed by Gemini. Credentials come from the
// environment, same as the rest of the Google clients.
func NewService(ctx context.Context) (*Service, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: create genai client: %w", err)
	}
	return NewServiceWithGenerator(&geminiGenerator{client: client, model: DefaultModelName}), nil
}

// NewServiceWithGenerator creates a Service over any Generator.
func NewServiceWithGenerator(gen Generator) *Service {
	return &Service{gen: gen, categories: DefaultCategories}
}

type suggestion struct {
	Category string `json:"category"`
}

// SuggestCategory proposes one category from the taxonomy for the record.
// An answer outside the taxonomy is discarded.
func (s *Service) SuggestCategory(ctx context.Context, rec domain.PersistedTransaction) (string, error) {
	raw, err := s.gen.GenerateText(ctx, s.buildPrompt(rec))
	if err != nil {
		return "", err
	}

	var sug suggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &sug); err != nil {
		return "", fmt.Errorf("enrich: parsing model output %q: %w", raw, err)
	}

	category := strings.ToLower(strings.TrimSpace(sug.Category))
	for _, known := range s.categories {
		if category == known {
			return category, nil
		}
	}
	return "", fmt.Errorf("enrich: model suggested unknown category %q", sug.Category)
}

func (s *Service) buildPrompt(rec domain.PersistedTransaction) string {
	var b strings.Builder
	b.WriteString("You are a transaction categorizer for a personal finance ledger.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Pick the single best category for the transaction below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no extra text).\n")
	b.WriteString("- Output exactly one object: {\"category\": \"<name>\"}.\n\n")
	b.WriteString("Allowed categories: " + strings.Join(s.categories, ", ") + "\n\n")
	fmt.Fprintf(&b, "Transaction:\n- type: %s\n- amount: %s\n- sender: %s\n- text: %s\n\n",
		rec.Type, rec.Amount, rec.SenderID, rec.SourceText)
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	return b.String()
}

// cleanModelJSON strips markdown fences and surrounding junk the model
// sometimes emits despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
