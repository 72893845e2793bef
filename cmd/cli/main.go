// Command cli runs detection and extraction on a single message and prints
// the result as JSON. Nothing is persisted; this exists to inspect what the
// extractors make of a given text.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/smsledger/sms-ledger/internal/dedup"
	"github.com/smsledger/sms-ledger/internal/domain"
	"github.com/smsledger/sms-ledger/internal/extract"
)

type output struct {
	Financial bool                         `json:"financial"`
	Extracted *domain.ExtractedTransaction `json:"extracted,omitempty"`
	DedupHash string                       `json:"dedup_hash,omitempty"`
}

func main() {
	var (
		sender   = flag.String("sender", "UNKNOWN", "message sender id")
		received = flag.String("received", "", "receipt time, RFC3339 (default now)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cli [-sender ID] [-received RFC3339] \"message text\"")
		os.Exit(2)
	}
	content := flag.Arg(0)

	receivedAt := time.Now()
	if *received != "" {
		t, err := time.Parse(time.RFC3339, *received)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -received value: %v\n", err)
			os.Exit(2)
		}
		receivedAt = t
	}

	msg := domain.RawMessage{
		Sender:     *sender,
		Content:    content,
		ReceivedAt: receivedAt,
	}

	out := output{
		Financial: extract.NewContextDetector().IsFinancial(content),
	}
	if out.Financial {
		out.DedupHash = dedup.Hash(msg.Sender, msg.Content, msg.ReceivedAt)
		if extracted, ok := extract.NewAssembler().Assemble(msg); ok {
			out.Extracted = extracted
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
}
