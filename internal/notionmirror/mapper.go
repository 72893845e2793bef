package notionmirror

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// RecordToProperties maps a transaction record onto the Notion database
// schema. "Transaction ID" is the title and the idempotency key.
func RecordToProperties(rec *domain.PersistedTransaction) notionapi.Properties {
	amount, _ := rec.Amount.Float64()

	props := notionapi.Properties{
		"Transaction ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: rec.ID},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: amount,
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.Type.String()},
		},
		"Sender": notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.SenderID},
		},
		"Confidence": notionapi.NumberProperty{
			Number: rec.Confidence,
		},
		"Manual Entry": notionapi.CheckboxProperty{
			Checkbox: rec.IsManualEntry,
		},
		"Source Text": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: rec.SourceText},
				},
			},
		},
	}

	if d, err := time.Parse("2006-01-02", rec.Date); err == nil {
		start := notionapi.Date(d)
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		}
	}

	if rec.AccountRef != nil {
		props["Account"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: *rec.AccountRef},
				},
			},
		}
	}

	if rec.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.Category},
		}
	}

	return props
}

// extractTransactionID reads the idempotency key back off a Notion page.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties["Transaction ID"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok {
		return ""
	}
	if len(title.Title) == 0 {
		return ""
	}
	if title.Title[0].PlainText != "" {
		return title.Title[0].PlainText
	}
	if title.Title[0].Text != nil {
		return title.Title[0].Text.Content
	}
	return ""
}
