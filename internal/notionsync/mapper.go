package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/budget-companion/internal/store"
)

// Property names of the review database. "Transaction ID" links a page
// back to the stored transaction.
const (
	PropDescription   = "Description"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCategory      = "Category"
	PropConfidence    = "Confidence"
	PropTransactionID = "Transaction ID"
	PropFileSource    = "File Source"
)

// TransactionToNotionProperties converts a stored transaction to Notion
// properties for the review database.
func TransactionToNotionProperties(tx store.TransactionRecord) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(tx.Date.Year(), tx.Date.Month(), tx.Date.Day(), 0, 0, 0, 0, time.UTC))
					return &d
				}(),
			},
		},
		PropAmount: notionapi.NumberProperty{
			Number: tx.Amount,
		},
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.CategoryLabel()},
		},
		PropConfidence: notionapi.NumberProperty{
			Number: tx.ConfidenceScore,
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
	}

	if tx.FileSource != "" {
		props[PropFileSource] = notionapi.RichTextProperty{
			RichText: richText(tx.FileSource),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractTransactionID extracts the transaction ID from a Notion page's properties.
// Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}

	var texts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		texts = p.RichText
	case notionapi.RichTextProperty:
		texts = p.RichText
	}
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}
