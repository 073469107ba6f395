package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/mkuznetsov/finbot/internal/domain"
)

// transactionProperties maps one stored transaction onto the Notion
// database schema. The Transaction ID title is the dedupe key across
// export runs.
func transactionProperties(tx domain.Transaction, categoryName string) notionapi.Properties {
	props := notionapi.Properties{
		"Transaction ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: tx.ID},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount,
		},
		"Kind": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Kind)},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(tx.OccurredOn.In(time.UTC))
					return &d
				}(),
			},
		},
	}

	if tx.Description != "" {
		props["Description"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: tx.Description},
				},
			},
		}
	}

	if categoryName != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: categoryName},
		}
	}

	if tx.Source != "" {
		props["Source"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Source)},
		}
	}

	return props
}

// pageTransactionID reads the dedupe key back from a Notion page.
func pageTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties["Transaction ID"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
