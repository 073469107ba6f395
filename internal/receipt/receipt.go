// Package receipt parses photographed receipts via the LLM vision
// call into structured receipt documents.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/llm"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/normalize"
)

// ErrNoAmount means the receipt total could not be recognized as a
// positive number. Partial receipt data is never kept without a total,
// so this rejects the whole receipt.
var ErrNoAmount = errors.New("receipt: no amount recognized")

const maxOutputTokens = 2048

// Parser turns receipt images into ReceiptDocuments.
type Parser struct {
	client llm.Client
}

func New(client llm.Client) *Parser {
	return &Parser{client: client}
}

// Parse sends the image to the vision model and parses the labeled
// reply. A receipt with a valid total and zero recognized items is
// still valid.
func (p *Parser) Parse(ctx context.Context, image []byte, categories []domain.Category) (*domain.ReceiptDocument, error) {
	log := logger.FromContext(ctx)

	attachment := &llm.Attachment{
		Kind:      llm.AttachmentImage,
		MediaType: "image/jpeg",
		Data:      image,
	}

	reply, err := p.client.Complete(ctx, receiptPrompt(categories), attachment, maxOutputTokens)
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}

	doc, err := parseReply(reply, categories)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("store", doc.StoreName).
		Float64("total", doc.TotalAmount).
		Int("items", len(doc.LineItems)).
		Msg("recognized receipt")
	return doc, nil
}

func receiptPrompt(categories []domain.Category) string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	var b strings.Builder
	b.WriteString("Analyze the attached receipt photo and reply with exactly these labeled lines:\n\n")
	b.WriteString("Store: store or business name\n")
	b.WriteString("Date: purchase date and time as YYYY-MM-DD HH:MM\n")
	b.WriteString("Total: total amount as a number\n")
	b.WriteString("VAT: VAT amount as a number, or 0\n")
	b.WriteString("Receipt number: receipt or register number, or none\n")
	b.WriteString("Category: best matching category from this list: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nItems:\n")
	b.WriteString("1. item name - quantity x unit price = line total\n")
	b.WriteString("2. item name - quantity x unit price = line total\n")
	b.WriteString("...\n\n")
	b.WriteString("If a field is not visible on the receipt, write \"none\".\n")
	return b.String()
}

var (
	storeRe   = regexp.MustCompile(`(?im)^store:\s*(.+)$`)
	dateRe    = regexp.MustCompile(`(?i)date:\s*(\d{4}-\d{2}-\d{2}(?:\s+\d{2}:\d{2})?)`)
	totalRe   = regexp.MustCompile(`(?im)^total:[ \t]*([\d .,]+)`)
	vatRe     = regexp.MustCompile(`(?im)^vat:[ \t]*([\d .,]+)`)
	numberRe  = regexp.MustCompile(`(?im)^receipt number:\s*(.+)$`)
	catRe     = regexp.MustCompile(`(?im)^category:\s*(.+)$`)
	sectionRe = regexp.MustCompile(`(?is)items:\s*(.+)$`)

	// "1. Молоко 3.2% 1л - 1 x 89 = 89"
	itemRe = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]*(.+?)[ \t]*-[ \t]*([\d.,]+)[ \t]*x[ \t]*([\d .,]+)[ \t]*=[ \t]*([\d .,]+)`)
	// "1. Молоко - 89" fallback: quantity 1, total = price
	simpleItemRe = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]*(.+?)[ \t]*-[ \t]*([\d .,]+)`)

	nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
)

func parseReply(reply string, categories []domain.Category) (*domain.ReceiptDocument, error) {
	doc := &domain.ReceiptDocument{
		ReceiptDate:   time.Now(),
		RawSourceText: reply,
	}

	if m := storeRe.FindStringSubmatch(reply); m != nil {
		if v := strings.TrimSpace(m[1]); !isNone(v) {
			doc.StoreName = v
		}
	}

	if m := dateRe.FindStringSubmatch(reply); m != nil {
		s := strings.TrimSpace(m[1])
		layout := "2006-01-02"
		if strings.Contains(s, " ") {
			layout = "2006-01-02 15:04"
		}
		if t, err := time.Parse(layout, s); err == nil {
			doc.ReceiptDate = t
		}
	}

	if m := totalRe.FindStringSubmatch(reply); m != nil {
		if v, err := normalize.ParseAmount(strings.ReplaceAll(m[1], " ", "")); err == nil {
			doc.TotalAmount = v
		}
	}
	if doc.TotalAmount <= 0 {
		return nil, ErrNoAmount
	}

	if m := vatRe.FindStringSubmatch(reply); m != nil {
		if v, err := normalize.ParseAmount(strings.ReplaceAll(m[1], " ", "")); err == nil && v >= 0 {
			doc.VATAmount = v
		}
	}

	if m := numberRe.FindStringSubmatch(reply); m != nil {
		if v := strings.TrimSpace(m[1]); !isNone(v) {
			doc.ReceiptNumber = v
		}
	}

	if m := catRe.FindStringSubmatch(reply); m != nil {
		doc.CategoryHint = matchCategory(m[1], categories)
	}

	doc.LineItems = parseItems(reply)

	return doc, nil
}

// matchCategory matches the model's label against the user's category
// names, comparing with non-word characters stripped from both sides.
// On no match the cleaned label is kept as a free-text hint rather
// than forcing a default.
func matchCategory(label string, categories []domain.Category) string {
	cleaned := strings.TrimSpace(nonWord.ReplaceAllString(label, ""))
	if cleaned == "" {
		return ""
	}
	for _, c := range categories {
		name := strings.TrimSpace(nonWord.ReplaceAllString(c.Name, ""))
		if strings.EqualFold(name, cleaned) {
			return c.Name
		}
	}
	return cleaned
}

func parseItems(reply string) []domain.ReceiptLineItem {
	section := reply
	if m := sectionRe.FindStringSubmatch(reply); m != nil {
		section = m[1]
	}

	var items []domain.ReceiptLineItem
	for _, m := range itemRe.FindAllStringSubmatch(section, -1) {
		qty, err1 := normalize.ParseAmount(m[2])
		price, err2 := normalize.ParseAmount(strings.ReplaceAll(m[3], " ", ""))
		total, err3 := normalize.ParseAmount(strings.ReplaceAll(m[4], " ", ""))
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		items = append(items, domain.ReceiptLineItem{
			Name:      strings.TrimSpace(m[1]),
			Quantity:  qty,
			UnitPrice: price,
			LineTotal: total,
		})
	}
	if len(items) > 0 {
		return items
	}

	// Fallback shape without quantities.
	for _, m := range simpleItemRe.FindAllStringSubmatch(section, -1) {
		price, err := normalize.ParseAmount(strings.ReplaceAll(m[2], " ", ""))
		if err != nil || price <= 0 {
			continue
		}
		items = append(items, domain.ReceiptLineItem{
			Name:      strings.TrimSpace(m[1]),
			Quantity:  1,
			UnitPrice: price,
			LineTotal: price,
		})
	}
	return items
}

func isNone(v string) bool {
	switch strings.ToLower(v) {
	case "none", "n/a", "unknown", "нет":
		return true
	}
	return false
}
