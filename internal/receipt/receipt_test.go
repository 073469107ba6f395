package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/llm"
)

type fakeClient struct {
	reply string
	err   error
	calls int
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, attachment *llm.Attachment, maxTokens int32) (string, error) {
	f.calls++
	return f.reply, f.err
}

var testCategories = []domain.Category{
	{ID: "c1", Name: "🛒 Продукты", Kind: domain.KindExpense},
	{ID: "c2", Name: "Кафе", Kind: domain.KindExpense},
}

const fullReply = `Store: Перекрёсток
Date: 2024-11-13 18:45
Total: 1 279,50
VAT: 213,25
Receipt number: 00412
Category: Продукты

Items:
1. Молоко 3.2% 1л - 2 x 89 = 178
2. Хлеб бородинский - 1 x 45,50 = 45,50
`

func TestParseFullReceipt(t *testing.T) {
	client := &fakeClient{reply: fullReply}
	p := New(client)

	doc, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.NoError(t, err)

	assert.Equal(t, "Перекрёсток", doc.StoreName)
	assert.Equal(t, time.Date(2024, 11, 13, 18, 45, 0, 0, time.UTC), doc.ReceiptDate)
	assert.Equal(t, 1279.50, doc.TotalAmount)
	assert.Equal(t, 213.25, doc.VATAmount)
	assert.Equal(t, "00412", doc.ReceiptNumber)
	// Matched against the user category, original name kept.
	assert.Equal(t, "🛒 Продукты", doc.CategoryHint)
	assert.Equal(t, fullReply, doc.RawSourceText)

	require.Len(t, doc.LineItems, 2)
	assert.Equal(t, "Молоко 3.2% 1л", doc.LineItems[0].Name)
	assert.Equal(t, 2.0, doc.LineItems[0].Quantity)
	assert.Equal(t, 89.0, doc.LineItems[0].UnitPrice)
	assert.Equal(t, 178.0, doc.LineItems[0].LineTotal)
	assert.Equal(t, 45.50, doc.LineItems[1].LineTotal)
}

func TestParseRejectsMissingTotal(t *testing.T) {
	client := &fakeClient{reply: `Store: Магазин
Date: 2024-11-13
Total: none
Category: Продукты

Items:
1. Молоко - 1 x 89 = 89
`}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.ErrorIs(t, err, ErrNoAmount)
}

func TestParseRejectsZeroTotal(t *testing.T) {
	client := &fakeClient{reply: "Store: X\nTotal: 0\nItems:\n1. Товар - 1 x 10 = 10\n"}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.ErrorIs(t, err, ErrNoAmount)
}

func TestParseSimpleItemFallback(t *testing.T) {
	client := &fakeClient{reply: `Store: Кофейня
Total: 250
Category: Кафе

Items:
1. Капучино - 150
2. Круассан - 100
`}
	p := New(client)

	doc, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.NoError(t, err)
	require.Len(t, doc.LineItems, 2)
	assert.Equal(t, "Капучино", doc.LineItems[0].Name)
	assert.Equal(t, 1.0, doc.LineItems[0].Quantity)
	assert.Equal(t, 150.0, doc.LineItems[0].UnitPrice)
	assert.Equal(t, 150.0, doc.LineItems[0].LineTotal)
}

func TestParseZeroItemsStillValid(t *testing.T) {
	client := &fakeClient{reply: "Store: Ларёк\nTotal: 99\nCategory: Киоск\n"}
	p := New(client)

	doc, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.NoError(t, err)
	assert.Empty(t, doc.LineItems)
	assert.Equal(t, 99.0, doc.TotalAmount)
	// No user category matched: cleaned label kept as free-text hint.
	assert.Equal(t, "Киоск", doc.CategoryHint)
}

func TestParseDateFallsBackToNow(t *testing.T) {
	client := &fakeClient{reply: "Store: X\nDate: none\nTotal: 10\n"}
	p := New(client)

	before := time.Now()
	doc, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.NoError(t, err)
	assert.False(t, doc.ReceiptDate.Before(before))
}

func TestParseUnavailable(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.ErrorIs(t, err, llm.ErrUnavailable)
}

func TestParseRateLimitedPassthrough(t *testing.T) {
	client := &fakeClient{err: llm.ErrRateLimited}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestCandidateFromReceipt(t *testing.T) {
	client := &fakeClient{reply: fullReply}
	p := New(client)

	doc, err := p.Parse(context.Background(), []byte("jpeg"), testCategories)
	require.NoError(t, err)

	c := doc.Candidate()
	assert.Equal(t, domain.KindExpense, c.Kind)
	assert.Equal(t, 1279.50, c.Amount)
	assert.Equal(t, "Перекрёсток", c.Description)
	assert.Equal(t, domain.SourceReceiptImage, c.Source)
	assert.Equal(t, 2024, c.OccurredOn.Year)
}
