package docparse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/llm"
)

// fakeClient replays scripted replies/errors in order.
type fakeClient struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, attachment *llm.Attachment, maxTokens int32) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return reply, err
}

var testCategories = []domain.Category{
	{ID: "c1", Name: "Продукты", Kind: domain.KindExpense},
	{ID: "c2", Name: "Зарплата", Kind: domain.KindIncome},
}

const wellFormedReply = `Direction: expense
Amount: 1 234,50
Description: Перекрёсток
Category: 🛒 Продукты

Direction: income
Amount: 50000
Description: Зарплата за ноябрь
Category: Зарплата
`

func TestParseWellFormedBlocks(t *testing.T) {
	client := &fakeClient{replies: []string{wellFormedReply}}
	p := New(client)

	got, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, client.calls)

	assert.Equal(t, domain.KindExpense, got[0].Kind)
	assert.Equal(t, 1234.50, got[0].Amount)
	assert.Equal(t, "Перекрёсток", got[0].Description)
	// Emoji stripped from the category label.
	assert.Equal(t, "Продукты", got[0].CategoryHint)
	assert.Equal(t, domain.SourcePDFStatement, got[0].Source)

	assert.Equal(t, domain.KindIncome, got[1].Kind)
	assert.Equal(t, 50000.0, got[1].Amount)
}

func TestParseFallbackLineScanner(t *testing.T) {
	// Fields out of order and interleaved with chatter: the block
	// pattern fails but the group scanner recovers both transactions.
	reply := `Here are the transactions I found:

Amount: 500
Direction: expense
Description: Такси

Category: Транспорт
Direction: income
Amount: 3000

Direction: expense
Description: missing amount, must be dropped
`
	client := &fakeClient{replies: []string{reply}}
	p := New(client)

	got, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 500.0, got[0].Amount)
	assert.Equal(t, domain.KindExpense, got[0].Kind)
	assert.Equal(t, 3000.0, got[1].Amount)
	assert.Equal(t, domain.KindIncome, got[1].Kind)
}

func TestParseFallbackSplitsGroupsWithoutBlankLines(t *testing.T) {
	// No Category lines, so the block pattern never matches; no blank
	// separators either, so only the repeated Direction label marks
	// where one transaction ends and the next begins.
	reply := `Direction: expense
Amount: 1200
Description: Перекрёсток
Direction: income
Amount: 50000
Description: Зарплата
`
	client := &fakeClient{replies: []string{reply}}
	p := New(client)

	got, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1200.0, got[0].Amount)
	assert.Equal(t, domain.KindExpense, got[0].Kind)
	assert.Equal(t, "Перекрёсток", got[0].Description)
	assert.Equal(t, 50000.0, got[1].Amount)
	assert.Equal(t, domain.KindIncome, got[1].Kind)
	assert.Equal(t, "Зарплата", got[1].Description)
}

func TestParseRetriesOnTransportError(t *testing.T) {
	client := &fakeClient{
		errs:    []error{errors.New("connection reset"), nil},
		replies: []string{"", wellFormedReply},
	}
	p := New(client)

	got, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Equal(t, 2, client.calls)
	// Retry uses the stricter instruction.
	assert.Contains(t, client.prompts[1], "ONLY the field lines")
}

func TestParseUnavailableAfterRetry(t *testing.T) {
	client := &fakeClient{
		errs: []error{errors.New("boom"), errors.New("boom again")},
	}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.ErrorIs(t, err, llm.ErrUnavailable)
	assert.Equal(t, 2, client.calls)
}

func TestParseRateLimitedNotRetried(t *testing.T) {
	client := &fakeClient{errs: []error{llm.ErrRateLimited}}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, 1, client.calls)
}

func TestParseNoTransactionsExtracted(t *testing.T) {
	client := &fakeClient{replies: []string{"The statement appears to be empty."}}
	p := New(client)

	_, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.ErrorIs(t, err, ErrNoTransactions)
}

func TestParseDropsNonPositiveAmounts(t *testing.T) {
	reply := `Direction: expense
Amount: 0
Description: нулевая
Category: Прочее

Direction: expense
Amount: 75
Description: нормальная
Category: Прочее
`
	client := &fakeClient{replies: []string{reply}}
	p := New(client)

	got, err := p.Parse(context.Background(), []byte("%PDF"), "application/pdf", testCategories)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 75.0, got[0].Amount)
}
