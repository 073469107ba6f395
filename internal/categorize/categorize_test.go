package categorize

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/llm"
)

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
	{ID: "c1", Name: "🛒 Продукты", Kind: domain.KindExpense},
	{ID: "c2", Name: "Транспорт", Kind: domain.KindExpense},
	{ID: "c3", Name: "Зарплата", Kind: domain.KindIncome},
}

func expense(amount float64, description string) domain.TransactionCandidate {
	return domain.TransactionCandidate{
		OccurredOn:  civil.Date{Year: 2024, Month: 11, Day: 1},
		Amount:      amount,
		Kind:        domain.KindExpense,
		Description: description,
		Source:      domain.SourceChatText,
	}
}

func TestCategorizeMerchantRuleSkipsLLM(t *testing.T) {
	client := &fakeClient{}
	c := New(client, 0)

	rules := []domain.MerchantRule{
		{UserID: 1, MerchantName: "перекрёсток", CategoryID: "c1"},
	}

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(379, "Покупка в Перекрёсток"),
	}, testCategories, rules)

	require.Len(t, got, 1)
	assert.Equal(t, "🛒 Продукты", got[0].CategoryHint)
	assert.Equal(t, 0, client.calls)
}

func TestCategorizeBatchPositional(t *testing.T) {
	client := &fakeClient{replies: []string{"Транспорт\nЗарплата\n"}}
	c := New(client, 0)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(500, "Такси"),
		{Amount: 50000, Kind: domain.KindIncome, Description: "Зарплата за ноябрь"},
	}, testCategories, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "Транспорт", got[0].CategoryHint)
	assert.Equal(t, "Зарплата", got[1].CategoryHint)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.prompts[0], "1. expense 500.00 Такси")
	assert.Contains(t, client.prompts[0], "2. income 50000.00 Зарплата за ноябрь")
}

func TestCategorizeUnknownAnswerFallsBack(t *testing.T) {
	client := &fakeClient{replies: []string{"Недвижимость\n"}}
	c := New(client, 0)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(100, "что-то"),
	}, testCategories, nil)

	assert.Equal(t, domain.DefaultCategoryName, got[0].CategoryHint)
}

func TestCategorizeMissingLineFallsBack(t *testing.T) {
	client := &fakeClient{replies: []string{"Транспорт\n"}}
	c := New(client, 0)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(500, "Такси"),
		expense(200, "Кофе"),
	}, testCategories, nil)

	assert.Equal(t, "Транспорт", got[0].CategoryHint)
	assert.Equal(t, domain.DefaultCategoryName, got[1].CategoryHint)
}

func TestCategorizeToleratesNumberedAndDecoratedAnswers(t *testing.T) {
	client := &fakeClient{replies: []string{"1. 🛒 Продукты\n2) Транспорт\n"}}
	c := New(client, 0)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(379, "Магнит"),
		expense(500, "Такси"),
	}, testCategories, nil)

	assert.Equal(t, "🛒 Продукты", got[0].CategoryHint)
	assert.Equal(t, "Транспорт", got[1].CategoryHint)
}

func TestCategorizeLLMErrorDegradesToDefault(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("boom")}}
	c := New(client, 0)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(500, "Такси"),
		expense(200, "Кофе"),
	}, testCategories, nil)

	require.Len(t, got, 2)
	assert.Equal(t, domain.DefaultCategoryName, got[0].CategoryHint)
	assert.Equal(t, domain.DefaultCategoryName, got[1].CategoryHint)
}

func TestCategorizeRateLimitDegradesToDefault(t *testing.T) {
	client := &fakeClient{errs: []error{llm.ErrRateLimited}}
	c := New(client, 0)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(500, "Такси"),
	}, testCategories, nil)

	assert.Equal(t, domain.DefaultCategoryName, got[0].CategoryHint)
}

func TestCategorizeKeepsExistingHint(t *testing.T) {
	client := &fakeClient{}
	c := New(client, 0)

	cand := expense(379, "Перекрёсток")
	cand.CategoryHint = "Продукты"

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{cand}, testCategories, nil)

	assert.Equal(t, "Продукты", got[0].CategoryHint)
	assert.Equal(t, 0, client.calls)
}

func TestCategorizeChunking(t *testing.T) {
	client := &fakeClient{replies: []string{"Транспорт\nТранспорт\n", "Транспорт\n"}}
	c := New(client, 2)

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(1, "Такси"),
		expense(2, "Такси"),
		expense(3, "Такси"),
	}, testCategories, nil)

	require.Len(t, got, 3)
	assert.Equal(t, 2, client.calls)
	for _, cand := range got {
		assert.Equal(t, "Транспорт", cand.CategoryHint)
	}
}

func TestCategorizeRuleWithDeletedCategoryFallsThrough(t *testing.T) {
	client := &fakeClient{replies: []string{"Транспорт\n"}}
	c := New(client, 0)

	rules := []domain.MerchantRule{
		{UserID: 1, MerchantName: "такси", CategoryID: "gone"},
	}

	got := c.Categorize(context.Background(), []domain.TransactionCandidate{
		expense(500, "Такси"),
	}, testCategories, rules)

	assert.Equal(t, "Транспорт", got[0].CategoryHint)
	assert.Equal(t, 1, client.calls)
}
