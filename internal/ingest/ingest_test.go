package ingest

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/store/memory"
)

func candidates() []domain.TransactionCandidate {
	return []domain.TransactionCandidate{
		{
			OccurredOn:   civil.Date{Year: 2024, Month: 11, Day: 1},
			Amount:       500,
			Kind:         domain.KindExpense,
			Description:  "Такси",
			CategoryHint: "Транспорт",
			Source:       domain.SourceCSVStatement,
		},
		{
			OccurredOn:   civil.Date{Year: 2024, Month: 11, Day: 2},
			Amount:       3000,
			Kind:         domain.KindIncome,
			Description:  "Зарплата",
			CategoryHint: "Зарплата",
			Source:       domain.SourceCSVStatement,
		},
	}
}

func TestIngestIdempotent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.EnsureDefaultCategories(ctx, 1))
	svc := New(s, s)

	first, err := svc.Ingest(ctx, 1, candidates())
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2, Skipped: 0}, first)

	second, err := svc.Ingest(ctx, 1, candidates())
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 0, Skipped: 2}, second)
}

// flakyDupStore fails the duplicate check for one specific row.
type flakyDupStore struct {
	*memory.Store
	calls  int
	failOn int
}

func (s *flakyDupStore) TransactionExists(ctx context.Context, userID int64, amount float64, occurredOn civil.Date, description string) (bool, error) {
	s.calls++
	if s.calls == s.failOn {
		return false, errors.New("read timeout")
	}
	return s.Store.TransactionExists(ctx, userID, amount, occurredOn, description)
}

func TestIngestDuplicateCheckFailureSkipsRowOnly(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	require.NoError(t, mem.EnsureDefaultCategories(ctx, 1))

	flaky := &flakyDupStore{Store: mem, failOn: 2}
	svc := New(flaky, mem)

	cands := append(candidates(), domain.TransactionCandidate{
		OccurredOn:  civil.Date{Year: 2024, Month: 11, Day: 7},
		Amount:      250,
		Kind:        domain.KindExpense,
		Description: "Аптека",
		Source:      domain.SourceCSVStatement,
	})

	res, err := svc.Ingest(ctx, 1, cands)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2, Skipped: 1}, res)

	txs, err := mem.ListTransactions(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestIngestResolvesCategoryByNameAndKind(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.EnsureDefaultCategories(ctx, 1))
	svc := New(s, s)

	// The default set holds an Uncategorized category for each kind.
	cands := []domain.TransactionCandidate{
		{
			OccurredOn:   civil.Date{Year: 2024, Month: 11, Day: 3},
			Amount:       100,
			Kind:         domain.KindIncome,
			Description:  "кэшбэк",
			CategoryHint: domain.DefaultCategoryName,
			Source:       domain.SourceChatText,
		},
	}
	_, err := svc.Ingest(ctx, 1, cands)
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	cats, err := s.ListCategories(ctx, 1)
	require.NoError(t, err)
	var wantID string
	for _, c := range cats {
		if c.Name == domain.DefaultCategoryName && c.Kind == domain.KindIncome {
			wantID = c.ID
		}
	}
	require.NotEmpty(t, wantID)
	assert.Equal(t, wantID, txs[0].CategoryID)
}

func TestIngestUnknownHintStoredUncategorized(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.EnsureDefaultCategories(ctx, 1))
	svc := New(s, s)

	cands := []domain.TransactionCandidate{
		{
			OccurredOn:   civil.Date{Year: 2024, Month: 11, Day: 4},
			Amount:       42,
			Kind:         domain.KindExpense,
			Description:  "что-то",
			CategoryHint: "Несуществующая",
			Source:       domain.SourceChatText,
		},
	}
	res, err := svc.Ingest(ctx, 1, cands)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	txs, err := s.ListTransactions(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Empty(t, txs[0].CategoryID)
}

func TestIngestHintLookupIsCaseSensitive(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.EnsureDefaultCategories(ctx, 1))
	svc := New(s, s)

	cands := []domain.TransactionCandidate{
		{
			OccurredOn:   civil.Date{Year: 2024, Month: 11, Day: 5},
			Amount:       10,
			Kind:         domain.KindExpense,
			Description:  "кофе",
			CategoryHint: "кафе", // category is named "Кафе"
			Source:       domain.SourceChatText,
		},
	}
	_, err := svc.Ingest(ctx, 1, cands)
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Empty(t, txs[0].CategoryID)
}

func TestIngestEmptyDescriptionsCompareEqual(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := New(s, s)

	cands := []domain.TransactionCandidate{
		{
			OccurredOn: civil.Date{Year: 2024, Month: 11, Day: 6},
			Amount:     77,
			Kind:       domain.KindExpense,
			Source:     domain.SourceChatText,
		},
	}

	first, err := svc.Ingest(ctx, 1, cands)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := svc.Ingest(ctx, 1, cands)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
}
