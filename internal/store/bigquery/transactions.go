package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/store"
)

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	inserter := s.table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rowFromTransaction(tx)); err != nil {
		return fmt.Errorf("CreateTransaction: inserting row: %w", err)
	}
	return nil
}

func (s *Store) TransactionExists(ctx context.Context, userID int64, amount float64, occurredOn civil.Date, description string) (bool, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE user_id = @user_id
		  AND amount = @amount
		  AND occurred_on = @occurred_on
		  AND description = @description
	`, s.tableRef(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "amount", Value: ratFromAmount(amount)},
		{Name: "occurred_on", Value: occurredOn},
		{Name: "description", Value: description},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("TransactionExists: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("TransactionExists: iter next: %w", err)
	}
	return row.N > 0, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID int64, from, to civil.Date) ([]domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			kind,
			amount,
			category_id,
			occurred_on,
			description,
			source,
			created_ts
		FROM %s
		WHERE user_id = @user_id
	`, s.tableRef(transactionsTable))
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	query, params = appendDateRange(query, params, from, to)
	query += " ORDER BY occurred_on, created_ts"

	q := s.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var out []domain.Transaction
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Balance aggregates income and expense server-side. Empty result sets
// yield zero totals, so Balance is always income minus expense.
func (s *Store) Balance(ctx context.Context, userID int64, from, to civil.Date) (store.BalanceSummary, error) {
	query := fmt.Sprintf(`
		SELECT
			CAST(IFNULL(SUM(IF(kind = 'income', amount, 0)), 0) AS FLOAT64) AS income,
			CAST(IFNULL(SUM(IF(kind = 'expense', amount, 0)), 0) AS FLOAT64) AS expense
		FROM %s
		WHERE user_id = @user_id
	`, s.tableRef(transactionsTable))
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
	query, params = appendDateRange(query, params, from, to)

	q := s.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return store.BalanceSummary{}, fmt.Errorf("Balance: query read: %w", err)
	}

	var agg struct {
		Income  float64 `bigquery:"income"`
		Expense float64 `bigquery:"expense"`
	}
	if err := it.Next(&agg); err != nil {
		return store.BalanceSummary{}, fmt.Errorf("Balance: iter next: %w", err)
	}

	return store.BalanceSummary{
		Income:  agg.Income,
		Expense: agg.Expense,
		Balance: agg.Income - agg.Expense,
	}, nil
}

func appendDateRange(query string, params []bigquery.QueryParameter, from, to civil.Date) (string, []bigquery.QueryParameter) {
	if from.IsValid() {
		query += " AND occurred_on >= @from_date"
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: from})
	}
	if to.IsValid() {
		query += " AND occurred_on <= @to_date"
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: to})
	}
	return query, params
}
