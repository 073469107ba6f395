// Package store defines the persistence interfaces consumed by the
// ingestion pipeline and the default category set seeded for new users.
package store

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/mkuznetsov/finbot/internal/domain"
)

// BalanceSummary is income minus expense over a period. Both totals
// default to zero on empty result sets, so Balance is always defined.
type BalanceSummary struct {
	Income  float64
	Expense float64
	Balance float64
}

// TransactionStore persists transactions and answers the duplicate
// check ingest relies on.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error

	// TransactionExists reports whether the user already has a
	// transaction with this exact (amount, date, description) tuple.
	TransactionExists(ctx context.Context, userID int64, amount float64, occurredOn civil.Date, description string) (bool, error)

	ListTransactions(ctx context.Context, userID int64, from, to civil.Date) ([]domain.Transaction, error)

	Balance(ctx context.Context, userID int64, from, to civil.Date) (BalanceSummary, error)
}

// CategoryStore manages per-user categories.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) error

	// EnsureDefaultCategories seeds the default set for users that
	// have no categories yet. Idempotent.
	EnsureDefaultCategories(ctx context.Context, userID int64) error
}

// MerchantRuleStore manages the per-user rules that bypass LLM
// categorization for recurring merchants.
type MerchantRuleStore interface {
	ListMerchantRules(ctx context.Context, userID int64) ([]domain.MerchantRule, error)
	SaveMerchantRule(ctx context.Context, rule *domain.MerchantRule) error
}

// DocumentStore records uploaded files and their parsing runs for
// auditing.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *domain.Document) error

	// StartParsingRun opens a RUNNING run for the document and
	// returns its ID.
	StartParsingRun(ctx context.Context, documentID string) (string, error)

	MarkParsingRunSucceeded(ctx context.Context, runID string, created, skipped int) error
	MarkParsingRunFailed(ctx context.Context, runID string, cause string) error
}

// Store is the full persistence surface the pipeline works against.
type Store interface {
	TransactionStore
	CategoryStore
	MerchantRuleStore
	DocumentStore
}

// DefaultCategories returns the category set seeded for a new user.
// Names stay in the user's language; the default bucket keeps the
// language-agnostic DefaultCategoryName on both sides.
func DefaultCategories(userID int64) []domain.Category {
	defaults := []struct {
		name string
		icon string
		kind domain.Kind
	}{
		{"Зарплата", "💼", domain.KindIncome},
		{"Фриланс", "💻", domain.KindIncome},
		{"Подарки", "🎁", domain.KindIncome},
		{domain.DefaultCategoryName, "💰", domain.KindIncome},
		{"Продукты", "🛒", domain.KindExpense},
		{"Транспорт", "🚗", domain.KindExpense},
		{"Развлечения", "🎬", domain.KindExpense},
		{"Здоровье", "🏥", domain.KindExpense},
		{"Связь", "📱", domain.KindExpense},
		{"Кафе", "☕", domain.KindExpense},
		{"Одежда", "👕", domain.KindExpense},
		{domain.DefaultCategoryName, "📦", domain.KindExpense},
	}

	categories := make([]domain.Category, 0, len(defaults))
	for _, d := range defaults {
		categories = append(categories, domain.Category{
			UserID: userID,
			Name:   d.name,
			Kind:   d.kind,
			Icon:   d.icon,
		})
	}
	return categories
}
