// Package memory is a mutex-guarded in-memory Store used by tests and
// the dry-run ingest mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/store"
)

// Store keeps everything in maps keyed by ID. Safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	transactions map[string]domain.Transaction
	categories   map[string]domain.Category
	rules        map[string]domain.MerchantRule
	documents    map[string]domain.Document
	runs         map[string]domain.ParsingRun
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		categories:   make(map[string]domain.Category),
		rules:        make(map[string]domain.MerchantRule),
		documents:    make(map[string]domain.Document),
		runs:         make(map[string]domain.ParsingRun),
	}
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.transactions[tx.ID] = *tx
	return nil
}

func (s *Store) TransactionExists(ctx context.Context, userID int64, amount float64, occurredOn civil.Date, description string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.Amount == amount && tx.OccurredOn == occurredOn && tx.Description == description {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID int64, from, to civil.Date) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID || !inRange(tx.OccurredOn, from, to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) Balance(ctx context.Context, userID int64, from, to civil.Date) (store.BalanceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary store.BalanceSummary
	for _, tx := range s.transactions {
		if tx.UserID != userID || !inRange(tx.OccurredOn, from, to) {
			continue
		}
		switch tx.Kind {
		case domain.KindIncome:
			summary.Income += tx.Amount
		case domain.KindExpense:
			summary.Expense += tx.Amount
		}
	}
	summary.Balance = summary.Income - summary.Expense
	return summary, nil
}

func (s *Store) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, category *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	s.categories[category.ID] = *category
	return nil
}

func (s *Store) EnsureDefaultCategories(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.UserID == userID {
			return nil
		}
	}
	for _, c := range store.DefaultCategories(userID) {
		c.ID = uuid.NewString()
		s.categories[c.ID] = c
	}
	return nil
}

func (s *Store) ListMerchantRules(ctx context.Context, userID int64) ([]domain.MerchantRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.MerchantRule
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) SaveMerchantRule(ctx context.Context, rule *domain.MerchantRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One rule per (user, merchant): overwrite in place.
	for id, existing := range s.rules {
		if existing.UserID == rule.UserID && existing.MerchantName == rule.MerchantName {
			rule.ID = id
			s.rules[id] = *rule
			return nil
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.rules[rule.ID] = *rule
	return nil
}

func (s *Store) InsertDocument(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	s.documents[doc.ID] = *doc
	return nil
}

func (s *Store) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := domain.ParsingRun{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Status:     domain.RunRunning,
		StartedAt:  time.Now(),
	}
	s.runs[run.ID] = run
	return run.ID, nil
}

func (s *Store) MarkParsingRunSucceeded(ctx context.Context, runID string, created, skipped int) error {
	return s.finishRun(runID, func(run *domain.ParsingRun) {
		run.Status = domain.RunSucceeded
		run.Created = created
		run.Skipped = skipped
	})
}

func (s *Store) MarkParsingRunFailed(ctx context.Context, runID string, cause string) error {
	return s.finishRun(runID, func(run *domain.ParsingRun) {
		run.Status = domain.RunFailed
		run.Error = cause
	})
}

func (s *Store) finishRun(runID string, update func(*domain.ParsingRun)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("memory: parsing run %s not found", runID)
	}
	update(&run)
	run.FinishedAt = time.Now()
	s.runs[runID] = run
	return nil
}

// ParsingRun returns a run by ID, for tests.
func (s *Store) ParsingRun(runID string) (domain.ParsingRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	return run, ok
}

func inRange(d, from, to civil.Date) bool {
	if from.IsValid() && d.Before(from) {
		return false
	}
	if to.IsValid() && d.After(to) {
		return false
	}
	return true
}
