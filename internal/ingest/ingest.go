// Package ingest converts categorized candidates into stored
// transactions, suppressing exact-tuple duplicates.
package ingest

import (
	"context"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/store"
)

// Result reports how a batch was absorbed.
type Result struct {
	Created int
	Skipped int
}

// Service writes candidates to the transaction store.
type Service struct {
	transactions store.TransactionStore
	categories   store.CategoryStore
}

func New(transactions store.TransactionStore, categories store.CategoryStore) *Service {
	return &Service{transactions: transactions, categories: categories}
}

// Ingest stores every non-duplicate candidate for the user. A duplicate
// is an existing transaction with the same (amount, occurred_on,
// description) tuple — descriptions compare exactly, empty included.
// Per-row store failures are counted as skipped and never abort the
// rest of the batch.
func (s *Service) Ingest(ctx context.Context, userID int64, candidates []domain.TransactionCandidate) (Result, error) {
	log := logger.FromContext(ctx)

	categoryID := s.categoryResolver(ctx, userID)

	var res Result
	for _, cand := range candidates {
		exists, err := s.transactions.TransactionExists(ctx, userID, cand.Amount, cand.OccurredOn, cand.Description)
		if err != nil {
			log.Warn().Err(err).Str("description", cand.Description).Msg("duplicate check failed, skipping row")
			res.Skipped++
			continue
		}
		if exists {
			res.Skipped++
			continue
		}

		tx := &domain.Transaction{
			UserID:      userID,
			Kind:        cand.Kind,
			Amount:      cand.Amount,
			CategoryID:  categoryID(cand.CategoryHint, cand.Kind),
			OccurredOn:  cand.OccurredOn,
			Description: cand.Description,
			Source:      cand.Source,
		}
		if err := s.transactions.CreateTransaction(ctx, tx); err != nil {
			log.Warn().Err(err).Str("description", cand.Description).Msg("failed to store transaction, skipping row")
			res.Skipped++
			continue
		}
		res.Created++
	}

	log.Info().Int64("user_id", userID).Int("created", res.Created).Int("skipped", res.Skipped).Msg("ingested candidates")
	return res, nil
}

// categoryResolver resolves hint names to category IDs with one
// up-front list call. Name lookup is exact and case-sensitive; when a
// name exists for both kinds, the candidate's own kind picks the
// category. A miss stores the transaction uncategorized, a lookup
// failure just disables resolution for this batch.
func (s *Service) categoryResolver(ctx context.Context, userID int64) func(hint string, kind domain.Kind) string {
	log := logger.FromContext(ctx)

	categories, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list categories, storing batch uncategorized")
		return func(string, domain.Kind) string { return "" }
	}

	return func(hint string, kind domain.Kind) string {
		if hint == "" {
			return ""
		}
		fallback := ""
		for _, c := range categories {
			if c.Name != hint {
				continue
			}
			if c.Kind == kind {
				return c.ID
			}
			if fallback == "" {
				fallback = c.ID
			}
		}
		return fallback
	}
}
