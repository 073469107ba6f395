package notionsync

import (
	"context"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"golang.org/x/sync/errgroup"

	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/store"
)

// maxConcurrentCreates bounds parallel page creation, staying under
// the Notion API rate limit.
const maxConcurrentCreates = 4

// Result reports one export run.
type Result struct {
	Created int
	Skipped int
}

// Syncer exports a user's transactions into one Notion database.
type Syncer struct {
	transactions store.TransactionStore
	categories   store.CategoryStore
	notion       NotionService
	databaseID   string
}

func NewSyncer(transactions store.TransactionStore, categories store.CategoryStore, notion NotionService, databaseID string) *Syncer {
	return &Syncer{
		transactions: transactions,
		categories:   categories,
		notion:       notion,
		databaseID:   databaseID,
	}
}

// Export pushes the user's transactions in [from, to] to Notion.
// Transactions whose ID already appears in the database are skipped,
// so repeat exports are idempotent. Page creation failures are logged
// and cost only that one page.
func (s *Syncer) Export(ctx context.Context, userID int64, from, to civil.Date, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)

	transactions, err := s.transactions.ListTransactions(ctx, userID, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("Export: list transactions: %w", err)
	}
	if len(transactions) == 0 {
		return Result{}, nil
	}

	categoryNames, err := s.categoryNames(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	existing, err := s.existingTransactionIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	var created, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCreates)

	for _, tx := range transactions {
		if existing[tx.ID] {
			skipped.Add(1)
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", tx.ID).Msg("dry run: would create Notion page")
			created.Add(1)
			continue
		}

		tx := tx
		g.Go(func() error {
			props := transactionProperties(tx, categoryNames[tx.CategoryID])
			if _, err := s.notion.CreatePage(gctx, s.databaseID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to create Notion page")
				return nil
			}
			created.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}

	res := Result{Created: int(created.Load()), Skipped: int(skipped.Load())}
	log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Int("total", len(transactions)).Msg("notion export done")
	return res, nil
}

func (s *Syncer) categoryNames(ctx context.Context, userID int64) (map[string]string, error) {
	categories, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Export: list categories: %w", err)
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// existingTransactionIDs pages through the whole Notion database and
// collects the transaction IDs already exported.
func (s *Syncer) existingTransactionIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := s.notion.QueryDatabase(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("Export: query Notion database: %w", err)
		}

		for _, page := range resp.Results {
			if id := pageTransactionID(page); id != "" {
				ids[id] = true
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return ids, nil
}
