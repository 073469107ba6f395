// Package bigquery implements store.Store on BigQuery. Transactions,
// categories, merchant rules and document/parsing-run audit rows live
// in one dataset; amounts are NUMERIC with two decimal places.
package bigquery

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"cloud.google.com/go/bigquery"

	"github.com/mkuznetsov/finbot/internal/store"
)

const (
	transactionsTable  = "transactions"
	categoriesTable    = "categories"
	merchantRulesTable = "merchant_rules"
	documentsTable     = "documents"
	parsingRunsTable   = "parsing_runs"
)

// Store talks to one BigQuery dataset.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	ownClient bool
}

var _ store.Store = (*Store)(nil)

// New creates a Store with its own BigQuery client. Close releases it.
func New(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery.New: client: %w", err)
	}
	s := NewWithClient(client, projectID, datasetID)
	s.ownClient = true
	return s, nil
}

// NewWithClient wraps an existing client; the caller keeps ownership.
func NewWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{client: client, projectID: projectID, datasetID: datasetID}
}

func (s *Store) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

func (s *Store) table(name string) *bigquery.Table {
	return s.client.DatasetInProject(s.projectID, s.datasetID).Table(name)
}

func (s *Store) tableRef(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, name)
}

// runDML executes a parameterized statement and waits for the job.
func (s *Store) runDML(ctx context.Context, query string, params []bigquery.QueryParameter) error {
	q := s.client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("runDML: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("runDML: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("runDML: job error: %w", err)
	}
	return nil
}

// ratFromAmount converts to NUMERIC, keeping exactly two decimal
// places so the duplicate-check equality is stable.
func ratFromAmount(amount float64) *big.Rat {
	return big.NewRat(int64(math.Round(amount*100)), 100)
}

func amountFromRat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}
