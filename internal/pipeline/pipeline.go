// Package pipeline wires the format parsers, categorizer and ingest
// service into one statement-processing flow with document and
// parsing-run auditing.
package pipeline

import (
	"context"
	"fmt"

	"github.com/mkuznetsov/finbot/internal/categorize"
	"github.com/mkuznetsov/finbot/internal/docparse"
	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/gcs"
	"github.com/mkuznetsov/finbot/internal/ingest"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/receipt"
	"github.com/mkuznetsov/finbot/internal/store"
	"github.com/mkuznetsov/finbot/internal/tabular"
)

// Step is one stage of the ingestion pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State is shared across steps for one upload.
type State struct {
	UserID   int64
	Filename string
	MIMEType string
	Raw      []byte

	GCSURI       string
	DocumentID   string
	ParsingRunID string

	Source     domain.Source
	Categories []domain.Category
	Candidates []domain.TransactionCandidate
	Result     ingest.Result
}

// Pipeline processes one uploaded statement or receipt end to end.
// Safe for concurrent use across users: all per-invocation state lives
// in State.
type Pipeline struct {
	store       store.Store
	staging     gcs.Storage // nil disables GCS staging
	statements  *docparse.Parser
	receipts    *receipt.Parser
	categorizer *categorize.Categorizer
	ingestor    *ingest.Service
	tabularOpts tabular.Options
}

type Config struct {
	Store       store.Store
	Staging     gcs.Storage
	Statements  *docparse.Parser
	Receipts    *receipt.Parser
	Categorizer *categorize.Categorizer
	Ingestor    *ingest.Service
	TabularOpts tabular.Options
}

func New(cfg Config) *Pipeline {
	return &Pipeline{
		store:       cfg.Store,
		staging:     cfg.Staging,
		statements:  cfg.Statements,
		receipts:    cfg.Receipts,
		categorizer: cfg.Categorizer,
		ingestor:    cfg.Ingestor,
		tabularOpts: cfg.TabularOpts,
	}
}

// Process runs every step in order. Once a parsing run is open, any
// step failure marks it FAILED before the error surfaces; success is
// recorded by the final step.
func (p *Pipeline) Process(ctx context.Context, userID int64, filename, mimeType string, raw []byte) (ingest.Result, error) {
	log := logger.FromContext(ctx)

	state := &State{
		UserID:   userID,
		Filename: filename,
		MIMEType: mimeType,
		Raw:      raw,
	}

	steps := []Step{
		&stageUploadStep{staging: p.staging},
		&recordDocumentStep{documents: p.store},
		&startRunStep{documents: p.store},
		&loadCategoriesStep{categories: p.store},
		&detectFormatStep{},
		&parseStep{statements: p.statements, receipts: p.receipts, tabularOpts: p.tabularOpts},
		&categorizeStep{categorizer: p.categorizer, rules: p.store},
		&ingestStep{ingestor: p.ingestor},
		&markSucceededStep{documents: p.store},
	}

	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			p.failRun(ctx, state, err)
			return state.Result, fmt.Errorf("pipeline: %s: %w", step.Name(), err)
		}
		log.Debug().Str("step", step.Name()).Msg("pipeline step done")
	}

	return state.Result, nil
}

// failRun records the failure on the open parsing run. Best effort:
// audit failures are logged, never masking the original error.
func (p *Pipeline) failRun(ctx context.Context, state *State, cause error) {
	if state.ParsingRunID == "" {
		return
	}
	if err := p.store.MarkParsingRunFailed(ctx, state.ParsingRunID, cause.Error()); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("parsing_run_id", state.ParsingRunID).Msg("failed to mark parsing run failed")
	}
}
