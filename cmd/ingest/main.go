// Command ingest processes a single statement file or chat message for
// one user. With -dry-run everything runs against an in-memory store,
// so the output shows what would be created without writing anywhere.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/mkuznetsov/finbot/internal/categorize"
	"github.com/mkuznetsov/finbot/internal/config"
	"github.com/mkuznetsov/finbot/internal/docparse"
	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/gcs"
	"github.com/mkuznetsov/finbot/internal/ingest"
	"github.com/mkuznetsov/finbot/internal/llm"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/pipeline"
	"github.com/mkuznetsov/finbot/internal/receipt"
	"github.com/mkuznetsov/finbot/internal/store"
	bqstore "github.com/mkuznetsov/finbot/internal/store/bigquery"
	"github.com/mkuznetsov/finbot/internal/store/memory"
	"github.com/mkuznetsov/finbot/internal/tabular"
	"github.com/mkuznetsov/finbot/internal/textparse"
)

func main() {
	log := logger.New()

	configPath := flag.String("config", "", "path to config file")
	userID := flag.Int64("user", 0, "user ID to ingest for (required)")
	filePath := flag.String("file", "", "statement or receipt file to process")
	text := flag.String("text", "", "chat message to parse as a transaction")
	dryRun := flag.Bool("dry-run", false, "process against an in-memory store")
	flag.Parse()

	if *userID == 0 {
		log.Fatal().Msg("-user is required")
	}
	if (*filePath == "") == (*text == "") {
		log.Fatal().Msg("exactly one of -file or -text is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout*4)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client, err := llm.NewGeminiClient(ctx, cfg.LLM.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create LLM client")
	}

	st, cleanup, err := openStore(ctx, cfg, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer cleanup()

	categorizer := categorize.New(client, cfg.LLM.CategorizerChunkSize)
	ingestor := ingest.New(st, st)

	var result ingest.Result
	if *text != "" {
		result, err = ingestText(ctx, st, categorizer, ingestor, *userID, *text)
	} else {
		result, err = ingestFile(ctx, cfg, st, client, categorizer, ingestor, *userID, *filePath, *dryRun)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}

	fmt.Printf("created %d, skipped %d\n", result.Created, result.Skipped)
}

func ingestText(ctx context.Context, st store.Store, categorizer *categorize.Categorizer, ingestor *ingest.Service, userID int64, text string) (ingest.Result, error) {
	cand, ok := textparse.Parse(text)
	if !ok {
		return ingest.Result{}, fmt.Errorf("message is not a transaction: %q", text)
	}

	if err := st.EnsureDefaultCategories(ctx, userID); err != nil {
		return ingest.Result{}, err
	}
	categories, err := st.ListCategories(ctx, userID)
	if err != nil {
		return ingest.Result{}, err
	}
	rules, err := st.ListMerchantRules(ctx, userID)
	if err != nil {
		return ingest.Result{}, err
	}

	candidates := categorizer.Categorize(ctx, []domain.TransactionCandidate{*cand}, categories, rules)
	return ingestor.Ingest(ctx, userID, candidates)
}

func ingestFile(ctx context.Context, cfg *config.Config, st store.Store, client llm.Client, categorizer *categorize.Categorizer, ingestor *ingest.Service, userID int64, filePath string, dryRun bool) (ingest.Result, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("read %s: %w", filePath, err)
	}

	pipelineCfg := pipeline.Config{
		Store:       st,
		Statements:  docparse.New(client),
		Receipts:    receipt.New(client),
		Categorizer: categorizer,
		Ingestor:    ingestor,
		TabularOpts: tabularOptions(cfg),
	}
	if cfg.GCS.Bucket != "" && !dryRun {
		pipelineCfg.Staging = gcs.New(cfg.GCS.Bucket)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filePath))
	return pipeline.New(pipelineCfg).Process(ctx, userID, filepath.Base(filePath), mimeType, raw)
}

func openStore(ctx context.Context, cfg *config.Config, dryRun bool) (store.Store, func(), error) {
	if dryRun || cfg.BigQuery.ProjectID == "" {
		return memory.New(), func() {}, nil
	}
	st, err := bqstore.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

func tabularOptions(cfg *config.Config) tabular.Options {
	opts := tabular.DefaultOptions()
	if len(cfg.Parsing.DateKeywords) > 0 {
		opts.DateKeywords = cfg.Parsing.DateKeywords
	}
	if len(cfg.Parsing.AmountKeywords) > 0 {
		opts.AmountKeywords = cfg.Parsing.AmountKeywords
	}
	if len(cfg.Parsing.DescriptionKeywords) > 0 {
		opts.DescriptionKeywords = cfg.Parsing.DescriptionKeywords
	}
	return opts
}
