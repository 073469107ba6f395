// Command worker consumes statement-parsing jobs from the in-memory
// queue and runs each one through the ingestion pipeline. Jobs are
// produced by polling a spool directory: every file dropped there is
// published as a parse job for the configured user.
//
// The in-memory queue would be replaced with Cloud Tasks or Pub/Sub in
// a multi-instance deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkuznetsov/finbot/internal/categorize"
	"github.com/mkuznetsov/finbot/internal/config"
	"github.com/mkuznetsov/finbot/internal/docparse"
	"github.com/mkuznetsov/finbot/internal/gcs"
	"github.com/mkuznetsov/finbot/internal/ingest"
	"github.com/mkuznetsov/finbot/internal/jobs"
	"github.com/mkuznetsov/finbot/internal/jobs/inmemory"
	"github.com/mkuznetsov/finbot/internal/llm"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/pipeline"
	"github.com/mkuznetsov/finbot/internal/receipt"
	"github.com/mkuznetsov/finbot/internal/store"
	bqstore "github.com/mkuznetsov/finbot/internal/store/bigquery"
	"github.com/mkuznetsov/finbot/internal/store/memory"
	"github.com/mkuznetsov/finbot/internal/tabular"
)

const spoolPollInterval = 5 * time.Second

func main() {
	log := logger.New()

	configPath := flag.String("config", "", "path to config file")
	spoolDir := flag.String("spool", "", "directory polled for statement files (required)")
	userID := flag.Int64("user", 0, "user ID spooled files belong to (required)")
	flag.Parse()

	if *spoolDir == "" || *userID == 0 {
		log.Fatal().Msg("-spool and -user are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client, err := llm.NewGeminiClient(ctx, cfg.LLM.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create LLM client")
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer cleanup()

	pipelineCfg := pipeline.Config{
		Store:       st,
		Statements:  docparse.New(client),
		Receipts:    receipt.New(client),
		Categorizer: categorize.New(client, cfg.LLM.CategorizerChunkSize),
		Ingestor:    ingest.New(st, st),
		TabularOpts: tabularOptions(cfg),
	}
	var staging gcs.Storage
	if cfg.GCS.Bucket != "" {
		gcsClient := gcs.New(cfg.GCS.Bucket)
		staging = gcsClient
		pipelineCfg.Staging = gcsClient
	}
	proc := pipeline.New(pipelineCfg)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Worker.QueueBufferSize, cfg.Worker.Workers, jobStore)

	handler := func(ctx context.Context, job *jobs.ParseStatementJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("filename", job.Filename).
			Int64("user_id", job.UserID).
			Msg("processing parse job")

		raw, err := loadJobPayload(ctx, staging, job)
		if err != nil {
			return fmt.Errorf("load payload: %w", err)
		}

		result, err := proc.Process(ctx, job.UserID, filepath.Base(job.Filename), job.MIMEType, raw)
		if err != nil {
			return err
		}

		log.Info().
			Str("job_id", job.JobID).
			Int("created", result.Created).
			Int("skipped", result.Skipped).
			Msg("parse job completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("failed to start job consumer")
	}

	go pollSpool(ctx, log, jobQueue, *spoolDir, *userID)

	log.Info().Str("spool", *spoolDir).Msg("worker started, waiting for files")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close job queue")
	}

	log.Info().Msg("worker exited")
}

// pollSpool scans dir on a fixed interval and publishes a parse job for
// every regular file found there.
func pollSpool(ctx context.Context, log zerolog.Logger, publisher jobs.Publisher, dir string, userID int64) {
	doneDir := filepath.Join(dir, "done")
	if err := os.MkdirAll(doneDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create spool done directory")
		return
	}

	ticker := time.NewTicker(spoolPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		scanSpool(ctx, log, publisher, dir, doneDir, userID)
	}
}

// scanSpool does one pass over the spool directory. Each file is moved
// into doneDir BEFORE its job is published: the handler reads the path
// carried by the job, so the job must reference a path that still
// exists when a worker picks it up.
func scanSpool(ctx context.Context, log zerolog.Logger, publisher jobs.Publisher, dir, doneDir string, userID int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("failed to read spool directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(dir, entry.Name())
		dst := filepath.Join(doneDir, entry.Name())

		if err := os.Rename(src, dst); err != nil {
			log.Error().Err(err).Str("file", src).Msg("failed to move spooled file")
			continue
		}

		job := &jobs.ParseStatementJob{
			JobID:     uuid.NewString(),
			UserID:    userID,
			Filename:  dst,
			MIMEType:  mime.TypeByExtension(filepath.Ext(dst)),
			CreatedAt: time.Now().UTC(),
		}
		if err := publisher.PublishParseStatement(ctx, job); err != nil {
			log.Error().Err(err).Str("file", dst).Msg("failed to publish parse job")
			continue
		}
		log.Info().Str("job_id", job.JobID).Str("file", dst).Msg("published parse job")
	}
}

// loadJobPayload reads the job's bytes from GCS when the job carries a
// gs:// URI, otherwise from the local path in Filename.
func loadJobPayload(ctx context.Context, staging gcs.Storage, job *jobs.ParseStatementJob) ([]byte, error) {
	if job.GCSURI != "" {
		if staging == nil {
			return nil, fmt.Errorf("job %s references %s but no bucket is configured", job.JobID, job.GCSURI)
		}
		return staging.Fetch(ctx, job.GCSURI)
	}
	return os.ReadFile(job.Filename)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.BigQuery.ProjectID == "" {
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
