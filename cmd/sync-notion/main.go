// Command sync-notion exports a user's transactions for a date range
// into a Notion database, skipping pages that were exported before.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mkuznetsov/finbot/internal/config"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/notionsync"
	bqstore "github.com/mkuznetsov/finbot/internal/store/bigquery"
)

func main() {
	log := logger.New()

	configPath := flag.String("config", "", "path to config file")
	userID := flag.Int64("user", 0, "user ID to export (required)")
	startDate := flag.String("start-date", "", "range start, YYYY-MM-DD (required)")
	endDate := flag.String("end-date", "", "range end, YYYY-MM-DD (required)")
	dryRun := flag.Bool("dry-run", false, "report what would be exported without creating pages")
	flag.Parse()

	if *userID == 0 || *startDate == "" || *endDate == "" {
		log.Fatal().Msg("-user, -start-date and -end-date are required")
	}

	from, err := civil.ParseDate(*startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -start-date")
	}
	to, err := civil.ParseDate(*endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -end-date")
	}
	if to.Before(from) {
		log.Fatal().Msg("-end-date is before -start-date")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		log.Fatal().Msg("notion.token and notion.database_id must be configured")
	}
	if cfg.BigQuery.ProjectID == "" {
		log.Fatal().Msg("bigquery.project_id must be configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := bqstore.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	notion := notionsync.NewNotionClient(cfg.Notion.Token)
	syncer := notionsync.NewSyncer(st, st, notion, cfg.Notion.DatabaseID)

	result, err := syncer.Export(ctx, *userID, from, to, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}

	fmt.Printf("exported %d, skipped %d\n", result.Created, result.Skipped)
}
