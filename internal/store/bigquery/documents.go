package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/mkuznetsov/finbot/internal/domain"
)

func (s *Store) InsertDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}

	row := &documentRow{
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		Filename:   doc.Filename,
		MIMEType:   doc.MIMEType,
		GCSURI:     doc.GCSURI,
		SizeBytes:  doc.SizeBytes,
		UploadedTS: doc.UploadedAt,
	}
	inserter := s.table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}
	return nil
}

// StartParsingRun opens a RUNNING run via DML so the row is
// immediately visible to the status updates that follow.
func (s *Store) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	runID := uuid.NewString()

	query := fmt.Sprintf(`
		INSERT %s (parsing_run_id, document_id, started_ts, status)
		VALUES (@parsing_run_id, @document_id, @started_ts, @status)
	`, s.tableRef(parsingRunsTable))
	params := []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: runID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: string(domain.RunRunning)},
	}

	if err := s.runDML(ctx, query, params); err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}
	return runID, nil
}

func (s *Store) MarkParsingRunSucceeded(ctx context.Context, runID string, created, skipped int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    created_count = @created_count,
		    skipped_count = @skipped_count,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, s.tableRef(parsingRunsTable))
	params := []bigquery.QueryParameter{
		{Name: "status", Value: string(domain.RunSucceeded)},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "created_count", Value: int64(created)},
		{Name: "skipped_count", Value: int64(skipped)},
		{Name: "parsing_run_id", Value: runID},
	}

	if err := s.runDML(ctx, query, params); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}

func (s *Store) MarkParsingRunFailed(ctx context.Context, runID string, cause string) error {
	const maxLen = 2000
	if len(cause) > maxLen {
		cause = cause[:maxLen]
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, s.tableRef(parsingRunsTable))
	params := []bigquery.QueryParameter{
		{Name: "status", Value: string(domain.RunFailed)},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: cause},
		{Name: "parsing_run_id", Value: runID},
	}

	if err := s.runDML(ctx, query, params); err != nil {
		return fmt.Errorf("MarkParsingRunFailed: %w", err)
	}
	return nil
}
