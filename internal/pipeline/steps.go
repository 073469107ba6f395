package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

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

// stageUploadStep copies the raw bytes into the staging bucket so a
// failed run can be replayed. Skipped when staging is not configured.
type stageUploadStep struct {
	staging gcs.Storage
}

func (s *stageUploadStep) Name() string { return "stage upload" }

func (s *stageUploadStep) Execute(ctx context.Context, state *State) error {
	if s.staging == nil {
		return nil
	}
	uri, err := s.staging.Upload(ctx, gcs.ObjectName(state.UserID, state.Filename), state.Raw)
	if err != nil {
		return err
	}
	state.GCSURI = uri
	return nil
}

// recordDocumentStep inserts the documents audit row.
type recordDocumentStep struct {
	documents store.DocumentStore
}

func (s *recordDocumentStep) Name() string { return "record document" }

func (s *recordDocumentStep) Execute(ctx context.Context, state *State) error {
	doc := &domain.Document{
		UserID:    state.UserID,
		Filename:  state.Filename,
		MIMEType:  state.MIMEType,
		GCSURI:    state.GCSURI,
		SizeBytes: int64(len(state.Raw)),
	}
	if err := s.documents.InsertDocument(ctx, doc); err != nil {
		return err
	}
	state.DocumentID = doc.ID
	return nil
}

type startRunStep struct {
	documents store.DocumentStore
}

func (s *startRunStep) Name() string { return "start parsing run" }

func (s *startRunStep) Execute(ctx context.Context, state *State) error {
	runID, err := s.documents.StartParsingRun(ctx, state.DocumentID)
	if err != nil {
		return err
	}
	state.ParsingRunID = runID
	return nil
}

// loadCategoriesStep seeds defaults for first-time users and loads the
// category set the parsers and categorizer prompt with.
type loadCategoriesStep struct {
	categories store.CategoryStore
}

func (s *loadCategoriesStep) Name() string { return "load categories" }

func (s *loadCategoriesStep) Execute(ctx context.Context, state *State) error {
	if err := s.categories.EnsureDefaultCategories(ctx, state.UserID); err != nil {
		return err
	}
	categories, err := s.categories.ListCategories(ctx, state.UserID)
	if err != nil {
		return err
	}
	state.Categories = categories
	return nil
}

// detectFormatStep picks the parser from the file extension, falling
// back to the MIME type for extension-less uploads.
type detectFormatStep struct{}

func (s *detectFormatStep) Name() string { return "detect format" }

func (s *detectFormatStep) Execute(ctx context.Context, state *State) error {
	source, err := detectSource(state.Filename, state.MIMEType)
	if err != nil {
		return err
	}
	state.Source = source
	return nil
}

func detectSource(filename, mimeType string) (domain.Source, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		return domain.SourceCSVStatement, nil
	case ".xlsx", ".xls":
		return domain.SourceExcelStatement, nil
	case ".pdf":
		return domain.SourcePDFStatement, nil
	case ".jpg", ".jpeg", ".png":
		return domain.SourceReceiptImage, nil
	}

	switch {
	case mimeType == "text/csv":
		return domain.SourceCSVStatement, nil
	case mimeType == "application/pdf":
		return domain.SourcePDFStatement, nil
	case strings.Contains(mimeType, "spreadsheet") || strings.Contains(mimeType, "ms-excel"):
		return domain.SourceExcelStatement, nil
	case strings.HasPrefix(mimeType, "image/"):
		return domain.SourceReceiptImage, nil
	}
	return "", fmt.Errorf("unsupported file format: %q (%s)", filename, mimeType)
}

// parseStep dispatches to the format-specific parser.
type parseStep struct {
	statements  *docparse.Parser
	receipts    *receipt.Parser
	tabularOpts tabular.Options
}

func (s *parseStep) Name() string { return "parse" }

func (s *parseStep) Execute(ctx context.Context, state *State) error {
	switch state.Source {
	case domain.SourceCSVStatement:
		candidates, err := tabular.Parse(state.Raw, tabular.KindCSV, s.tabularOpts)
		if err != nil {
			return err
		}
		state.Candidates = candidates

	case domain.SourceExcelStatement:
		candidates, err := tabular.Parse(state.Raw, tabular.KindExcel, s.tabularOpts)
		if err != nil {
			return err
		}
		state.Candidates = candidates

	case domain.SourcePDFStatement:
		candidates, err := s.statements.Parse(ctx, state.Raw, state.MIMEType, state.Categories)
		if err != nil {
			return err
		}
		state.Candidates = candidates

	case domain.SourceReceiptImage:
		doc, err := s.receipts.Parse(ctx, state.Raw, state.Categories)
		if err != nil {
			return err
		}
		state.Candidates = []domain.TransactionCandidate{doc.Candidate()}

	default:
		return fmt.Errorf("no parser for source %q", state.Source)
	}
	return nil
}

// categorizeStep fills hints. Rule lookup failures only cost the rule
// shortcut, so they are logged and the LLM path proceeds.
type categorizeStep struct {
	categorizer *categorize.Categorizer
	rules       store.MerchantRuleStore
}

func (s *categorizeStep) Name() string { return "categorize" }

func (s *categorizeStep) Execute(ctx context.Context, state *State) error {
	rules, err := s.rules.ListMerchantRules(ctx, state.UserID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("failed to load merchant rules, categorizing without them")
		rules = nil
	}
	state.Candidates = s.categorizer.Categorize(ctx, state.Candidates, state.Categories, rules)
	return nil
}

type ingestStep struct {
	ingestor *ingest.Service
}

func (s *ingestStep) Name() string { return "ingest" }

func (s *ingestStep) Execute(ctx context.Context, state *State) error {
	result, err := s.ingestor.Ingest(ctx, state.UserID, state.Candidates)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

type markSucceededStep struct {
	documents store.DocumentStore
}

func (s *markSucceededStep) Name() string { return "mark succeeded" }

func (s *markSucceededStep) Execute(ctx context.Context, state *State) error {
	return s.documents.MarkParsingRunSucceeded(ctx, state.ParsingRunID, state.Result.Created, state.Result.Skipped)
}
