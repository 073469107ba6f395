// Package tabular ingests CSV and Excel bank statements. Column layout
// is guessed from the header row using configurable keyword lists, with
// a positional fallback, so it copes with most bank export formats
// without per-bank templates.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/normalize"
)

// Kind selects the byte-stream format.
type Kind int

const (
	KindCSV Kind = iota
	KindExcel
)

// csvDelimiters are tried in order; the first one that yields at least
// two header columns wins.
var csvDelimiters = []rune{',', ';', '\t'}

// Options carries the header keyword lists used for column detection.
// The lists are configuration data, not code, so deployments can extend
// them for other locales.
type Options struct {
	DateKeywords        []string
	AmountKeywords      []string
	DescriptionKeywords []string
}

// DefaultOptions returns the built-in Russian/English keyword lists.
func DefaultOptions() Options {
	return Options{
		DateKeywords:        []string{"дата", "date", "день"},
		AmountKeywords:      []string{"сумма", "amount", "сум"},
		DescriptionKeywords: []string{"описание", "description", "опис", "назначение"},
	}
}

// Parse reads a statement byte stream and returns one candidate per
// usable row. Rows whose amount cannot be parsed or is zero are dropped
// silently; an unreadable file is an error. Category hints are never
// set here — categorization is always deferred to the categorizer.
func Parse(data []byte, kind Kind, opts Options) ([]domain.TransactionCandidate, error) {
	var (
		rows   [][]string
		source domain.Source
		err    error
	)
	switch kind {
	case KindCSV:
		rows, err = readCSV(data)
		source = domain.SourceCSVStatement
	case KindExcel:
		rows, err = readExcel(data)
		source = domain.SourceExcelStatement
	default:
		return nil, fmt.Errorf("tabular: unknown statement kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("tabular: statement has no data rows")
	}

	dateCol, amountCol, descCol := detectColumns(rows[0], opts)

	candidates := make([]domain.TransactionCandidate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		c, ok := candidateFromRow(row, dateCol, amountCol, descCol, source)
		if ok {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

// readCSV loads the byte stream trying each delimiter in turn. Header
// row is assumed present.
func readCSV(data []byte) ([][]string, error) {
	for _, delim := range csvDelimiters {
		r := csv.NewReader(bytes.NewReader(data))
		r.Comma = delim
		r.LazyQuotes = true
		r.FieldsPerRecord = -1

		records, err := r.ReadAll()
		if err != nil || len(records) == 0 {
			continue
		}
		if len(records[0]) >= 2 {
			return records, nil
		}
	}
	return nil, fmt.Errorf("tabular: unable to detect CSV delimiter")
}

// readExcel loads the first worksheet of an .xlsx/.xls stream.
func readExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tabular: opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("tabular: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("tabular: reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// detectColumns maps header names to the date/amount/description roles.
// Unmatched roles fall back positionally: column 0 is the date, column
// 1 the amount, column 2 (if present) the description.
func detectColumns(header []string, opts Options) (dateCol, amountCol, descCol int) {
	dateCol, amountCol, descCol = -1, -1, -1
	for i, name := range header {
		lower := strings.ToLower(strings.TrimSpace(name))
		switch {
		case dateCol == -1 && matchesAny(lower, opts.DateKeywords):
			dateCol = i
		case amountCol == -1 && matchesAny(lower, opts.AmountKeywords):
			amountCol = i
		case descCol == -1 && matchesAny(lower, opts.DescriptionKeywords):
			descCol = i
		}
	}
	if dateCol == -1 {
		dateCol = 0
	}
	if amountCol == -1 {
		amountCol = 1
	}
	if descCol == -1 && len(header) > 2 {
		descCol = 2
	}
	return dateCol, amountCol, descCol
}

func matchesAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// candidateFromRow converts one table row. The amount's arithmetic sign
// decides the kind: non-negative is income, negative is expense. Rows
// with a zero amount are dropped, never forwarded.
func candidateFromRow(row []string, dateCol, amountCol, descCol int, source domain.Source) (domain.TransactionCandidate, bool) {
	if amountCol >= len(row) {
		return domain.TransactionCandidate{}, false
	}

	occurredOn := civil.DateOf(time.Now())
	if dateCol < len(row) {
		if d, err := normalize.ParseDate(row[dateCol]); err == nil {
			occurredOn = d
		}
	}

	amount, err := normalize.ParseAmount(row[amountCol])
	if err != nil {
		return domain.TransactionCandidate{}, false
	}

	kind := domain.KindIncome
	if amount < 0 {
		kind = domain.KindExpense
		amount = -amount
	}
	if amount <= 0 {
		return domain.TransactionCandidate{}, false
	}

	description := ""
	if descCol >= 0 && descCol < len(row) {
		description = strings.TrimSpace(row[descCol])
	}

	return domain.TransactionCandidate{
		OccurredOn:  occurredOn,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Source:      source,
	}, true
}
