// Package domain holds the value types shared by every stage of the
// ingestion pipeline: parser candidates, receipts, categories, merchant
// rules and stored transactions.
package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Kind distinguishes money coming in from money going out. The numeric
// amount is always positive; the sign lives here.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Source records which parser produced a candidate. Used for
// diagnostics only, never for business decisions.
type Source string

const (
	SourceChatText       Source = "chat_text"
	SourceReceiptImage   Source = "receipt_image"
	SourcePDFStatement   Source = "pdf_statement"
	SourceCSVStatement   Source = "csv_statement"
	SourceExcelStatement Source = "excel_statement"
)

// DefaultCategoryName is assigned when no category can be determined.
const DefaultCategoryName = "Uncategorized"

// TransactionCandidate is an unpersisted transaction produced by a
// parser. The categorizer fills CategoryHint; ingest resolves the hint
// to a category ID and converts the candidate into a Transaction.
//
// Invariant: Amount > 0. Parsers drop rows that violate it.
type TransactionCandidate struct {
	OccurredOn   civil.Date
	Amount       float64
	Kind         Kind
	Description  string
	CategoryHint string // category name, empty until categorized
	Source       Source
}

// Transaction is a stored, categorized transaction owned by a user.
type Transaction struct {
	ID          string
	UserID      int64
	Kind        Kind
	Amount      float64
	CategoryID  string // empty means uncategorized
	OccurredOn  civil.Date
	Description string
	Source      Source
	CreatedAt   time.Time
}

// Category is a user-owned label for grouping transactions.
type Category struct {
	ID     string
	UserID int64
	Name   string
	Kind   Kind
	Icon   string
}

// MerchantRule maps a normalized merchant name to a category so that
// recurring merchants bypass LLM categorization entirely.
type MerchantRule struct {
	ID                  string
	UserID              int64
	MerchantName        string // normalized: lower-case, trimmed, no trailing punctuation
	CategoryID          string
	DescriptionTemplate string
}
