package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/mkuznetsov/finbot/internal/domain"
)

type transactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	UserID        int64               `bigquery:"user_id"`        // REQUIRED
	Kind          string              `bigquery:"kind"`           // REQUIRED
	Amount        *big.Rat            `bigquery:"amount"`         // REQUIRED NUMERIC
	CategoryID    bigquery.NullString `bigquery:"category_id"`    // NULLABLE
	OccurredOn    civil.Date          `bigquery:"occurred_on"`    // REQUIRED DATE
	Description   string              `bigquery:"description"`    // REQUIRED, may be empty
	Source        string              `bigquery:"source"`         // REQUIRED
	CreatedTS     time.Time           `bigquery:"created_ts"`     // REQUIRED
}

func rowFromTransaction(tx *domain.Transaction) *transactionRow {
	row := &transactionRow{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Kind:          string(tx.Kind),
		Amount:        ratFromAmount(tx.Amount),
		OccurredOn:    tx.OccurredOn,
		Description:   tx.Description,
		Source:        string(tx.Source),
		CreatedTS:     tx.CreatedAt,
	}
	if tx.CategoryID != "" {
		row.CategoryID = bigquery.NullString{StringVal: tx.CategoryID, Valid: true}
	}
	return row
}

func (r *transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		Kind:        domain.Kind(r.Kind),
		Amount:      amountFromRat(r.Amount),
		CategoryID:  r.CategoryID.StringVal,
		OccurredOn:  r.OccurredOn,
		Description: r.Description,
		Source:      domain.Source(r.Source),
		CreatedAt:   r.CreatedTS,
	}
}

type categoryRow struct {
	CategoryID string `bigquery:"category_id"`
	UserID     int64  `bigquery:"user_id"`
	Name       string `bigquery:"category_name"`
	Kind       string `bigquery:"kind"`
	Icon       string `bigquery:"icon"`
}

func (r *categoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:     r.CategoryID,
		UserID: r.UserID,
		Name:   r.Name,
		Kind:   domain.Kind(r.Kind),
		Icon:   r.Icon,
	}
}

type merchantRuleRow struct {
	RuleID              string              `bigquery:"rule_id"`
	UserID              int64               `bigquery:"user_id"`
	MerchantName        string              `bigquery:"merchant_name"`
	CategoryID          string              `bigquery:"category_id"`
	DescriptionTemplate bigquery.NullString `bigquery:"description_template"`
}

func (r *merchantRuleRow) toDomain() domain.MerchantRule {
	return domain.MerchantRule{
		ID:                  r.RuleID,
		UserID:              r.UserID,
		MerchantName:        r.MerchantName,
		CategoryID:          r.CategoryID,
		DescriptionTemplate: r.DescriptionTemplate.StringVal,
	}
}

type documentRow struct {
	DocumentID string    `bigquery:"document_id"`
	UserID     int64     `bigquery:"user_id"`
	Filename   string    `bigquery:"filename"`
	MIMEType   string    `bigquery:"mime_type"`
	GCSURI     string    `bigquery:"gcs_uri"`
	SizeBytes  int64     `bigquery:"size_bytes"`
	UploadedTS time.Time `bigquery:"uploaded_ts"`
}
