package domain

import "time"

// ReceiptLineItem is a single purchased item recognized on a receipt.
type ReceiptLineItem struct {
	Name      string
	Quantity  float64
	UnitPrice float64
	LineTotal float64
}

// ReceiptDocument is the structured result of running a receipt image
// through the vision model. TotalAmount is mandatory; everything else
// is best effort. RawSourceText keeps the literal model reply for
// audit and debugging.
type ReceiptDocument struct {
	StoreName     string
	ReceiptDate   time.Time
	TotalAmount   float64
	VATAmount     float64
	ReceiptNumber string
	LineItems     []ReceiptLineItem
	CategoryHint  string
	RawSourceText string
}

// Candidate converts the receipt into an expense candidate for the
// ingest pipeline. Receipts are always expenses.
func (r *ReceiptDocument) Candidate() TransactionCandidate {
	desc := r.StoreName
	if desc == "" {
		desc = "Receipt"
		if r.ReceiptNumber != "" {
			desc = "Receipt " + r.ReceiptNumber
		}
	}
	return TransactionCandidate{
		OccurredOn:   civilDateOf(r.ReceiptDate),
		Amount:       r.TotalAmount,
		Kind:         KindExpense,
		Description:  desc,
		CategoryHint: r.CategoryHint,
		Source:       SourceReceiptImage,
	}
}
