package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedTransaction is one row produced by an extractor or layout parser
// before persistence. Date is nil when the row carried no parseable date.
type ExtractedTransaction struct {
	Date        *time.Time
	Amount      decimal.Decimal
	Description string
	Currency    string
}

// ParseResult is the normalized output of the parser chain for one document.
// Amount and Date describe a single-amount receipt; Transactions carries the
// per-line rows of a statement or an invoice installment table. A result may
// be partial: the pipeline decides between PROCESSED and REQUIRES_REVIEW.
type ParseResult struct {
	DocType        DocumentType
	Date           *time.Time
	Amount         *decimal.Decimal
	MerchantOrBank string
	Transactions   []ExtractedTransaction
}

// HasAmount reports whether the result carries a usable single amount.
func (r *ParseResult) HasAmount() bool {
	return r.Amount != nil && !r.Amount.IsZero()
}

// Empty reports whether extraction produced nothing reviewable: no amount,
// no date and no transactions. Such documents are routed to human review.
func (r *ParseResult) Empty() bool {
	return !r.HasAmount() && r.Date == nil && len(r.Transactions) == 0
}
