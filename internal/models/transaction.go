package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchType records which reconciliation layer produced a receipt link.
type MatchType string

const (
	MatchExactValue       MatchType = "LAYER_1_EXACT_VALUE"
	MatchNumericSubstring MatchType = "LAYER_2_NUMERIC_SUBSTRING"
	MatchKeyword          MatchType = "LAYER_3_KEYWORD_INTERSECTION"
	MatchAutoFuzzy        MatchType = "AUTO_FUZZY"
	MatchManual           MatchType = "MANUAL"
)

// Transaction is one financial movement: a bank statement line or the single
// amount on a receipt. A statement transaction may link to at most one
// RECEIPT document through ReceiptID; a receipt transaction is itself the
// proof and carries no link. Once IsFinalized is set the record is locked
// against automatic reconciliation and reclassification.
type Transaction struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	DocumentID      uuid.UUID
	MerchantName    string
	Date            *time.Time
	Amount          decimal.Decimal
	Category        string
	CompetenceMonth int
	CompetenceYear  int
	IsFinalized     bool

	ReceiptID  *uuid.UUID
	MatchScore float64
	MatchType  MatchType
}

// TaxAnalysis is the classification result for a transaction, produced by an
// external classifier and persisted as-is. When IsManualOverride is set the
// row is never rewritten by batch analysis.
type TaxAnalysis struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	TransactionID uuid.UUID

	Classification   string
	Category         string
	Justification    string
	LegalCitation    string
	RiskLevel        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ModelVersion     string
	IsManualOverride bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
