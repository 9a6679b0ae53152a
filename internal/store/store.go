// Package store persists documents, transactions and tax analyses. Every
// query is tenant-scoped: a tenant ID is part of each lookup and no call can
// cross tenants.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soberana/docledger/internal/models"
)

// ErrNotFound is returned when a scoped lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// ReceiptCandidate is a receipt document joined with its extracted amount,
// date and merchant, as reconciliation consumes it.
type ReceiptCandidate struct {
	Document models.Document
	Amount   decimal.Decimal
	Date     *time.Time
	Merchant string
}

// ReceiptLink is one receipt assignment produced by a reconciliation run.
type ReceiptLink struct {
	TransactionID uuid.UUID
	ReceiptID     uuid.UUID
	Score         float64
	MatchType     models.MatchType
}

// Store is the persistence boundary of the pipeline.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error)
	FindDocumentByHash(ctx context.Context, tenantID uuid.UUID, hash string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, tenantID, id uuid.UUID) error

	CreateTransactions(ctx context.Context, txs []models.Transaction) error
	GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error)
	ListUnlinkedStatementTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error)
	ListTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error)
	ListReceiptCandidates(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]ReceiptCandidate, error)
	LinkReceipt(ctx context.Context, tenantID, transactionID, receiptID uuid.UUID, score float64, matchType models.MatchType) error
	// LinkReceipts applies a batch of links atomically: either every link is
	// written or none is.
	LinkReceipts(ctx context.Context, tenantID uuid.UUID, links []ReceiptLink) error

	SaveTaxAnalysis(ctx context.Context, analysis *models.TaxAnalysis) error
	GetTaxAnalysis(ctx context.Context, tenantID, transactionID uuid.UUID) (*models.TaxAnalysis, error)
}
