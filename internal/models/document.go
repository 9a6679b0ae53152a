// Package models defines the persisted entities and parser exchange types
// shared across the ingestion and reconciliation components.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType classifies an uploaded artifact.
type DocumentType string

const (
	DocTypeReceipt       DocumentType = "RECEIPT"
	DocTypeBankStatement DocumentType = "BANK_STATEMENT"
	DocTypeUnknown       DocumentType = "UNKNOWN"
)

// DocumentStatus is the processing state of a document. A document is created
// PENDING and moves to exactly one terminal status when the pipeline finishes.
type DocumentStatus string

const (
	StatusPending        DocumentStatus = "PENDING"
	StatusProcessed      DocumentStatus = "PROCESSED"
	StatusRequiresReview DocumentStatus = "REQUIRES_REVIEW"
	StatusError          DocumentStatus = "ERROR"
)

// Document is one uploaded source artifact (receipt or bank statement)
// together with its extracted text and processing metadata. ContentHash is
// unique within a tenant and is the duplicate-upload guard.
type Document struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Filename         string
	OriginalFilename string
	ContentHash      string
	DocType          DocumentType
	Status           DocumentStatus
	RawText          string
	IngestionMethod  string
	CompetenceMonth  int
	CompetenceYear   int
	CreatedAt        time.Time
}
