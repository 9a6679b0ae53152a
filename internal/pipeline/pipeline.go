// Package pipeline drives a document from upload to a terminal status. A
// PENDING row is written before any extraction runs so that a crash never
// loses track of an upload; exactly one terminal status is written at the
// end.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"soberana/docledger/internal/csvextractor"
	"soberana/docledger/internal/docparser"
	"soberana/docledger/internal/llm"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"
	"soberana/docledger/internal/pdfextractor"
	"soberana/docledger/internal/store"
	"soberana/docledger/internal/xmlextractor"
)

// Ingestion method labels recorded on the document.
const (
	methodXML = "XML_PARSER"
	methodCSV = "CSV_PARSER"
	methodAI  = "AI_EXTRACTION"
)

// Request describes one upload to process.
type Request struct {
	TenantID         uuid.UUID
	FilePath         string
	OriginalFilename string
	ExpectedType     models.DocumentType
	Password         string
	CompetenceMonth  int
	CompetenceYear   int
}

// Outcome is what intake callers receive for one processed upload.
type Outcome struct {
	Document              *models.Document
	TransactionsExtracted int
}

// Processor runs the ingestion state machine.
type Processor struct {
	store store.Store
	pdf   pdfextractor.Extractor
	chain *docparser.Chain
	ai    llm.Extractor
	log   logging.Logger
}

// New builds a Processor. The AI extractor may be nil; without it the
// pipeline simply has no fallback after the deterministic chain.
func New(st store.Store, pdf pdfextractor.Extractor, chain *docparser.Chain, ai llm.Extractor, log logging.Logger) *Processor {
	if log == nil {
		log = logging.GetLogger()
	}
	if chain == nil {
		chain = docparser.NewChain(log)
	}
	return &Processor{store: st, pdf: pdf, chain: chain, ai: ai, log: log}
}

// Process ingests one file. The returned outcome carries the document with
// its terminal status and the number of transactions extracted; the error
// reports why processing stopped, if it did.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	contentHash := contentHashOf(data)

	if existing, err := p.store.FindDocumentByHash(ctx, req.TenantID, contentHash); err == nil {
		return nil, &parsererror.DuplicateDocumentError{
			TenantID:   req.TenantID,
			ExistingID: existing.ID,
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	doc := &models.Document{
		TenantID:         req.TenantID,
		Filename:         filepath.Base(req.FilePath),
		OriginalFilename: req.OriginalFilename,
		ContentHash:      contentHash,
		DocType:          req.ExpectedType,
		Status:           models.StatusPending,
		CompetenceMonth:  req.CompetenceMonth,
		CompetenceYear:   req.CompetenceYear,
	}
	if doc.DocType == "" {
		doc.DocType = models.DocTypeUnknown
	}
	if doc.OriginalFilename == "" {
		doc.OriginalFilename = doc.Filename
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	p.log.Info("document ingestion started",
		logging.Field{Key: "document_id", Value: doc.ID.String()},
		logging.Field{Key: "tenant_id", Value: req.TenantID.String()},
		logging.Field{Key: "filename", Value: doc.Filename})

	result, rawText, method, err := p.extract(ctx, req, data)
	if err != nil {
		// Keep whatever text was recovered; review tooling reads it.
		doc.RawText = rawText
		return p.fail(ctx, doc, err)
	}

	doc.RawText = rawText
	doc.IngestionMethod = method
	return p.finish(ctx, doc, result)
}

func contentHashOf(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// extract dispatches on the file extension and returns the parse result,
// the raw text persisted for reconciliation, and the method label.
func (p *Processor) extract(ctx context.Context, req Request, data []byte) (*models.ParseResult, string, string, error) {
	switch strings.ToLower(filepath.Ext(req.FilePath)) {
	case ".xml":
		result, err := xmlextractor.Extract(bytes.NewReader(data), req.FilePath)
		return result, string(data), methodXML, err
	case ".csv":
		result, err := csvextractor.Extract(bytes.NewReader(data), req.FilePath)
		return result, string(data), methodCSV, err
	default:
		return p.extractPDF(ctx, req)
	}
}

func (p *Processor) extractPDF(ctx context.Context, req Request) (*models.ParseResult, string, string, error) {
	text, err := p.pdf.ExtractText(req.FilePath, req.Password)
	if err != nil {
		return nil, "", "", err
	}

	result, method, err := p.chain.Run(text, req.ExpectedType)
	if err == nil {
		return result, text, method, nil
	}

	// The AI fallback belongs to auto-detection only: a caller who named
	// the document type gets the deterministic verdict.
	var unsupported *parsererror.UnsupportedLayoutError
	if !errors.As(err, &unsupported) || p.ai == nil ||
		(req.ExpectedType != "" && req.ExpectedType != models.DocTypeUnknown) {
		return nil, text, "", err
	}

	p.log.Info("no layout parser matched, trying AI extraction",
		logging.Field{Key: "filename", Value: req.FilePath})
	result, aiErr := p.ai.Extract(ctx, text)
	if aiErr != nil {
		return nil, text, "", aiErr
	}
	return result, text, methodAI, nil
}

// finish writes the terminal status and the extracted transactions.
func (p *Processor) finish(ctx context.Context, doc *models.Document, result *models.ParseResult) (*Outcome, error) {
	if result.DocType != "" && result.DocType != models.DocTypeUnknown {
		doc.DocType = result.DocType
	}
	if doc.CompetenceMonth == 0 && result.Date != nil {
		doc.CompetenceMonth = int(result.Date.Month())
		doc.CompetenceYear = result.Date.Year()
	}

	if result.Empty() {
		doc.Status = models.StatusRequiresReview
	} else {
		doc.Status = models.StatusProcessed
	}

	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	txs := p.buildTransactions(doc, result)
	if len(txs) > 0 {
		if err := p.store.CreateTransactions(ctx, txs); err != nil {
			return nil, fmt.Errorf("persist transactions: %w", err)
		}
	}

	p.log.Info("document ingestion finished",
		logging.Field{Key: "document_id", Value: doc.ID.String()},
		logging.Field{Key: "status", Value: string(doc.Status)},
		logging.Field{Key: "method", Value: doc.IngestionMethod},
		logging.Field{Key: "transactions", Value: len(txs)})
	return &Outcome{Document: doc, TransactionsExtracted: len(txs)}, nil
}

// fail routes an extraction error. Password problems delete the PENDING row
// so the same file can be resubmitted with credentials; anything else leaves
// an ERROR row behind for inspection.
func (p *Processor) fail(ctx context.Context, doc *models.Document, cause error) (*Outcome, error) {
	var pwRequired *parsererror.PasswordRequiredError
	var pwInvalid *parsererror.InvalidPasswordError
	if errors.As(cause, &pwRequired) || errors.As(cause, &pwInvalid) {
		if err := p.store.DeleteDocument(ctx, doc.TenantID, doc.ID); err != nil {
			p.log.WithError(err).Error("failed to remove password-blocked document",
				logging.Field{Key: "document_id", Value: doc.ID.String()})
		}
		return nil, cause
	}

	doc.Status = models.StatusError
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		p.log.WithError(err).Error("failed to record error status",
			logging.Field{Key: "document_id", Value: doc.ID.String()})
	}
	p.log.WithError(cause).Error("document ingestion failed",
		logging.Field{Key: "document_id", Value: doc.ID.String()})
	return &Outcome{Document: doc}, cause
}

// buildTransactions maps a parse result to persistable rows. A statement
// yields one row per line; a receipt yields its installments, or one
// synthetic row carrying the single extracted amount.
func (p *Processor) buildTransactions(doc *models.Document, result *models.ParseResult) []models.Transaction {
	rows := result.Transactions
	if len(rows) == 0 && doc.DocType == models.DocTypeReceipt && result.HasAmount() {
		tx := models.Transaction{
			TenantID:     doc.TenantID,
			DocumentID:   doc.ID,
			MerchantName: result.MerchantOrBank,
			Date:         result.Date,
			Amount:       *result.Amount,
		}
		return p.stamp([]models.Transaction{tx}, doc)
	}

	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		name := row.Description
		if name == "" {
			name = result.MerchantOrBank
		}
		out = append(out, models.Transaction{
			TenantID:     doc.TenantID,
			DocumentID:   doc.ID,
			MerchantName: name,
			Date:         row.Date,
			Amount:       row.Amount,
		})
	}
	return p.stamp(out, doc)
}

func (p *Processor) stamp(txs []models.Transaction, doc *models.Document) []models.Transaction {
	for i := range txs {
		txs[i].CompetenceMonth = doc.CompetenceMonth
		txs[i].CompetenceYear = doc.CompetenceYear
		if txs[i].CompetenceMonth == 0 && txs[i].Date != nil {
			txs[i].CompetenceMonth = int(txs[i].Date.Month())
			txs[i].CompetenceYear = txs[i].Date.Year()
		}
	}
	return txs
}
