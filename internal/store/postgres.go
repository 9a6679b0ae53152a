package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"soberana/docledger/internal/models"
)

// Postgres is the production Store on a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, Schema)
	return err
}

func (p *Postgres) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, filename, original_filename, content_hash,
			doc_type, status, raw_text, ingestion_method, competence_month, competence_year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.TenantID, doc.Filename, doc.OriginalFilename, doc.ContentHash,
		string(doc.DocType), string(doc.Status), doc.RawText, doc.IngestionMethod,
		doc.CompetenceMonth, doc.CompetenceYear, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, tenant_id, filename, original_filename, content_hash,
	doc_type, status, raw_text, ingestion_method, competence_month, competence_year, created_at`

func (p *Postgres) GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanDocument(row)
}

func (p *Postgres) FindDocumentByHash(ctx context.Context, tenantID uuid.UUID, hash string) (*models.Document, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE tenant_id = $1 AND content_hash = $2`, tenantID, hash)
	return scanDocument(row)
}

func (p *Postgres) UpdateDocument(ctx context.Context, doc *models.Document) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE documents
		SET doc_type = $3, status = $4, raw_text = $5, ingestion_method = $6,
			competence_month = $7, competence_year = $8
		WHERE tenant_id = $1 AND id = $2`,
		doc.TenantID, doc.ID, string(doc.DocType), string(doc.Status), doc.RawText,
		doc.IngestionMethod, doc.CompetenceMonth, doc.CompetenceYear)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteDocument(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM documents WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateTransactions(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range txs {
		if txs[i].ID == uuid.Nil {
			txs[i].ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO transactions (id, tenant_id, document_id, merchant_name, date, amount,
				category, competence_month, competence_year, is_finalized, receipt_id, match_score, match_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			txs[i].ID, txs[i].TenantID, txs[i].DocumentID, txs[i].MerchantName, txs[i].Date,
			txs[i].Amount.String(), txs[i].Category, txs[i].CompetenceMonth, txs[i].CompetenceYear,
			txs[i].IsFinalized, txs[i].ReceiptID, txs[i].MatchScore, string(txs[i].MatchType))
	}
	results := p.db.SendBatch(ctx, batch)
	defer results.Close()
	for range txs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return nil
}

const transactionColumns = `t.id, t.tenant_id, t.document_id, t.merchant_name, t.date, t.amount::text,
	t.category, t.competence_month, t.competence_year, t.is_finalized, t.receipt_id, t.match_score, t.match_type`

func (p *Postgres) GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.tenant_id = $1 AND t.id = $2`, tenantID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrNotFound
	}
	return &txs[0], nil
}

func (p *Postgres) ListUnlinkedStatementTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		JOIN documents d ON d.id = t.document_id
		WHERE t.tenant_id = $1
		  AND t.receipt_id IS NULL
		  AND NOT t.is_finalized
		  AND d.doc_type = $2
		ORDER BY t.date NULLS FIRST, t.id`, tenantID, string(models.DocTypeBankStatement))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (p *Postgres) ListTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.tenant_id = $1
		ORDER BY t.date NULLS FIRST, t.id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (p *Postgres) ListReceiptCandidates(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]ReceiptCandidate, error) {
	rows, err := p.db.Query(ctx, `
		SELECT d.id, d.tenant_id, d.filename, d.original_filename, d.content_hash,
			d.doc_type, d.status, d.raw_text, d.ingestion_method,
			d.competence_month, d.competence_year, d.created_at,
			COALESCE(t.amount::text, '0'), t.date, COALESCE(t.merchant_name, '')
		FROM documents d
		LEFT JOIN transactions t ON t.document_id = d.id
		WHERE d.tenant_id = $1
		  AND d.doc_type = $2
		  AND d.created_at BETWEEN $3 AND $4
		ORDER BY d.created_at`,
		tenantID, string(models.DocTypeReceipt), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReceiptCandidate
	for rows.Next() {
		var c ReceiptCandidate
		var docType, status string
		var amountStr string
		if err := rows.Scan(
			&c.Document.ID, &c.Document.TenantID, &c.Document.Filename,
			&c.Document.OriginalFilename, &c.Document.ContentHash,
			&docType, &status, &c.Document.RawText, &c.Document.IngestionMethod,
			&c.Document.CompetenceMonth, &c.Document.CompetenceYear, &c.Document.CreatedAt,
			&amountStr, &c.Date, &c.Merchant,
		); err != nil {
			return nil, err
		}
		c.Document.DocType = models.DocumentType(docType)
		c.Document.Status = models.DocumentStatus(status)
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("decode amount: %w", err)
		}
		c.Amount = amount
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) LinkReceipt(ctx context.Context, tenantID, transactionID, receiptID uuid.UUID, score float64, matchType models.MatchType) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE transactions
		SET receipt_id = $3, match_score = $4, match_type = $5
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, transactionID, receiptID, score, string(matchType))
	if err != nil {
		return fmt.Errorf("link receipt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkReceipts writes a reconciliation run's links in one transaction. A
// crash mid-batch leaves no partial links behind.
func (p *Postgres) LinkReceipts(ctx context.Context, tenantID uuid.UUID, links []ReceiptLink) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin link batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, link := range links {
		tag, err := tx.Exec(ctx, `
			UPDATE transactions
			SET receipt_id = $3, match_score = $4, match_type = $5
			WHERE tenant_id = $1 AND id = $2`,
			tenantID, link.TransactionID, link.ReceiptID, link.Score, string(link.MatchType))
		if err != nil {
			return fmt.Errorf("link receipt %s: %w", link.TransactionID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SaveTaxAnalysis(ctx context.Context, analysis *models.TaxAnalysis) error {
	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO tax_analyses (id, tenant_id, transaction_id, classification, category,
			justification, legal_citation, risk_level, prompt_tokens, completion_tokens,
			total_tokens, model_version, is_manual_override)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (transaction_id) DO UPDATE SET
			classification = EXCLUDED.classification,
			category = EXCLUDED.category,
			justification = EXCLUDED.justification,
			legal_citation = EXCLUDED.legal_citation,
			risk_level = EXCLUDED.risk_level,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			total_tokens = EXCLUDED.total_tokens,
			model_version = EXCLUDED.model_version,
			is_manual_override = EXCLUDED.is_manual_override,
			updated_at = NOW()`,
		analysis.ID, analysis.TenantID, analysis.TransactionID, analysis.Classification,
		analysis.Category, analysis.Justification, analysis.LegalCitation, analysis.RiskLevel,
		analysis.PromptTokens, analysis.CompletionTokens, analysis.TotalTokens,
		analysis.ModelVersion, analysis.IsManualOverride)
	if err != nil {
		return fmt.Errorf("save tax analysis: %w", err)
	}
	return nil
}

func (p *Postgres) GetTaxAnalysis(ctx context.Context, tenantID, transactionID uuid.UUID) (*models.TaxAnalysis, error) {
	row := p.db.QueryRow(ctx, `
		SELECT id, tenant_id, transaction_id, classification, category, justification,
			legal_citation, risk_level, prompt_tokens, completion_tokens, total_tokens,
			model_version, is_manual_override, created_at, updated_at
		FROM tax_analyses WHERE tenant_id = $1 AND transaction_id = $2`,
		tenantID, transactionID)

	var a models.TaxAnalysis
	err := row.Scan(&a.ID, &a.TenantID, &a.TransactionID, &a.Classification, &a.Category,
		&a.Justification, &a.LegalCitation, &a.RiskLevel, &a.PromptTokens,
		&a.CompletionTokens, &a.TotalTokens, &a.ModelVersion, &a.IsManualOverride,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	var docType, status string
	err := row.Scan(&doc.ID, &doc.TenantID, &doc.Filename, &doc.OriginalFilename,
		&doc.ContentHash, &docType, &status, &doc.RawText, &doc.IngestionMethod,
		&doc.CompetenceMonth, &doc.CompetenceYear, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.DocType = models.DocumentType(docType)
	doc.Status = models.DocumentStatus(status)
	return &doc, nil
}

func scanTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var amountStr, matchType string
		if err := rows.Scan(&tx.ID, &tx.TenantID, &tx.DocumentID, &tx.MerchantName,
			&tx.Date, &amountStr, &tx.Category, &tx.CompetenceMonth, &tx.CompetenceYear,
			&tx.IsFinalized, &tx.ReceiptID, &tx.MatchScore, &matchType); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("decode amount: %w", err)
		}
		tx.Amount = amount
		tx.MatchType = models.MatchType(matchType)
		out = append(out, tx)
	}
	return out, rows.Err()
}
