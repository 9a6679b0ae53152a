package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"soberana/docledger/internal/models"
)

// Memory is an in-memory Store used by tests and local development.
type Memory struct {
	mu           sync.RWMutex
	documents    map[uuid.UUID]models.Document
	transactions map[uuid.UUID]models.Transaction
	analyses     map[uuid.UUID]models.TaxAnalysis
}

func NewMemory() *Memory {
	return &Memory{
		documents:    make(map[uuid.UUID]models.Document),
		transactions: make(map[uuid.UUID]models.Transaction),
		analyses:     make(map[uuid.UUID]models.TaxAnalysis),
	}
}

func (m *Memory) CreateDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	m.documents[doc.ID] = *doc
	return nil
}

func (m *Memory) GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok || doc.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *Memory) FindDocumentByHash(ctx context.Context, tenantID uuid.UUID, hash string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.documents {
		if doc.TenantID == tenantID && doc.ContentHash == hash {
			d := doc
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.documents[doc.ID]
	if !ok || existing.TenantID != doc.TenantID {
		return ErrNotFound
	}
	m.documents[doc.ID] = *doc
	return nil
}

func (m *Memory) DeleteDocument(ctx context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok || doc.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

func (m *Memory) CreateTransactions(ctx context.Context, txs []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range txs {
		if txs[i].ID == uuid.Nil {
			txs[i].ID = uuid.New()
		}
		m.transactions[txs[i].ID] = txs[i]
	}
	return nil
}

func (m *Memory) GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok || tx.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := tx
	return &out, nil
}

func (m *Memory) ListUnlinkedStatementTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range m.transactions {
		if tx.TenantID != tenantID || tx.IsFinalized || tx.ReceiptID != nil {
			continue
		}
		doc, ok := m.documents[tx.DocumentID]
		if !ok || doc.DocType != models.DocTypeBankStatement {
			continue
		}
		out = append(out, tx)
	}
	sortTransactions(out)
	return out, nil
}

func (m *Memory) ListTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range m.transactions {
		if tx.TenantID == tenantID {
			out = append(out, tx)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (m *Memory) ListReceiptCandidates(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]ReceiptCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ReceiptCandidate
	for _, doc := range m.documents {
		if doc.TenantID != tenantID || doc.DocType != models.DocTypeReceipt {
			continue
		}
		if doc.CreatedAt.Before(from) || doc.CreatedAt.After(to) {
			continue
		}
		candidate := ReceiptCandidate{Document: doc}
		for _, tx := range m.transactions {
			if tx.DocumentID == doc.ID {
				candidate.Amount = tx.Amount
				candidate.Date = tx.Date
				candidate.Merchant = tx.MerchantName
				break
			}
		}
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Document.CreatedAt.Before(out[j].Document.CreatedAt)
	})
	return out, nil
}

func (m *Memory) LinkReceipt(ctx context.Context, tenantID, transactionID, receiptID uuid.UUID, score float64, matchType models.MatchType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[transactionID]
	if !ok || tx.TenantID != tenantID {
		return ErrNotFound
	}
	id := receiptID
	tx.ReceiptID = &id
	tx.MatchScore = score
	tx.MatchType = matchType
	m.transactions[transactionID] = tx
	return nil
}

func (m *Memory) LinkReceipts(ctx context.Context, tenantID uuid.UUID, links []ReceiptLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range links {
		tx, ok := m.transactions[link.TransactionID]
		if !ok || tx.TenantID != tenantID {
			return ErrNotFound
		}
	}
	for _, link := range links {
		tx := m.transactions[link.TransactionID]
		id := link.ReceiptID
		tx.ReceiptID = &id
		tx.MatchScore = link.Score
		tx.MatchType = link.MatchType
		m.transactions[link.TransactionID] = tx
	}
	return nil
}

func (m *Memory) SaveTaxAnalysis(ctx context.Context, analysis *models.TaxAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	now := time.Now().UTC()
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = now
	}
	analysis.UpdatedAt = now
	m.analyses[analysis.TransactionID] = *analysis
	return nil
}

func (m *Memory) GetTaxAnalysis(ctx context.Context, tenantID, transactionID uuid.UUID) (*models.TaxAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	analysis, ok := m.analyses[transactionID]
	if !ok || analysis.TenantID != tenantID {
		return nil, ErrNotFound
	}
	a := analysis
	return &a, nil
}

// sortTransactions keeps listings deterministic: by date, then ID.
func sortTransactions(txs []models.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		di, dj := txs[i].Date, txs[j].Date
		switch {
		case di == nil && dj == nil:
			return txs[i].ID.String() < txs[j].ID.String()
		case di == nil:
			return true
		case dj == nil:
			return false
		case di.Equal(*dj):
			return txs[i].ID.String() < txs[j].ID.String()
		default:
			return di.Before(*dj)
		}
	})
}
