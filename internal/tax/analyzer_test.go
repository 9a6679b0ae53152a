package tax

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soberana/docledger/internal/models"
	"soberana/docledger/internal/store"
)

func seedTransactions(t *testing.T, st *store.Memory, tenant uuid.UUID, txs ...models.Transaction) []models.Transaction {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{TenantID: tenant, ContentHash: uuid.NewString(), DocType: models.DocTypeBankStatement, Status: models.StatusProcessed}
	require.NoError(t, st.CreateDocument(ctx, doc))
	for i := range txs {
		txs[i].TenantID = tenant
		txs[i].DocumentID = doc.ID
	}
	require.NoError(t, st.CreateTransactions(ctx, txs))
	return txs
}

func TestRunBatchAnalyzesEligible(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	seedTransactions(t, st, tenant,
		models.Transaction{MerchantName: "PAPELARIA CENTRAL", Amount: decimal.RequireFromString("-45.00"), Date: &date},
		models.Transaction{MerchantName: "RESTAURANTE BOM", Amount: decimal.RequireFromString("-120.00"), Date: &date},
		models.Transaction{MerchantName: "FECHADA", Amount: decimal.RequireFromString("-10.00"), Date: &date, IsFinalized: true},
	)

	classifier := &FakeClassifier{Analysis: models.TaxAnalysis{Classification: "DEDUCTIBLE", Category: "Supplies"}}
	a := NewAnalyzer(st, classifier, time.Millisecond, nil)

	result, err := a.RunBatch(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Analyzed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, classifier.Calls)
}

func TestRunBatchSkipsManualOverride(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	txs := seedTransactions(t, st, tenant,
		models.Transaction{MerchantName: "PAPELARIA CENTRAL", Amount: decimal.RequireFromString("-45.00"), Date: &date},
	)
	require.NoError(t, st.SaveTaxAnalysis(ctx, &models.TaxAnalysis{
		TenantID:         tenant,
		TransactionID:    txs[0].ID,
		Classification:   "NON_DEDUCTIBLE",
		IsManualOverride: true,
	}))

	classifier := &FakeClassifier{Analysis: models.TaxAnalysis{Classification: "DEDUCTIBLE"}}
	a := NewAnalyzer(st, classifier, time.Millisecond, nil)

	result, err := a.RunBatch(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Analyzed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, classifier.Calls)

	// The human verdict survived the batch.
	got, err := st.GetTaxAnalysis(ctx, tenant, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "NON_DEDUCTIBLE", got.Classification)
	assert.True(t, got.IsManualOverride)
}

func TestRunBatchRefreshesAutomaticAnalyses(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	txs := seedTransactions(t, st, tenant,
		models.Transaction{MerchantName: "PAPELARIA CENTRAL", Amount: decimal.RequireFromString("-45.00"), Date: &date},
	)
	require.NoError(t, st.SaveTaxAnalysis(ctx, &models.TaxAnalysis{
		TenantID:       tenant,
		TransactionID:  txs[0].ID,
		Classification: "REVIEW",
	}))

	classifier := &FakeClassifier{Analysis: models.TaxAnalysis{Classification: "DEDUCTIBLE"}}
	a := NewAnalyzer(st, classifier, time.Millisecond, nil)

	result, err := a.RunBatch(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Analyzed)

	got, err := st.GetTaxAnalysis(ctx, tenant, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "DEDUCTIBLE", got.Classification)
}

func TestRunBatchCountsFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	seedTransactions(t, st, tenant,
		models.Transaction{MerchantName: "QUALQUER", Amount: decimal.RequireFromString("-5.00"), Date: &date},
	)

	classifier := &FakeClassifier{Err: assert.AnError}
	a := NewAnalyzer(st, classifier, time.Millisecond, nil)

	result, err := a.RunBatch(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Analyzed)
	assert.Equal(t, 1, result.Failed)
}

func TestParseClassification(t *testing.T) {
	analysis := parseClassification(`Classification: [DEDUCTIBLE]
Category: Office Supplies
Justification: Materials used in daily operations.
LegalCitation: RIR/2018 art. 311
RiskLevel: LOW`)

	assert.Equal(t, "DEDUCTIBLE", analysis.Classification)
	assert.Equal(t, "Office Supplies", analysis.Category)
	assert.Equal(t, "RIR/2018 art. 311", analysis.LegalCitation)
	assert.Equal(t, "LOW", analysis.RiskLevel)
}

func TestParseClassificationDefaultsToReview(t *testing.T) {
	analysis := parseClassification("free-form text without labels")
	assert.Equal(t, "REVIEW", analysis.Classification)
}
