package reconcile

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

func seedStatement(t *testing.T, st *store.Memory, tenant uuid.UUID, txs ...models.Transaction) []models.Transaction {
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

func seedReceipt(t *testing.T, st *store.Memory, tenant uuid.UUID, rawText string) *models.Document {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{
		TenantID:    tenant,
		ContentHash: uuid.NewString(),
		DocType:     models.DocTypeReceipt,
		Status:      models.StatusProcessed,
		RawText:     rawText,
	}
	require.NoError(t, st.CreateDocument(ctx, doc))
	return doc
}

func TestReconcilerRunLinksMatches(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Now().UTC().AddDate(0, 0, -2)
	txs := seedStatement(t, st, tenant, models.Transaction{
		MerchantName: "PIX TRANSF ACME",
		Amount:       decimal.RequireFromString("-1234.56"),
		Date:         &date,
	})
	receipt := seedReceipt(t, st, tenant, "Comprovante valor R$ 1.234,56 ACME LTDA")

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)
	result, err := r.Run(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsProcessed)
	assert.Equal(t, 1, result.MatchesFound)

	all, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, all[0].ReceiptID)
	assert.Equal(t, receipt.ID, *all[0].ReceiptID)
	assert.Equal(t, models.MatchExactValue, all[0].MatchType)
	_ = txs
}

// seedReceiptWithAmount creates a receipt document plus its extracted
// single-amount transaction, so the candidate carries an amount and a date.
func seedReceiptWithAmount(t *testing.T, st *store.Memory, tenant uuid.UUID, rawText string, amount decimal.Decimal, date time.Time) *models.Document {
	t.Helper()
	ctx := context.Background()
	doc := seedReceipt(t, st, tenant, rawText)
	tx := models.Transaction{
		TenantID:     tenant,
		DocumentID:   doc.ID,
		MerchantName: "RECIBO",
		Amount:       amount,
		Date:         &date,
	}
	require.NoError(t, st.CreateTransactions(ctx, []models.Transaction{tx}))
	return doc
}

func TestReconcilerAmbiguityGuard(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Now().UTC().AddDate(0, 0, -2)
	txs := seedStatement(t, st, tenant,
		models.Transaction{MerchantName: "COMPRA LOJA A", Amount: decimal.RequireFromString("-50.00"), Date: &date},
	)
	amount := decimal.RequireFromString("50.00")
	seedReceiptWithAmount(t, st, tenant, "recibo loja A valor R$ 50,00", amount, date)
	seedReceiptWithAmount(t, st, tenant, "recibo loja B valor R$ 50,00", amount, date)

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)
	result, err := r.Run(ctx, tenant)
	require.NoError(t, err)

	// Two receipts with the same amount on the same day cannot be told
	// apart; neither may be linked automatically.
	assert.Equal(t, 1, result.AmbiguousSkipped)
	assert.Equal(t, 0, result.MatchesFound)

	all, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	for _, tx := range all {
		assert.Nil(t, tx.ReceiptID)
	}

	// A human decision bypasses the guard.
	receipts, err := st.ListReceiptCandidates(ctx, tenant, date.AddDate(0, 0, -1), time.Now().UTC())
	require.NoError(t, err)
	require.NotEmpty(t, receipts)
	require.NoError(t, r.ManualLink(ctx, tenant, txs[0].ID, receipts[0].Document.ID))
}

func TestReconcilerUnextractedReceiptsAreNotTwins(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Now().UTC().AddDate(0, 0, -2)
	seedStatement(t, st, tenant, models.Transaction{
		MerchantName: "PIX TRANSF ACME",
		Amount:       decimal.RequireFromString("-50.00"),
		Date:         &date,
	})
	// Neither receipt yielded an amount or a date, but only one carries the
	// value in its text. They are distinguishable and must not block linking.
	seedReceipt(t, st, tenant, "recibo ilegivel sem dados")
	matching := seedReceipt(t, st, tenant, "recibo valor R$ 50,00 ACME")

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)
	result, err := r.Run(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MatchesFound)
	assert.Equal(t, 0, result.AmbiguousSkipped)

	all, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, all[0].ReceiptID)
	assert.Equal(t, matching.ID, *all[0].ReceiptID)
}

func TestReconcilerSkipsOtherTenants(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenantA := uuid.New()
	tenantB := uuid.New()

	date := time.Now().UTC().AddDate(0, 0, -2)
	seedStatement(t, st, tenantA, models.Transaction{
		MerchantName: "PIX TRANSF ACME",
		Amount:       decimal.RequireFromString("-10.00"),
		Date:         &date,
	})
	// The matching receipt belongs to another tenant.
	seedReceipt(t, st, tenantB, "Comprovante valor R$ 10,00")

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)
	result, err := r.Run(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MatchesFound)
}

func TestManualLink(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Now().UTC()
	txs := seedStatement(t, st, tenant, models.Transaction{
		MerchantName: "SEM CORRESPONDENCIA",
		Amount:       decimal.RequireFromString("-99.00"),
		Date:         &date,
	})
	receipt := seedReceipt(t, st, tenant, "texto irrelevante")

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)
	require.NoError(t, r.ManualLink(ctx, tenant, txs[0].ID, receipt.ID))

	all, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	linked := all[0]
	require.NotNil(t, linked.ReceiptID)
	assert.Equal(t, models.MatchManual, linked.MatchType)
	assert.Equal(t, 1.0, linked.MatchScore)
}

func TestManualLinkRejectsSelfProof(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Now().UTC()
	receipt := seedReceiptWithAmount(t, st, tenant, "recibo valor R$ 30,00",
		decimal.RequireFromString("30.00"), date)

	all, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, all, 1)
	receiptTx := all[0]

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)

	// The receipt's own synthetic transaction cannot point at its document.
	assert.Error(t, r.ManualLink(ctx, tenant, receiptTx.ID, receipt.ID))

	// Nor at any other receipt: it is itself the proof, not a statement line.
	other := seedReceipt(t, st, tenant, "outro recibo")
	assert.Error(t, r.ManualLink(ctx, tenant, receiptTx.ID, other.ID))
}

func TestManualLinkRejectsNonReceipt(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	date := time.Now().UTC()
	txs := seedStatement(t, st, tenant, models.Transaction{
		MerchantName: "QUALQUER",
		Amount:       decimal.RequireFromString("-1.00"),
		Date:         &date,
	})
	other := &models.Document{TenantID: tenant, ContentHash: "x", DocType: models.DocTypeBankStatement}
	require.NoError(t, st.CreateDocument(ctx, other))

	r := NewWithMatcher(st, NewHierarchicalMatcher(), 45, nil)
	assert.Error(t, r.ManualLink(ctx, tenant, txs[0].ID, other.ID))
}
