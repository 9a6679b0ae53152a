package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soberana/docledger/internal/llm"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"
	"soberana/docledger/internal/pdfextractor"
	"soberana/docledger/internal/store"
)

const statementText = `Itaú Personnalité
extrato mensal - agência 1234 conta 56789-0
lançamentos período 01/11/2025 a 30/11/2025
03/11 PIX TRANSF JOAO 150,00-
05/11 TED RECEBIDA MARIA 2.500,00
`

func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newProcessor(st store.Store, pdf pdfextractor.Extractor, ai llm.Extractor) *Processor {
	return New(st, pdf, nil, ai, nil)
}

func TestProcessCSVStatement(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	path := writeUpload(t, "extrato.csv",
		"Data,Descricao,Valor\n03/11/2025,PIX MERCADO,\"-150,00\"\n04/11/2025,SALARIO,\"5.000,00\"\n")

	p := newProcessor(st, &pdfextractor.MockExtractor{}, nil)
	out, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path})
	require.NoError(t, err)

	doc := out.Document
	assert.Equal(t, models.StatusProcessed, doc.Status)
	assert.Equal(t, models.DocTypeBankStatement, doc.DocType)
	assert.Equal(t, "CSV_PARSER", doc.IngestionMethod)
	assert.Equal(t, 2, out.TransactionsExtracted)

	txs, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestProcessXMLInvoiceCreatesSyntheticTransaction(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()

	xml := `<?xml version="1.0"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe">
  <NFe><infNFe>
    <ide><dhEmi>2025-08-12T10:00:00-03:00</dhEmi></ide>
    <emit><xNome>ACME COMERCIO LTDA</xNome></emit>
    <total><ICMSTot><vNF>1234.56</vNF></ICMSTot></total>
  </infNFe></NFe>
</nfeProc>`
	path := writeUpload(t, "nota.xml", xml)

	p := newProcessor(st, &pdfextractor.MockExtractor{}, nil)
	out, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path})
	require.NoError(t, err)

	doc := out.Document
	assert.Equal(t, models.StatusProcessed, doc.Status)
	assert.Equal(t, models.DocTypeReceipt, doc.DocType)
	assert.Equal(t, 1, out.TransactionsExtracted)
	assert.Equal(t, "XML_PARSER", doc.IngestionMethod)
	assert.Equal(t, 8, doc.CompetenceMonth)
	assert.Equal(t, 2025, doc.CompetenceYear)

	txs, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "ACME COMERCIO LTDA", txs[0].MerchantName)
	assert.Equal(t, doc.ID, txs[0].DocumentID)
}

func TestProcessPDFStatement(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "extrato.pdf", "%PDF-1.4 fake")

	p := newProcessor(st, &pdfextractor.MockExtractor{Text: statementText}, nil)
	out, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path, ExpectedType: models.DocTypeBankStatement})
	require.NoError(t, err)

	doc := out.Document
	assert.Equal(t, models.StatusProcessed, doc.Status)
	assert.Equal(t, "STATEMENT_ITAU", doc.IngestionMethod)
	assert.Equal(t, statementText, doc.RawText)

	txs, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestProcessDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "extrato.pdf", "%PDF-1.4 same bytes")

	p := newProcessor(st, &pdfextractor.MockExtractor{Text: statementText}, nil)
	first, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path, ExpectedType: models.DocTypeBankStatement})
	require.NoError(t, err)

	_, err = p.Process(ctx, Request{TenantID: tenant, FilePath: path, ExpectedType: models.DocTypeBankStatement})
	var dup *parsererror.DuplicateDocumentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Document.ID, dup.ExistingID)

	// The same bytes under another tenant are not a duplicate.
	_, err = p.Process(ctx, Request{TenantID: uuid.New(), FilePath: path, ExpectedType: models.DocTypeBankStatement})
	assert.NoError(t, err)
}

func TestProcessPasswordRequiredDeletesRow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "protegido.pdf", "%PDF-1.4 locked")

	p := newProcessor(st, &pdfextractor.MockExtractor{Text: statementText, RequirePassword: true, Password: "segredo"}, nil)

	_, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path, ExpectedType: models.DocTypeBankStatement})
	var pwErr *parsererror.PasswordRequiredError
	require.ErrorAs(t, err, &pwErr)

	// The PENDING row is gone: resubmitting with the password succeeds.
	out, err := p.Process(ctx, Request{
		TenantID: tenant, FilePath: path,
		ExpectedType: models.DocTypeBankStatement, Password: "segredo",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, out.Document.Status)
}

func TestProcessInvalidPasswordDeletesRow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "protegido.pdf", "%PDF-1.4 locked")

	p := newProcessor(st, &pdfextractor.MockExtractor{Text: statementText, RequirePassword: true, Password: "segredo"}, nil)

	_, err := p.Process(ctx, Request{
		TenantID: tenant, FilePath: path,
		ExpectedType: models.DocTypeBankStatement, Password: "errada",
	})
	var pwErr *parsererror.InvalidPasswordError
	require.ErrorAs(t, err, &pwErr)

	_, err = st.FindDocumentByHash(ctx, tenant, docHash(t, path))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessAIFallbackOnlyInAutoDetect(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "avulso.pdf", "%PDF-1.4 odd layout")

	fake := &llm.Fake{Result: &models.ParseResult{DocType: models.DocTypeReceipt, MerchantOrBank: "DESCONHECIDO"}}
	p := newProcessor(st, &pdfextractor.MockExtractor{Text: "texto sem estrutura reconhecivel"}, fake)

	// With an explicit expected type the chain's verdict is final.
	out, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path, ExpectedType: models.DocTypeBankStatement})
	require.Error(t, err)
	assert.Equal(t, 0, fake.Calls)
	require.NotNil(t, out)
	assert.Equal(t, models.StatusError, out.Document.Status)
}

func TestProcessAIFallbackRequiresReview(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "avulso.pdf", "%PDF-1.4 odd layout")

	// The model identified the type but recovered no amount or date.
	fake := &llm.Fake{Result: &models.ParseResult{DocType: models.DocTypeReceipt, MerchantOrBank: "DESCONHECIDO"}}
	p := newProcessor(st, &pdfextractor.MockExtractor{Text: "texto sem estrutura reconhecivel"}, fake)

	out, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls)
	assert.Equal(t, models.StatusRequiresReview, out.Document.Status)
	assert.Equal(t, "AI_EXTRACTION", out.Document.IngestionMethod)
	assert.Equal(t, 0, out.TransactionsExtracted)

	txs, err := st.ListTransactions(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestProcessUnsupportedWithoutAI(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tenant := uuid.New()
	path := writeUpload(t, "avulso.pdf", "%PDF-1.4 odd layout")

	p := newProcessor(st, &pdfextractor.MockExtractor{Text: "texto sem estrutura reconhecivel"}, nil)
	out, err := p.Process(ctx, Request{TenantID: tenant, FilePath: path})
	require.Error(t, err)
	var unsupported *parsererror.UnsupportedLayoutError
	assert.ErrorAs(t, err, &unsupported)
	require.NotNil(t, out)
	assert.Equal(t, models.StatusError, out.Document.Status)
}

func docHash(t *testing.T, path string) string {
	t.Helper()
	// Rehash the way the pipeline does for lookup in assertions.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return contentHashOf(data)
}
