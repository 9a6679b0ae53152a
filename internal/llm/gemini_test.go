package llm

import (
	"testing"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponse(t *testing.T) {
	raw := `{"doc_type": "RECEIPT", "date": "2025-08-12", "amount": "1234.56", "merchant_or_bank": "ACME LTDA"}`

	result, err := decodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeReceipt, result.DocType)
	assert.Equal(t, "ACME LTDA", result.MerchantOrBank)
	require.NotNil(t, result.Date)
	assert.Equal(t, "2025-08-12", result.Date.Format(dateutils.LayoutISO))
	require.True(t, result.HasAmount())
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("1234.56")))
}

func TestDecodeResponseMarkdownFence(t *testing.T) {
	raw := "```json\n{\"doc_type\": \"BANK_STATEMENT\", \"date\": null, \"amount\": null, \"merchant_or_bank\": \"Banco X\"}\n```"

	result, err := decodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeBankStatement, result.DocType)
	assert.Nil(t, result.Date)
	assert.False(t, result.HasAmount())
}

func TestDecodeResponseInvalidJSON(t *testing.T) {
	_, err := decodeResponse("The document appears to be a receipt for R$ 10,00.")
	require.Error(t, err)
	var extraction *parsererror.DataExtractionError
	assert.ErrorAs(t, err, &extraction)
}

func TestDecodeResponseUnknownDocTypeDefaultsToReceipt(t *testing.T) {
	result, err := decodeResponse(`{"doc_type": "INVOICE", "date": "12/08/2025", "amount": "10.00", "merchant_or_bank": ""}`)
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeReceipt, result.DocType)
}
