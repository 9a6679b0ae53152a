package docparser

import (
	"testing"

	"soberana/docledger/internal/dateutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cupomSample = `PADARIA ESTRELA DO SUL
CNPJ 12.345.678/0001-99
CUPOM FISCAL
DATA DO PAGAMENTO 14/07/2025
VALOR TOTAL R$ 42,90
`

func TestGenericReceiptExtract(t *testing.T) {
	p := NewGenericReceiptParser()

	result, err := p.Extract(cupomSample)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, result.Date)
	assert.Equal(t, "2025-07-14", result.Date.Format(dateutils.LayoutISO))
	require.True(t, result.HasAmount())
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("42.90")))
	assert.Contains(t, result.MerchantOrBank, "PADARIA ESTRELA")
}

func TestGenericReceiptLabelPriority(t *testing.T) {
	p := NewGenericReceiptParser()

	// VALOR TOTAL wins over the bare TOTAL label even when TOTAL comes first.
	text := "MERCADO BOM PRECO\nEMISSAO 02/03/2025\nTOTAL ITENS 3,00\nVALOR TOTAL 87,65\n"
	result, err := p.Extract(text)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("87.65")))
}

func TestGenericReceiptCurrencyFallback(t *testing.T) {
	p := NewGenericReceiptParser()

	result, err := p.Extract("LOJA DAS TINTAS\n01/06/2025\npagamento em cartao R$ 120,00\n")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("120.00")))
}

func TestGenericReceiptRequiresDateAndAmount(t *testing.T) {
	p := NewGenericReceiptParser()

	result, err := p.Extract("LOJA DAS TINTAS\nVALOR TOTAL R$ 15,00\n")
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = p.Extract("LOJA DAS TINTAS\n01/06/2025\nsem total impresso\n")
	require.NoError(t, err)
	assert.Nil(t, result)
}
