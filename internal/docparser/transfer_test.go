package docparser

import (
	"testing"

	"soberana/docledger/internal/dateutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transferSample = `Comprovante de Pix
Itaú Unibanco
Valor da transferência: R$ 350,00
Data da transferência: 05/11/2025
Nome do beneficiário: Joao da Silva CPF ***.123.456-**
`

func TestTransferDetect(t *testing.T) {
	p := NewTransferReceiptParser()

	assert.True(t, p.Detect(transferSample))
	assert.True(t, p.Detect("solicitação de transferência agendada"))
	assert.False(t, p.Detect("cupom fiscal padaria"))
}

func TestTransferExtract(t *testing.T) {
	p := NewTransferReceiptParser()

	result, err := p.Extract(transferSample)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, result.Date)
	assert.Equal(t, "2025-11-05", result.Date.Format(dateutils.LayoutISO))
	require.True(t, result.HasAmount())
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("350.00")))
	assert.Equal(t, "JOAO DA SILVA", result.MerchantOrBank)
}

func TestTransferTextualDate(t *testing.T) {
	p := NewTransferReceiptParser()

	text := "Comprovante de transferência\n5 nov de 2025\nValor: R$ 99,90\nFavorecido: Maria Souza\n"
	result, err := p.Extract(text)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "2025-11-05", result.Date.Format(dateutils.LayoutISO))
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("99.90")))
	assert.Equal(t, "MARIA SOUZA", result.MerchantOrBank)
}

func TestTransferPartialFallsThrough(t *testing.T) {
	p := NewTransferReceiptParser()

	// No date: the parser yields nothing so the chain can try another layout.
	result, err := p.Extract("Comprovante de Pix\nValor: R$ 10,00\n")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransferDefaultMerchant(t *testing.T) {
	p := NewTransferReceiptParser()

	result, err := p.Extract("Comprovante de transação Itaú\n05/11/2025\nR$ 42,00\n")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "COMPROVANTE ITAU", result.MerchantOrBank)
}
