package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Brazilian grouped", "1.234,56", "1234.56", false},
		{"International grouped", "1,234.56", "1234.56", false},
		{"Plain dot", "1234.56", "1234.56", false},
		{"Plain comma decimal", "123,45", "123.45", false},
		{"Currency prefix", "R$ 1.250,00", "1250", false},
		{"Leading minus", "-89,90", "-89.9", false},
		{"Trailing minus", "89,90-", "-89.9", false},
		{"Large Brazilian", "1.234.567,89", "1234567.89", false},
		{"Empty", "", "", true},
		{"Only symbol", "R$", "", true},
		{"Garbage", "abc", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			expected, err := decimal.NewFromString(tc.expected)
			require.NoError(t, err)
			assert.True(t, expected.Equal(got), "got %s want %s", got, expected)
		})
	}
}

// Parsing the same value in either locale must yield the identical decimal.
func TestParseAmountLocaleRoundTrip(t *testing.T) {
	br, err := ParseAmount("1.234,56")
	require.NoError(t, err)
	intl, err := ParseAmount("1234.56")
	require.NoError(t, err)
	assert.True(t, br.Equal(intl))
}

func TestFormatAmount(t *testing.T) {
	d := decimal.RequireFromString("1234.56")
	assert.Equal(t, "1.234,56", FormatAmountBR(d))
	assert.Equal(t, "1234.56", FormatAmountDot(d))

	small := decimal.RequireFromString("-89.9")
	assert.Equal(t, "89,90", FormatAmountBR(small))
	assert.Equal(t, "89.90", FormatAmountDot(small))

	big := decimal.RequireFromString("1234567.8")
	assert.Equal(t, "1.234.567,80", FormatAmountBR(big))
}
