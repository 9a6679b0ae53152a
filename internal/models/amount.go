package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a monetary string to a decimal, accepting both the
// Brazilian convention ("1.234,56") and the international one ("1,234.56").
// When both separators appear, the one occurring last is the decimal mark.
// Currency symbols and whitespace are stripped; a leading or trailing minus
// sign negates the value.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	for _, sym := range []string{"R$", "BRL", "US$", "USD", "$", "€"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", raw)
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// Brazilian: dot is thousands, comma is decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FormatAmountBR renders an absolute amount in the Brazilian convention with
// thousands separators, e.g. 1234.56 -> "1.234,56".
func FormatAmountBR(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	return strings.Join(groups, ".") + "," + fracPart
}

// FormatAmountDot renders an absolute amount with a plain dot decimal mark
// and no grouping, e.g. 1234.56 -> "1234.56".
func FormatAmountDot(d decimal.Decimal) string {
	return d.Abs().StringFixed(2)
}
