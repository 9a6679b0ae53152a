package docparser

import (
	"regexp"
	"strings"
	"time"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/models"

	"github.com/shopspring/decimal"
)

// GenericStatementParser extracts standard one-line-per-movement bank
// statements: date, description and amount on each line, with optional D/C
// suffixes marking debits and credits.
type GenericStatementParser struct{}

func NewGenericStatementParser() *GenericStatementParser {
	return &GenericStatementParser{}
}

func (p *GenericStatementParser) Name() string { return "STATEMENT_REGEX" }

var statementLinePattern = regexp.MustCompile(`(\d{2}/\d{2}(?:/\d{4})?)\s+(.*?)\s+([-\+]?[\d\.]+,\d{2}[DC]?)`)

// Detect applies the statement heuristic: more than two date-like
// substrings in the text.
func (p *GenericStatementParser) Detect(text string) bool {
	return len(regexp.MustCompile(`\d{2}/\d{2}`).FindAllString(text, 3)) > 2
}

func (p *GenericStatementParser) Extract(text string) (*models.ParseResult, error) {
	lines := strings.Split(text, "\n")
	year := dateutils.InferYear(lines, time.Now().Year())

	result := &models.ParseResult{
		DocType:        models.DocTypeBankStatement,
		MerchantOrBank: "Bank Statement Import",
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "saldo") || strings.Contains(lower, "data") {
			continue
		}

		m := statementLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rawDate, desc, rawAmount := m[1], strings.TrimSpace(m[2]), m[3]
		if len(desc) < 3 {
			continue
		}

		value, ok := parseStatementAmount(rawAmount)
		if !ok {
			continue
		}

		var date time.Time
		var err error
		if len(rawDate) <= 5 {
			date, err = dateutils.CompleteDayMonth(rawDate, year)
		} else {
			date, err = dateutils.ParseDayFirst(rawDate)
		}
		if err != nil {
			continue
		}

		result.Transactions = append(result.Transactions, models.ExtractedTransaction{
			Date:        &date,
			Amount:      value,
			Description: desc,
			Currency:    "BRL",
		})
	}

	if len(result.Transactions) == 0 {
		return nil, nil
	}
	return result, nil
}

// parseStatementAmount handles sign prefixes and trailing D (debit) or C
// (credit) markers. Statement amounts print as absolute values; a D suffix
// means debit.
func parseStatementAmount(raw string) (decimal.Decimal, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	negative := false

	switch {
	case strings.HasSuffix(s, "D"):
		negative = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "D"))
	case strings.HasSuffix(s, "C"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "C"))
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	s = strings.TrimPrefix(s, "+")

	v, err := models.ParseAmount(s)
	if err != nil {
		return decimal.Zero, false
	}
	v = v.Abs()
	if negative {
		v = v.Neg()
	}
	return v, true
}
