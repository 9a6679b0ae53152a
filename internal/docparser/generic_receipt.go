package docparser

import (
	"regexp"
	"strings"
	"time"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/textutils"
)

// GenericReceiptParser is the last deterministic fallback for receipts. It
// searches proximity windows after several "total" label variants and
// guesses the merchant from the first non-numeric lines when no explicit
// label exists. A result is usable only when both date and amount were
// found.
type GenericReceiptParser struct{}

func NewGenericReceiptParser() *GenericReceiptParser {
	return &GenericReceiptParser{}
}

func (p *GenericReceiptParser) Name() string { return "RECEIPT_GENERIC" }

// Detect always accepts: this parser is structurally the terminal fallback
// and its Extract decides usability.
func (p *GenericReceiptParser) Detect(text string) bool { return true }

var (
	genericDateLabel = regexp.MustCompile(`DATA\s*(?:DO)?\s*(?:PAGAMENTO|EMISSAO)|EMISSAO`)
	// Total label variants in priority order.
	genericTotalLabels = []*regexp.Regexp{
		regexp.MustCompile(`VALOR\s*TOTAL`),
		regexp.MustCompile(`TOTAL\s*A?\s*PAGAR`),
		regexp.MustCompile(`TOTAL`),
		regexp.MustCompile(`VALOR`),
	}
	flatCurrencyAnchor = regexp.MustCompile(`R\$\s*([\d\.]+,\d{2})`)
	digitsAndMarks     = regexp.MustCompile(`[\d\.\-\/]+`)
)

func (p *GenericReceiptParser) Extract(text string) (*models.ParseResult, error) {
	flat := textutils.Flatten(text)
	result := &models.ParseResult{DocType: models.DocTypeReceipt}

	result.Date = p.extractDate(flat)
	result.Amount = nil
	for _, label := range genericTotalLabels {
		if raw, ok := textutils.FindAfterAnchor(flat, label, currencyValuePattern, 40); ok {
			if v, err := models.ParseAmount(raw); err == nil {
				result.Amount = &v
				break
			}
		}
	}
	if result.Amount == nil {
		if m := flatCurrencyAnchor.FindStringSubmatch(flat); m != nil {
			if v, err := models.ParseAmount(m[1]); err == nil {
				result.Amount = &v
			}
		}
	}

	result.MerchantOrBank = p.guessMerchant(text)

	if result.Date == nil || !result.HasAmount() {
		return nil, nil
	}
	return result, nil
}

func (p *GenericReceiptParser) extractDate(flat string) *time.Time {
	if raw, ok := textutils.FindAfterAnchor(flat, genericDateLabel, numericDatePattern, 40); ok {
		if t, err := dateutils.ParseDayFirst(raw); err == nil {
			return &t
		}
	}
	if m := numericDatePattern.FindStringSubmatch(flat); m != nil {
		if t, err := dateutils.ParseDayFirst(m[1]); err == nil {
			return &t
		}
	}
	return nil
}

// guessMerchant takes the first few significant lines of the document,
// strips numbers and returns the remainder as a merchant candidate. Utility
// receipts print the brand in the header without a "merchant" label.
func (p *GenericReceiptParser) guessMerchant(text string) string {
	lines := strings.Split(strings.ToUpper(text), "\n")
	limit := len(lines)
	if limit > 4 {
		limit = 4
	}
	var parts []string
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if len(line) > 2 {
			parts = append(parts, line)
		}
	}
	candidate := digitsAndMarks.ReplaceAllString(strings.Join(parts, " "), "")
	candidate = strings.Join(strings.Fields(candidate), " ")
	if len(candidate) > 50 {
		candidate = strings.TrimSpace(candidate[:50])
	}
	if len(candidate) <= 2 {
		return ""
	}
	return candidate
}
