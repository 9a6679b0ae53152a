package docparser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// DanfeParser extracts NF-e invoices (DANFE renderings). Labels repeat
// across a multi-page dump, so every field is located through a windowed
// anchor search: find the label, then look for the value only within a
// fixed-size window after it. Anchor variants are tried in priority order
// and the largest-currency-value fallback is flagged for human review.
type DanfeParser struct{}

func NewDanfeParser() *DanfeParser {
	return &DanfeParser{}
}

func (p *DanfeParser) Name() string { return "RECEIPT_DANFE" }

var (
	accessKeyPattern = regexp.MustCompile(`\d{44}`)
	nonDigitPattern  = regexp.MustCompile(`\D`)
)

// Detect requires both DANFE keywords plus the 44-digit access key. "NOTA
// FISCAL" alone also appears on service invoices that are not DANFEs.
func (p *DanfeParser) Detect(text string) bool {
	upper := strings.ToUpper(text)
	if !strings.Contains(upper, "DANFE") || !strings.Contains(upper, "NOTA FISCAL") {
		return false
	}
	digitsOnly := nonDigitPattern.ReplaceAllString(text, "")
	return accessKeyPattern.MatchString(digitsOnly)
}

// Date anchors in priority order, each with its own window size.
var danfeDateAnchors = []struct {
	pattern *regexp.Regexp
	window  int
}{
	{regexp.MustCompile(`(?i)DATA\s*D[AE]\s*EMISS[ÃA]O`), 100},
	{regexp.MustCompile(`(?i)EMISS[ÃA]O`), 100},
	{regexp.MustCompile(`(?i)SA[ÍI]DA`), 100},
	{regexp.MustCompile(`(?i)PROTOCOLO`), 150},
}

// Amount anchors in priority order: explicit total of the invoice first,
// generic payable-total labels after.
var danfeAmountAnchors = []struct {
	pattern *regexp.Regexp
	window  int
}{
	{regexp.MustCompile(`VALOR\s*TOTAL\s*DA\s*(?:NOTA|NF)`), 120},
	{regexp.MustCompile(`VALOR\s*A\s*PAGAR`), 100},
	{regexp.MustCompile(`TOTAL\s*A\s*PAGAR`), 100},
	{regexp.MustCompile(`VALOR\s*LIQUIDO`), 100},
}

var (
	numericDatePattern   = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)
	currencyValuePattern = regexp.MustCompile(`([\d\.]+,\d{2})`)
	anchoredValuePattern = regexp.MustCompile(`(?:R\$|VALOR)\s*([\d\.]+,\d{2})`)
)

func (p *DanfeParser) Extract(text string) (*models.ParseResult, error) {
	flat := textutils.Flatten(text)
	head := text
	if len(head) > 2000 {
		head = head[:2000]
	}

	result := &models.ParseResult{
		DocType:        models.DocTypeReceipt,
		MerchantOrBank: "NF-E DANFE",
	}

	result.Date = p.extractDate(head)
	amount, lowConfidence := p.extractAmount(flat)
	if amount != nil {
		result.Amount = amount
	}

	if merchant := p.extractMerchant(flat); merchant != "" {
		result.MerchantOrBank = merchant
	}

	p.extractInstallments(text, result)

	// The last-resort amount scan and missing critical fields both route
	// the document to a human before it is trusted.
	if lowConfidence || !result.HasAmount() || result.Date == nil {
		if !strings.Contains(result.MerchantOrBank, "(CHECK DATA)") {
			result.MerchantOrBank += " (CHECK DATA)"
		}
	}

	return result, nil
}

// extractDate tries the prioritized anchors and falls back to the first
// plausible date in the document head.
func (p *DanfeParser) extractDate(head string) *time.Time {
	for _, anchor := range danfeDateAnchors {
		if raw, ok := textutils.FindAfterAnchor(head, anchor.pattern, numericDatePattern, anchor.window); ok {
			if t, err := dateutils.ParseDayFirst(raw); err == nil && dateutils.PlausibleYear(t) {
				return &t
			}
		}
	}
	for _, raw := range numericDatePattern.FindAllString(head, -1) {
		if t, err := dateutils.ParseDayFirst(raw); err == nil && dateutils.PlausibleYear(t) {
			return &t
		}
	}
	return nil
}

// extractAmount returns the invoice total and whether it came from the
// lowest-confidence global fallback.
func (p *DanfeParser) extractAmount(flat string) (*decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, anchor := range danfeAmountAnchors {
		for _, raw := range textutils.FindAllAfterAnchor(flat, anchor.pattern, currencyValuePattern, anchor.window) {
			if v, err := models.ParseAmount(raw); err == nil && v.IsPositive() {
				if !found || v.GreaterThan(best) {
					best = v
					found = true
				}
			}
		}
		if found {
			return &best, false
		}
	}

	// Last resort: the largest currency-looking value anywhere.
	matches := anchoredValuePattern.FindAllStringSubmatch(flat, -1)
	if len(matches) == 0 {
		matches = currencyValuePattern.FindAllStringSubmatch(flat, -1)
	}
	for _, m := range matches {
		if v, err := models.ParseAmount(m[1]); err == nil && v.IsPositive() {
			if !found || v.GreaterThan(best) {
				best = v
				found = true
			}
		}
	}
	if !found {
		return nil, false
	}
	return &best, true
}

var (
	recebemosPattern   = regexp.MustCompile(`RECEBEMOS\s*DE`)
	merchantStopwords  = regexp.MustCompile(`CNPJ|CPF|OS PRODUTOS|A QUANTIA|DATA`)
	cnpjPattern        = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)
	isolatedNumberveil = regexp.MustCompile(`[\d\.\/-]{10,}`)
)

func (p *DanfeParser) extractMerchant(flat string) string {
	loc := recebemosPattern.FindStringIndex(flat)
	if loc == nil {
		return ""
	}
	end := loc[1] + 150
	if end > len(flat) {
		end = len(flat)
	}
	window := flat[loc[1]:end]

	if stop := merchantStopwords.FindStringIndex(window); stop != nil {
		window = window[:stop[0]]
	}
	window = cnpjPattern.ReplaceAllString(window, "")
	window = isolatedNumberveil.ReplaceAllString(window, "")
	window = strings.Trim(window, " -:.,")
	if len(window) <= 3 {
		return ""
	}
	return window
}

var (
	installmentKeywords = regexp.MustCompile(`(?i)FATURA|DUPLICATA`)
	labeledInstallment  = regexp.MustCompile(`(?is)Venc\.?\s*(\d{2}/\d{2}/\d{4}).*?Valor.*?R\$\s*([\d\.,]+)`)
	tabularInstallment  = regexp.MustCompile(`\b(\d{2}[./]\d{2}[./]\d{4})\b\s+(?:R\$\s*)?(\d{1,3}(?:\.\d{3})*,\d{2})\b`)
)

// extractInstallments collects the invoice-of-charges table (FATURA or
// DUPLICATA blocks) as sub-transactions, deduplicated by (date, amount).
func (p *DanfeParser) extractInstallments(text string, result *models.ParseResult) {
	if !installmentKeywords.MatchString(text) {
		return
	}

	type pair struct{ date, amount string }
	seen := make(map[pair]bool)
	count := 0

	add := func(rawDate, rawAmount string) {
		date, err := dateutils.ParseDayFirst(strings.ReplaceAll(rawDate, ".", "/"))
		if err != nil {
			return
		}
		amount, err := models.ParseAmount(rawAmount)
		if err != nil || !amount.IsPositive() {
			return
		}
		key := pair{date.Format(dateutils.LayoutISO), amount.String()}
		if seen[key] {
			return
		}
		seen[key] = true
		count++
		d := date
		result.Transactions = append(result.Transactions, models.ExtractedTransaction{
			Date:        &d,
			Amount:      amount,
			Description: fmt.Sprintf("Fatura %d - %s", count, result.MerchantOrBank),
			Currency:    "BRL",
		})
	}

	for _, m := range labeledInstallment.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	for _, m := range tabularInstallment.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
}
