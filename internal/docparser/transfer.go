package docparser

import (
	"regexp"
	"strings"
	"time"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/textutils"
)

// TransferReceiptParser extracts Pix/TED transfer receipts. It declares
// success only when both a date and an amount were found; otherwise it
// yields no result and the chain falls through to the next parser.
type TransferReceiptParser struct{}

func NewTransferReceiptParser() *TransferReceiptParser {
	return &TransferReceiptParser{}
}

func (p *TransferReceiptParser) Name() string { return "RECEIPT_TRANSFER" }

var transferSignatures = []string{
	"itaú", "itau", "unibanco",
	"comprovante de transação",
	"comprovante de pix",
	"comprovante de transferência",
	"solicitação de transferência",
}

// Detect requires the institution name or proof-of-transfer phrasing.
func (p *TransferReceiptParser) Detect(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range transferSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

var (
	transferDateLabel   = regexp.MustCompile(`(?i)(?:data da transferência|data de pagamento|data)\s*[:\s]\s*(\d{2}/\d{2}/\d{4})`)
	transferAmountLabel = regexp.MustCompile(`(?i)(?:valor da transferência|valor pago|valor total|valor)\s*[:\s]*r?\$?\s*([\d\.]+,\d{2})`)
	genericCurrency     = regexp.MustCompile(`(?i)r\$\s*([\d\.]+,\d{2})`)
)

var transferMerchantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:nome|raz[ãa]o\s*social)\s*d[oa]\s*benefici[áa]rio[:\s]+([^\n\r]+)`),
	regexp.MustCompile(`(?i)(?:favorecido|benefici[áa]rio|destino)[:\s]+([^\n\r]+)`),
	regexp.MustCompile(`(?i)para[\n\s]+([a-zA-Z0-9\s\.\*]+)`),
}

func (p *TransferReceiptParser) Extract(text string) (*models.ParseResult, error) {
	result := &models.ParseResult{DocType: models.DocTypeReceipt}

	result.Date = p.extractDate(text)

	if m := transferAmountLabel.FindStringSubmatch(text); m != nil {
		if v, err := models.ParseAmount(m[1]); err == nil {
			result.Amount = &v
		}
	}
	if result.Amount == nil {
		if m := genericCurrency.FindStringSubmatch(text); m != nil {
			if v, err := models.ParseAmount(m[1]); err == nil {
				result.Amount = &v
			}
		}
	}

	result.MerchantOrBank = p.extractMerchant(text)

	// Both fields or nothing: a partial transfer receipt falls through.
	if result.Date == nil || !result.HasAmount() {
		return nil, nil
	}
	if result.MerchantOrBank == "" {
		result.MerchantOrBank = "COMPROVANTE ITAU"
	}
	return result, nil
}

// extractDate tries the explicit label first, then any numeric date, then
// textual Portuguese dates like "5 nov de 2025".
func (p *TransferReceiptParser) extractDate(text string) *time.Time {
	if m := transferDateLabel.FindStringSubmatch(text); m != nil {
		if t, err := dateutils.ParseDayFirst(m[1]); err == nil {
			return &t
		}
	}
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		if t, err := dateutils.ParseDayFirst(m[1]); err == nil {
			return &t
		}
	}
	if t, ok := dateutils.ParsePortuguese(text); ok {
		return &t
	}
	return nil
}

// extractMerchant finds the beneficiary line and strips masked tax IDs
// without discarding the legitimate name substring.
func (p *TransferReceiptParser) extractMerchant(text string) string {
	for _, pattern := range transferMerchantPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.ToUpper(strings.TrimSpace(m[1]))
		candidate = textutils.StripMaskedIdentifiers(candidate)
		if len(candidate) > 3 {
			return candidate
		}
	}
	return ""
}
