package docparser

import (
	"regexp"
	"strings"
	"time"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/models"
)

// ItauStatementParser parses Itaú Personnalité account statements. The
// layout splits a movement's date and amount across adjacent lines in some
// renderings, so extraction runs as a stateful line reconstructor: a line
// carrying a date but no amount leaves a pending date that the next line
// with an amount closes.
type ItauStatementParser struct{}

func NewItauStatementParser() *ItauStatementParser {
	return &ItauStatementParser{}
}

func (p *ItauStatementParser) Name() string { return "STATEMENT_ITAU" }

// Detect requires the institution name plus statement vocabulary.
func (p *ItauStatementParser) Detect(text string) bool {
	if !strings.Contains(text, "Itaú") && !strings.Contains(text, "ITAÚ") {
		return false
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "extrato") ||
		strings.Contains(lower, "lançamentos") ||
		strings.Contains(lower, "agência")
}

var (
	itauDatePattern   = regexp.MustCompile(`^(\d{2}/\d{2})(?:/\d{4})?`)
	itauAmountPattern = regexp.MustCompile(`(-)?\s*([\d\.]+,\d{2})\s*(-)?$`)
)

// Running-balance summary lines carry amounts but are not movements.
var itauNoiseTerms = []string{
	"SALDO ANTERIOR",
	"SALDO TOTAL DO DIA",
	"SALDO TOTAL DISPONÍVEL",
	"SALDO PROVISORIO",
	"REND PAGO APLIC",
}

func (p *ItauStatementParser) Extract(text string) (*models.ParseResult, error) {
	lines := strings.Split(text, "\n")

	// Statements print dd/mm per row and the year once in the header.
	year := dateutils.InferYear(lines, time.Now().Year())

	result := &models.ParseResult{
		DocType:        models.DocTypeBankStatement,
		MerchantOrBank: "Itaú Personnalité",
	}

	var pendingDate string
	var pendingDesc string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isItauNoise(line) {
			continue
		}

		dateMatch := itauDatePattern.FindStringSubmatch(line)
		if dateMatch != nil {
			amountMatch := itauAmountPattern.FindStringSubmatchIndex(line)
			if amountMatch != nil {
				desc := strings.TrimSpace(line[len(dateMatch[0]):amountMatch[0]])
				appendItauTransaction(result, dateMatch[1], year, line[amountMatch[0]:], desc)
				pendingDate, pendingDesc = "", ""
			} else {
				// Date without amount: remember it until an amount line
				// closes the movement.
				pendingDate = dateMatch[1]
				pendingDesc = strings.TrimSpace(line[len(dateMatch[0]):])
			}
			continue
		}

		if pendingDate != "" {
			if amountMatch := itauAmountPattern.FindStringSubmatchIndex(line); amountMatch != nil {
				desc := strings.TrimSpace(pendingDesc + " " + strings.TrimSpace(line[:amountMatch[0]]))
				if desc == "" {
					desc = "Transaction Found"
				}
				appendItauTransaction(result, pendingDate, year, line[amountMatch[0]:], desc)
				pendingDate, pendingDesc = "", ""
			}
		}
	}

	if len(result.Transactions) == 0 {
		return nil, nil
	}
	return result, nil
}

func isItauNoise(line string) bool {
	upper := strings.ToUpper(line)
	for _, term := range itauNoiseTerms {
		if strings.Contains(upper, term) {
			return true
		}
	}
	return false
}

func appendItauTransaction(result *models.ParseResult, dayMonth string, year int, rawAmount, desc string) {
	m := itauAmountPattern.FindStringSubmatch(strings.TrimSpace(rawAmount))
	if m == nil {
		return
	}
	amount, err := models.ParseAmount(m[2])
	if err != nil {
		return
	}
	if m[1] == "-" || m[3] == "-" {
		amount = amount.Neg()
	}
	date, err := dateutils.CompleteDayMonth(dayMonth, year)
	if err != nil {
		return
	}
	result.Transactions = append(result.Transactions, models.ExtractedTransaction{
		Date:        &date,
		Amount:      amount,
		Description: desc,
		Currency:    "BRL",
	})
}
