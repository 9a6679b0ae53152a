package reconcile

import (
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"soberana/docledger/internal/models"
	"soberana/docledger/internal/store"
	"soberana/docledger/internal/textutils"
)

// FuzzyMatcher scores amount-equal candidates by blending merchant name
// similarity with date proximity. Invoices settle days after emission, so
// NF-e receipts get a wider window than instant payments.
type FuzzyMatcher struct {
	Threshold     float64
	InstantWindow int
	InvoiceWindow int
}

func NewFuzzyMatcher(threshold float64, instantWindow, invoiceWindow int) *FuzzyMatcher {
	return &FuzzyMatcher{
		Threshold:     threshold,
		InstantWindow: instantWindow,
		InvoiceWindow: invoiceWindow,
	}
}

const (
	nameWeight          = 0.7
	dateWeight          = 0.3
	identifierScore     = 0.95
	strongKeywordScore  = 0.90
	earlyReceiptLeeway  = 1
	minStrongKeywordLen = 5
)

func (f *FuzzyMatcher) Match(tx models.Transaction, candidates []store.ReceiptCandidate) (*Match, bool) {
	var best *Match
	bestScore := 0.0

	for _, c := range candidates {
		if !c.Amount.Abs().Equal(tx.Amount.Abs()) {
			continue
		}

		score := f.score(tx, c)
		if score < f.Threshold || score <= bestScore {
			continue
		}
		bestScore = score
		best = &Match{
			ReceiptID: c.Document.ID,
			Score:     score,
			Type:      models.MatchAutoFuzzy,
		}
	}
	return best, best != nil
}

func (f *FuzzyMatcher) score(tx models.Transaction, c store.ReceiptCandidate) float64 {
	proximity, ok := f.dateProximity(tx, c)
	if !ok {
		return 0
	}

	score := nameWeight*nameSimilarity(tx.MerchantName, c.Merchant) + dateWeight*proximity

	// A shared document number is near-certain regardless of name spelling.
	if sharesIdentifier(tx.MerchantName, c.Document.RawText) && score < identifierScore {
		score = identifierScore
	} else if hasStrongKeyword(tx.MerchantName, c.Merchant) && score < strongKeywordScore {
		score = strongKeywordScore
	}
	return score
}

// dateProximity returns a 0..1 closeness factor, or false when the receipt
// falls outside the payment window. The receipt may precede the statement
// movement by at most one day; it may follow by the instant window, or the
// invoice window for NF-e documents.
func (f *FuzzyMatcher) dateProximity(tx models.Transaction, c store.ReceiptCandidate) (float64, bool) {
	if tx.Date == nil || c.Date == nil {
		return 0, false
	}
	days := daysBetween(*c.Date, *tx.Date)

	forward := f.InstantWindow
	if isInvoiceReceipt(c) {
		forward = f.InvoiceWindow
	}
	if days < -earlyReceiptLeeway || days > forward {
		return 0, false
	}

	abs := days
	if abs < 0 {
		abs = -abs
	}
	return 1.0 - float64(abs)/float64(forward+1), true
}

// daysBetween counts whole days from the receipt date to the statement date.
func daysBetween(receipt, statement time.Time) int {
	r := time.Date(receipt.Year(), receipt.Month(), receipt.Day(), 0, 0, 0, 0, time.UTC)
	s := time.Date(statement.Year(), statement.Month(), statement.Day(), 0, 0, 0, 0, time.UTC)
	return int(s.Sub(r).Hours() / 24)
}

func isInvoiceReceipt(c store.ReceiptCandidate) bool {
	if strings.Contains(strings.ToUpper(c.Merchant), "NF-E") {
		return true
	}
	upper := strings.ToUpper(c.Document.RawText)
	return strings.Contains(upper, "DANFE") || strings.Contains(upper, "NOTA FISCAL")
}

// nameSimilarity blends containment with normalized edit distance.
func nameSimilarity(a, b string) float64 {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.75 + 0.25*float64(shorter)/float64(longer)
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	sim := 1.0 - float64(distance)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

func sharesIdentifier(description, receiptText string) bool {
	runs := textutils.DigitRuns(description, minDigitRun)
	if len(runs) == 0 {
		return false
	}
	receiptRuns := textutils.DigitRuns(receiptText, minDigitRun)
	for _, run := range runs {
		for _, rr := range receiptRuns {
			if run == rr || strings.Contains(rr, run) || strings.Contains(run, rr) {
				return true
			}
		}
	}
	return false
}

// hasStrongKeyword reports whether a distinctive token of the receipt
// merchant appears verbatim in the statement description.
func hasStrongKeyword(description, merchant string) bool {
	desc := strings.ToUpper(description)
	for _, word := range strings.Fields(strings.ToUpper(merchant)) {
		word = strings.Trim(word, ".,;:-*")
		if len(word) < minStrongKeywordLen || keywordStopwords[word] {
			continue
		}
		if strings.Contains(desc, word) {
			return true
		}
	}
	return false
}
