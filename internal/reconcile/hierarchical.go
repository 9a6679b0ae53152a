package reconcile

import (
	"strings"

	"soberana/docledger/internal/models"
	"soberana/docledger/internal/store"
	"soberana/docledger/internal/textutils"
)

// HierarchicalMatcher links a statement transaction to a receipt through
// three layers of decreasing confidence. Each layer runs over every
// candidate before the next one is tried, so a weak layer can never shadow
// a strong match on a later candidate.
type HierarchicalMatcher struct{}

func NewHierarchicalMatcher() *HierarchicalMatcher {
	return &HierarchicalMatcher{}
}

const (
	scoreExactValue    = 1.0
	scoreDigitRun      = 0.8
	scoreKeywordBase   = 0.5
	scoreKeywordPerHit = 0.1
	scoreKeywordCap    = 0.79
	minDigitRun        = 6
	minKeywordHits     = 2
)

func (h *HierarchicalMatcher) Match(tx models.Transaction, candidates []store.ReceiptCandidate) (*Match, bool) {
	if m, ok := h.matchExactValue(tx, candidates); ok {
		return m, true
	}
	if m, ok := h.matchDigitRuns(tx, candidates); ok {
		return m, true
	}
	return h.matchKeywords(tx, candidates)
}

// matchExactValue searches each receipt's raw text for the transaction
// amount spelled the way Brazilian documents print it.
func (h *HierarchicalMatcher) matchExactValue(tx models.Transaction, candidates []store.ReceiptCandidate) (*Match, bool) {
	abs := tx.Amount.Abs()
	needles := []string{
		models.FormatAmountBR(abs),
		abs.StringFixed(2),
		strings.ReplaceAll(abs.StringFixed(2), ".", ","),
	}
	for _, c := range candidates {
		text := textutils.Flatten(c.Document.RawText)
		for _, needle := range needles {
			if needle != "" && strings.Contains(text, needle) {
				return &Match{
					ReceiptID: c.Document.ID,
					Score:     scoreExactValue,
					Type:      models.MatchExactValue,
				}, true
			}
		}
	}
	return nil, false
}

// matchDigitRuns compares long digit runs (document numbers, boleto lines,
// NF-e keys) between the statement description and the receipt text.
func (h *HierarchicalMatcher) matchDigitRuns(tx models.Transaction, candidates []store.ReceiptCandidate) (*Match, bool) {
	runs := textutils.DigitRuns(tx.MerchantName, minDigitRun)
	if len(runs) == 0 {
		return nil, false
	}
	for _, c := range candidates {
		receiptRuns := textutils.DigitRuns(c.Document.RawText, minDigitRun)
		for _, run := range runs {
			for _, rr := range receiptRuns {
				if run == rr || strings.Contains(rr, run) || strings.Contains(run, rr) {
					return &Match{
						ReceiptID: c.Document.ID,
						Score:     scoreDigitRun,
						Type:      models.MatchNumericSubstring,
					}, true
				}
			}
		}
	}
	return nil, false
}

// matchKeywords intersects description keywords with the receipt text. The
// score grows with each hit but stays below every stronger layer.
func (h *HierarchicalMatcher) matchKeywords(tx models.Transaction, candidates []store.ReceiptCandidate) (*Match, bool) {
	keywords := descriptionKeywords(tx.MerchantName)
	if len(keywords) == 0 {
		return nil, false
	}

	var best *Match
	bestHits := 0
	for _, c := range candidates {
		text := textutils.Flatten(c.Document.RawText)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits < minKeywordHits || hits <= bestHits {
			continue
		}
		score := scoreKeywordBase + scoreKeywordPerHit*float64(hits)
		if score > scoreKeywordCap {
			score = scoreKeywordCap
		}
		bestHits = hits
		best = &Match{
			ReceiptID: c.Document.ID,
			Score:     score,
			Type:      models.MatchKeyword,
		}
	}
	return best, best != nil
}

// Bank narrative boilerplate that never identifies a counterparty.
var keywordStopwords = map[string]bool{
	"PAGAMENTO": true, "TRANSFERENCIA": true, "TRANSFERÊNCIA": true,
	"COMPRA": true, "CARTAO": true, "CARTÃO": true, "DEBITO": true,
	"DÉBITO": true, "CREDITO": true, "CRÉDITO": true, "BOLETO": true,
	"PIX": true, "TED": true, "DOC": true, "LTDA": true, "BRASIL": true,
}

func descriptionKeywords(description string) []string {
	var out []string
	for _, word := range strings.Fields(strings.ToUpper(description)) {
		word = strings.Trim(word, ".,;:-*")
		if len(word) < 3 || keywordStopwords[word] {
			continue
		}
		if strings.IndexFunc(word, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
			continue
		}
		out = append(out, word)
	}
	return out
}
