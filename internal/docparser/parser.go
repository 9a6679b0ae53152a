// Package docparser implements the layout parser chain for PDF text. Each
// known layout contributes an independent, side-effect-free detect/extract
// pair; the chain tries them in a fixed priority order and the first parser
// that detects the layout produces the result.
package docparser

import (
	"soberana/docledger/internal/models"
)

// LayoutParser is one detect/extract pair for a known document layout.
// Detect must be cheap and must not mutate state; Extract may return a nil
// result to signal that the layout matched superficially but the required
// fields were not found, letting the chain fall through.
type LayoutParser interface {
	// Name labels the parser in ingestion-method records.
	Name() string
	// Detect reports whether the raw text looks like this parser's layout.
	Detect(text string) bool
	// Extract pulls structured data out of the text. A nil result with a
	// nil error means the parser declined the document.
	Extract(text string) (*models.ParseResult, error)
}
