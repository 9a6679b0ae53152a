// Package llm provides AI-assisted extraction of structured financial data
// from raw document text. It is the terminal fallback of the parser chain:
// only documents no deterministic layout parser could read reach it.
package llm

import (
	"context"

	"soberana/docledger/internal/models"
)

// Extractor turns raw document text into a structured parse result.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (*models.ParseResult, error)
}

// Fake is a test double returning canned responses.
type Fake struct {
	Result *models.ParseResult
	Err    error
	Calls  int
}

func (f *Fake) Extract(ctx context.Context, rawText string) (*models.ParseResult, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}
