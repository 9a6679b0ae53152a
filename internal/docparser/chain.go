package docparser

import (
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"
)

// Chain runs the layout parsers in a fixed priority order. When the caller
// knows the expected document type from upload metadata the chain is
// restricted to parsers of that type, which removes cross-type false
// positives; otherwise auto-detection applies: strict receipt layouts
// first, the statement heuristic second, the generic receipt fallback last.
type Chain struct {
	statementParsers []LayoutParser
	receiptParsers   []LayoutParser
	log              logging.Logger
}

// NewChain builds the default parser chain.
func NewChain(log logging.Logger) *Chain {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Chain{
		statementParsers: []LayoutParser{
			NewItauStatementParser(),
			NewGenericStatementParser(),
		},
		receiptParsers: []LayoutParser{
			NewTransferReceiptParser(),
			NewDanfeParser(),
			NewGenericReceiptParser(),
		},
		log: log,
	}
}

// Run parses raw text with the chain. It returns the parse result and the
// name of the parser that produced it, or UnsupportedLayoutError when no
// deterministic parser succeeded.
func (c *Chain) Run(text string, expected models.DocumentType) (*models.ParseResult, string, error) {
	switch expected {
	case models.DocTypeBankStatement:
		return c.tryAll(text, c.statementParsers)
	case models.DocTypeReceipt:
		return c.tryAll(text, c.receiptParsers)
	}
	return c.autoDetect(text)
}

// tryAll runs each parser whose Detect accepts the text and returns the
// first usable result.
func (c *Chain) tryAll(text string, parsers []LayoutParser) (*models.ParseResult, string, error) {
	for _, p := range parsers {
		if !p.Detect(text) {
			continue
		}
		result, err := p.Extract(text)
		if err != nil {
			c.log.WithError(err).Warn("layout parser failed, falling through",
				logging.Field{Key: "parser", Value: p.Name()})
			continue
		}
		if result == nil {
			continue
		}
		c.log.Info("layout parser succeeded",
			logging.Field{Key: "parser", Value: p.Name()},
			logging.Field{Key: "transactions", Value: len(result.Transactions)})
		return result, p.Name(), nil
	}
	return nil, "", &parsererror.UnsupportedLayoutError{Snippet: text}
}

// autoDetect resolves an unknown document type. Strict receipt detectors go
// first because their signatures are specific; the statement heuristic
// (more than two date-like substrings) follows; the generic receipt parser
// is the terminal deterministic attempt.
func (c *Chain) autoDetect(text string) (*models.ParseResult, string, error) {
	// Strict receipt parsers only: the generic one would accept anything.
	strict := c.receiptParsers[:len(c.receiptParsers)-1]
	if result, name, err := c.tryAll(text, strict); err == nil {
		return result, name, err
	}

	if result, name, err := c.tryAll(text, c.statementParsers); err == nil {
		return result, name, err
	}

	generic := c.receiptParsers[len(c.receiptParsers)-1]
	if result, err := generic.Extract(text); err == nil && result != nil {
		return result, generic.Name(), nil
	}

	return nil, "", &parsererror.UnsupportedLayoutError{Snippet: text}
}
