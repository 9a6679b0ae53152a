// Package xmlextractor parses NF-e invoice XML deterministically. The schema
// is fixed, so extraction reads known field paths and fails explicitly when a
// required field is absent; there is no fallback chain for XML input.
package xmlextractor

import (
	"io"
	"strings"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"

	"github.com/shopspring/decimal"
	"gopkg.in/xmlpath.v2"
)

var (
	issueDatePath = xmlpath.MustCompile("//dhEmi")
	totalPath     = xmlpath.MustCompile("//vNF")
	issuerPath    = xmlpath.MustCompile("//emit/xNome")
)

// Extract reads an NF-e XML document and returns a receipt ParseResult with
// issue date, total value and issuer name. Total value and issue date are
// required; the issuer name is optional.
func Extract(r io.Reader, filename string) (*models.ParseResult, error) {
	log := logging.GetLogger().WithField("file", filename)

	root, err := xmlpath.Parse(r)
	if err != nil {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       filename,
			ExpectedFormat: "NF-e XML",
			Msg:            err.Error(),
		}
	}

	result := &models.ParseResult{DocType: models.DocTypeReceipt}

	raw, ok := totalPath.String(root)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, &parsererror.DataExtractionError{
			FilePath:  filename,
			FieldName: "vNF",
			Reason:    "total value element not found",
		}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, &parsererror.ParseError{Parser: "nfe-xml", Field: "vNF", Value: raw, Err: err}
	}
	result.Amount = &amount

	rawDate, ok := issueDatePath.String(root)
	if !ok || len(strings.TrimSpace(rawDate)) < 10 {
		return nil, &parsererror.DataExtractionError{
			FilePath:  filename,
			FieldName: "dhEmi",
			Reason:    "issue timestamp element not found",
		}
	}
	// dhEmi is an ISO timestamp with offset; the date prefix is enough.
	issued, err := dateutils.ParseDayFirst(strings.TrimSpace(rawDate)[:10])
	if err != nil {
		return nil, &parsererror.ParseError{Parser: "nfe-xml", Field: "dhEmi", Value: rawDate, Err: err}
	}
	result.Date = &issued

	if issuer, ok := issuerPath.String(root); ok {
		result.MerchantOrBank = strings.TrimSpace(issuer)
	}

	log.Debug("NF-e XML extracted",
		logging.Field{Key: "amount", Value: amount.String()},
		logging.Field{Key: "merchant", Value: result.MerchantOrBank})
	return result, nil
}
