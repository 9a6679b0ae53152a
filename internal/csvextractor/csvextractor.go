// Package csvextractor parses bank CSV exports with unknown delimiter,
// encoding and column naming. It tries an explicit ordered list of
// (delimiter, encoding) candidates and maps normalized headers against alias
// lists, rather than sniffing through nested error handling.
package csvextractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// candidate is one (delimiter, encoding) pair attempted in order. The first
// candidate whose header splits into more than one column wins.
type candidate struct {
	delimiter rune
	decoder   *encoding.Decoder
	label     string
}

func candidates() []candidate {
	utf8BOM := unicode.UTF8BOM.NewDecoder()
	latin1 := charmap.ISO8859_1.NewDecoder()
	return []candidate{
		{',', utf8BOM, "utf-8-sig/comma"},
		{';', utf8BOM, "utf-8-sig/semicolon"},
		{'\t', utf8BOM, "utf-8-sig/tab"},
		{',', latin1, "latin-1/comma"},
		{';', latin1, "latin-1/semicolon"},
		{'\t', latin1, "latin-1/tab"},
	}
}

// Column alias lists, matched against lowercased trimmed headers.
var columnAliases = map[string][]string{
	"date":        {"data", "date", "dt"},
	"amount":      {"valor", "value", "amount", "amt"},
	"description": {"descrição", "descricao", "description", "memo", "historico", "histórico", "merchant", "estabelecimento", "loja"},
}

// Extract parses a CSV bank export into one transaction per valid row.
// Rows with unparseable dates or amounts are skipped, not fatal; a file
// whose headers cannot be mapped to a date and an amount column is rejected
// with an error naming the columns that were found.
func Extract(r io.Reader, filename string) (*models.ParseResult, error) {
	log := logging.GetLogger().WithField("file", filename)

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSV input: %w", err)
	}

	records, label, err := readRecords(raw)
	if err != nil {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       filename,
			ExpectedFormat: "delimited CSV",
			Msg:            err.Error(),
		}
	}
	log.Debug("CSV candidate accepted", logging.Field{Key: "candidate", Value: label})

	headers := normalizeHeaders(records[0])
	colIndex, err := mapColumns(headers)
	if err != nil {
		return nil, &parsererror.DataExtractionError{
			FilePath:  filename,
			FieldName: "date/amount",
			Reason:    err.Error(),
		}
	}

	result := &models.ParseResult{DocType: models.DocTypeBankStatement}
	for _, row := range records[1:] {
		txn, ok := parseRow(row, colIndex)
		if ok {
			result.Transactions = append(result.Transactions, txn)
		}
	}

	log.Info("CSV parsed",
		logging.Field{Key: "rows", Value: len(records) - 1},
		logging.Field{Key: "transactions", Value: len(result.Transactions)})
	return result, nil
}

// readRecords tries each (delimiter, encoding) candidate and returns records
// from the first one that yields a multi-column header and at least one row.
func readRecords(raw []byte) ([][]string, string, error) {
	for _, c := range candidates() {
		decoded, err := io.ReadAll(c.decoder.Reader(bytes.NewReader(raw)))
		if err != nil {
			continue
		}
		// The UTF-8 decoder substitutes U+FFFD for invalid bytes instead of
		// failing; treat any substitution as a decode miss so latin-1 input
		// falls through to the latin-1 candidates.
		if bytes.ContainsRune(decoded, '�') {
			continue
		}
		reader := csv.NewReader(bytes.NewReader(decoded))
		reader.Comma = c.delimiter
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		records, err := reader.ReadAll()
		if err != nil || len(records) < 2 {
			continue
		}
		if len(records[0]) > 1 {
			return records, c.label, nil
		}
	}
	return nil, "", fmt.Errorf("no delimiter/encoding candidate produced a multi-column table")
}

func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = h
	}
	return out
}

func mapColumns(headers []string) (map[string]int, error) {
	found := make(map[string]int)
	for target, aliases := range columnAliases {
		for _, alias := range aliases {
			for i, h := range headers {
				if h == alias {
					found[target] = i
					break
				}
			}
			if _, ok := found[target]; ok {
				break
			}
		}
	}
	if _, ok := found["date"]; !ok {
		return nil, fmt.Errorf("no date column recognized. Found columns: %v", headers)
	}
	if _, ok := found["amount"]; !ok {
		return nil, fmt.Errorf("no amount column recognized. Found columns: %v", headers)
	}
	return found, nil
}

func parseRow(row []string, colIndex map[string]int) (models.ExtractedTransaction, bool) {
	var txn models.ExtractedTransaction

	dateIdx := colIndex["date"]
	amountIdx := colIndex["amount"]
	if dateIdx >= len(row) || amountIdx >= len(row) {
		return txn, false
	}

	date, err := dateutils.ParseDayFirst(row[dateIdx])
	if err != nil {
		return txn, false
	}
	amount, err := models.ParseAmount(row[amountIdx])
	if err != nil {
		return txn, false
	}

	description := "CSV Import"
	if idx, ok := colIndex["description"]; ok && idx < len(row) {
		if d := strings.TrimSpace(row[idx]); d != "" {
			description = d
		}
	}

	txn.Date = &date
	txn.Amount = amount
	txn.Description = description
	txn.Currency = "BRL"
	return txn, true
}
