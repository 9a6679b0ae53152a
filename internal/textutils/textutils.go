// Package textutils holds the text-search primitives shared by the layout
// parsers and the reconciliation engine: windowed anchor search, text
// flattening, digit-run extraction and masked-identifier cleanup.
package textutils

import (
	"regexp"
	"strings"
)

var whitespacePattern = regexp.MustCompile(`[\s\n\r\t]+`)

// Flatten collapses all whitespace runs to single spaces and uppercases the
// text. Multi-page PDF dumps flatten into one searchable line this way.
func Flatten(text string) string {
	return strings.ToUpper(whitespacePattern.ReplaceAllString(text, " "))
}

// FindAfterAnchor searches for every occurrence of anchor in text and, for
// each, looks for value only within the next window characters. Restricting
// the search to a window after the label avoids false positives from the
// same value pattern appearing elsewhere in the document. The first hit
// wins.
func FindAfterAnchor(text string, anchor, value *regexp.Regexp, window int) (string, bool) {
	for _, loc := range anchor.FindAllStringIndex(text, -1) {
		end := loc[1] + window
		if end > len(text) {
			end = len(text)
		}
		if m := value.FindStringSubmatch(text[loc[1]:end]); m != nil {
			if len(m) > 1 {
				return m[1], true
			}
			return m[0], true
		}
	}
	return "", false
}

// FindAllAfterAnchor is FindAfterAnchor returning every value found in the
// windows after each anchor occurrence, in document order.
func FindAllAfterAnchor(text string, anchor, value *regexp.Regexp, window int) []string {
	var out []string
	for _, loc := range anchor.FindAllStringIndex(text, -1) {
		end := loc[1] + window
		if end > len(text) {
			end = len(text)
		}
		for _, m := range value.FindAllStringSubmatch(text[loc[1]:end], -1) {
			if len(m) > 1 {
				out = append(out, m[1])
			} else {
				out = append(out, m[0])
			}
		}
	}
	return out
}

var separatorPattern = regexp.MustCompile(`[\.\-\/\s]`)

// DigitRuns returns the distinct runs of at least minLen consecutive digits
// after stripping dot, dash, slash and whitespace separators. Tax-document
// IDs and bank reference numbers survive their printed formatting this way.
func DigitRuns(text string, minLen int) []string {
	clean := separatorPattern.ReplaceAllString(text, "")
	pattern := regexp.MustCompile(`\d{` + itoa(minLen) + `,}`)
	seen := make(map[string]bool)
	var out []string
	for _, run := range pattern.FindAllString(clean, -1) {
		if !seen[run] {
			seen[run] = true
			out = append(out, run)
		}
	}
	return out
}

func itoa(n int) string {
	if n <= 0 {
		return "1"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

var (
	maskBlockPattern   = regexp.MustCompile(`[\*\.]+\d{3}[\*\.]+`)
	longDigitsPattern  = regexp.MustCompile(`[\d\.\/-]{11,}`)
	idNoisePattern     = regexp.MustCompile(`(?i)CNPJ|CPF|CHAVE|\d{2}\.`)
	trailingTrimCutset = " -:.,"
)

// StripMaskedIdentifiers removes partially redacted tax IDs (asterisk blocks
// like ***.123.456-**) and trailing ID-like digit runs from a merchant
// candidate while keeping the legitimate name substring.
func StripMaskedIdentifiers(candidate string) string {
	s := candidate
	if strings.Contains(s, "*") {
		s = maskBlockPattern.ReplaceAllString(s, "")
		s = strings.ReplaceAll(s, "*", "")
	}
	if loc := idNoisePattern.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = longDigitsPattern.ReplaceAllString(s, "")
	return strings.Trim(s, trailingTrimCutset)
}
