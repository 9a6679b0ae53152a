// Package dateutils provides the date parsing used by the document
// extractors: day-first numeric formats, Portuguese textual dates and the
// header year inference that bank statements require.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Day-first layouts in the order they are attempted.
const (
	LayoutBR      = "02/01/2006"
	LayoutBRShort = "02/01/06"
	LayoutBRDots  = "02.01.2006"
	LayoutISO     = "2006-01-02"
)

var dayFirstLayouts = []string{LayoutBR, LayoutBRDots, LayoutISO, LayoutBRShort, "02-01-2006"}

// ParseDayFirst parses a date string with day-first bias, accepting the
// formats bank documents use. Two-digit years resolve to the 2000s.
func ParseDayFirst(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

var ptMonths = map[string]time.Month{
	"jan": time.January, "fev": time.February, "mar": time.March,
	"abr": time.April, "mai": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "set": time.September,
	"out": time.October, "nov": time.November, "dez": time.December,
}

var textualDatePattern = regexp.MustCompile(`(?i)(\d{1,2})\s+(?:de\s+)?([a-zç]+)\.?\s+de\s+(\d{4})`)

// ParsePortuguese parses textual Portuguese dates such as "5 nov de 2025" or
// "05 de novembro de 2025". Full month names match by their three-letter
// prefix.
func ParsePortuguese(s string) (time.Time, bool) {
	m := textualDatePattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return time.Time{}, false
	}
	name := m[2]
	var month time.Month
	found := false
	for prefix, mo := range ptMonths {
		if strings.HasPrefix(name, prefix) {
			month, found = mo, true
			break
		}
	}
	if !found {
		return time.Time{}, false
	}
	var day, year int
	fmt.Sscanf(m[1], "%d", &day)
	fmt.Sscanf(m[3], "%d", &year)
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

var headerYearPattern = regexp.MustCompile(`/(\d{4})`)

// InferYear scans the first lines of a statement for a full date and returns
// its year. Statements print day/month per row but the year only once near
// the top; when no year is found the fallback applies.
func InferYear(lines []string, fallback int) int {
	limit := len(lines)
	if limit > 20 {
		limit = 20
	}
	header := strings.Join(lines[:limit], "\n")
	if m := headerYearPattern.FindStringSubmatch(header); m != nil {
		var year int
		fmt.Sscanf(m[1], "%d", &year)
		if year >= 2000 && year <= time.Now().Year()+1 {
			return year
		}
	}
	return fallback
}

// CompleteDayMonth combines a "dd/mm" fragment with an inferred year.
func CompleteDayMonth(dayMonth string, year int) (time.Time, error) {
	return time.Parse(LayoutBR, fmt.Sprintf("%s/%d", dayMonth, year))
}

// PlausibleYear reports whether a parsed date falls in the range financial
// documents realistically carry, filtering OCR artifacts like 05/11/0205.
func PlausibleYear(t time.Time) bool {
	return t.Year() >= 2000 && t.Year() <= time.Now().Year()+1
}
