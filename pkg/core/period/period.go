// Package period parses and normalises settlement periods.
//
// Two period shapes are used throughout: quarterly "YYYY-QN" and monthly
// "YYYY-MM". Comparisons are done on the normalised monthly form, where a
// quarter maps to its first month.
package period

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind of period recognised from a file name.
type Kind string

const (
	Quarterly Kind = "quarterly"
	Monthly   Kind = "monthly"
	Unknown   Kind = "unknown"
)

var (
	quarterNameRe = regexp.MustCompile(`(\d{4})\s*년\s*(\d)\s*(?:Q|분기)`)
	monthNameRe   = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월`)
	shortMonthRe  = regexp.MustCompile(`(\d{2})\.(\d{2})`)
	quarterRe     = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
	monthRe       = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	monthValueRe  = regexp.MustCompile(`(\d{4})[.\-년]\s*(\d{1,2})`)
)

// FromFilename detects the period of a statement from its file name.
// Names are NFC-normalised first since macOS stores Hangul decomposed.
func FromFilename(path string) (Kind, string) {
	base := filepath.Base(path)
	name := norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))

	if m := quarterNameRe.FindStringSubmatch(name); m != nil {
		return Quarterly, fmt.Sprintf("%s-Q%s", m[1], m[2])
	}
	if m := monthNameRe.FindStringSubmatch(name); m != nil {
		month, _ := strconv.Atoi(m[2])
		return Monthly, fmt.Sprintf("%s-%02d", m[1], month)
	}
	return Unknown, ""
}

// QuarterMonths expands "2024-Q4" to ["2024-10", "2024-11", "2024-12"].
func QuarterMonths(quarter string) ([]string, error) {
	m := quarterRe.FindStringSubmatch(quarter)
	if m == nil {
		return nil, fmt.Errorf("invalid quarter %q", quarter)
	}
	q, _ := strconv.Atoi(m[2])
	start := (q-1)*3 + 1
	months := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		months = append(months, fmt.Sprintf("%s-%02d", m[1], start+i))
	}
	return months, nil
}

// Months returns the months covered by a quarterly or monthly period.
func Months(p string) ([]string, error) {
	if quarterRe.MatchString(p) {
		return QuarterMonths(p)
	}
	if monthRe.MatchString(p) {
		return []string{p}, nil
	}
	return nil, fmt.Errorf("invalid period %q", p)
}

// Normalize maps a period to its first month so periods compare as strings:
// "2024-Q4" -> "2024-10", "2024-10" -> "2024-10". Other input is returned as is.
func Normalize(p string) string {
	if m := quarterRe.FindStringSubmatch(p); m != nil {
		q, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d", m[1], (q-1)*3+1)
	}
	return p
}

// QuarterOf returns the quarter containing a "YYYY-MM" month.
func QuarterOf(month string) (string, error) {
	m := monthRe.FindStringSubmatch(month)
	if m == nil {
		return "", fmt.Errorf("invalid month %q", month)
	}
	mm, _ := strconv.Atoi(m[2])
	if mm < 1 || mm > 12 {
		return "", fmt.Errorf("invalid month %q", month)
	}
	return fmt.Sprintf("%s-Q%d", m[1], (mm-1)/3+1), nil
}

// MonthFromText finds "2024년 10월" or "24.10" in free text.
func MonthFromText(text string) (string, bool) {
	if m := monthNameRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d", m[1], month), true
	}
	if m := shortMonthRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return fmt.Sprintf("%d-%02d", 2000+year, month), true
		}
	}
	return "", false
}

// MonthValue converts spreadsheet month cells ("2024-10", "2024.10",
// "2024년 10월", "2024-10-31T00:00:00") to "YYYY-MM".
func MonthValue(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if monthRe.MatchString(text) {
		return text, true
	}
	if m := monthValueRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return fmt.Sprintf("%s-%02d", m[1], month), true
		}
	}
	return "", false
}

// InMonths reports whether month is one of months.
func InMonths(month string, months []string) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
