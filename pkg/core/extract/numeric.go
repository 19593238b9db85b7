package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// CELL VALUES
// =============================================================================

// cellNoise is stripped from numeric cells before parsing. Some PDF
// producers wrap numbers in invisible direction marks.
var cellNoise = strings.NewReplacer(
	"₩", "", `\`, "", ",", "", " ", "", "\t", "", "\n", "",
	"\u00a0", "", "\u202d", "", "\u202c", "", "%", "",
)

// CleanNumeric parses a statement cell.
// Examples:
//
//	"1,377,321" → 1377321
//	"₩8,028,348" → 8028348
//	"75%" → 75
//	"—" or "-" → not ok (blank)
func CleanNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "-", "—", "–":
		return 0, false
	}
	s = cellNoise.Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// =============================================================================
// RIGHT-TO-LEFT TOKENIZER
// =============================================================================

var (
	numericTokenRe = regexp.MustCompile(`^[\d,]+$`)
	// fused suffixes: "실무10,396,350" keeps "10,396,350"
	fusedTailStrictRe = regexp.MustCompile(`([\d,]{3,})$`)
	fusedTailLooseRe  = regexp.MustCompile(`([\d,]+)$`)
)

// Tokenizer reads the numeric columns that terminate a row.
//
// Course labels are free text and may contain digits, so rows are scanned
// from the end: numeric tokens are collected until the first non-numeric
// token. A number fused to the end of that token is captured once before
// the scan stops.
type Tokenizer struct {
	// AcceptPercent reads "65%" as the ratio 0.65.
	AcceptPercent bool
	fusedTail     *regexp.Regexp
}

var (
	// StrictTokenizer is used for the spreadsheet and monthly layouts, where a
	// fused tail must be at least three characters to count.
	StrictTokenizer = Tokenizer{fusedTail: fusedTailStrictRe}
	// PrintTokenizer is used for the print view, which has a percent column.
	PrintTokenizer = Tokenizer{AcceptPercent: true, fusedTail: fusedTailLooseRe}
)

// FromRight returns the trailing numbers of line in reading order.
func (t Tokenizer) FromRight(line string) []float64 {
	tokens := strings.Fields(line)
	var reversed []float64

	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]

		if t.AcceptPercent && strings.HasSuffix(tok, "%") {
			pct, err := strconv.ParseFloat(strings.TrimRight(tok, "%"), 64)
			if err != nil {
				break
			}
			reversed = append(reversed, pct/100)
			continue
		}

		if numericTokenRe.MatchString(tok) {
			if v, ok := CleanNumeric(tok); ok {
				reversed = append(reversed, v)
			}
			continue
		}

		if t.fusedTail != nil {
			if m := t.fusedTail.FindStringSubmatch(tok); m != nil {
				if v, ok := CleanNumeric(m[1]); ok {
					reversed = append(reversed, v)
				}
			}
		}
		break
	}

	nums := make([]float64, len(reversed))
	for i, v := range reversed {
		nums[len(reversed)-1-i] = v
	}
	return nums
}

// containsDigit reports whether s has any ASCII digit.
func containsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
