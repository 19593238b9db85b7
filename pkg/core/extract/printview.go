package extract

import (
	"regexp"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/core/match"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

var (
	courseCodeRe = regexp.MustCompile(`\b(\d{4}[A-Z]?)_`)
	// code, label, then the first numeric or percent cell
	printLabelRe = regexp.MustCompile(`(\d{4}[A-Z]?)_(.+?)(\d{1,3}%|\d{1,3}?,?\d{1,})`)
	// code and label of a row whose cells are all dashes
	printEmptyLabelRe = regexp.MustCompile(`\d{4}[A-Z]?_(.+?)\s+[-–—]\s+[-–—]`)
)

// printHeaderWords mark table header lines of the print view.
var printHeaderWords = []string{
	"항목", "매출액", "프로모션", "제작비", "마케팅비", "계약", "합계", "정산금액", "코스아이디",
}

// printSection applies a section header of the print view. Only lines with
// neither a course code nor any digit are headers.
func printSection(state SectionState, line string) SectionState {
	hasUnion := strings.Contains(line, "유니온")
	switch {
	case strings.Contains(line, "플러스엑스") && !hasUnion:
		return operatorState
	case hasUnion || strings.Contains(line, "BKID"):
		return partnerState
	}
	return state
}

// guessSection is used for rows read before any section header.
func guessSection(label string) SectionState {
	if strings.Contains(label, "플러스엑스") || strings.Contains(label, "Plus X") {
		return operatorState
	}
	return partnerState
}

// printScanner resolves print-view labels through the course matcher.
type printScanner struct {
	period  string
	matcher LabelMatcher
	courses CourseCatalog
}

// line scans one line of the print view. Columns read from the right are
// revenue, promotion revenue, production cost, marketing cost, contract
// ratio and settlement amount.
func (p printScanner) line(state SectionState, line string) LineResult {
	code := courseCodeRe.FindStringSubmatch(line)
	if code == nil {
		if !containsDigit(line) {
			state = printSection(state, line)
		}
		return LineResult{State: state}
	}
	if containsAny(line, printHeaderWords...) {
		return LineResult{State: state}
	}

	label := ""
	if m := printLabelRe.FindStringSubmatch(line); m != nil {
		label = strings.TrimSpace(m[2])
	}

	var revenue, production, marketing, ratio, settlement float64
	nums := PrintTokenizer.FromRight(line)
	switch {
	case len(nums) >= 6:
		n := nums[len(nums)-6:]
		revenue, production, marketing, ratio, settlement = n[0], n[2], n[3], n[4], n[5]
	case len(nums) == 0 && emptyRowRe.MatchString(line):
		// no activity: emitted as an all-zero row
		if m := printEmptyLabelRe.FindStringSubmatch(line); m != nil {
			label = strings.TrimSpace(m[1])
		}
	default:
		return LineResult{State: state}
	}

	section := state
	if section.Section == models.SectionUnknown {
		section = guessSection(label)
	}

	adCost := production + marketing
	margin := revenue - adCost
	if ratio > 0 {
		margin = settlement / ratio
	}
	rowRatio := section.Ratio
	if ratio > 0 {
		rowRatio = ratio
	}

	row := &models.CourseSettlementRow{
		Period:             p.period,
		CourseName:         label,
		Revenue:            revenue,
		AdCost:             adCost,
		ContributionMargin: margin,
		RevenueShareFee:    settlement,
		Section:            section.Section,
		Ratio:              rowRatio,
		RawLabel:           label,
	}

	var warning error
	switch res := p.resolve(label).(type) {
	case match.Matched:
		row.CourseID = res.CourseID
		row.Resolved = true
		if p.courses != nil {
			if c, ok := p.courses.Course(res.CourseID); ok && c.CourseName != "" {
				row.CourseName = c.CourseName
			}
		}
	case match.Unresolved:
		row.CourseID = match.Placeholder(code[1])
		warning = &models.CourseMatchError{
			CourseCode:  code[1],
			Label:       label,
			Period:      p.period,
			Placeholder: row.CourseID,
		}
	}
	return LineResult{State: state, Row: row, Warning: warning}
}

func (p printScanner) resolve(label string) match.Result {
	if p.matcher == nil {
		return match.Unresolved{RawLabel: label, Reason: "no course catalog"}
	}
	return p.matcher.Match(label)
}
