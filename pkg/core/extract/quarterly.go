package extract

import (
	"regexp"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

var (
	courseIDRe = regexp.MustCompile(`\b(2[1-4]\d{4})\b`)
	// a dash in every numeric column means the course had no activity;
	// exports use the hyphen, en dash or em dash
	emptyRowRe = regexp.MustCompile(`[-–—]\s+[-–—]\s+[-–—]\s+[-–—]`)
)

// quarterlySection applies the section headers of the spreadsheet export.
// header is true when the line is a section title and holds no row.
func quarterlySection(state SectionState, line string) (next SectionState, header bool) {
	hasUnion := strings.Contains(line, "유니온")
	switch {
	case hasUnion && containsAny(line, "정산", "내역"):
		return partnerState, true
	case strings.Contains(line, "플러스엑스") && !hasUnion && containsAny(line, "정산", "내역"):
		return operatorState, true
	}
	if strings.Contains(line, "R/S") {
		if strings.Contains(line, "70%") {
			state.Ratio = OperatorRatio
		} else if strings.Contains(line, "75%") {
			state.Ratio = PartnerRatio
		}
	}
	return state, false
}

// QuarterlyLine scans one line of a quarterly statement exported from the
// settlement spreadsheet ("코스아이디 | 강의명 | 매출 | 광고비 | 공헌이익 | 강사료").
func QuarterlyLine(period string) LineFunc {
	return func(state SectionState, line string) LineResult {
		state, header := quarterlySection(state, line)
		if header {
			return LineResult{State: state}
		}

		m := courseIDRe.FindStringSubmatch(line)
		if m == nil || containsAny(line, "합계", "코스아이디") {
			return LineResult{State: state}
		}
		courseID := m[1]

		row := &models.CourseSettlementRow{
			Period:   period,
			CourseID: courseID,
			Section:  state.Section,
			Ratio:    state.Ratio,
			Resolved: true,
		}

		if emptyRowRe.MatchString(line[strings.LastIndex(line, courseID)+len(courseID):]) {
			return LineResult{State: state, Row: row}
		}

		nums := StrictTokenizer.FromRight(line)
		switch {
		case len(nums) >= 4:
			n := nums[len(nums)-4:]
			row.Revenue, row.AdCost, row.ContributionMargin, row.RevenueShareFee = n[0], n[1], n[2], n[3]
		case len(nums) == 3:
			row.AdCost, row.ContributionMargin, row.RevenueShareFee = nums[0], nums[1], nums[2]
			row.Revenue = row.ContributionMargin + row.AdCost
		default:
			return LineResult{State: state}
		}
		return LineResult{State: state, Row: row}
	}
}
