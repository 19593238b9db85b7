package extract

import (
	"regexp"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

var signedNumberRe = regexp.MustCompile(`^-?[\d,]+$`)

// UnknownCompany is recorded for sales of a course missing from the catalog.
const UnknownCompany = "unknown"

// monthlySection handles "[플러스엑스] ... 단위" and "[유니온] ... 단위" titles
// and the R/S ratio line under them.
func monthlySection(state SectionState, line string) (next SectionState, header bool) {
	if strings.Contains(line, "단위") {
		switch {
		case strings.Contains(line, "[플러스엑스]"):
			return operatorState, true
		case strings.Contains(line, "[유니온]"):
			return partnerState, true
		}
	}
	if containsAny(line, "수익쉐어", "강사료") {
		if strings.Contains(line, "70%") {
			state.Ratio = OperatorRatio
		} else if strings.Contains(line, "75%") {
			state.Ratio = PartnerRatio
		}
	}
	return state, false
}

// MonthlyLine scans one line of a monthly statement. Course rows carry
// revenue, direct and indirect ad cost; a section's last row may also carry
// the section's margin and fee totals, which are ignored.
func MonthlyLine(month string) LineFunc {
	return func(state SectionState, line string) LineResult {
		state, header := monthlySection(state, line)
		if header {
			return LineResult{State: state}
		}

		m := courseIDRe.FindStringSubmatch(line)
		if m == nil || containsAny(line, "합계", "코스아이디") {
			return LineResult{State: state}
		}

		nums := StrictTokenizer.FromRight(line)
		var revenue, direct, indirect float64
		switch n := len(nums); {
		case n >= 5:
			revenue, direct, indirect = nums[n-5], nums[n-4], nums[n-3]
		case n >= 3:
			revenue, direct, indirect = nums[n-3], nums[n-2], nums[n-1]
		default:
			return LineResult{State: state}
		}

		adCost := direct + indirect
		margin := revenue - adCost
		return LineResult{State: state, Row: &models.CourseSettlementRow{
			Period:             month,
			CourseID:           m[1],
			Revenue:            revenue,
			AdCost:             adCost,
			ContributionMargin: margin,
			RevenueShareFee:    margin * state.Ratio,
			Section:            state.Section,
			Ratio:              state.Ratio,
			Resolved:           true,
		}}
	}
}

// MonthlySales reads per-course revenue from the first page of a monthly
// statement. Revenue is the first plain number after the course id.
func MonthlySales(text, month string, courses CourseCatalog) []models.CourseSales {
	var sales []models.CourseSales
	for _, line := range splitLines(text) {
		m := courseIDRe.FindStringSubmatch(line)
		if m == nil || containsAny(line, "합계", "코스아이디") {
			continue
		}
		courseID := m[1]
		after := line[strings.Index(line, courseID)+len(courseID):]

		revenue, found := 0.0, false
		for _, tok := range strings.Fields(after) {
			if !signedNumberRe.MatchString(tok) {
				continue
			}
			if v, ok := CleanNumeric(tok); ok {
				revenue, found = v, true
				break
			}
		}
		if !found {
			continue
		}

		sale := models.CourseSales{
			Month:     month,
			CourseID:  courseID,
			CompanyID: UnknownCompany,
			Revenue:   revenue,
		}
		if courses != nil {
			if c, ok := courses.Course(courseID); ok {
				sale.CourseName = c.CourseName
				if c.CompanyID != "" {
					sale.CompanyID = c.CompanyID
				}
			}
		}
		sales = append(sales, sale)
	}
	return sales
}
