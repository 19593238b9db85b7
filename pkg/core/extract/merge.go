package extract

import (
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// MergeMonthly attaches the per-month revenue found in monthly statements to
// the matching quarterly rows. Quarterly figures are left unchanged. Rows
// are copied; the input slice is not modified.
func MergeMonthly(quarterly []models.CourseSettlementRow, monthly []*models.ParsedDocument) []models.CourseSettlementRow {
	byCourse := make(map[string]map[string]float64)
	add := func(courseID, month string, revenue float64) {
		if byCourse[courseID] == nil {
			byCourse[courseID] = make(map[string]float64)
		}
		byCourse[courseID][month] += revenue
	}

	for _, doc := range monthly {
		if doc == nil {
			continue
		}
		if len(doc.Sales) > 0 {
			for _, s := range doc.Sales {
				add(s.CourseID, s.Month, s.Revenue)
			}
			continue
		}
		for _, r := range doc.Rows {
			add(r.CourseID, r.Period, r.Revenue)
		}
	}

	merged := make([]models.CourseSettlementRow, len(quarterly))
	for i, r := range quarterly {
		if months, ok := byCourse[r.CourseID]; ok {
			r.MonthlyRevenue = make(map[string]float64, len(months))
			for m, v := range months {
				r.MonthlyRevenue[m] = v
			}
		}
		merged[i] = r
	}
	return merged
}
