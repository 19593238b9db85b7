package extract

import (
	"log/slog"
	"math"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// RevenueTolerance is the largest revenue gap left uncorrected.
const RevenueTolerance = 1.0

// Reconcile enforces revenue = margin + ad cost on rows with a positive
// margin. Text extraction sometimes fuses label characters into the revenue
// cell; margin and ad cost are read from the clean right-hand columns and
// are trusted over it. Each correction is logged and counted.
func Reconcile(rows []models.CourseSettlementRow, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	corrected := 0
	for i := range rows {
		r := &rows[i]
		expected := r.ContributionMargin + r.AdCost
		if r.ContributionMargin <= 0 || math.Abs(r.Revenue-expected) <= RevenueTolerance {
			continue
		}
		logger.Info("revenue corrected from margin and ad cost",
			"course_id", r.CourseID,
			"label", labelOf(*r),
			"period", r.Period,
			"extracted", r.Revenue,
			"corrected", expected,
		)
		r.Revenue = expected
		corrected++
	}
	return corrected
}

func labelOf(r models.CourseSettlementRow) string {
	if r.RawLabel != "" {
		return r.RawLabel
	}
	return r.CourseName
}
