package extract

import (
	"fmt"
	"math"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// CheckReport is the outcome of sanity checks on an extracted document.
type CheckReport struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether no check failed.
func (r CheckReport) OK() bool {
	return len(r.Errors) == 0
}

// Check validates an extraction before it is used for settlement: rows must
// exist and carry a course id; negative revenue and totals that do not add
// up are reported as warnings.
func Check(doc *models.ParsedDocument) CheckReport {
	var rep CheckReport
	if doc == nil || (len(doc.Rows) == 0 && len(doc.Sales) == 0) {
		rep.Errors = append(rep.Errors, "no settlement rows extracted")
		return rep
	}

	for i, r := range doc.Rows {
		if r.CourseID == "" {
			rep.Errors = append(rep.Errors, fmt.Sprintf("row %d: missing course id", i+1))
		}
		if r.Revenue < 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("row %d (%s): negative revenue %.0f", i+1, r.CourseID, r.Revenue))
		}
		if !r.Resolved {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("row %d (%s): course label %q not in catalog", i+1, r.CourseID, r.RawLabel))
		}
	}
	for i, s := range doc.Sales {
		if s.CourseID == "" {
			rep.Errors = append(rep.Errors, fmt.Sprintf("sale %d: missing course id", i+1))
		}
	}

	revenue, adCost, margin := doc.Totals()
	if len(doc.Rows) > 0 && math.Abs(revenue-adCost-margin) > RevenueTolerance {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf(
			"totals do not add up: revenue %.0f - ad cost %.0f = %.0f, margin %.0f",
			revenue, adCost, revenue-adCost, margin))
	}
	return rep
}
