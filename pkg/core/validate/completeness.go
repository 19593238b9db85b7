package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// CompletenessInput is what a run saw and produced.
type CompletenessInput struct {
	Courses     []models.CourseCatalogEntry
	Companies   []models.Company
	Sales       []models.CourseSales
	Settlements map[string]models.CompanySettlement
}

// Completeness checks that every sold course is catalogued, every partner with
// active courses was settled, and the settled course counts plus the operator
// and excluded companies add up to the total active course count.
func Completeness(in CompletenessInput) []models.ValidationResult {
	catalog := make(map[string]bool, len(in.Courses))
	counts := map[string]int{}
	total := 0
	for _, c := range in.Courses {
		catalog[c.CourseID] = true
		if c.Countable() {
			counts[c.CompanyID]++
			total++
		}
	}

	// mapping
	seen := map[string]bool{}
	var unmapped []string
	for _, s := range in.Sales {
		if !catalog[s.CourseID] && !seen[s.CourseID] {
			seen[s.CourseID] = true
			unmapped = append(unmapped, s.CourseID)
		}
	}
	sort.Strings(unmapped)
	mapping := models.ValidationResult{
		CheckName: "course mapping",
		Passed:    len(unmapped) == 0,
		Actual:    float64(len(unmapped)),
		Message:   "all sold courses are catalogued",
	}
	if len(unmapped) > 0 {
		mapping.Message = "unmapped courses: " + strings.Join(unmapped, ", ")
	}

	// companies
	var missing []string
	expected := 0
	unsettled := 0
	for _, c := range in.Companies {
		n := counts[c.CompanyID]
		if c.Type.IsPartner() && c.Status != models.StatusExcluded && n > 0 {
			expected++
			if _, ok := in.Settlements[c.CompanyID]; !ok {
				missing = append(missing, c.CompanyID)
			}
			continue
		}
		unsettled += n
	}
	sort.Strings(missing)
	companies := models.ValidationResult{
		CheckName: "company coverage",
		Passed:    len(missing) == 0,
		Expected:  float64(expected),
		Actual:    float64(expected - len(missing)),
		Message:   "every partner with active courses is settled",
	}
	if len(missing) > 0 {
		companies.Message = "missing companies: " + strings.Join(missing, ", ")
	}

	// course counts
	settled := 0
	for _, s := range in.Settlements {
		settled += s.CourseCount
	}
	sum := settled + unsettled
	courseCount := models.ValidationResult{
		CheckName:  "apportioned course count",
		Passed:     sum == total,
		Expected:   float64(total),
		Actual:     float64(sum),
		Difference: float64(abs(total - sum)),
		Message:    fmt.Sprintf("settled %d + unsettled %d = %d, total %d", settled, unsettled, sum, total),
	}

	return []models.ValidationResult{mapping, companies, courseCount}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
