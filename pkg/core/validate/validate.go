// Package validate cross-checks computed settlements against confirmed
// statement amounts and checks that a run covered every course and company.
// Results are plain models.ValidationResult values so they can be archived,
// rendered or asserted on directly.
package validate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// DefaultTolerance is the per-company allowance in KRW.
const DefaultTolerance = 1.0

// =============================================================================
// CROSS-VALIDATION
// =============================================================================

// CrossValidate compares actual payouts with expected ones per company.
// A company passes when |actual - expected| <= tolerance. The aggregate check
// covers companies present on both sides with tolerance × n. Companies found
// on only one side are reported as informational results. A zero tolerance
// demands an exact match; a negative one selects DefaultTolerance.
func CrossValidate(actual, expected map[string]float64, tolerance float64) []models.ValidationResult {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}

	var results []models.ValidationResult
	var sumActual, sumExpected decimal.Decimal
	n := 0

	for _, id := range sortedKeys(expected) {
		want := expected[id]
		got, ok := actual[id]
		if !ok {
			results = append(results, models.ValidationResult{
				CheckName:     "payout: " + id,
				Expected:      want,
				Tolerance:     tolerance,
				Message:       fmt.Sprintf("%s missing from computed settlements", id),
				Informational: true,
			})
			continue
		}
		results = append(results, compare("payout: "+id, got, want, tolerance))
		sumActual = sumActual.Add(decimal.NewFromFloat(got))
		sumExpected = sumExpected.Add(decimal.NewFromFloat(want))
		n++
	}

	for _, id := range sortedKeys(actual) {
		if _, ok := expected[id]; ok {
			continue
		}
		results = append(results, models.ValidationResult{
			CheckName:     "payout: " + id,
			Actual:        actual[id],
			Tolerance:     tolerance,
			Message:       fmt.Sprintf("%s has no reference amount", id),
			Informational: true,
		})
	}

	if n > 0 {
		results = append(results, compare("payout total",
			sumActual.InexactFloat64(), sumExpected.InexactFloat64(), tolerance*float64(n)))
	}
	return results
}

// compare builds a pass/fail result. The difference is computed in decimal so
// it is exactly |actual - expected| as written.
func compare(name string, actual, expected, tolerance float64) models.ValidationResult {
	diff := decimal.NewFromFloat(actual).Sub(decimal.NewFromFloat(expected)).Abs()
	passed := diff.LessThanOrEqual(decimal.NewFromFloat(tolerance))
	verdict := "PASS"
	if !passed {
		verdict = "FAIL"
	}
	return models.ValidationResult{
		CheckName:  name,
		Passed:     passed,
		Expected:   expected,
		Actual:     actual,
		Difference: diff.InexactFloat64(),
		Tolerance:  tolerance,
		Message:    fmt.Sprintf("difference %s KRW (%s)", diff.StringFixed(2), verdict),
	}
}

// Failed returns the non-informational results that did not pass.
func Failed(results []models.ValidationResult) []models.ValidationResult {
	var out []models.ValidationResult
	for _, r := range results {
		if !r.Passed && !r.Informational {
			out = append(out, r)
		}
	}
	return out
}

// AllPassed reports whether every non-informational result passed.
func AllPassed(results []models.ValidationResult) bool {
	return len(Failed(results)) == 0
}

// =============================================================================
// REFERENCE AMOUNTS
// =============================================================================

// reference2024Q4 holds the confirmed 2024-Q4 union payouts. sabum was not
// under contract that quarter and is absent.
var reference2024Q4 = map[string]float64{
	"huskyfox":       6432849.5,
	"cosmicray":      4083126.5,
	"bkid":           4509514.5,
	"heaz":           3659120.0,
	"atelier_dongga": 2392750.5,
	"fontrix":        949759.0,
	"dfy":            2994788.5,
	"compound_c":     2255400.0,
	"csidecity":      1930270.5,
	"blsn":           1031299.0,
	"sandoll":        2469468.5,
}

// Reference returns the built-in confirmed payouts for a period, if any.
func Reference(period string) (map[string]float64, bool) {
	if period != "2024-Q4" {
		return nil, false
	}
	out := make(map[string]float64, len(reference2024Q4))
	for k, v := range reference2024Q4 {
		out[k] = v
	}
	return out, true
}

// Restrict keeps only the companies present in ref.
func Restrict(actual, ref map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(ref))
	for id, v := range actual {
		if _, ok := ref[id]; ok {
			out[id] = v
		}
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
