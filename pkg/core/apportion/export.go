package apportion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Summary totals a result.
type Summary struct {
	TotalUnionPayout float64 `json:"total_union_payout"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalAdCost      float64 `json:"total_ad_cost"`
	CompanyCount     int     `json:"company_count"`
	// statement rows no company was settled for
	SkippedRows    int     `json:"skipped_rows,omitempty"`
	SkippedRevenue float64 `json:"skipped_revenue,omitempty"`
}

// Export is the on-disk shape of a settlement run.
type Export struct {
	Period      string                              `json:"period"`
	Settlements map[string]models.CompanySettlement `json:"settlements"`
	Summary     Summary                             `json:"summary"`
}

// Summarize sums the rounded settlement amounts exactly.
func Summarize(res *Result) Summary {
	var payout, revenue, ad decimal.Decimal
	for _, s := range res.Settlements {
		payout = payout.Add(decimal.NewFromFloat(s.UnionPayout))
		revenue = revenue.Add(decimal.NewFromFloat(s.TotalRevenue))
		ad = ad.Add(decimal.NewFromFloat(s.TotalAdCost))
	}
	return Summary{
		TotalUnionPayout: payout.InexactFloat64(),
		TotalRevenue:     revenue.InexactFloat64(),
		TotalAdCost:      ad.InexactFloat64(),
		CompanyCount:     len(res.Settlements),
		SkippedRows:      res.SkippedRows,
		SkippedRevenue:   res.SkippedRevenue,
	}
}

// ExportJSON writes settlement_<period>.json under dir and returns its path.
func ExportJSON(res *Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "creating %s", dir)
	}
	out := Export{Period: res.Period, Settlements: res.Settlements, Summary: Summarize(res)}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "encoding settlement export")
	}
	path := filepath.Join(dir, fmt.Sprintf("settlement_%s.json", res.Period))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "writing %s", path)
	}
	return path, nil
}

var exportHeader = []any{
	"기업ID", "기업명", "매출", "직접광고비", "간접광고비", "총광고비",
	"공헌이익", "수익쉐어 강사료", "유니온 실지급", "강의 수", "수익쉐어 비율", "지급 비율", "상태",
}

// ExportXLSX writes one sheet with a row per company, largest payout first,
// and a total row.
func ExportXLSX(res *Result, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := res.Period
	if sheet == "" {
		sheet = "settlement"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return eris.Wrap(err, "naming sheet")
	}

	rows := [][]any{exportHeader}
	for _, s := range res.Sorted() {
		rows = append(rows, []any{
			s.CompanyID, s.CompanyName, s.TotalRevenue, s.DirectAdCost, s.IndirectAdCost, s.TotalAdCost,
			s.ContributionMargin, s.RevenueShareFee, s.UnionPayout, s.CourseCount,
			s.RevenueShareRatio, s.UnionPayoutRatio, string(s.Status),
		})
	}
	sum := Summarize(res)
	rows = append(rows, []any{"합계", "", sum.TotalRevenue, nil, nil, sum.TotalAdCost, nil, nil, sum.TotalUnionPayout})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return eris.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return eris.Wrapf(err, "writing row %d", i+1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "saving %s", path)
	}
	return nil
}
