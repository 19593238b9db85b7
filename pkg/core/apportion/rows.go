package apportion

import (
	"fmt"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// SettleRows aggregates statement rows per company for p. The statement has
// already apportioned advertising, so the company margin is the sum of its
// row margins and payout = margin × effective payout ratio. Shared courses
// are split by their ratio table. Rows whose course is not in the catalog
// are skipped, reported in Result.Warnings and totalled in
// Result.SkippedRows and Result.SkippedRevenue.
//
// Unlike Calculate, the operator is settled too: its statement rows carry
// the operator pool and its payout ratio is scheduled separately.
func (e *Engine) SettleRows(p string, rows []models.CourseSettlementRow) *Result {
	res := &Result{
		Period:      p,
		Settlements: make(map[string]models.CompanySettlement),
	}

	type acc struct {
		revenue, adCost, margin, fee float64
		courses                      map[string]float64
	}
	byCompany := map[string]*acc{}
	var order []string

	for _, r := range rows {
		entry, ok := e.course(r.CourseID)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Errorf("course %s (%s) not in catalog, row skipped", r.CourseID, labelOf(r)))
			res.SkippedRows++
			res.SkippedRevenue += r.Revenue
			e.logger.Warn("row skipped: course not in catalog",
				"course_id", r.CourseID, "label", labelOf(r), "period", r.Period)
			continue
		}
		for cid, ratio := range entry.Owners() {
			a := byCompany[cid]
			if a == nil {
				a = &acc{courses: map[string]float64{}}
				byCompany[cid] = a
				order = append(order, cid)
			}
			a.revenue += r.Revenue * ratio
			a.adCost += r.AdCost * ratio
			a.margin += r.ContributionMargin * ratio
			a.fee += r.RevenueShareFee * ratio
			a.courses[r.CourseID] += r.Revenue * ratio
		}
	}

	for _, cid := range order {
		a := byCompany[cid]
		company, ok := e.companies[cid]
		if !ok {
			company = models.Company{CompanyID: cid, Name: cid}
		}
		if company.Status == models.StatusExcluded {
			continue
		}
		status := company.Status
		if status == "" {
			status = models.StatusNormal
		}
		payoutRatio := PayoutRatio(company, p, 0)

		s := models.CompanySettlement{
			CompanyID:          cid,
			CompanyName:        company.Name,
			Period:             p,
			TotalRevenue:       Round(a.revenue),
			CourseRevenues:     roundAll(a.courses),
			TotalAdCost:        Round(a.adCost),
			ContributionMargin: Round(a.margin),
			RevenueShareFee:    Round(a.fee),
			UnionPayout:        Round(a.margin * payoutRatio),
			CourseCount:        len(a.courses),
			RevenueShareRatio:  RevenueShareRatio(company, p, 0),
			UnionPayoutRatio:   payoutRatio,
			Status:             status,
		}
		res.Settlements[cid] = s
		e.metrics.SetPayout(cid, p, s.UnionPayout)
	}

	res.SkippedRevenue = Round(res.SkippedRevenue)

	e.logger.Info("statement rows settled",
		"period", p, "rows", len(rows), "companies", len(res.Settlements),
		"skipped", res.SkippedRows, "skipped_revenue", res.SkippedRevenue)
	return res
}

func labelOf(r models.CourseSettlementRow) string {
	if r.RawLabel != "" {
		return r.RawLabel
	}
	return r.CourseName
}
