package apportion

import (
	"sort"

	"github.com/duneshique/sharex-settlement/pkg/core/period"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// ResolveRatio returns the ratio in force for period: the latest change whose
// FromPeriod is at or before period, else base. Quarterly and monthly periods
// are compared through period.Normalize, so "2024-Q4" and "2024-10" coincide.
func ResolveRatio(base float64, changes []models.RatioChange, p string) float64 {
	if len(changes) == 0 {
		return base
	}
	sorted := make([]models.RatioChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return period.Normalize(sorted[i].FromPeriod) > period.Normalize(sorted[j].FromPeriod)
	})

	at := period.Normalize(p)
	for _, c := range sorted {
		if at >= period.Normalize(c.FromPeriod) {
			return c.Ratio
		}
	}
	return base
}

// RevenueShareRatio is the company's effective revenue-share ratio for p.
// A positive override replaces the catalog base ratio; scheduled changes still apply.
func RevenueShareRatio(c models.Company, p string, override float64) float64 {
	base := c.RevenueShareRatio
	if base <= 0 {
		base = models.DefaultRevenueShareRatio
	}
	if override > 0 {
		base = override
	}
	return ResolveRatio(base, c.RevenueShareChanges, p)
}

// PayoutRatio is the company's effective union payout ratio for p.
func PayoutRatio(c models.Company, p string, override float64) float64 {
	base := c.UnionPayoutRatio
	if base <= 0 {
		base = models.DefaultUnionPayoutRatio
	}
	if override > 0 {
		base = override
	}
	return ResolveRatio(base, c.PayoutRatioChanges, p)
}
