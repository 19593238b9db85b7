package apportion

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/duneshique/sharex-settlement/pkg/core/metrics"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testCompanies() []models.Company {
	return []models.Company{
		{CompanyID: "plusx", Name: "플러스엑스", Type: models.CompanyOperator, UnionPayoutRatio: 0.70,
			PayoutRatioChanges: []models.RatioChange{{FromPeriod: "2025-Q3", Ratio: 0.65}}},
		{CompanyID: "heaz", Name: "HEAZ", Type: models.CompanyPartner},
		{CompanyID: "huskyfox", Name: "허스키폭스", Type: models.CompanyPartner},
		{CompanyID: "bkid", Name: "BKID", Type: models.CompanyNewPartner},
		{CompanyID: "sabum", Name: "변사범", Type: models.CompanyPartner, Status: models.StatusExcluded},
		{CompanyID: "fontrix", Name: "폰트릭스", Type: models.CompanyPartner, Status: models.StatusDeferred},
		{CompanyID: "idle", Name: "휴면", Type: models.CompanyPartner},
	}
}

func course(id, company string) models.CourseCatalogEntry {
	return models.CourseCatalogEntry{CourseID: id, CompanyID: company, IsActive: true}
}

func testCourses() []models.CourseCatalogEntry {
	return []models.CourseCatalogEntry{
		course("213930", "plusx"),
		course("213931", "plusx"),
		course("220001", "heaz"),
		course("231001", "huskyfox"),
		course("235522", "huskyfox"),
		course("240001", "bkid"),
		course("240002", "sabum"),
		course("240003", "fontrix"),
		{CourseID: "240004", CompanyID: "bkid", IsActive: false},
		{CourseID: "240005", CompanyID: "bkid", IsActive: true, ExcludeFromSettlement: true},
		{CourseID: "250001", CompanyID: "huskyfox", IsActive: true, ShareType: models.ShareShared,
			Companies: map[string]float64{"huskyfox": 0.6, "bkid": 0.4}},
	}
}

func testEngine(opts ...Option) *Engine {
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	return New(testCompanies(), testCourses(), opts...)
}

var q4 = []string{"2024-10", "2024-11", "2024-12"}

func TestCalculate_MarginFeeAndPayout(t *testing.T) {
	e := testEngine()
	e.AddCourseSales(models.CourseSales{Month: "2024-10", CourseID: "220001", CompanyID: "heaz", Revenue: 10000000})
	e.AddCampaignCost(models.CampaignCost{Month: "2024-11", Target: "HEAZ", CampaignName: "헤즈 브랜드", CostKRW: 500000})

	res, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)

	heaz := res.Settlements["heaz"]
	assert.Equal(t, 10000000.0, heaz.TotalRevenue)
	assert.Equal(t, 500000.0, heaz.DirectAdCost)
	assert.Equal(t, 9500000.0, heaz.ContributionMargin)
	assert.Equal(t, 7125000.0, heaz.RevenueShareFee)
	assert.Equal(t, 4750000.0, heaz.UnionPayout)
	assert.Equal(t, models.DefaultRevenueShareRatio, heaz.RevenueShareRatio)
	assert.Equal(t, models.DefaultUnionPayoutRatio, heaz.UnionPayoutRatio)
	assert.Equal(t, models.StatusNormal, heaz.Status)
}

func TestCalculate_IndirectPerCourse(t *testing.T) {
	e := testEngine()
	e.AddCampaignCost(models.CampaignCost{Month: "2024-10", Target: "SHARE X", CampaignName: "SA_쉐어엑스_자상호", CostKRW: 3900000})

	res, err := e.Calculate("2024-Q4", q4, Options{TotalCourseOverride: 39})
	require.NoError(t, err)
	assert.Equal(t, 39, res.TotalCourses)
	assert.Equal(t, 100000.0, res.PerCourse)

	huskyfox := res.Settlements["huskyfox"]
	assert.Equal(t, 3, huskyfox.CourseCount)
	assert.Equal(t, 300000.0, huskyfox.IndirectAdCost)
	assert.Equal(t, 100000.0, huskyfox.IndirectAdPerCourse)

	four := New(testCompanies(), []models.CourseCatalogEntry{
		course("220001", "heaz"), course("220002", "heaz"), course("220003", "heaz"), course("220004", "heaz"),
	}, WithLogger(quietLogger))
	four.AddCampaignCost(models.CampaignCost{Month: "2024-12", Target: "SHARE X", CostKRW: 3900000})
	res, err = four.Calculate("2024-Q4", q4, Options{TotalCourseOverride: 39})
	require.NoError(t, err)
	assert.Equal(t, 400000.0, res.Settlements["heaz"].IndirectAdCost)
	assert.Equal(t, -400000.0, res.Settlements["heaz"].ContributionMargin)
}

func TestCalculate_PoolFullyDistributed(t *testing.T) {
	e := testEngine()
	e.AddCampaignCost(
		models.CampaignCost{Month: "2024-10", Target: "SHARE X", CostKRW: 1000000},
		models.CampaignCost{Month: "2024-12", CampaignName: "Advantage+ 쉐어엑스", CostKRW: 800000},
		models.CampaignCost{Month: "2025-01", Target: "SHARE X", CostKRW: 999999},
	)

	res, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)

	// countable: 2 plusx, 1 heaz, 3 huskyfox, 1 bkid, 1 sabum, 1 fontrix
	require.Equal(t, 9, res.TotalCourses)
	assert.Equal(t, 1800000.0, res.IndirectPool)

	distributed := 0.0
	counted := 0
	for _, s := range res.Settlements {
		distributed += s.IndirectAdCost
		counted += s.CourseCount
	}
	active := e.ActiveCourses()
	for _, id := range []string{"plusx", "sabum"} {
		distributed += res.PerCourse * float64(len(active[id]))
		counted += len(active[id])
	}
	assert.Equal(t, res.TotalCourses, counted)
	assert.InDelta(t, res.IndirectPool, distributed, 0.01)
}

func TestCalculate_Status(t *testing.T) {
	e := testEngine()
	res, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)

	assert.NotContains(t, res.Settlements, "sabum", "excluded companies are omitted")
	assert.NotContains(t, res.Settlements, "idle", "companies without courses are omitted")
	assert.NotContains(t, res.Settlements, "plusx", "the operator is not settled")
	require.Contains(t, res.Settlements, "fontrix")
	assert.Equal(t, models.StatusDeferred, res.Settlements["fontrix"].Status)
}

func TestCalculate_SharedCourseRevenue(t *testing.T) {
	e := testEngine()
	e.AddCourseSales(
		models.CourseSales{Month: "2024-10", CourseID: "250001", CompanyID: "huskyfox", Revenue: 1000000},
		models.CourseSales{Month: "2024-11", CourseID: "231001", CompanyID: "huskyfox", Revenue: 500000},
		models.CourseSales{Month: "2024-09", CourseID: "231001", CompanyID: "huskyfox", Revenue: 777},
	)

	res, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1100000.0, res.Settlements["huskyfox"].TotalRevenue)
	assert.Equal(t, map[string]float64{"250001": 600000, "231001": 500000}, res.Settlements["huskyfox"].CourseRevenues)
	assert.Equal(t, 400000.0, res.Settlements["bkid"].TotalRevenue)
}

func TestCalculate_OptionRatiosOverrideBase(t *testing.T) {
	e := testEngine()
	e.AddCourseSales(models.CourseSales{Month: "2024-10", CourseID: "220001", CompanyID: "heaz", Revenue: 1000000})

	res, err := e.Calculate("2024-Q4", q4, Options{RevenueShareRatio: 0.8, UnionPayoutRatio: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 800000.0, res.Settlements["heaz"].RevenueShareFee)
	assert.Equal(t, 600000.0, res.Settlements["heaz"].UnionPayout)
}

func TestCalculate_Idempotent(t *testing.T) {
	e := testEngine()
	e.AddCourseSales(models.CourseSales{Month: "2024-10", CourseID: "231001", CompanyID: "huskyfox", Revenue: 1234567.89})
	e.AddCampaignCost(models.CampaignCost{Month: "2024-10", Target: "SHARE X", CostKRW: 333333})

	first, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)
	second, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Settlements, second.Settlements)

	e.Clear()
	cleared, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)
	assert.Zero(t, cleared.IndirectPool)
}

func TestCalculate_ExchangeRates(t *testing.T) {
	usd := func(month string, amount float64) models.CampaignCost {
		return models.CampaignCost{Month: month, Channel: "Meta", Target: "SHARE X", CostUSD: amount}
	}

	t.Run("monthly rate and fallback", func(t *testing.T) {
		collector := metrics.New()
		e := testEngine(WithMetrics(collector), WithRates(Rates{"2024-10": 1361, "2024-12": 1400}))
		e.AddCampaignCost(usd("2024-10", 100), usd("2024-11", 100), usd("2024-11", 50))

		res, err := e.Calculate("2024-Q4", q4, Options{})
		require.NoError(t, err)
		assert.InDelta(t, 136100+140000+70000, res.IndirectPool, 1e-6)

		require.Len(t, res.Warnings, 1, "one warning per month")
		var missing *models.ExchangeRateMissingError
		require.True(t, errors.As(res.Warnings[0], &missing))
		assert.Equal(t, "2024-11", missing.Month)
		assert.Equal(t, "2024-12", missing.FallbackMonth)
		assert.True(t, IsRateWarning(res.Warnings[0]))
	})

	t.Run("rate carried on the cost", func(t *testing.T) {
		e := testEngine()
		c := usd("2024-10", 10)
		c.ExchangeRate = 1300
		e.AddCampaignCost(c)
		res, err := e.Calculate("2024-Q4", q4, Options{})
		require.NoError(t, err)
		assert.Equal(t, 13000.0, res.IndirectPool)
	})

	t.Run("no rates", func(t *testing.T) {
		e := testEngine()
		e.AddCampaignCost(usd("2024-10", 10))
		_, err := e.Calculate("2024-Q4", q4, Options{})
		assert.True(t, errors.Is(err, models.ErrNoExchangeRates))
	})
}

func TestResolveRatio(t *testing.T) {
	changes := []models.RatioChange{
		{FromPeriod: "2025-Q3", Ratio: 0.65},
		{FromPeriod: "2024-Q4", Ratio: 0.70},
	}
	tests := []struct {
		period string
		want   float64
	}{
		{"2024-Q4", 0.70},
		{"2025-Q3", 0.65},
		{"2023-Q1", 0.75},
		{"2025-01", 0.70},
		{"2025-07", 0.65},
		{"2024-09", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRatio(0.75, changes, tt.period))
		})
	}
	assert.Equal(t, 0.5, ResolveRatio(0.5, nil, "2024-Q4"))
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{2.675, 2.68},
		{1031299.495, 1031299.5},
		{-1.005, -1.01},
		{100, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in), "%v", tt.in)
	}
}

func TestSettleRows(t *testing.T) {
	e := testEngine()
	rows := []models.CourseSettlementRow{
		{Period: "2024-Q4", CourseID: "213930", Revenue: 1500000, AdCost: 500000, ContributionMargin: 1000000, RevenueShareFee: 700000},
		{Period: "2024-Q4", CourseID: "231001", Revenue: 10396350, AdCost: 396350, ContributionMargin: 10000000, RevenueShareFee: 7500000},
		{Period: "2024-Q4", CourseID: "235522"},
		{Period: "2024-Q4", CourseID: "250001", Revenue: 100, ContributionMargin: 100},
		{Period: "2024-Q4", CourseID: "240002", Revenue: 50, ContributionMargin: 50},
		{Period: "2024-Q4", CourseID: "2611A0", RawLabel: "알 수 없는 강의", Revenue: 1, ContributionMargin: 1},
	}

	res := e.SettleRows("2024-Q4", rows)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Error(), "2611A0")
	assert.Equal(t, 1, res.SkippedRows)
	assert.Equal(t, 1.0, res.SkippedRevenue)
	summary := Summarize(res)
	assert.Equal(t, 1, summary.SkippedRows)
	assert.Equal(t, 1.0, summary.SkippedRevenue)

	plusx := res.Settlements["plusx"]
	assert.Equal(t, 0.70, plusx.UnionPayoutRatio)
	assert.Equal(t, 700000.0, plusx.UnionPayout)

	huskyfox := res.Settlements["huskyfox"]
	assert.Equal(t, 3, huskyfox.CourseCount)
	assert.Equal(t, 10000060.0, huskyfox.ContributionMargin)
	assert.Equal(t, 5000030.0, huskyfox.UnionPayout)

	assert.Equal(t, 40.0, res.Settlements["bkid"].ContributionMargin)
	assert.NotContains(t, res.Settlements, "sabum")

	later := e.SettleRows("2025-Q3", rows[:1])
	assert.Equal(t, 650000.0, later.Settlements["plusx"].UnionPayout)
}

func TestExport(t *testing.T) {
	e := testEngine()
	e.AddCourseSales(
		models.CourseSales{Month: "2024-10", CourseID: "220001", CompanyID: "heaz", Revenue: 10000000},
		models.CourseSales{Month: "2024-10", CourseID: "231001", CompanyID: "huskyfox", Revenue: 2000000},
	)
	res, err := e.Calculate("2024-Q4", q4, Options{})
	require.NoError(t, err)
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path, err := ExportJSON(res, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "settlement_2024-Q4.json"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got Export
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "2024-Q4", got.Period)
		assert.Equal(t, len(res.Settlements), got.Summary.CompanyCount)
		assert.Equal(t, 12000000.0, got.Summary.TotalRevenue)
		assert.Equal(t, 6000000.0, got.Summary.TotalUnionPayout)
	})

	t.Run("xlsx", func(t *testing.T) {
		path := filepath.Join(dir, "out", "settlement.xlsx")
		require.NoError(t, ExportXLSX(res, path))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("2024-Q4")
		require.NoError(t, err)
		require.Len(t, rows, len(res.Settlements)+2)
		assert.Equal(t, "heaz", rows[1][0], "largest payout first")
		assert.Equal(t, "합계", rows[len(rows)-1][0])
	})
}
