package extract

import (
	"testing"

	"github.com/duneshique/sharex-settlement/pkg/core/document"
	"github.com/duneshique/sharex-settlement/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monthlyPage = `[패스트캠퍼스] Share X 정산서 - 2024년 10월
[플러스엑스] 정산 내역 (단위: 원)
정산월 코스아이디 강의명 매출액 직접광고비 간접광고비 공헌이익 수익쉐어 강사료 70%
2024년 10월 213930 [쉐어엑스]플러스엑스 UI 실무 1,000,000 100,000 50,000
[유니온] 정산 내역 (단위: 원)
2024년 10월 231001 [쉐어엑스]허스키폭스 타이포그래피 입문 2,000,000 0 100,000 1,900,000 1,425,000
2024년 10월 249999 카탈로그에 없는 강의 500,000 0 0
합계 3,500,000 100,000 150,000
메타 : ₩8,028,348 (= $5,898.86 (10월 매매 평균 환율 1361.00))
구글 : ₩1,200,000`

const metaInvoicePage = `Meta Platforms Ireland Limited INVOICE
1 ASC_쉐어엑스^100008 캠페인 430.30
2 플러스엑스 리타겟팅 120.50
3 BKID 브랜드 캠페인 80.00
Subtotal 630.80
4 Total 630.80`

func TestExtractMonthly(t *testing.T) {
	doc := document.FromPages("Share X 정산서 - 2024년 10월.pdf", monthlyPage, metaInvoicePage)

	got, err := testExtractor().ExtractMonthly(doc, "2024-10")
	require.NoError(t, err)
	assert.Equal(t, "monthly", got.Layout)

	t.Run("rows", func(t *testing.T) {
		require.Len(t, got.Rows, 3)

		plusx := got.Rows[0]
		assert.Equal(t, "213930", plusx.CourseID)
		assert.Equal(t, models.SectionPlusX, plusx.Section)
		assert.Equal(t, 1000000.0, plusx.Revenue)
		assert.Equal(t, 150000.0, plusx.AdCost)
		assert.Equal(t, 850000.0, plusx.ContributionMargin)
		assert.InDelta(t, 595000, plusx.RevenueShareFee, 1e-6)
		assert.Equal(t, "[쉐어엑스]플러스엑스 UI 실무 마스터 패키지", plusx.CourseName)

		// five columns: the trailing section totals are ignored
		union := got.Rows[1]
		assert.Equal(t, "231001", union.CourseID)
		assert.Equal(t, models.SectionUnion, union.Section)
		assert.Equal(t, 2000000.0, union.Revenue)
		assert.Equal(t, 100000.0, union.AdCost)
		assert.InDelta(t, 1425000, union.RevenueShareFee, 1e-6)
	})

	t.Run("sales", func(t *testing.T) {
		require.Len(t, got.Sales, 3)
		assert.Equal(t, models.CourseSales{
			Month: "2024-10", CourseID: "213930", CourseName: "[쉐어엑스]플러스엑스 UI 실무 마스터 패키지",
			CompanyID: "plusx", Revenue: 1000000,
		}, got.Sales[0])
		assert.Equal(t, "huskyfox", got.Sales[1].CompanyID)
		assert.Equal(t, UnknownCompany, got.Sales[2].CompanyID)
		assert.Equal(t, 500000.0, got.Sales[2].Revenue)
	})

	t.Run("campaign costs", func(t *testing.T) {
		// the Meta total is replaced by the invoice lines
		require.Len(t, got.CampaignCosts, 4)

		google := got.CampaignCosts[0]
		assert.Equal(t, ChannelGoogle, google.Channel)
		assert.Equal(t, 1200000.0, google.CostKRW)
		assert.Equal(t, models.IndirectPoolTarget, google.Target)

		targets := map[string]float64{}
		for _, c := range got.CampaignCosts[1:] {
			assert.Equal(t, ChannelMeta, c.Channel)
			assert.Zero(t, c.CostKRW)
			targets[c.Target] += c.CostUSD
		}
		assert.InDelta(t, 430.30, targets[models.IndirectPoolTarget], 1e-9)
		assert.InDelta(t, 120.50, targets["PLUS X"], 1e-9)
		assert.InDelta(t, 80.00, targets["BKID"], 1e-9)
	})
}

func TestExtractMonthly_TotalsKeptWithoutInvoice(t *testing.T) {
	doc := document.FromPages("Share X 정산서 - 2024년 10월.pdf", monthlyPage)

	got, err := testExtractor().ExtractMonthly(doc, "2024-10")
	require.NoError(t, err)
	require.Len(t, got.CampaignCosts, 2)

	meta := got.CampaignCosts[0]
	assert.Equal(t, "Meta 총액", meta.CampaignName)
	assert.Equal(t, 8028348.0, meta.CostKRW)
	assert.InDelta(t, 5898.86, meta.CostUSD, 1e-9)
	assert.InDelta(t, 1361.00, meta.ExchangeRate, 1e-9)
}

func TestMetaCampaignTarget(t *testing.T) {
	tests := []struct {
		campaign string
		want     string
	}{
		{"플러스엑스 리타겟팅", "PLUS X"},
		{"PlusX_Conversion", "PLUS X"},
		{"bkid 브랜드", "BKID"},
		{"블센 폰트 캠페인", "BLSN"},
		{"SANDOLL type", "SANDOLL"},
		{"IP 프로모션 커리어패스", "PLUS X"},
		{"ip_쉐어엑스_전환", "PLUS X"},
		{"ASC_쉐어엑스^100008", "SHARE X"},
		{"Coupons", "SHARE X"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MetaCampaignTarget(tt.campaign), tt.campaign)
	}
}

func TestReplaceChannelTotals(t *testing.T) {
	total := models.CampaignCost{Channel: ChannelMeta, CampaignName: "Meta 총액", CostKRW: 100}
	google := models.CampaignCost{Channel: ChannelGoogle, CampaignName: "Google 총액", CostKRW: 50}
	line := models.CampaignCost{Channel: ChannelMeta, CampaignName: "ASC", CostUSD: 1}

	assert.Equal(t, []models.CampaignCost{google, total}, ReplaceChannelTotals([]models.CampaignCost{total, google}, ChannelMeta))
	assert.Equal(t, []models.CampaignCost{google, line}, ReplaceChannelTotals([]models.CampaignCost{total, google, line}, ChannelMeta))
}

func TestMonthlyLine_RatioHeader(t *testing.T) {
	lines := []string{
		"[유니온] 정산 내역 (단위: 원)",
		"수익쉐어 강사료 70%",
		"2024년 11월 231001 강의 1,000 0 0",
	}
	rows, _ := Fold(lines, MonthlyLine("2024-11"))
	require.Len(t, rows, 1)
	assert.Equal(t, models.SectionUnion, rows[0].Section)
	assert.Equal(t, OperatorRatio, rows[0].Ratio)
	assert.InDelta(t, 700, rows[0].RevenueShareFee, 1e-9)
}
