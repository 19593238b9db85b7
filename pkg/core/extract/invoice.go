package extract

import (
	"regexp"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Channels that appear on statements and invoices.
const (
	ChannelMeta   = "Meta"
	ChannelGoogle = "Google"
	ChannelNaver  = "Naver"
)

// totalSuffix marks a channel-level amount taken from the statement notes.
const totalSuffix = "총액"

var (
	// 메타 : ₩8,028,348 (= $5,898.86 (10월 매매 평균 환율 1361.00))
	metaNoteRe   = regexp.MustCompile(`메타\s*[:：]\s*[₩\\]?([\d,]+)\s*(?:\(.*?\$?([\d,.]+).*?환율\s*([\d,.]+)\))?`)
	googleNoteRe = regexp.MustCompile(`구글\s*[:：]\s*[₩\\]?([\d,]+)`)
	naverNoteRe  = regexp.MustCompile(`네이버\s*[:：]\s*[₩\\]?([\d,]+)`)

	// 1 ASC_쉐어엑스^100008 캠페인 430.30
	invoiceLineRe = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s+([-\d,]+\.?\d*)\s*$`)
)

var invoiceSkipWords = []string{"subtotal", "freight", "vat", "total", "invoice"}

// InvoiceTotals reads the per-channel ad spend noted under the statement
// table. Every total is pooled under the indirect target until detailed
// invoice lines replace it.
func InvoiceTotals(text, month string) []models.CampaignCost {
	var costs []models.CampaignCost

	if m := metaNoteRe.FindStringSubmatch(text); m != nil {
		if krw, ok := CleanNumeric(m[1]); ok && krw != 0 {
			cost := channelTotal(month, ChannelMeta, krw)
			if usd, ok := CleanNumeric(m[2]); ok {
				cost.CostUSD = usd
			}
			if rate, ok := CleanNumeric(m[3]); ok {
				cost.ExchangeRate = rate
			}
			costs = append(costs, cost)
		}
	}
	for _, note := range []struct {
		re      *regexp.Regexp
		channel string
	}{
		{googleNoteRe, ChannelGoogle},
		{naverNoteRe, ChannelNaver},
	} {
		if m := note.re.FindStringSubmatch(text); m != nil {
			if krw, ok := CleanNumeric(m[1]); ok && krw != 0 {
				costs = append(costs, channelTotal(month, note.channel, krw))
			}
		}
	}
	return costs
}

func channelTotal(month, channel string, krw float64) models.CampaignCost {
	return models.CampaignCost{
		Month:        month,
		Channel:      channel,
		Target:       models.IndirectPoolTarget,
		CampaignName: channel + " " + totalSuffix,
		CostKRW:      krw,
	}
}

// IsInvoicePage reports whether a later statement page is an ad invoice.
func IsInvoicePage(text string) bool {
	return containsAny(text, "Meta", "Facebook", "INVOICE")
}

// MetaInvoice reads campaign lines ("<line no> <campaign> <USD amount>")
// from a Meta invoice page. Amounts are in USD and converted later.
func MetaInvoice(text, month string) []models.CampaignCost {
	var costs []models.CampaignCost
	for _, line := range splitLines(text) {
		m := invoiceLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		campaign := strings.TrimSpace(m[2])
		if containsAny(strings.ToLower(campaign), invoiceSkipWords...) {
			continue
		}
		usd, ok := CleanNumeric(m[3])
		if !ok {
			continue
		}
		costs = append(costs, models.CampaignCost{
			Month:        month,
			Channel:      ChannelMeta,
			Target:       MetaCampaignTarget(campaign),
			CampaignName: campaign,
			CostUSD:      usd,
		})
	}
	return costs
}

// MetaCampaignTarget assigns a Meta campaign to an ad target by keyword.
// Campaign names that name no company are pooled.
func MetaCampaignTarget(campaign string) string {
	name := strings.ToLower(campaign)
	switch {
	case containsAny(name, "플러스엑스", "plus x", "plusx"):
		return "PLUS X"
	case containsAny(name, "bkid", "비케이아이디"):
		return "BKID"
	case containsAny(name, "blsn", "블센"):
		return "BLSN"
	case containsAny(name, "산돌", "sandoll"):
		return "SANDOLL"
	case containsAny(name, "ip 프로모션", "ip_쉐어엑스_전환"):
		// IP promotions are run for the operator's own courses
		return "PLUS X"
	}
	return models.IndirectPoolTarget
}

// ReplaceChannelTotals drops the noted total of channel when detailed lines
// for the same channel exist.
func ReplaceChannelTotals(costs []models.CampaignCost, channel string) []models.CampaignCost {
	var others, detailed, totals []models.CampaignCost
	for _, c := range costs {
		switch {
		case c.Channel != channel:
			others = append(others, c)
		case strings.Contains(c.CampaignName, totalSuffix):
			totals = append(totals, c)
		default:
			detailed = append(detailed, c)
		}
	}
	if len(detailed) > 0 {
		return append(others, detailed...)
	}
	return append(others, totals...)
}
