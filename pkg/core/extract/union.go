package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/core/document"
	"github.com/rotisserie/eris"
)

// UnionStatement is the summary of a statement issued to one partner. These
// statements were prepared by hand and serve as the reference for
// cross-validation.
type UnionStatement struct {
	Source             string  `json:"source"`
	CompanyName        string  `json:"company_name"`
	Period             string  `json:"period"`
	TotalRevenue       float64 `json:"total_revenue"`
	TotalAdCost        float64 `json:"total_ad_cost"`
	ContributionMargin float64 `json:"contribution_margin"`
	SettlementAmount   float64 `json:"settlement_amount"`

	AdDetail *UnionAdDetail `json:"ad_detail,omitempty"`
}

// UnionAdDetail is the ad-cost breakdown attached to a partner statement.
type UnionAdDetail struct {
	Source             string                   `json:"source"`
	CompanyName        string                   `json:"company_name"`
	CourseCount        int                      `json:"course_count"`
	Months             []MonthlyAdApportionment `json:"monthly_breakdown"`
	TotalApportionedAd float64                  `json:"total_apportioned_ad"`
}

// MonthlyAdApportionment is one month of the pooled ad cost assigned to a
// partner.
type MonthlyAdApportionment struct {
	Month          string  `json:"month"`
	TotalAd        float64 `json:"total_ad"`
	TotalCourses   int     `json:"total_courses"`
	CompanyCourses int     `json:"company_courses"`
	ApportionedAd  float64 `json:"apportioned_ad"`
}

var (
	bracketNameRe   = regexp.MustCompile(`\[\s*([^\]]+?)\s*\]`)
	dateLikeRe      = regexp.MustCompile(`^[\d.\-\s]+$`)
	statementQtrRe  = regexp.MustCompile(`(\d{4})\s*년\s*(\d)\s*분기`)
	shareFeeRe      = regexp.MustCompile(`수익쉐어\s*강사료\s*\n?\s*([\d,]+)`)
	groupedNumberRe = regexp.MustCompile(`[\d,]+`)

	companyNameRe = regexp.MustCompile(`기업\s*명\s*(\S+)`)
	courseCountRe = regexp.MustCompile(`강의\s*수\s*(\d+)`)
	// 2024.10  [Share X] 통합 광고  ₩5,086,832  38개  2개  267,728
	apportionLineRe = regexp.MustCompile(`(20\d{2})[.\-](\d{1,2})\s+.*?[₩\\]?([\d,]+)\s+(\d+)개?\s+(\d+)개?\s+([\d,]+)`)
)

// ParseUnionStatement reads the summary from the first page of a partner
// statement.
func ParseUnionStatement(doc *document.Document) UnionStatement {
	text := doc.FirstPage()
	st := UnionStatement{Source: doc.Path}

	for _, m := range bracketNameRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if !dateLikeRe.MatchString(name) {
			st.CompanyName = name
			break
		}
	}
	if m := statementQtrRe.FindStringSubmatch(text); m != nil {
		st.Period = m[1] + "-Q" + m[2]
	}
	if m := shareFeeRe.FindStringSubmatch(text); m != nil {
		st.SettlementAmount, _ = CleanNumeric(m[1])
	}

	// the total row is revenue, ad cost, margin and optionally the fee;
	// small numbers on the row are counts, not amounts
	for _, line := range splitLines(text) {
		if !strings.Contains(line, "합계") {
			continue
		}
		var amounts []float64
		for _, tok := range groupedNumberRe.FindAllString(line, -1) {
			if v, ok := CleanNumeric(tok); ok && v > 100 {
				amounts = append(amounts, v)
			}
		}
		if len(amounts) < 3 {
			continue
		}
		st.TotalRevenue, st.TotalAdCost, st.ContributionMargin = amounts[0], amounts[1], amounts[2]
		if len(amounts) >= 4 {
			st.SettlementAmount = amounts[3]
		}
		break
	}
	return st
}

// ParseUnionAdDetail reads the ad-cost breakdown across all pages.
func ParseUnionAdDetail(doc *document.Document) UnionAdDetail {
	text := strings.Join(doc.Pages, "\n")
	detail := UnionAdDetail{Source: doc.Path}

	if m := companyNameRe.FindStringSubmatch(text); m != nil {
		detail.CompanyName = m[1]
	}
	if m := courseCountRe.FindStringSubmatch(text); m != nil {
		detail.CourseCount, _ = strconv.Atoi(m[1])
	}
	for _, m := range apportionLineRe.FindAllStringSubmatch(text, -1) {
		month, _ := strconv.Atoi(m[2])
		row := MonthlyAdApportionment{Month: fmt.Sprintf("%s-%02d", m[1], month)}
		row.TotalAd, _ = CleanNumeric(m[3])
		row.TotalCourses, _ = strconv.Atoi(m[4])
		row.CompanyCourses, _ = strconv.Atoi(m[5])
		row.ApportionedAd, _ = CleanNumeric(m[6])
		detail.Months = append(detail.Months, row)
		detail.TotalApportionedAd += row.ApportionedAd
	}
	return detail
}

// ScanUnionStatements parses every partner statement under dir, keyed by
// company name. Statements sit at the top level ("...정산서..."); ad detail
// files sit in one folder per company ("..._<company>/...광고비...").
// periodFilter, when set, must appear in the file name.
func ScanUnionStatements(ctx context.Context, dir, periodFilter string) (map[string]UnionStatement, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read union statements %s", dir)
	}
	wanted := func(name, marker string) bool {
		return document.Supported(name) &&
			strings.Contains(name, marker) &&
			(periodFilter == "" || strings.Contains(name, periodFilter))
	}

	results := make(map[string]UnionStatement)
	for _, e := range entries {
		if e.IsDir() || !wanted(e.Name(), "정산서") {
			continue
		}
		doc, err := document.Load(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if st := ParseUnionStatement(doc); st.CompanyName != "" {
			results[st.CompanyName] = st
		}
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		folder := filepath.Join(dir, e.Name())
		files, err := os.ReadDir(folder)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: read union folder %s", folder)
		}
		for _, f := range files {
			if f.IsDir() || !wanted(f.Name(), "광고비") {
				continue
			}
			doc, err := document.Load(ctx, filepath.Join(folder, f.Name()))
			if err != nil {
				return nil, err
			}
			detail := ParseUnionAdDetail(doc)
			company := detail.CompanyName
			if company == "" {
				parts := strings.Split(e.Name(), "_")
				company = parts[len(parts)-1]
			}
			st := results[company]
			if st.CompanyName == "" {
				st.CompanyName = company
			}
			st.AdDetail = &detail
			results[company] = st
		}
	}
	return results, nil
}
