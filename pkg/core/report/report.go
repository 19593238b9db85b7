// Package report renders an archived settlement run as a Markdown summary
// and, optionally, HTML.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/duneshique/sharex-settlement/pkg/core/store"
	"github.com/duneshique/sharex-settlement/pkg/core/utils"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

var printer = message.NewPrinter(language.Korean)

// Won formats an amount as whole won with digit grouping.
func Won(v float64) string {
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// Markdown renders the run summary.
func Markdown(run *store.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Settlement %s\n\n", run.Period)
	fmt.Fprintf(&b, "- run: `%s`\n", run.ID)
	fmt.Fprintf(&b, "- mode: %s\n", run.Mode)
	fmt.Fprintf(&b, "- created: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- total union payout: %s\n", Won(run.TotalPayout))
	status := "passed"
	if !run.Passed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "- validation: %s\n", status)

	b.WriteString("\n## Settlements\n\n")
	b.WriteString(settlementTable(run.Settlements))

	if len(run.Validation) > 0 {
		b.WriteString("\n## Validation\n\n")
		b.WriteString(validationTable(run.Validation))
	}

	if len(run.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range run.Warnings {
			fmt.Fprintf(&b, "- %s\n", utils.EscapeCell(w))
		}
	}

	if len(run.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, s := range run.Sources {
			fmt.Fprintf(&b, "- %s\n", filepath.Base(s))
		}
	}
	return b.String()
}

// RenderHTML renders the run summary to an HTML fragment.
func RenderHTML(run *store.Run) (string, error) {
	html, err := utils.MarkdownToHTML(Markdown(run))
	if err != nil {
		return "", eris.Wrap(err, "rendering report")
	}
	return html, nil
}

// Write saves settlement_<period>_report.md, and .html when withHTML is set,
// under dir. It returns the written paths.
func Write(run *store.Run, dir string, withHTML bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating %s", dir)
	}
	base := filepath.Join(dir, fmt.Sprintf("settlement_%s_report", run.Period))

	md := Markdown(run)
	paths := []string{base + ".md"}
	if err := os.WriteFile(paths[0], []byte(md), 0o644); err != nil {
		return nil, eris.Wrapf(err, "writing %s", paths[0])
	}
	if !withHTML {
		return paths, nil
	}

	html, err := RenderHTML(run)
	if err != nil {
		return paths, err
	}
	page := "<!doctype html>\n<meta charset=\"utf-8\">\n<title>Settlement " + run.Period + "</title>\n" + html
	if err := os.WriteFile(base+".html", []byte(page), 0o644); err != nil {
		return paths, eris.Wrapf(err, "writing %s.html", base)
	}
	return append(paths, base+".html"), nil
}

func settlementTable(settlements []models.CompanySettlement) string {
	sorted := make([]models.CompanySettlement, len(settlements))
	copy(sorted, settlements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UnionPayout != sorted[j].UnionPayout {
			return sorted[i].UnionPayout > sorted[j].UnionPayout
		}
		return sorted[i].CompanyID < sorted[j].CompanyID
	})

	header := []string{"company", "name", "courses", "revenue", "ad cost", "margin", "fee", "payout", "status"}
	rows := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, []string{
			s.CompanyID,
			s.CompanyName,
			fmt.Sprint(s.CourseCount),
			Won(s.TotalRevenue),
			Won(s.TotalAdCost),
			Won(s.ContributionMargin),
			Won(s.RevenueShareFee),
			Won(s.UnionPayout),
			string(s.Status),
		})
	}
	return utils.MarkdownTable(header, rows)
}

func validationTable(results []models.ValidationResult) string {
	header := []string{"check", "result", "expected", "actual", "difference", "note"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		result := "ok"
		switch {
		case r.Informational:
			result = "info"
		case !r.Passed:
			result = "FAIL"
		}
		rows = append(rows, []string{
			r.CheckName,
			result,
			fmt.Sprintf("%.2f", r.Expected),
			fmt.Sprintf("%.2f", r.Actual),
			fmt.Sprintf("%.2f", r.Difference),
			r.Message,
		})
	}
	return utils.MarkdownTable(header, rows)
}
