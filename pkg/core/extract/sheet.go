package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/core/period"
	"github.com/duneshique/sharex-settlement/pkg/models"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// Header search window of the master settlement sheet. The rows above hold
// the company letterhead.
const (
	masterHeaderFrom = 10
	masterHeaderTo   = 55
)

var (
	sheetCourseIDRe = regexp.MustCompile(`^\d{5,6}$`)
	usageMonthRe    = regexp.MustCompile(`20(\d{2})[.\-](\d{1,2})`)
)

// Workbook is an open settlement ledger.
type Workbook struct {
	path string
	file *excelize.File
}

// OpenWorkbook opens an .xlsx ledger.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open workbook %s", path)
	}
	return &Workbook{path: path, file: f}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Sheets lists the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

func (w *Workbook) rows(sheet string) ([][]string, error) {
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read sheet %s of %s", sheet, w.path)
	}
	return rows, nil
}

func (w *Workbook) findSheet(match func(name string) bool) string {
	for _, name := range w.file.GetSheetList() {
		if match(name) {
			return name
		}
	}
	return ""
}

// MasterSheetName is the conventional settlement sheet of a month:
// "2024-10" → "24.10_정산(실비)".
func MasterSheetName(month string) string {
	if len(month) < 7 {
		return ""
	}
	return fmt.Sprintf("%s.%s_정산(실비)", month[2:4], month[5:7])
}

// MasterSales reads per-course revenue for month from the master workbook.
// When sheet is empty or missing, the first sheet named after the month
// ("24.10" and "정산") is used. A workbook without such a sheet yields no
// sales.
func (w *Workbook) MasterSales(sheet, month string, courses CourseCatalog) ([]models.CourseSales, error) {
	if sheet == "" || !w.hasSheet(sheet) {
		short := ""
		if len(month) >= 7 {
			short = month[2:4] + "." + month[5:7]
		}
		sheet = w.findSheet(func(name string) bool {
			return short != "" && strings.Contains(name, short) && strings.Contains(name, "정산")
		})
		if sheet == "" {
			return nil, nil
		}
	}

	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}
	headerIdx, cols := masterHeader(rows)
	if headerIdx < 0 {
		return nil, nil
	}

	var sales []models.CourseSales
	for _, row := range rows[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		joined := strings.Join(row, " ")
		if strings.Contains(joined, "합계") || strings.Contains(joined, "소계") {
			continue
		}
		courseID, ok := sheetCourseID(cell(row, cols.get("course_id", 2)))
		if !ok {
			continue
		}
		revenue, _ := CleanNumeric(cell(row, cols.get("revenue", 5)))
		sales = append(sales, saleFor(month, courseID, strings.TrimSpace(cell(row, cols.get("course_name", 3))), revenue, courses))
	}
	return sales, nil
}

func (w *Workbook) hasSheet(name string) bool {
	return w.findSheet(func(s string) bool { return s == name }) != ""
}

// CampaignCosts reads classified ad spend for months from the ledger's
// logic sheet ("정산서(논리)"). The ad usage sheet ("광고비 사용내역") is read
// only when the logic sheet yields nothing.
func (w *Workbook) CampaignCosts(months []string) ([]models.CampaignCost, error) {
	var costs []models.CampaignCost

	if sheet := w.findSheet(func(n string) bool {
		return strings.Contains(n, "정산서") && strings.Contains(n, "논리")
	}); sheet != "" {
		rows, err := w.rows(sheet)
		if err != nil {
			return nil, err
		}
		costs = logicSheetCosts(rows, months)
	}
	if len(costs) > 0 {
		return costs, nil
	}

	if sheet := w.findSheet(func(n string) bool {
		return strings.Contains(n, "광고비") && strings.Contains(n, "사용내역")
	}); sheet != "" {
		rows, err := w.rows(sheet)
		if err != nil {
			return nil, err
		}
		costs = adUsageCosts(rows, months)
	}
	return costs, nil
}

// RawSales reads course revenue for months from the raw data sheet
// ("정산데이터(Raw)"), which holds every month since the start of the
// partnership.
func (w *Workbook) RawSales(months []string, courses CourseCatalog) ([]models.CourseSales, error) {
	sheet := w.findSheet(func(n string) bool {
		return strings.Contains(n, "정산데이터") && strings.Contains(n, "Raw")
	})
	if sheet == "" {
		return nil, nil
	}
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}

	headerIdx := -1
	cols := columns{}
	for i, row := range rows {
		text := strings.ToLower(strings.Join(row, " "))
		if !strings.Contains(text, "코스") || !containsAny(text, "매출", "정산") {
			continue
		}
		headerIdx = i
		for j, c := range row {
			c = strings.TrimSpace(c)
			switch {
			case strings.Contains(c, "코스") && (strings.Contains(c, "아이디") || strings.Contains(strings.ToLower(c), "id")):
				cols.set("course_id", j)
			case containsAny(c, "강의명", "코스명"):
				cols.set("course_name", j)
			case strings.Contains(c, "매출"):
				cols.set("revenue", j)
			case strings.Contains(c, "월"):
				cols.set("month", j)
			case containsAny(c, "회사", "기업"):
				cols.set("company", j)
			}
		}
		break
	}
	if headerIdx < 0 {
		return nil, nil
	}

	var sales []models.CourseSales
	for _, row := range rows[headerIdx+1:] {
		month, ok := period.MonthValue(cell(row, cols.get("month", 0)))
		if !ok || !period.InMonths(month, months) {
			continue
		}
		courseID, ok := sheetCourseID(cell(row, cols.get("course_id", 1)))
		if !ok {
			continue
		}
		revenue, _ := CleanNumeric(cell(row, cols.get("revenue", 3)))
		sales = append(sales, saleFor(month, courseID, strings.TrimSpace(cell(row, cols.get("course_name", 2))), revenue, courses))
	}
	return sales, nil
}

// =============================================================================
// SHEET HELPERS
// =============================================================================

// columns maps a logical column to its index in the header row.
type columns map[string]int

func (c columns) set(key string, idx int) {
	if _, ok := c[key]; !ok {
		c[key] = idx
	}
}

func (c columns) get(key string, fallback int) int {
	if idx, ok := c[key]; ok {
		return idx
	}
	return fallback
}

func (c columns) has(key string) bool {
	_, ok := c[key]
	return ok
}

// cell returns row[idx], or "" past the end of a trimmed row.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func sheetCourseID(raw string) (string, bool) {
	id := strings.ReplaceAll(strings.TrimSpace(raw), ".0", "")
	return id, sheetCourseIDRe.MatchString(id)
}

func saleFor(month, courseID, name string, revenue float64, courses CourseCatalog) models.CourseSales {
	sale := models.CourseSales{
		Month:      month,
		CourseID:   courseID,
		CourseName: name,
		CompanyID:  UnknownCompany,
		Revenue:    revenue,
	}
	if courses != nil {
		if c, ok := courses.Course(courseID); ok && c.CompanyID != "" {
			sale.CompanyID = c.CompanyID
		}
	}
	return sale
}

func masterHeader(rows [][]string) (int, columns) {
	from, to := min(masterHeaderFrom, len(rows)), min(masterHeaderTo, len(rows))
	for i := from; i < to; i++ {
		text := strings.Join(rows[i], " ")
		if !strings.Contains(text, "코스아이디") && !strings.Contains(text, "코스 아이디") {
			continue
		}
		cols := columns{}
		for j, c := range rows[i] {
			c = strings.TrimSpace(c)
			switch {
			case strings.Contains(c, "코스") && (strings.Contains(c, "아이디") || strings.Contains(c, "ID")):
				cols.set("course_id", j)
			case strings.Contains(c, "강의명"):
				cols.set("course_name", j)
			case strings.Contains(c, "매출액") || c == "매출":
				cols.set("revenue", j)
			case strings.Contains(c, "직접") && strings.Contains(c, "광고"):
				cols.set("direct_ad", j)
			case strings.Contains(c, "간접") && strings.Contains(c, "광고"):
				cols.set("indirect_ad", j)
			case strings.Contains(c, "마케팅"):
				cols.set("marketing", j)
			case strings.Contains(c, "공헌이익"):
				cols.set("contribution", j)
			case containsAny(c, "강사료", "수익쉐어"):
				cols.set("rs_fee", j)
			case strings.Contains(c, "정산월"):
				cols.set("month", j)
			}
		}
		return i, cols
	}
	return -1, nil
}

func logicSheetCosts(rows [][]string, months []string) []models.CampaignCost {
	headerIdx := -1
	cols := columns{}
	for i, row := range rows {
		text := strings.Join(row, " ")
		if !containsAny(text, "채널", "매체") || !containsAny(text, "광고비", "비용") {
			continue
		}
		headerIdx = i
		for j, c := range row {
			c = strings.TrimSpace(c)
			switch {
			case containsAny(c, "채널", "매체"):
				cols.set("channel", j)
			case containsAny(c, "대상", "타겟") || strings.Contains(strings.ToLower(c), "target"):
				cols.set("target", j)
			case strings.Contains(c, "캠페인"):
				cols.set("campaign", j)
			case containsAny(c, "광고비", "비용", "금액"):
				cols.set("cost", j)
			case containsAny(c, "월", "기간"):
				cols.set("month", j)
			}
		}
		break
	}
	if headerIdx < 0 {
		return nil
	}

	var costs []models.CampaignCost
	for _, row := range rows[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		amount, ok := CleanNumeric(cell(row, cols.get("cost", 3)))
		if !ok || amount == 0 {
			continue
		}

		month := ""
		if len(months) > 0 {
			month = months[0]
		}
		if cols.has("month") {
			if raw := strings.TrimSpace(cell(row, cols.get("month", 4))); raw != "" {
				if m, ok := period.MonthValue(raw); ok {
					if !period.InMonths(m, months) {
						continue
					}
					month = m
				}
			}
		}

		target := strings.ToUpper(strings.TrimSpace(cell(row, cols.get("target", 1))))
		if target == "" {
			target = models.IndirectPoolTarget
		}
		costs = append(costs, models.CampaignCost{
			Month:        month,
			Channel:      strings.TrimSpace(cell(row, cols.get("channel", 0))),
			Target:       target,
			CampaignName: strings.TrimSpace(cell(row, cols.get("campaign", 2))),
			CostKRW:      amount,
		})
	}
	return costs
}

// adUsageCosts reads one pooled total per month: the first positive amount
// on a row that names the month.
func adUsageCosts(rows [][]string, months []string) []models.CampaignCost {
	var costs []models.CampaignCost
	for _, row := range rows {
		m := usageMonthRe.FindStringSubmatch(strings.Join(row, " "))
		if m == nil {
			continue
		}
		month, ok := period.MonthValue("20" + m[1] + "." + m[2])
		if !ok || !period.InMonths(month, months) {
			continue
		}
		for _, c := range row {
			if usageMonthRe.MatchString(c) {
				continue
			}
			if v, ok := CleanNumeric(c); ok && v > 0 {
				costs = append(costs, models.CampaignCost{
					Month:        month,
					Channel:      "Total",
					Target:       models.IndirectPoolTarget,
					CampaignName: "광고비 합계 " + month,
					CostKRW:      v,
				})
				break
			}
		}
	}
	return costs
}
