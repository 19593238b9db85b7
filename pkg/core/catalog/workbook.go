package catalog

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// headerScanRows bounds the search for the catalog header row.
const headerScanRows = 10

// LoadCoursesWorkbook reads the first sheet that has a course-id header
// (코스아이디 or course_id). Recognised columns: course name, company id,
// company name, active flag, exclusion flag. Rows without a company are skipped.
func LoadCoursesWorkbook(path string) ([]models.CourseCatalogEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, eris.Wrapf(err, "reading sheet %s", sheet)
		}
		header, cols := catalogHeader(rows)
		if header < 0 {
			continue
		}

		var out []models.CourseCatalogEntry
		for _, row := range rows[header+1:] {
			id := strings.TrimSuffix(strings.TrimSpace(field(row, cols, "course_id")), ".0")
			company := strings.TrimSpace(field(row, cols, "company_id"))
			if id == "" || company == "" {
				continue
			}
			e := models.CourseCatalogEntry{
				CourseID:    id,
				CourseName:  strings.TrimSpace(field(row, cols, "course_name")),
				CompanyID:   company,
				CompanyName: strings.TrimSpace(field(row, cols, "company_name")),
				IsActive:    true,
			}
			if idx, ok := cols["active"]; ok {
				e.IsActive = truthy(at(row, idx), true)
			}
			if idx, ok := cols["exclude"]; ok {
				e.ExcludeFromSettlement = truthy(at(row, idx), false)
			}
			out = append(out, e)
		}
		return out, nil
	}
	return nil, eris.Errorf("no course catalog sheet in %s", path)
}

func catalogHeader(rows [][]string) (int, map[string]int) {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		cols := map[string]int{}
		set := func(k string, j int) {
			if _, ok := cols[k]; !ok {
				cols[k] = j
			}
		}
		for j, c := range rows[i] {
			c = strings.ToLower(strings.TrimSpace(c))
			switch {
			case c == "course_id" || strings.Contains(c, "코스아이디") || strings.Contains(c, "코스 아이디"):
				set("course_id", j)
			case c == "course_name" || strings.Contains(c, "강의명"):
				set("course_name", j)
			case c == "company_id" || c == "기업id" || c == "기업 id":
				set("company_id", j)
			case c == "company_name" || c == "기업명":
				set("company_name", j)
			case c == "is_active" || c == "활성":
				set("active", j)
			case c == "exclude_from_settlement" || strings.Contains(c, "정산제외") || strings.Contains(c, "정산 제외"):
				set("exclude", j)
			}
		}
		_, hasID := cols["course_id"]
		_, hasCompany := cols["company_id"]
		if hasID && hasCompany {
			return i, cols
		}
	}
	return -1, nil
}

func field(row []string, cols map[string]int, key string) string {
	idx, ok := cols[key]
	if !ok {
		return ""
	}
	return at(row, idx)
}

func at(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func truthy(s string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback
	case "y", "yes", "o", "활성", "제외":
		return true
	case "n", "no", "x", "비활성":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return fallback
}
