package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/duneshique/sharex-settlement/pkg/core/apportion"
	"github.com/duneshique/sharex-settlement/pkg/core/classify"
	"github.com/duneshique/sharex-settlement/pkg/core/match"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCourses(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json object",
			file: "course_mapping.json",
			content: `{"courses": [
				{"course_id": "213930", "course_name": "UI 실무", "company_id": "plusx", "is_active": true},
				{"course_id": "250001", "company_id": "huskyfox", "is_active": true, "share_type": "shared",
				 "companies": {"huskyfox": 0.6, "bkid": 0.4}},
			]}`,
		},
		{
			name: "bare json list",
			file: "courses.json",
			content: `[
				{"course_id": "213930", "course_name": "UI 실무", "company_id": "plusx", "is_active": true},
				{"course_id": "250001", "company_id": "huskyfox", "is_active": true, "share_type": "shared", "companies": {"huskyfox": 0.6, "bkid": 0.4}}
			]`,
		},
		{
			name: "yaml",
			file: "courses.yaml",
			content: `courses:
  - course_id: "213930"
    course_name: UI 실무
    company_id: plusx
    is_active: true
  - course_id: "250001"
    company_id: huskyfox
    is_active: true
    share_type: shared
    companies: {huskyfox: 0.6, bkid: 0.4}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := LoadCourses(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, courses, 2)

			assert.Equal(t, "UI 실무", courses[0].CourseName)
			assert.Equal(t, models.ShareSingle, courses[0].ShareType)
			assert.Equal(t, 1.0, courses[0].ShareRatio)
			assert.Equal(t, map[string]float64{"huskyfox": 0.6, "bkid": 0.4}, courses[1].Owners())
		})
	}
}

func TestLoadCourses_ActiveByDefault(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "courses.json",
			content: `{"courses": [
				{"course_id": "231001", "company_id": "huskyfox"},
				{"course_id": "231002", "company_id": "huskyfox", "is_active": false}
			]}`,
		},
		{
			name: "bare json list",
			file: "courses.json",
			content: `[
				{"course_id": "231001", "company_id": "huskyfox"},
				{"course_id": "231002", "company_id": "huskyfox", "is_active": false}
			]`,
		},
		{
			name: "yaml",
			file: "courses.yaml",
			content: `courses:
  - course_id: "231001"
    company_id: huskyfox
  - course_id: "231002"
    company_id: huskyfox
    is_active: false
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := LoadCourses(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, courses, 2)
			assert.True(t, courses[0].IsActive)
			assert.False(t, courses[1].IsActive)

			companies := []models.Company{{CompanyID: "huskyfox", Name: "허스키폭스", Type: models.CompanyPartner}}
			e := apportion.New(companies, courses)
			e.AddCourseSales(models.CourseSales{Month: "2024-10", CourseID: "231001", CompanyID: "huskyfox", Revenue: 1000000})
			res, err := e.Calculate("2024-Q4", []string{"2024-10", "2024-11", "2024-12"}, apportion.Options{})
			require.NoError(t, err)
			assert.Equal(t, 1, res.TotalCourses)
			require.Contains(t, res.Settlements, "huskyfox")
			assert.Equal(t, 500000.0, res.Settlements["huskyfox"].UnionPayout)
		})
	}
}

func TestLoadCourses_Invalid(t *testing.T) {
	_, err := LoadCourses(writeFile(t, "courses.json", `{"courses": [{"course_id": "213930"}]}`))
	assert.Error(t, err, "company_id is required")

	_, err = LoadCourses(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadCompanies(t *testing.T) {
	path := writeFile(t, "companies.yaml", `companies:
  - company_id: plusx
    name: 플러스엑스
    type: 운영사
    union_payout_ratio: 0.70
    payout_ratio_changes:
      - {from_period: 2025-Q3, ratio: 0.65}
  - company_id: sabum
    name: 변사범
    type: 유니온
    status: excluded
`)
	companies, err := LoadCompanies(path)
	require.NoError(t, err)
	require.Len(t, companies, 2)

	assert.Equal(t, models.CompanyOperator, companies[0].Type)
	assert.Equal(t, []models.RatioChange{{FromPeriod: "2025-Q3", Ratio: 0.65}}, companies[0].PayoutRatioChanges)
	assert.Equal(t, models.StatusExcluded, companies[1].Status)
	assert.True(t, companies[1].Type.IsPartner())

	_, err = LoadCompanies(writeFile(t, "bad.json", `{"companies": [{"company_id": "x", "union_payout_ratio": 1.5}]}`))
	assert.Error(t, err)
}

func TestLoadCampaignRules(t *testing.T) {
	t.Run("yaml keeps mapping order", func(t *testing.T) {
		path := writeFile(t, "campaign_rules.yaml", `classification_rules:
  target_mapping:
    SHARE X:
      type: indirect
      description: 통합 광고
    SANDOLL:
      type: direct
      company_id: sandoll
      aliases: [산돌]
    PLUS X:
      type: direct
      company_id: plusx
      aliases: [플러스엑스, 플러스]
exchange_rates:
  "2024-10": 1361.0
  "2024-11": 1395.5
`)
		rules, err := LoadCampaignRules(path)
		require.NoError(t, err)

		var targets []string
		for _, r := range rules.Rules {
			targets = append(targets, r.Target)
		}
		assert.Equal(t, []string{"SHARE X", "SANDOLL", "PLUS X"}, targets)
		assert.Equal(t, 1395.5, rules.Rates["2024-11"])

		// order decides: SANDOLL is listed before PLUS X
		got := rules.Classifier().Classify("플러스엑스 x 산돌", "")
		assert.Equal(t, "sandoll", got.CompanyID)
	})

	t.Run("json target mapping", func(t *testing.T) {
		path := writeFile(t, "campaign_rules.json", `{
  "classification_rules": {
    "target_mapping": {
      "SHARE X": {"type": "indirect"},
      "BKID": {"type": "direct", "company_id": "bkid"}
    }
  },
  "exchange_rates": {"2024-10": 1361.0}
}`)
		rules, err := LoadCampaignRules(path)
		require.NoError(t, err)
		require.Len(t, rules.Rules, 2)
		assert.Equal(t, classify.Rule{Target: "BKID", Type: classify.Direct, CompanyID: "bkid"}, rules.Rules[1])
		assert.Equal(t, 1361.0, rules.Rates["2024-10"])
	})

	t.Run("flat rule list", func(t *testing.T) {
		path := writeFile(t, "rules.yaml", `rules:
  - {target: SHARE X, type: indirect}
  - {target: HEAZ, type: direct, company_id: heaz, aliases: [헤즈]}
`)
		rules, err := LoadCampaignRules(path)
		require.NoError(t, err)
		require.Len(t, rules.Rules, 2)
		assert.Equal(t, []string{"헤즈"}, rules.Rules[1].Aliases)
		assert.Nil(t, rules.Rates)
	})

	t.Run("direct rule without company", func(t *testing.T) {
		path := writeFile(t, "rules.yaml", "rules:\n  - {target: HEAZ, type: direct}\n")
		_, err := LoadCampaignRules(path)
		assert.Error(t, err)
	})

	t.Run("empty falls back to defaults", func(t *testing.T) {
		assert.Len(t, CampaignRules{}.Classifier().Rules(), len(classify.DefaultRules()))
	})
}

func TestLoadReference(t *testing.T) {
	wrapped, err := LoadReference(writeFile(t, "expected.json", `{"period": "2024-Q4", "expected": {"blsn": 1031299.0}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"blsn": 1031299.0}, wrapped)

	bare, err := LoadReference(writeFile(t, "expected.yaml", "blsn: 1031299.0\nheaz: 3659120\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"blsn": 1031299.0, "heaz": 3659120}, bare)
}

func TestLoadCoursesWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"강의 매핑표"},
		{"코스아이디", "강의명", "기업ID", "기업명", "활성", "정산제외"},
		{213930, "UI 실무", "plusx", "플러스엑스", "Y", ""},
		{"231001.0", "타이포", "huskyfox", "허스키폭스", "N", ""},
		{240002, "폰트", "sabum", "변사범", "", "제외"},
		{240003, "회사 없음", "", "", "", ""},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	path := filepath.Join(t.TempDir(), "courses.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	courses, err := LoadCourses(path)
	require.NoError(t, err)
	require.Len(t, courses, 3)

	assert.Equal(t, "213930", courses[0].CourseID)
	assert.True(t, courses[0].IsActive)
	assert.Equal(t, "231001", courses[1].CourseID)
	assert.False(t, courses[1].IsActive)
	assert.True(t, courses[2].ExcludeFromSettlement)
	assert.False(t, courses[2].Countable())
}

func TestCourses(t *testing.T) {
	idx := NewCourses([]models.CourseCatalogEntry{
		{CourseID: "231001", CourseName: "[쉐어엑스]허스키폭스 타이포그래피 입문", CompanyID: "huskyfox"},
		{CourseID: "213930", CourseName: "[쉐어엑스]플러스엑스 UI 실무 마스터 패키지", CompanyID: "plusx"},
		{CourseID: "213930", CourseName: "duplicate", CompanyID: "other"},
	})
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, "213930", idx.Entries()[0].CourseID)

	c, ok := idx.Course("213930")
	require.True(t, ok)
	assert.Equal(t, "plusx", c.CompanyID)

	res := idx.Matcher().Match("[쉐어엑스]플러스엑스 UI 실무")
	m, ok := res.(match.Matched)
	require.True(t, ok, "%#v", res)
	assert.Equal(t, "213930", m.CourseID)
}
