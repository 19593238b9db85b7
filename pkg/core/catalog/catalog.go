// Package catalog loads the reference data a settlement run needs: companies,
// courses, campaign rules, exchange rates and confirmed payout amounts.
//
// Files may be JSON, Hjson or YAML. JSON is parsed leniently so hand-edited
// catalogs with trailing commas or comments still load. The course catalog
// may also be an .xlsx workbook.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"

	"github.com/duneshique/sharex-settlement/pkg/core/match"
	"github.com/duneshique/sharex-settlement/pkg/core/utils"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Courses is an immutable course index keyed by course id.
type Courses struct {
	entries []models.CourseCatalogEntry
	byID    map[string]models.CourseCatalogEntry
}

// NewCourses indexes entries. Duplicate ids keep the first entry.
func NewCourses(entries []models.CourseCatalogEntry) *Courses {
	c := &Courses{byID: make(map[string]models.CourseCatalogEntry, len(entries))}
	for _, e := range entries {
		if _, dup := c.byID[e.CourseID]; dup {
			continue
		}
		c.byID[e.CourseID] = e
		c.entries = append(c.entries, e)
	}
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].CourseID < c.entries[j].CourseID })
	return c
}

// Course looks up a course by id.
func (c *Courses) Course(id string) (models.CourseCatalogEntry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Entries returns the courses ordered by id.
func (c *Courses) Entries() []models.CourseCatalogEntry {
	out := make([]models.CourseCatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len is the number of indexed courses.
func (c *Courses) Len() int { return len(c.entries) }

// Matcher builds a course label matcher over the catalog.
func (c *Courses) Matcher(opts ...match.Option) *match.Matcher {
	return match.New(c.entries, opts...)
}

type courseFile struct {
	Courses []models.CourseCatalogEntry `json:"courses" yaml:"courses" validate:"dive"`
}

type companyFile struct {
	Companies []models.Company `json:"companies" yaml:"companies" validate:"dive"`
}

type referenceFile struct {
	Expected map[string]float64 `json:"expected" yaml:"expected"`
}

// LoadCourses reads a course catalog from .json, .hjson, .yaml/.yml or .xlsx.
// Entries default to active single-owner courses when the file omits those fields.
func LoadCourses(path string) ([]models.CourseCatalogEntry, error) {
	var entries []models.CourseCatalogEntry
	if isWorkbook(path) {
		var err error
		if entries, err = LoadCoursesWorkbook(path); err != nil {
			return nil, err
		}
	} else {
		var f courseFile
		if err := decodeFile(path, &f, &f.Courses); err != nil {
			return nil, err
		}
		entries = f.Courses
	}

	for i := range entries {
		if entries[i].ShareType == "" {
			entries[i].ShareType = models.ShareSingle
		}
		if entries[i].ShareRatio == 0 {
			entries[i].ShareRatio = 1.0
		}
	}
	if err := utils.ValidateStruct(courseFile{Courses: entries}); err != nil {
		return nil, eris.Wrapf(err, "course catalog %s", path)
	}
	return entries, nil
}

// LoadCompanies reads the company catalog.
func LoadCompanies(path string) ([]models.Company, error) {
	var f companyFile
	if err := decodeFile(path, &f, &f.Companies); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(f); err != nil {
		return nil, eris.Wrapf(err, "company catalog %s", path)
	}
	return f.Companies, nil
}

// LoadReference reads confirmed payouts, company id → amount.
func LoadReference(path string) (map[string]float64, error) {
	out := map[string]float64{}
	var wrapped referenceFile
	if err := decodeFile(path, &wrapped, &out); err != nil {
		return nil, err
	}
	if len(wrapped.Expected) > 0 {
		return wrapped.Expected, nil
	}
	return out, nil
}

// decodeFile decodes path into wrapped; if that yields nothing, it retries
// into bare, which accepts files holding only the inner list or map.
func decodeFile(path string, wrapped, bare any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "reading %s", path)
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, wrapped); err == nil && !isEmpty(wrapped) {
			return nil
		}
		if err := yaml.Unmarshal(data, bare); err != nil {
			return eris.Wrapf(err, "parsing %s", path)
		}
		return nil
	}

	if _, err := utils.SmartParse(string(data), wrapped); err == nil && !isEmpty(wrapped) {
		return nil
	}
	if _, err := utils.SmartParse(string(data), bare); err != nil {
		return eris.Wrapf(err, "parsing %s", path)
	}
	return nil
}

func isEmpty(v any) bool {
	switch f := v.(type) {
	case *courseFile:
		return len(f.Courses) == 0
	case *companyFile:
		return len(f.Companies) == 0
	case *referenceFile:
		return len(f.Expected) == 0
	}
	return false
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func isYAML(path string) bool {
	e := ext(path)
	return e == ".yaml" || e == ".yml"
}

func isWorkbook(path string) bool {
	return ext(path) == ".xlsx"
}
