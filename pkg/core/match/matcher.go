// Package match resolves course labels read from statements to canonical
// course ids.
//
// Labels on statements are often cut at the page width or re-spaced around
// brackets. Matching runs three stages in order and stops at the first hit:
//
//  1. exact match after normalisation
//  2. prefix match in either direction
//  3. similarity match, best score at or above the threshold
package match

import (
	"regexp"
	"sort"
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"

	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum similarity accepted by stage 3.
const DefaultThreshold = 0.85

// PlaceholderSuffix is appended to a document-local code when no catalog
// course matches.
const PlaceholderSuffix = "0"

// Stage names the matching stage that produced a result.
type Stage string

const (
	StageExact      Stage = "exact"
	StagePrefix     Stage = "prefix"
	StageSimilarity Stage = "similarity"
)

// Result is either Matched or Unresolved.
type Result interface {
	isResult()
}

// Matched carries the resolved course id.
type Matched struct {
	CourseID string
	Stage    Stage
	Score    float64
}

// Unresolved carries the label that could not be matched.
type Unresolved struct {
	RawLabel  string
	Reason    string
	BestScore float64
}

func (Matched) isResult()    {}
func (Unresolved) isResult() {}

// Placeholder returns the synthetic id used for an unresolved document code.
func Placeholder(code string) string {
	return code + PlaceholderSuffix
}

type entry struct {
	courseID string
	name     string
}

// Matcher matches labels against a fixed catalog snapshot.
type Matcher struct {
	entries   []entry
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides the similarity threshold.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// New builds a matcher. Entries are ordered by course id so that ties always
// resolve the same way.
func New(courses []models.CourseCatalogEntry, opts ...Option) *Matcher {
	m := &Matcher{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(m)
	}
	for _, c := range courses {
		name := Normalize(c.CourseName)
		if name == "" {
			continue
		}
		m.entries = append(m.entries, entry{courseID: c.CourseID, name: name})
	}
	sort.Slice(m.entries, func(i, j int) bool {
		return m.entries[i].courseID < m.entries[j].courseID
	})
	return m
}

// Match resolves a label.
func (m *Matcher) Match(label string) Result {
	target := Normalize(label)
	if target == "" {
		return Unresolved{RawLabel: label, Reason: "empty label"}
	}

	for _, e := range m.entries {
		if e.name == target {
			return Matched{CourseID: e.courseID, Stage: StageExact, Score: 1}
		}
	}

	for _, e := range m.entries {
		if strings.HasPrefix(e.name, target) || strings.HasPrefix(target, e.name) {
			return Matched{CourseID: e.courseID, Stage: StagePrefix, Score: Similarity(target, e.name)}
		}
	}

	best, bestScore := "", 0.0
	for _, e := range m.entries {
		score := Similarity(target, e.name)
		if score > bestScore {
			best, bestScore = e.courseID, score
		}
	}
	if best != "" && bestScore >= m.threshold {
		return Matched{CourseID: best, Stage: StageSimilarity, Score: bestScore}
	}
	return Unresolved{RawLabel: label, Reason: "no catalog course above threshold", BestScore: bestScore}
}

var spaceRunRe = regexp.MustCompile(`\s+`)

var invisibleSpaces = strings.NewReplacer("\u00a0", "", "\u202d", "", "\u202c", "")

// bracketSpacing is applied pair by pair, in order, so "x [ y" becomes "x[y".
var bracketSpacing = [][2]string{{"] ", "]"}, {" ]", "]"}, {"[ ", "["}, {" [", "["}}

// Normalize canonicalises a course label for comparison.
func Normalize(name string) string {
	name = norm.NFC.String(name)
	name = invisibleSpaces.Replace(name)
	name = strings.TrimSpace(name)
	name = spaceRunRe.ReplaceAllString(name, " ")
	for _, r := range bracketSpacing {
		name = strings.ReplaceAll(name, r[0], r[1])
	}
	return name
}
