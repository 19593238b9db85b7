// Package detect classifies a settlement statement into one of the known
// layouts before any row extraction happens.
package detect

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Layout is the closed set of statement layouts.
type Layout string

const (
	// LayoutA is the quarterly statement exported from the spreadsheet:
	// single page, "코스아이디 | 강의명" rows with revenue, ad cost, margin, fee.
	LayoutA Layout = "layout_A"
	// LayoutB is the print view: multi-page, "코스ID_강의명" rows with
	// revenue, promo revenue, production, marketing, contract %, settlement.
	LayoutB       Layout = "layout_B"
	LayoutUnknown Layout = "unknown"
)

// Input is what the detector looks at.
type Input struct {
	Filename  string
	FirstPage string
	PageCount int
}

// Rule is one detection rule. Rules are evaluated in order and the first
// match wins.
type Rule struct {
	Name   string
	Layout Layout
	Match  func(in Input) bool
}

// printViewFilenameHints are name fragments of statements issued after the
// switch to the print view.
var printViewFilenameHints = []string{"4분기", "9월", "10월", "11월", "12월"}

// DefaultRules returns the detection rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "filename_hint",
			Layout: LayoutB,
			Match: func(in Input) bool {
				name := stem(in.Filename)
				if !strings.Contains(name, "2025년") || !containsAny(name, printViewFilenameHints...) {
					return false
				}
				return strings.Contains(in.FirstPage, "프로모션") ||
					containsAll(in.FirstPage, "매출액", "제작비", "마케팅비")
			},
		},
		{
			Name:   "section_headers",
			Layout: LayoutA,
			Match: func(in Input) bool {
				return containsAll(in.FirstPage, "플러스엑스 정산", "유니온 정산") ||
					containsAll(in.FirstPage, "R/S", "정산 내역")
			},
		},
		{
			Name:   "promo_column",
			Layout: LayoutB,
			Match: func(in Input) bool {
				return strings.Contains(in.FirstPage, "프로모션 매출액") ||
					containsAll(in.FirstPage, "계약\n조건", "정산금액")
			},
		},
		{
			Name:   "multi_page",
			Layout: LayoutB,
			Match: func(in Input) bool {
				return in.PageCount > 1 && containsAny(in.FirstPage, "프로모션", "마케팅비")
			},
		},
	}
}

// Detector applies an ordered rule list.
type Detector struct {
	rules []Rule
}

// New creates a detector with the default rules.
func New() *Detector {
	return &Detector{rules: DefaultRules()}
}

// NewWithRules creates a detector with a custom rule list, for layouts
// observed after release.
func NewWithRules(rules []Rule) *Detector {
	return &Detector{rules: rules}
}

// Detect returns the layout and the name of the rule that matched.
func (d *Detector) Detect(in Input) (Layout, string) {
	in.FirstPage = norm.NFC.String(in.FirstPage)
	for _, r := range d.rules {
		if r.Match(in) {
			return r.Layout, r.Name
		}
	}
	return LayoutUnknown, ""
}

// Detect runs the default rules.
func Detect(in Input) Layout {
	layout, _ := New().Detect(in)
	return layout
}

func stem(path string) string {
	base := filepath.Base(path)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
