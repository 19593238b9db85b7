// Package classify decides whether an advertising line item is charged to a
// single company (direct) or pooled and apportioned by course count (indirect).
package classify

import (
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Type of an advertising cost.
type Type string

const (
	Direct   Type = "direct"
	Indirect Type = "indirect"
)

// Rule binds an ad target to a cost type. Aliases are keywords searched for
// in campaign names; a rule without aliases matches on its own target name.
type Rule struct {
	Target    string   `json:"target" yaml:"target" validate:"required"`
	Type      Type     `json:"type" yaml:"type" validate:"oneof=direct indirect"`
	CompanyID string   `json:"company_id,omitempty" yaml:"company_id" validate:"required_if=Type direct"`
	Aliases   []string `json:"aliases,omitempty" yaml:"aliases"`
}

// Classification is the outcome for one campaign.
type Classification struct {
	Type      Type   `json:"type"`
	Target    string `json:"target"`
	CompanyID string `json:"company_id,omitempty"`
}

// IsDirect reports whether the cost is charged to CompanyID alone.
func (c Classification) IsDirect() bool {
	return c.Type == Direct && c.CompanyID != ""
}

// Classifier applies an ordered rule table. It is immutable after New and safe
// for concurrent use.
type Classifier struct {
	rules  []Rule
	byName map[string]int
}

// DefaultRules is the rule table used when no campaign rules are configured.
func DefaultRules() []Rule {
	return []Rule{
		{Target: models.IndirectPoolTarget, Type: Indirect},
		{Target: "PLUS X", Type: Direct, CompanyID: "plusx", Aliases: []string{"PLUS X", "플러스엑스", "플러스", "plusx"}},
		{Target: "BKID", Type: Direct, CompanyID: "bkid", Aliases: []string{"BKID", "비케이아이디"}},
		{Target: "BLSN", Type: Direct, CompanyID: "blsn", Aliases: []string{"BLSN", "블센", "김형준"}},
		{Target: "SANDOLL", Type: Direct, CompanyID: "sandoll", Aliases: []string{"SANDOLL", "산돌"}},
		{Target: "HEAZ", Type: Direct, CompanyID: "heaz", Aliases: []string{"HEAZ", "헤즈"}},
		{Target: "HUSKYFOX", Type: Direct, CompanyID: "huskyfox", Aliases: []string{"HUSKYFOX", "허스키폭스", "허스키"}},
		{Target: "COSMICRAY", Type: Direct, CompanyID: "cosmicray", Aliases: []string{"COSMICRAY", "코스믹레이"}},
		{Target: "FONTRIX", Type: Direct, CompanyID: "fontrix", Aliases: []string{"FONTRIX", "폰트릭스"}},
		{Target: "DFY", Type: Direct, CompanyID: "dfy", Aliases: []string{"DFY", "디파이"}},
		{Target: "COMPOUND-C", Type: Direct, CompanyID: "compound_c", Aliases: []string{"COMPOUND", "컴파운드"}},
		{Target: "CSIDECITY", Type: Direct, CompanyID: "csidecity", Aliases: []string{"CSIDECITY", "시싸이드"}},
	}
}

// New builds a classifier from rules in priority order. Later duplicates of a
// target are ignored.
func New(rules []Rule) *Classifier {
	c := &Classifier{byName: make(map[string]int, len(rules))}
	for _, r := range rules {
		if _, dup := c.byName[r.Target]; dup {
			continue
		}
		c.byName[r.Target] = len(c.rules)
		c.rules = append(c.rules, r)
	}
	return c
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	return New(DefaultRules())
}

// Rules returns a copy of the rule table in priority order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify resolves a campaign. An explicit target known to the table wins;
// otherwise the first direct rule whose alias occurs in the campaign name
// (case-insensitive); otherwise the cost joins the indirect pool.
func (c *Classifier) Classify(campaignName, target string) Classification {
	if target != "" {
		if i, ok := c.byName[target]; ok {
			r := c.rules[i]
			return Classification{Type: r.Type, Target: r.Target, CompanyID: r.CompanyID}
		}
	}

	name := strings.ToLower(campaignName)
	for _, r := range c.rules {
		if r.Type != Direct {
			continue
		}
		for _, kw := range keywords(r) {
			if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
				return Classification{Type: Direct, Target: r.Target, CompanyID: r.CompanyID}
			}
		}
	}

	return Classification{Type: Indirect, Target: models.IndirectPoolTarget}
}

func keywords(r Rule) []string {
	if len(r.Aliases) > 0 {
		return r.Aliases
	}
	return []string{r.Target}
}
