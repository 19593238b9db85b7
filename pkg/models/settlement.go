package models

import "encoding/json"

// Section identifies which settlement pool a course row belongs to.
type Section string

const (
	SectionPlusX   Section = "plusx" // operator pool
	SectionUnion   Section = "union" // partner pool
	SectionUnknown Section = "unknown"
)

// CompanyType mirrors the contract type recorded in the company catalog.
type CompanyType string

const (
	CompanyOperator   CompanyType = "운영사"
	CompanyPartner    CompanyType = "유니온"
	CompanyNewPartner CompanyType = "유니온(신규)"
)

// IsPartner reports whether the company is settled as a union partner.
func (t CompanyType) IsPartner() bool {
	return t == CompanyPartner || t == CompanyNewPartner
}

// SettlementStatus controls whether a company is paid this period.
type SettlementStatus string

const (
	StatusNormal   SettlementStatus = "normal"
	StatusDeferred SettlementStatus = "deferred"
	StatusExcluded SettlementStatus = "excluded"
)

// ShareType of a catalog course.
type ShareType string

const (
	ShareSingle ShareType = "single"
	ShareShared ShareType = "shared"
)

// Default ratios applied when the catalog does not set them.
const (
	DefaultRevenueShareRatio = 0.75
	DefaultUnionPayoutRatio  = 0.50
	OperatorCompanyID        = "plusx"
	IndirectPoolTarget       = "SHARE X"
)

// CourseSettlementRow is one course's figures for a period as read from a
// settlement statement.
type CourseSettlementRow struct {
	Period             string  `json:"period"`
	CourseID           string  `json:"course_id"`
	CourseName         string  `json:"course_name"`
	Revenue            float64 `json:"revenue"`
	AdCost             float64 `json:"ad_cost"`
	ContributionMargin float64 `json:"contribution_margin"`
	RevenueShareFee    float64 `json:"revenue_share_fee"`
	Section            Section `json:"section"`
	Ratio              float64 `json:"ratio"`

	// Resolved is false when the course label could not be matched to the
	// catalog and CourseID is a placeholder.
	Resolved bool   `json:"resolved"`
	RawLabel string `json:"raw_label,omitempty"`

	MonthlyRevenue map[string]float64 `json:"monthly_revenue,omitempty"`
}

// CourseSales is a course's revenue for a single month.
type CourseSales struct {
	Month      string  `json:"month"`
	CourseID   string  `json:"course_id"`
	CourseName string  `json:"course_name"`
	CompanyID  string  `json:"company_id"`
	Revenue    float64 `json:"revenue"`
}

// CampaignCost is one advertising line item.
type CampaignCost struct {
	Month        string  `json:"month"`
	Channel      string  `json:"channel"`
	Target       string  `json:"target"`
	CampaignName string  `json:"campaign_name"`
	CostKRW      float64 `json:"cost_krw"`
	CostUSD      float64 `json:"cost_usd"`
	ExchangeRate float64 `json:"exchange_rate"`
	Clicks       int     `json:"clicks,omitempty"`
	Impressions  int     `json:"impressions,omitempty"`
}

// RatioChange sets a new ratio effective from a period ("2024-Q4" or "2024-10").
type RatioChange struct {
	FromPeriod string  `json:"from_period" yaml:"from_period" validate:"required"`
	Ratio      float64 `json:"ratio" yaml:"ratio" validate:"gte=0,lte=1"`
}

// Company is a reference record from the company catalog.
type Company struct {
	CompanyID         string           `json:"company_id" yaml:"company_id" validate:"required"`
	Name              string           `json:"name" yaml:"name"`
	Type              CompanyType      `json:"type" yaml:"type"`
	RevenueShareRatio float64          `json:"revenue_share_ratio" yaml:"revenue_share_ratio" validate:"gte=0,lte=1"`
	UnionPayoutRatio  float64          `json:"union_payout_ratio" yaml:"union_payout_ratio" validate:"gte=0,lte=1"`
	Status            SettlementStatus `json:"status,omitempty" yaml:"status"`

	RevenueShareChanges []RatioChange `json:"revenue_share_changes,omitempty" yaml:"revenue_share_changes" validate:"dive"`
	PayoutRatioChanges  []RatioChange `json:"payout_ratio_changes,omitempty" yaml:"payout_ratio_changes" validate:"dive"`

	BizNumber     string `json:"biz_number,omitempty" yaml:"biz_number"`
	Bank          string `json:"bank,omitempty" yaml:"bank"`
	Account       string `json:"account,omitempty" yaml:"account"`
	AccountHolder string `json:"account_holder,omitempty" yaml:"account_holder"`
	ContactName   string `json:"contact_name,omitempty" yaml:"contact_name"`
	ContactEmail  string `json:"contact_email,omitempty" yaml:"contact_email"`
	ContractStart string `json:"contract_start,omitempty" yaml:"contract_start"`
	ContractEnd   string `json:"contract_end,omitempty" yaml:"contract_end"`
}

// CourseCatalogEntry maps a canonical course id to its owner.
type CourseCatalogEntry struct {
	CourseID    string    `json:"course_id" yaml:"course_id" validate:"required"`
	CourseName  string    `json:"course_name" yaml:"course_name"`
	CompanyID   string    `json:"company_id" yaml:"company_id" validate:"required"`
	CompanyName string    `json:"company_name,omitempty" yaml:"company_name"`
	ShareType   ShareType `json:"share_type,omitempty" yaml:"share_type"`
	ShareRatio  float64   `json:"share_ratio,omitempty" yaml:"share_ratio"`
	// Companies holds per-company ratios for shared courses.
	Companies             map[string]float64 `json:"companies,omitempty" yaml:"companies"`
	IsActive              bool               `json:"is_active" yaml:"is_active"`
	ExcludeFromSettlement bool               `json:"exclude_from_settlement,omitempty" yaml:"exclude_from_settlement"`
}

// courseEntry has CourseCatalogEntry's fields without its decode methods.
type courseEntry CourseCatalogEntry

// UnmarshalJSON decodes an entry; is_active defaults to true when absent.
func (c *CourseCatalogEntry) UnmarshalJSON(data []byte) error {
	e := courseEntry{IsActive: true}
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	*c = CourseCatalogEntry(e)
	return nil
}

// UnmarshalYAML is the YAML counterpart of UnmarshalJSON.
func (c *CourseCatalogEntry) UnmarshalYAML(unmarshal func(interface{}) error) error {
	e := courseEntry{IsActive: true}
	if err := unmarshal(&e); err != nil {
		return err
	}
	*c = CourseCatalogEntry(e)
	return nil
}

// Owners returns the company → attribution ratio for the course.
func (c CourseCatalogEntry) Owners() map[string]float64 {
	if c.ShareType == ShareShared && len(c.Companies) > 0 {
		return c.Companies
	}
	return map[string]float64{c.CompanyID: 1.0}
}

// Countable reports whether the course counts toward indirect apportionment.
func (c CourseCatalogEntry) Countable() bool {
	return c.IsActive && !c.ExcludeFromSettlement
}

// CompanySettlement is the engine's output for one company and period.
type CompanySettlement struct {
	CompanyID      string             `json:"company_id"`
	CompanyName    string             `json:"company_name"`
	Period         string             `json:"period"`
	TotalRevenue   float64            `json:"total_revenue"`
	CourseRevenues map[string]float64 `json:"course_revenues,omitempty"`

	DirectAdCost   float64 `json:"direct_ad_cost"`
	IndirectAdCost float64 `json:"indirect_ad_cost"`
	TotalAdCost    float64 `json:"total_ad_cost"`

	ContributionMargin float64 `json:"contribution_margin"`
	RevenueShareFee    float64 `json:"revenue_share_fee"`
	UnionPayout        float64 `json:"union_payout"`

	CourseCount         int     `json:"course_count"`
	IndirectAdPerCourse float64 `json:"indirect_ad_per_course"`

	RevenueShareRatio float64          `json:"revenue_share_ratio"`
	UnionPayoutRatio  float64          `json:"union_payout_ratio"`
	Status            SettlementStatus `json:"status"`
}

// ValidationResult is one cross-validation check outcome.
type ValidationResult struct {
	CheckName  string  `json:"check_name"`
	Passed     bool    `json:"passed"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
	Difference float64 `json:"difference"`
	Tolerance  float64 `json:"tolerance"`
	Message    string  `json:"message,omitempty"`
	// Informational results report completeness and never count as failures.
	Informational bool `json:"informational,omitempty"`
}

// ParsedDocument is everything extracted from one statement.
type ParsedDocument struct {
	Source        string                `json:"source"`
	Period        string                `json:"period"`
	Layout        string                `json:"layout"`
	Rows          []CourseSettlementRow `json:"settlement_rows"`
	Sales         []CourseSales         `json:"course_sales,omitempty"`
	CampaignCosts []CampaignCost        `json:"campaign_costs,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// Totals sums revenue, ad cost and margin across rows.
func (d *ParsedDocument) Totals() (revenue, adCost, margin float64) {
	for _, r := range d.Rows {
		revenue += r.Revenue
		adCost += r.AdCost
		margin += r.ContributionMargin
	}
	return revenue, adCost, margin
}
