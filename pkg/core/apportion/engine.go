// Package apportion computes per-company settlements for a period.
//
// Indirect advertising (the SHARE X pool) is split evenly across every active
// course, operator courses included:
//
//	company indirect cost = pool / total active courses * company courses
//
// Direct advertising is charged in full to the company it targets. The
// contribution margin (revenue - total ad cost) then drives the revenue-share
// fee and the union payout through the company's ratios for the period.
package apportion

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/duneshique/sharex-settlement/pkg/core/classify"
	"github.com/duneshique/sharex-settlement/pkg/core/metrics"
	"github.com/duneshique/sharex-settlement/pkg/core/period"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Options adjusts a single Calculate call.
type Options struct {
	// RevenueShareRatio and UnionPayoutRatio replace the company base ratios
	// when positive.
	RevenueShareRatio float64 `json:"revenue_share_ratio,omitempty" validate:"gte=0,lte=1"`
	UnionPayoutRatio  float64 `json:"union_payout_ratio,omitempty" validate:"gte=0,lte=1"`
	// TotalCourseOverride replaces the catalog's active course count when positive.
	TotalCourseOverride int `json:"total_course_override,omitempty" validate:"gte=0"`
}

// Result is the outcome of one calculation.
type Result struct {
	Period       string                              `json:"period"`
	Months       []string                            `json:"months"`
	Settlements  map[string]models.CompanySettlement `json:"settlements"`
	TotalCourses int                                 `json:"total_courses"`
	IndirectPool float64                             `json:"indirect_pool"`
	PerCourse    float64                             `json:"indirect_per_course"`
	DirectCosts  map[string]float64                  `json:"direct_costs"`
	// SkippedRows and SkippedRevenue cover statement rows left out of every
	// settlement because their course is not in the catalog.
	SkippedRows    int     `json:"skipped_rows,omitempty"`
	SkippedRevenue float64 `json:"skipped_revenue,omitempty"`
	// Warnings are recoverable conditions such as exchange-rate fallbacks and
	// rows that could not be attributed to a company.
	Warnings []error `json:"-"`
}

// Sorted returns the settlements ordered by payout, largest first.
func (r *Result) Sorted() []models.CompanySettlement {
	out := make([]models.CompanySettlement, 0, len(r.Settlements))
	for _, s := range r.Settlements {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnionPayout != out[j].UnionPayout {
			return out[i].UnionPayout > out[j].UnionPayout
		}
		return out[i].CompanyID < out[j].CompanyID
	})
	return out
}

// Payouts returns company id → union payout.
func (r *Result) Payouts() map[string]float64 {
	out := make(map[string]float64, len(r.Settlements))
	for id, s := range r.Settlements {
		out[id] = s.UnionPayout
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records fallbacks and payouts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithRates sets the monthly USD→KRW rates.
func WithRates(r Rates) Option {
	return func(e *Engine) { e.rates = r }
}

// WithClassifier replaces the default campaign classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// Engine holds the reference catalogs and the accumulated inputs for a run.
// Catalogs are read-only after New; inputs are guarded by a mutex so
// extraction workers can feed one engine.
type Engine struct {
	companies  map[string]models.Company
	courses    []models.CourseCatalogEntry
	classifier *classify.Classifier
	rates      Rates
	logger     *slog.Logger
	metrics    *metrics.Collector

	mu    sync.Mutex
	costs []models.CampaignCost
	sales []models.CourseSales
}

// New creates an engine over the company and course catalogs.
func New(companies []models.Company, courses []models.CourseCatalogEntry, opts ...Option) *Engine {
	e := &Engine{
		companies:  make(map[string]models.Company, len(companies)),
		classifier: classify.Default(),
		logger:     slog.Default(),
	}
	for _, c := range companies {
		e.companies[c.CompanyID] = c
	}
	e.courses = append(e.courses, courses...)
	sort.Slice(e.courses, func(i, j int) bool { return e.courses[i].CourseID < e.courses[j].CourseID })

	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "apportion")
	return e
}

// AddCampaignCost appends advertising line items.
func (e *Engine) AddCampaignCost(costs ...models.CampaignCost) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.costs = append(e.costs, costs...)
}

// AddCourseSales appends monthly course revenue.
func (e *Engine) AddCourseSales(sales ...models.CourseSales) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sales = append(e.sales, sales...)
}

// Clear drops accumulated costs and sales. Catalogs are kept.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.costs = nil
	e.sales = nil
}

// Company looks up a catalog company.
func (e *Engine) Company(id string) (models.Company, bool) {
	c, ok := e.companies[id]
	return c, ok
}

// ActiveCourses groups countable catalog courses by owning company.
func (e *Engine) ActiveCourses() map[string][]models.CourseCatalogEntry {
	out := make(map[string][]models.CourseCatalogEntry)
	for _, c := range e.courses {
		if !c.Countable() {
			continue
		}
		out[c.CompanyID] = append(out[c.CompanyID], c)
	}
	return out
}

// TotalActiveCourses counts countable courses across all companies.
func (e *Engine) TotalActiveCourses() int {
	n := 0
	for _, c := range e.courses {
		if c.Countable() {
			n++
		}
	}
	return n
}

func (e *Engine) course(id string) (models.CourseCatalogEntry, bool) {
	i := sort.Search(len(e.courses), func(i int) bool { return e.courses[i].CourseID >= id })
	if i < len(e.courses) && e.courses[i].CourseID == id {
		return e.courses[i], true
	}
	return models.CourseCatalogEntry{}, false
}

// Calculate settles every partner company for p over months.
func (e *Engine) Calculate(p string, months []string, opts Options) (*Result, error) {
	e.mu.Lock()
	costs := append([]models.CampaignCost(nil), e.costs...)
	sales := append([]models.CourseSales(nil), e.sales...)
	e.mu.Unlock()

	res := &Result{
		Period:      p,
		Months:      months,
		Settlements: make(map[string]models.CompanySettlement),
		DirectCosts: make(map[string]float64),
	}

	total := e.TotalActiveCourses()
	if opts.TotalCourseOverride > 0 {
		total = opts.TotalCourseOverride
	}
	res.TotalCourses = total
	active := e.ActiveCourses()

	// 1. classify costs into direct-by-company and one indirect pool
	warnedMonth := map[string]bool{}
	for _, c := range costs {
		if !period.InMonths(c.Month, months) {
			continue
		}
		krw, err := e.costKRW(c, warnedMonth, res)
		if err != nil {
			return nil, err
		}
		cls := e.classifier.Classify(c.CampaignName, c.Target)
		if cls.IsDirect() {
			res.DirectCosts[cls.CompanyID] += krw
		} else {
			res.IndirectPool += krw
		}
	}

	// 2. per-course share of the pool
	if total > 0 {
		res.PerCourse = res.IndirectPool / float64(total)
	}

	// 3. revenue by company, shared courses split by their ratio table
	revenue := map[string]float64{}
	courseRevenue := map[string]map[string]float64{}
	for _, s := range sales {
		if !period.InMonths(s.Month, months) {
			continue
		}
		owners := map[string]float64{s.CompanyID: 1.0}
		if entry, ok := e.course(s.CourseID); ok {
			owners = entry.Owners()
		}
		for cid, ratio := range owners {
			amount := s.Revenue * ratio
			revenue[cid] += amount
			if courseRevenue[cid] == nil {
				courseRevenue[cid] = map[string]float64{}
			}
			courseRevenue[cid][s.CourseID] += amount
		}
	}

	// 4. settle partners with at least one active course
	for cid, company := range e.companies {
		if !company.Type.IsPartner() || company.Status == models.StatusExcluded {
			continue
		}
		count := len(active[cid])
		if count == 0 {
			continue
		}

		direct := res.DirectCosts[cid]
		indirect := res.PerCourse * float64(count)
		totalAd := direct + indirect
		margin := revenue[cid] - totalAd
		rsRatio := RevenueShareRatio(company, p, opts.RevenueShareRatio)
		payoutRatio := PayoutRatio(company, p, opts.UnionPayoutRatio)

		status := company.Status
		if status == "" {
			status = models.StatusNormal
		}

		s := models.CompanySettlement{
			CompanyID:           cid,
			CompanyName:         company.Name,
			Period:              p,
			TotalRevenue:        Round(revenue[cid]),
			CourseRevenues:      roundAll(courseRevenue[cid]),
			DirectAdCost:        Round(direct),
			IndirectAdCost:      Round(indirect),
			TotalAdCost:         Round(totalAd),
			ContributionMargin:  Round(margin),
			RevenueShareFee:     Round(margin * rsRatio),
			UnionPayout:         Round(margin * payoutRatio),
			CourseCount:         count,
			IndirectAdPerCourse: Round(res.PerCourse),
			RevenueShareRatio:   rsRatio,
			UnionPayoutRatio:    payoutRatio,
			Status:              status,
		}
		res.Settlements[cid] = s
		e.metrics.SetPayout(cid, p, s.UnionPayout)

		if status == models.StatusDeferred {
			e.logger.Info("settlement deferred", "company_id", cid, "period", p, "union_payout", s.UnionPayout)
		}
	}
	res.PerCourse = Round(res.PerCourse)

	e.logger.Info("settlement calculated",
		"period", p,
		"companies", len(res.Settlements),
		"total_courses", total,
		"indirect_pool", Round(res.IndirectPool),
		"indirect_per_course", res.PerCourse,
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// costKRW converts a cost to KRW, recording one fallback warning per month.
func (e *Engine) costKRW(c models.CampaignCost, warned map[string]bool, res *Result) (float64, error) {
	if c.CostKRW != 0 || c.CostUSD == 0 {
		return c.CostKRW, nil
	}
	if c.ExchangeRate > 0 {
		return c.CostUSD * c.ExchangeRate, nil
	}
	krw, missing, err := e.rates.Convert(c.CostUSD, c.Month)
	if err != nil {
		return 0, err
	}
	if missing != nil && !warned[c.Month] {
		warned[c.Month] = true
		res.Warnings = append(res.Warnings, missing)
		e.metrics.ExchangeRateFallback()
		e.logger.Warn("exchange rate missing, using latest",
			"month", missing.Month, "fallback_month", missing.FallbackMonth, "rate", missing.Rate)
	}
	return krw, nil
}

// Round rounds half away from zero to two decimal places.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundAll(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = Round(v)
	}
	return out
}

// IsRateWarning reports whether err is an exchange-rate fallback warning.
func IsRateWarning(err error) bool {
	return errors.Is(err, models.ErrExchangeRateMissing)
}
