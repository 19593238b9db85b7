// Package pipeline runs a quarterly settlement end to end: statements are
// extracted in parallel, sales and campaign costs are collected, companies
// are settled, the result is validated and the run is archived.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duneshique/sharex-settlement/pkg/core/apportion"
	"github.com/duneshique/sharex-settlement/pkg/core/catalog"
	"github.com/duneshique/sharex-settlement/pkg/core/extract"
	"github.com/duneshique/sharex-settlement/pkg/core/match"
	"github.com/duneshique/sharex-settlement/pkg/core/metrics"
	"github.com/duneshique/sharex-settlement/pkg/core/period"
	"github.com/duneshique/sharex-settlement/pkg/core/report"
	"github.com/duneshique/sharex-settlement/pkg/core/store"
	"github.com/duneshique/sharex-settlement/pkg/core/validate"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Settlement modes.
const (
	// ModeEngine settles from course sales and campaign costs.
	ModeEngine = "engine"
	// ModeRows settles from the quarterly statement rows.
	ModeRows = "rows"
)

// Catalogs is the reference data shared by every run.
type Catalogs struct {
	Companies []models.Company
	Courses   *catalog.Courses
	Rules     catalog.CampaignRules
}

// Settings tune a run.
type Settings struct {
	Mode           string
	Tolerance      float64
	Workers        int
	MatchThreshold float64
	Options        apportion.Options
}

// Inputs name what one run reads.
type Inputs struct {
	Period    string
	Documents []string
	// Ledger is an optional .xlsx workbook; its sales and campaign costs
	// replace those read from statements for the months it covers.
	Ledger string
	// Reference overrides the built-in confirmed payouts.
	Reference map[string]float64
}

// Outcome is everything a run produced.
type Outcome struct {
	Run       *store.Run
	Result    *apportion.Result
	Documents []*models.ParsedDocument
	Rows      []models.CourseSettlementRow
	Sales     []models.CourseSales
	Costs     []models.CampaignCost
	// Failed maps a document path to the reason it was skipped.
	Failed map[string]error
}

// Orchestrator wires the extraction, settlement and validation stages.
type Orchestrator struct {
	catalogs  Catalogs
	settings  Settings
	extractor *extract.Extractor
	repo      store.RunRepository
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithRepository archives every run in repo.
func WithRepository(repo store.RunRepository) Option {
	return func(o *Orchestrator) { o.repo = repo }
}

// New creates an orchestrator. Zero settings fall back to engine mode,
// tolerance 1.0 and four workers.
func New(c Catalogs, s Settings, opts ...Option) *Orchestrator {
	if c.Courses == nil {
		c.Courses = catalog.NewCourses(nil)
	}
	if s.Mode == "" {
		s.Mode = ModeEngine
	}
	if s.Tolerance <= 0 {
		s.Tolerance = validate.DefaultTolerance
	}
	if s.Workers <= 0 {
		s.Workers = 4
	}

	o := &Orchestrator{catalogs: c, settings: s}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "pipeline")

	var matchOpts []match.Option
	if s.MatchThreshold > 0 {
		matchOpts = append(matchOpts, match.WithThreshold(s.MatchThreshold))
	}
	o.extractor = extract.New(c.Courses, c.Courses.Matcher(matchOpts...),
		extract.WithLogger(o.logger),
		extract.WithMetrics(o.metrics),
	)
	return o
}

// Extractor exposes the configured statement extractor.
func (o *Orchestrator) Extractor() *extract.Extractor {
	return o.extractor
}

// ExtractAll extracts documents concurrently, at most Settings.Workers at a
// time. Documents that cannot be read are reported in the failure map and do
// not stop the others; only context cancellation aborts the batch. Results
// keep the order of paths, with nil for failed documents.
func (o *Orchestrator) ExtractAll(ctx context.Context, paths []string) ([]*models.ParsedDocument, map[string]error, error) {
	docs := make([]*models.ParsedDocument, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.settings.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := o.extractor.ExtractFile(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extraction cancelled: %w", err)
	}

	failed := map[string]error{}
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed[paths[i]] = err
		o.logger.Warn("statement skipped", "source", filepath.Base(paths[i]), "error", err)
	}
	return docs, failed, nil
}

// Run executes one settlement run for in.Period.
func (o *Orchestrator) Run(ctx context.Context, in Inputs) (*Outcome, error) {
	start := time.Now()
	p := strings.ToUpper(strings.TrimSpace(in.Period))
	months, err := period.QuarterMonths(p)
	if err != nil {
		return nil, fmt.Errorf("run period %q: %w", in.Period, err)
	}
	log := o.logger.With("period", p)
	log.Info("settlement run started", "documents", len(in.Documents), "mode", o.settings.Mode)

	docs, failed, err := o.ExtractAll(ctx, in.Documents)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Failed: failed}

	// 1. split statements by kind, dropping other periods
	var monthly []*models.ParsedDocument
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		switch {
		case doc.Period == p:
			out.Rows = append(out.Rows, doc.Rows...)
		case period.InMonths(doc.Period, months):
			monthly = append(monthly, doc)
			out.Sales = append(out.Sales, doc.Sales...)
			out.Costs = append(out.Costs, doc.CampaignCosts...)
		default:
			log.Info("statement outside period", "source", filepath.Base(doc.Source), "statement_period", doc.Period)
			continue
		}
		out.Documents = append(out.Documents, doc)
	}
	out.Rows = extract.MergeMonthly(out.Rows, monthly)

	// 2. ledger figures replace statement figures month by month
	if in.Ledger != "" {
		if err := o.applyLedger(in.Ledger, months, out); err != nil {
			return nil, err
		}
	}

	// 3. settle
	engine := apportion.New(o.catalogs.Companies, o.catalogs.Courses.Entries(),
		apportion.WithLogger(o.logger),
		apportion.WithMetrics(o.metrics),
		apportion.WithRates(o.catalogs.Rules.Rates),
		apportion.WithClassifier(o.catalogs.Rules.Classifier()),
	)
	mode := o.settings.Mode
	if mode == ModeEngine && len(out.Sales) == 0 && len(out.Rows) > 0 {
		log.Warn("no course sales found, settling from statement rows")
		mode = ModeRows
	}
	switch mode {
	case ModeRows:
		if len(out.Rows) == 0 {
			return nil, &models.NoSettlementDataError{Path: "statements", Period: p}
		}
		out.Result = engine.SettleRows(p, out.Rows)
	default:
		if len(out.Sales) == 0 {
			return nil, &models.NoSettlementDataError{Path: "statements", Period: p}
		}
		engine.AddCourseSales(out.Sales...)
		engine.AddCampaignCost(out.Costs...)
		out.Result, err = engine.Calculate(p, months, o.settings.Options)
		if err != nil {
			return nil, fmt.Errorf("settling %s: %w", p, err)
		}
	}

	// 4. validate
	results := o.validate(p, mode, in.Reference, out)

	// 5. archive
	run := store.NewRun(p, mode)
	run.Settlements = out.Result.Sorted()
	run.Validation = results
	run.TotalPayout = apportion.Summarize(out.Result).TotalUnionPayout
	run.Passed = validate.AllPassed(results)
	for _, doc := range out.Documents {
		run.Sources = append(run.Sources, doc.Source)
		run.Warnings = append(run.Warnings, doc.Warnings...)
	}
	for _, w := range out.Result.Warnings {
		run.Warnings = append(run.Warnings, w.Error())
	}
	for _, path := range sortedPaths(failed) {
		run.Warnings = append(run.Warnings, failed[path].Error())
	}
	out.Run = run

	if o.repo != nil {
		if err := o.repo.Save(ctx, run); err != nil {
			return out, fmt.Errorf("archiving run: %w", err)
		}
	}

	log.Info("settlement run finished",
		"run_id", run.ID,
		"mode", mode,
		"companies", len(run.Settlements),
		"total_payout", run.TotalPayout,
		"passed", run.Passed,
		"skipped", len(failed),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}

func (o *Orchestrator) applyLedger(path string, months []string, out *Outcome) error {
	wb, err := extract.OpenWorkbook(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	sales, err := wb.RawSales(months, o.catalogs.Courses)
	if err != nil {
		return err
	}
	if len(sales) == 0 {
		for _, m := range months {
			s, err := wb.MasterSales(extract.MasterSheetName(m), m, o.catalogs.Courses)
			if err != nil {
				return err
			}
			sales = append(sales, s...)
		}
	}
	out.Sales = replaceMonths(out.Sales, sales, func(s models.CourseSales) string { return s.Month })

	costs, err := wb.CampaignCosts(months)
	if err != nil {
		return err
	}
	out.Costs = replaceMonths(out.Costs, costs, func(c models.CampaignCost) string { return c.Month })

	o.logger.Info("ledger applied", "source", filepath.Base(path), "sales", len(sales), "campaign_costs", len(costs))
	return nil
}

// replaceMonths drops the items of base whose month appears in override and
// appends override.
func replaceMonths[T any](base, override []T, month func(T) string) []T {
	if len(override) == 0 {
		return base
	}
	covered := map[string]bool{}
	for _, item := range override {
		covered[month(item)] = true
	}
	out := make([]T, 0, len(base)+len(override))
	for _, item := range base {
		if !covered[month(item)] {
			out = append(out, item)
		}
	}
	return append(out, override...)
}

func (o *Orchestrator) validate(p, mode string, reference map[string]float64, out *Outcome) []models.ValidationResult {
	var results []models.ValidationResult
	if mode == ModeEngine {
		results = append(results, validate.Completeness(validate.CompletenessInput{
			Courses:     o.catalogs.Courses.Entries(),
			Companies:   o.catalogs.Companies,
			Sales:       out.Sales,
			Settlements: out.Result.Settlements,
		})...)
	}

	if reference == nil {
		reference, _ = validate.Reference(p)
	}
	if len(reference) > 0 {
		payouts := out.Result.Payouts()
		if mode == ModeRows {
			// row settlements also cover the operator
			payouts = validate.Restrict(payouts, reference)
		}
		results = append(results, validate.CrossValidate(payouts, reference, o.settings.Tolerance)...)
	}

	for _, r := range results {
		if r.Informational {
			continue
		}
		o.metrics.ValidationChecked(r.Passed)
		if !r.Passed {
			o.logger.Warn("validation failed",
				"check", r.CheckName,
				"expected", r.Expected,
				"actual", r.Actual,
				"difference", r.Difference,
				"period", p,
			)
		}
	}
	return results
}

// Publish writes the settlement export, the optional workbook and the run
// report under dir. It returns the written paths.
func Publish(out *Outcome, dir string, withXLSX, withHTML bool) ([]string, error) {
	if out == nil || out.Result == nil || out.Run == nil {
		return nil, errors.New("pipeline: nothing to publish")
	}
	var paths []string

	jsonPath, err := apportion.ExportJSON(out.Result, dir)
	if err != nil {
		return nil, err
	}
	paths = append(paths, jsonPath)

	if withXLSX {
		xlsxPath := filepath.Join(dir, "settlement_"+out.Result.Period+".xlsx")
		if err := apportion.ExportXLSX(out.Result, xlsxPath); err != nil {
			return paths, err
		}
		paths = append(paths, xlsxPath)
	}

	reports, err := report.Write(out.Run, dir, withHTML)
	if err != nil {
		return paths, err
	}
	return append(paths, reports...), nil
}

func sortedPaths(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReferenceFromStatements turns partner statements, keyed by company name,
// into confirmed payouts keyed by company id. Names are matched to the
// company catalog ignoring case and spaces. Statements whose company is not
// in the catalog are returned by name.
func ReferenceFromStatements(statements map[string]extract.UnionStatement, companies []models.Company) (map[string]float64, []string) {
	byName := make(map[string]string, len(companies))
	for _, c := range companies {
		byName[nameKey(c.Name)] = c.CompanyID
		byName[nameKey(c.CompanyID)] = c.CompanyID
	}

	ref := map[string]float64{}
	var unknown []string
	for name, st := range statements {
		id, ok := byName[nameKey(name)]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		ref[id] = st.SettlementAmount
	}
	sort.Strings(unknown)
	return ref, unknown
}

func nameKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
