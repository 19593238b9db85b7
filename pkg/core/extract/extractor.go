// Package extract recovers structured settlement rows from statement text.
//
// Every layout is read line by line with an explicit section state (see
// Fold). Numbers are always read from the right end of a line since course
// labels are free text and may contain digits of their own.
package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/duneshique/sharex-settlement/pkg/core/detect"
	"github.com/duneshique/sharex-settlement/pkg/core/document"
	"github.com/duneshique/sharex-settlement/pkg/core/match"
	"github.com/duneshique/sharex-settlement/pkg/core/metrics"
	"github.com/duneshique/sharex-settlement/pkg/core/period"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// CourseCatalog looks up catalog courses by id.
type CourseCatalog interface {
	Course(courseID string) (models.CourseCatalogEntry, bool)
}

// LabelMatcher resolves a statement label to a catalog course.
type LabelMatcher interface {
	Match(label string) match.Result
}

// Extractor turns loaded statements into ParsedDocuments. It holds only
// read-only catalog data and may be shared between goroutines.
type Extractor struct {
	courses  CourseCatalog
	matcher  LabelMatcher
	detector *detect.Detector
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// Option configures an Extractor.
type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(x *Extractor) { x.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(x *Extractor) { x.metrics = c }
}

func WithDetector(d *detect.Detector) Option {
	return func(x *Extractor) { x.detector = d }
}

// New creates an extractor. courses and matcher may be nil; print-layout
// labels then stay unresolved.
func New(courses CourseCatalog, matcher LabelMatcher, opts ...Option) *Extractor {
	x := &Extractor{
		courses:  courses,
		matcher:  matcher,
		detector: detect.New(),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = slog.Default()
	}
	x.logger = x.logger.With("component", "extract")
	return x
}

// ExtractFile loads a statement and extracts it according to the period
// found in its file name: quarterly statements go through layout detection,
// monthly statements through the monthly reader.
func (x *Extractor) ExtractFile(ctx context.Context, path string) (*models.ParsedDocument, error) {
	kind, p := period.FromFilename(path)
	if kind == period.Unknown {
		x.logger.Warn("no period in file name", "source", path)
		return nil, &models.FormatUnrecognizedError{Path: path}
	}
	doc, err := document.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if kind == period.Monthly {
		return x.ExtractMonthly(doc, p)
	}
	return x.Extract(doc, p)
}

// Extract reads a quarterly statement. The layout is detected first and the
// matching reader is run; for an unrecognised layout the spreadsheet reader
// is tried before the print reader and the first non-empty result is used.
func (x *Extractor) Extract(doc *document.Document, periodLabel string) (*models.ParsedDocument, error) {
	layout, rule := x.detector.Detect(detect.Input{
		Filename:  doc.Path,
		FirstPage: doc.FirstPage(),
		PageCount: doc.PageCount(),
	})
	log := x.logger.With("source", doc.Name(), "period", periodLabel)
	log.Debug("layout detected", "layout", layout, "rule", rule)

	var (
		rows     []models.CourseSettlementRow
		warnings []error
	)
	switch layout {
	case detect.LayoutA:
		rows, warnings = x.ExtractLayout(doc, periodLabel, detect.LayoutA)
	case detect.LayoutB:
		rows, warnings = x.ExtractLayout(doc, periodLabel, detect.LayoutB)
	default:
		for _, candidate := range []detect.Layout{detect.LayoutA, detect.LayoutB} {
			rows, warnings = x.ExtractLayout(doc, periodLabel, candidate)
			if len(rows) > 0 {
				log.Info("unknown layout parsed by fallback", "layout", candidate)
				layout = candidate
				break
			}
		}
		if len(rows) == 0 {
			x.metrics.DocumentProcessed(string(detect.LayoutUnknown), "unrecognized")
			return nil, &models.FormatUnrecognizedError{Path: doc.Path}
		}
	}

	if len(rows) == 0 {
		x.metrics.DocumentProcessed(string(layout), "empty")
		return nil, &models.NoSettlementDataError{Path: doc.Path, Period: periodLabel}
	}

	result := &models.ParsedDocument{
		Source: doc.Path,
		Period: periodLabel,
		Layout: string(layout),
		Rows:   rows,
	}
	x.finish(log, result, warnings)
	return result, nil
}

// ExtractLayout reads doc with the reader of a given layout. Layout A is a
// single-page export; layout B is read across all pages with the section
// state reset at each page.
func (x *Extractor) ExtractLayout(doc *document.Document, periodLabel string, layout detect.Layout) ([]models.CourseSettlementRow, []error) {
	switch layout {
	case detect.LayoutA:
		rows, warnings := Fold(splitLines(doc.FirstPage()), QuarterlyLine(periodLabel))
		x.fillNames(rows)
		return rows, warnings
	case detect.LayoutB:
		scan := printScanner{period: periodLabel, matcher: x.matcher, courses: x.courses}
		var (
			rows     []models.CourseSettlementRow
			warnings []error
		)
		for _, page := range doc.Pages {
			r, w := Fold(splitLines(page), scan.line)
			rows = append(rows, r...)
			warnings = append(warnings, w...)
		}
		return rows, warnings
	}
	return nil, nil
}

// ExtractMonthly reads a monthly statement: course rows and sales from page
// one, channel totals from the notes under the table, and campaign lines
// from any Meta invoice pages that follow.
func (x *Extractor) ExtractMonthly(doc *document.Document, month string) (*models.ParsedDocument, error) {
	log := x.logger.With("source", doc.Name(), "period", month)
	first := doc.FirstPage()

	rows, warnings := Fold(splitLines(first), MonthlyLine(month))
	x.fillNames(rows)

	result := &models.ParsedDocument{
		Source:        doc.Path,
		Period:        month,
		Layout:        "monthly",
		Rows:          rows,
		Sales:         MonthlySales(first, month, x.courses),
		CampaignCosts: InvoiceTotals(first, month),
	}
	for _, page := range doc.Pages[min(1, len(doc.Pages)):] {
		if !IsInvoicePage(page) {
			continue
		}
		if lines := MetaInvoice(page, month); len(lines) > 0 {
			result.CampaignCosts = ReplaceChannelTotals(append(result.CampaignCosts, lines...), ChannelMeta)
		}
	}

	if len(result.Rows) == 0 && len(result.Sales) == 0 {
		x.metrics.DocumentProcessed(result.Layout, "empty")
		return nil, &models.NoSettlementDataError{Path: doc.Path, Period: month}
	}
	x.finish(log, result, warnings)
	return result, nil
}

// finish reconciles rows, records warnings and updates metrics.
func (x *Extractor) finish(log *slog.Logger, doc *models.ParsedDocument, warnings []error) {
	corrected := Reconcile(doc.Rows, log)
	for i := 0; i < corrected; i++ {
		x.metrics.RevenueCorrected()
	}
	for _, w := range warnings {
		var cm *models.CourseMatchError
		if errors.As(w, &cm) {
			x.metrics.CourseUnresolved()
			log.Warn("course label unresolved",
				"course_id", cm.Placeholder,
				"label", cm.Label,
				"period", cm.Period,
				"code", cm.CourseCode,
			)
		} else {
			log.Warn("extraction warning", "error", w)
		}
		doc.Warnings = append(doc.Warnings, w.Error())
	}
	x.metrics.DocumentProcessed(doc.Layout, "ok")
	x.metrics.RowsExtracted(doc.Layout, len(doc.Rows))
	log.Info("statement extracted",
		"layout", doc.Layout,
		"rows", len(doc.Rows),
		"sales", len(doc.Sales),
		"campaign_costs", len(doc.CampaignCosts),
		"warnings", len(doc.Warnings),
	)
}

func (x *Extractor) fillNames(rows []models.CourseSettlementRow) {
	if x.courses == nil {
		return
	}
	for i := range rows {
		if c, ok := x.courses.Course(rows[i].CourseID); ok {
			rows[i].CourseName = c.CourseName
		}
	}
}
