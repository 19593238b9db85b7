// Package metrics exposes run counters for settlement extraction and
// calculation. Batch runs write them to a node_exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "sharex_settlement"

// Collector groups the counters of one process. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	documents          *prometheus.CounterVec
	rows               *prometheus.CounterVec
	revenueCorrections prometheus.Counter
	unresolvedCourses  prometheus.Counter
	rateFallbacks      prometheus.Counter
	validations        *prometheus.CounterVec
	payout             *prometheus.GaugeVec
}

// New creates a collector on its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Statements processed, by detected layout and outcome.",
		}, []string{"layout", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Course rows extracted, by layout.",
		}, []string{"layout"}),
		revenueCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_corrections_total",
			Help:      "Rows whose revenue was rebuilt from margin and ad cost.",
		}),
		unresolvedCourses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_courses_total",
			Help:      "Course labels that fell back to a placeholder id.",
		}),
		rateFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_rate_fallbacks_total",
			Help:      "Currency conversions that used the latest rate instead of the month's rate.",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_checks_total",
			Help:      "Cross-validation checks, by result.",
		}, []string{"result"}),
		payout: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "union_payout_krw",
			Help:      "Computed union payout of the last run, by company and period.",
		}, []string{"company", "period"}),
	}
	c.registry.MustRegister(
		c.documents, c.rows, c.revenueCorrections, c.unresolvedCourses,
		c.rateFallbacks, c.validations, c.payout,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) DocumentProcessed(layout, outcome string) {
	if c == nil {
		return
	}
	c.documents.WithLabelValues(layout, outcome).Inc()
}

func (c *Collector) RowsExtracted(layout string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.rows.WithLabelValues(layout).Add(float64(n))
}

func (c *Collector) RevenueCorrected() {
	if c == nil {
		return
	}
	c.revenueCorrections.Inc()
}

func (c *Collector) CourseUnresolved() {
	if c == nil {
		return
	}
	c.unresolvedCourses.Inc()
}

func (c *Collector) ExchangeRateFallback() {
	if c == nil {
		return
	}
	c.rateFallbacks.Inc()
}

func (c *Collector) ValidationChecked(passed bool) {
	if c == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	c.validations.WithLabelValues(result).Inc()
}

func (c *Collector) SetPayout(company, period string, amount float64) {
	if c == nil {
		return
	}
	c.payout.WithLabelValues(company, period).Set(amount)
}

// WriteTextfile writes all metrics in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
