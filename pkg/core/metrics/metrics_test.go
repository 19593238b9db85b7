package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()
	c.DocumentProcessed("layout_A", "ok")
	c.RowsExtracted("layout_A", 39)
	c.RowsExtracted("layout_A", 0)
	c.RevenueCorrected()
	c.RevenueCorrected()
	c.CourseUnresolved()
	c.ValidationChecked(true)
	c.ValidationChecked(false)
	c.SetPayout("heaz", "2024-Q4", 3659120)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.documents.WithLabelValues("layout_A", "ok")))
	assert.Equal(t, 39.0, testutil.ToFloat64(c.rows.WithLabelValues("layout_A")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.revenueCorrections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unresolvedCourses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validations.WithLabelValues("fail")))
	assert.Equal(t, 3659120.0, testutil.ToFloat64(c.payout.WithLabelValues("heaz", "2024-Q4")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.DocumentProcessed("layout_B", "ok")
	c.RevenueCorrected()
	c.ExchangeRateFallback()
	assert.Nil(t, c.Registry())
	assert.NoError(t, c.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := New()
	c.ExchangeRateFallback()

	path := filepath.Join(t.TempDir(), "settlement.prom")
	require.NoError(t, c.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "sharex_settlement_exchange_rate_fallbacks_total 1"))
}
