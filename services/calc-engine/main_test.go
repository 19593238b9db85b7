package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duneshique/sharex-settlement/pkg/core/apportion"
)

func TestHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("calculate", func(t *testing.T) {
		payload := `{
			"period": "2024-Q4",
			"companies": [{"company_id": "heaz", "type": "유니온", "revenue_share_ratio": 0.75, "union_payout_ratio": 0.5}],
			"courses": [{"course_id": "231001", "company_id": "heaz", "is_active": true}],
			"course_sales": [{"month": "2024-11", "course_id": "231001", "company_id": "heaz", "revenue": 10000000}],
			"campaign_costs": [{"month": "2024-11", "target": "HEAZ", "campaign_name": "헤즈 캠페인", "cost_krw": 500000}],
		}`
		out, err := handle("calculate", payload, logger)
		require.NoError(t, err)

		export := out.(*apportion.Export)
		heaz := export.Settlements["heaz"]
		assert.Equal(t, 9500000.0, heaz.ContributionMargin)
		assert.Equal(t, 7125000.0, heaz.RevenueShareFee)
		assert.Equal(t, 4750000.0, heaz.UnionPayout)
		assert.Equal(t, 4750000.0, export.Summary.TotalUnionPayout)
	})

	t.Run("check", func(t *testing.T) {
		out, err := handle("check", `{"actual": {"blsn": 1031300.10}, "expected": {"blsn": 1031299}, "tolerance": 1}`, logger)
		require.NoError(t, err)
		resp := out.(CheckResponse)
		assert.False(t, resp.Passed)
	})

	t.Run("check tolerance", func(t *testing.T) {
		tests := []struct {
			name      string
			tolerance string
			want      bool
		}{
			{"default", "", true},
			{"exact", `, "tolerance": 0`, false},
			{"wide", `, "tolerance": 0.5`, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out, err := handle("check", `{"actual": {"blsn": 1031299.40}, "expected": {"blsn": 1031299}`+tt.tolerance+`}`, logger)
				require.NoError(t, err)
				assert.Equal(t, tt.want, out.(CheckResponse).Passed)
			})
		}

		_, err := handle("check", `{"actual": {"blsn": 1}, "expected": {"blsn": 1}, "tolerance": -1}`, logger)
		assert.Error(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := handle("calculate", `{"companies": []}`, logger)
		assert.Error(t, err, "period is required")

		_, err = handle("forecast", `{}`, logger)
		assert.Error(t, err)
	})
}
