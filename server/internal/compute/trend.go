package compute

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Trend compares the earliest and latest snapshot by MetricDate. Fewer than
// two rows yields TrendInsufficientData. It never fails.
//
//	automation_volume_trend = (latest.total - earliest.total) / max(earliest.total, 1) * 100
//	success_rate_trend      = latest.success_rate - earliest.success_rate
//	cost_savings_trend      = (latest.cost - earliest.cost) / max(earliest.cost, 1) * 100
func Trend(rows []types.PerformanceSnapshot, periodDays int) types.Trend {
	out := types.Trend{
		Status:     types.TrendInsufficientData,
		PeriodDays: periodDays,
		DataPoints: len(rows),
	}
	if len(rows) < 2 {
		return out
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b types.PerformanceSnapshot) int {
		return a.MetricDate.Compare(b.MetricDate)
	})
	earliest, latest := sorted[0], sorted[len(sorted)-1]

	volume := float64(latest.TotalAutomations-earliest.TotalAutomations) /
		float64(max(earliest.TotalAutomations, 1)) * 100
	cost := (latest.CostSavings - earliest.CostSavings) / max(earliest.CostSavings, 1) * 100

	out.Status = types.TrendOK
	out.AutomationVolumeTrend = Round2(volume)
	out.SuccessRateTrend = Round2(latest.SuccessRate - earliest.SuccessRate)
	out.CostSavingsTrend = Round2(cost)
	switch {
	case volume > 0:
		out.Direction = types.DirectionUp
	case volume < 0:
		out.Direction = types.DirectionDown
	default:
		out.Direction = types.DirectionStable
	}
	return out
}

// SnapshotSource reads stored performance snapshots ordered by date.
type SnapshotSource interface {
	QuerySnapshotsInWindow(ctx context.Context, clientID string, from, to time.Time) ([]types.PerformanceSnapshot, error)
}

// TrendCalculator reads the lookback window from the store and computes Trend.
type TrendCalculator struct {
	src SnapshotSource
	now func() time.Time // injectable for deterministic tests
}

// NewTrendCalculator returns a TrendCalculator reading from src.
func NewTrendCalculator(src SnapshotSource) *TrendCalculator {
	return &TrendCalculator{src: src, now: time.Now}
}

// Calculate returns the trend of clientID over the last days days. Only
// rollups of timeframe tf are compared; a 24h total is never set against a
// 30d total.
func (c *TrendCalculator) Calculate(ctx context.Context, clientID string, tf types.Timeframe, days int) (types.Trend, error) {
	to := c.now().UTC()
	from := to.AddDate(0, 0, -days)
	rows, err := c.src.QuerySnapshotsInWindow(ctx, clientID, from, to)
	if err != nil {
		return types.Trend{Status: types.TrendUnavailable, PeriodDays: days},
			fmt.Errorf("compute: trend %q: %w", clientID, err)
	}
	return Trend(OfTimeframe(rows, tf), days), nil
}

// OfTimeframe returns the rows aggregated over tf, keeping their order.
func OfTimeframe(rows []types.PerformanceSnapshot, tf types.Timeframe) []types.PerformanceSnapshot {
	out := make([]types.PerformanceSnapshot, 0, len(rows))
	for _, r := range rows {
		if r.Timeframe == tf {
			out = append(out, r)
		}
	}
	return out
}
