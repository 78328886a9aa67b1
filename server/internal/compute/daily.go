package compute

import (
	"slices"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// HealthScore weighs one status for the system-wide health trend.
func HealthScore(s types.Status) float64 {
	switch s {
	case types.StatusHealthy:
		return 100
	case types.StatusDegraded:
		return 50
	default:
		return 0
	}
}

// DailyAutomations groups 24h rollups by metric date. Automations and cost
// savings sum across rows; the success rate is the mean of the row rates.
// Rows of other timeframes are ignored. Output is ordered by date.
func DailyAutomations(rows []types.PerformanceSnapshot) []types.DailyAutomation {
	type acc struct {
		day   types.DailyAutomation
		rates float64
		n     int
	}
	byDate := make(map[time.Time]*acc)
	for _, r := range OfTimeframe(rows, types.Timeframe24h) {
		d := types.DateOf(r.MetricDate)
		a, ok := byDate[d]
		if !ok {
			a = &acc{day: types.DailyAutomation{Date: d}}
			byDate[d] = a
		}
		a.day.Automations += r.TotalAutomations
		a.day.CostSavings += r.CostSavings
		a.rates += r.SuccessRate
		a.n++
	}

	out := make([]types.DailyAutomation, 0, len(byDate))
	for _, a := range byDate {
		a.day.SuccessRate = Round2(a.rates / float64(a.n))
		a.day.CostSavings = Round2(a.day.CostSavings)
		out = append(out, a.day)
	}
	slices.SortFunc(out, func(a, b types.DailyAutomation) int { return a.Date.Compare(b.Date) })
	return out
}

// DailyHealthTrend groups health samples by UTC check date and averages
// their health score and uptime. Output is ordered by date.
func DailyHealthTrend(samples []types.HealthSample) []types.DailyHealth {
	type acc struct {
		score, uptime float64
		n             int
	}
	byDate := make(map[time.Time]*acc)
	for _, s := range samples {
		d := types.DateOf(s.CheckedAt)
		a, ok := byDate[d]
		if !ok {
			a = &acc{}
			byDate[d] = a
		}
		a.score += HealthScore(s.Status)
		a.uptime += s.UptimePct
		a.n++
	}

	out := make([]types.DailyHealth, 0, len(byDate))
	for d, a := range byDate {
		n := float64(a.n)
		out = append(out, types.DailyHealth{
			Date:        d,
			HealthScore: Round2(a.score / n),
			AvgUptime:   Round2(a.uptime / n),
			Samples:     a.n,
		})
	}
	slices.SortFunc(out, func(a, b types.DailyHealth) int { return a.Date.Compare(b.Date) })
	return out
}
