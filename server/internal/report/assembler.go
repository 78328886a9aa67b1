package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/compute"
	"github.com/clientpulse/clientpulse/server/internal/metrics"
)

// HealthChecker runs a health fan-out for a client.
type HealthChecker interface {
	Check(ctx context.Context, c *types.Client) types.ClientHealthResult
}

// PerformanceAggregator collects and persists a timeframe snapshot.
type PerformanceAggregator interface {
	Aggregate(ctx context.Context, c *types.Client, tf types.Timeframe) (types.PerformanceSnapshot, error)
}

// TrendCalculator reads the stored trend of a client.
type TrendCalculator interface {
	Calculate(ctx context.Context, clientID string, tf types.Timeframe, days int) (types.Trend, error)
}

// History is the store surface the assembler reads and writes.
type History interface {
	QueryHealthSamples(ctx context.Context, clientID string, from, to time.Time) ([]types.HealthSample, error)
	QueryAlertEvents(ctx context.Context, clientID string, from, to time.Time) ([]types.AlertEvent, error)
	SaveReport(ctx context.Context, r types.Report) error
}

// Assembler composes and persists reports.
type Assembler struct {
	health  HealthChecker
	perf    PerformanceAggregator
	trends  TrendCalculator
	history History
	roi     compute.Assumptions
	now     func() time.Time // injectable for deterministic tests
}

// NewAssembler wires an Assembler.
func NewAssembler(h HealthChecker, p PerformanceAggregator, t TrendCalculator, hist History, roi compute.Assumptions) *Assembler {
	return &Assembler{health: h, perf: p, trends: t, history: hist, roi: roi, now: time.Now}
}

// Generate builds a report of the given kind for c and saves it. Every call
// produces a new report. The report is returned even when saving fails; the
// error then wraps types.ErrPersistence.
func (a *Assembler) Generate(ctx context.Context, c *types.Client, kind types.ReportKind, withRecommendations bool) (types.Report, error) {
	kind, err := types.ParseReportKind(string(kind))
	if err != nil {
		return types.Report{}, fmt.Errorf("report: %w", err)
	}

	end := a.now().UTC()
	start := end.Add(-kind.Period())
	tf := kind.PerformanceTimeframe()

	var (
		health types.ClientHealthResult
		snap   types.PerformanceSnapshot
	)
	var g errgroup.Group
	g.Go(func() error {
		health = a.health.Check(ctx, c)
		return nil
	})
	g.Go(func() error {
		var perr error
		snap, perr = a.perf.Aggregate(ctx, c, tf)
		if perr != nil {
			slog.Warn("report: performance snapshot not persisted", "client", c.ID, "err", perr)
		}
		return nil
	})
	_ = g.Wait()

	trend, err := a.trends.Calculate(ctx, c.ID, tf, tf.TrendLookbackDays())
	if err != nil {
		slog.Warn("report: trend unavailable", "client", c.ID, "err", err)
	}
	roi := compute.ROI(snap, a.roi)
	uptime := a.uptimeSummary(ctx, c.ID, start, end, health)
	alerts := a.alertsSection(ctx, c.ID, start, end)

	payload := types.ReportPayload{
		Metadata: types.ReportMetadata{
			ClientID:      c.ID,
			ClientName:    c.Name,
			Industry:      c.Industry,
			ReportType:    kind,
			PeriodLabel:   kind.Label(),
			PeriodStart:   start,
			PeriodEnd:     end,
			GeneratedAt:   end,
			ReportVersion: types.ReportVersion,
		},
		ExecutiveSummary: executiveSummary(health, snap, roi, trend, alerts),
		SystemHealth: types.HealthSection{
			OverallStatus:   health.OverallStatus,
			SystemsOverview: health.Summary,
			CriticalIssues:  CriticalIssues(health),
			UptimeSummary:   uptime,
		},
		Performance: types.PerformanceSection{
			AutomationSummary: types.AutomationSummary{
				TotalAutomations:      snap.TotalAutomations,
				SuccessfulAutomations: snap.SuccessfulAutomations,
				FailedAutomations:     snap.FailedAutomations,
				SuccessRate:           compute.Round2(snap.SuccessRate),
				AvgProcessingTime:     compute.Round2(snap.AvgProcessingTime),
			},
			ROIAnalysis:     roi,
			EfficiencyGains: snap.EfficiencyGains,
			CostSavings:     compute.Round2(snap.CostSavings),
		},
		Trends: trend,
		Alerts: alerts,
	}
	if withRecommendations {
		payload.Recommendations = &types.Recommendations{
			PerformanceOptimizations: PerformanceRecommendations(snap),
			SystemImprovements:       SystemRecommendations(health),
			CostOptimization:         CostRecommendations(snap, roi),
			StrategicInitiatives:     StrategicRecommendations(trend),
		}
	}

	r := types.Report{
		ID:          uuid.NewString(),
		ClientID:    c.ID,
		Kind:        kind,
		PeriodStart: start,
		PeriodEnd:   end,
		GeneratedAt: end,
		Payload:     payload,
	}
	if err := a.history.SaveReport(ctx, r); err != nil {
		metrics.StoreErrors.WithLabelValues("save_report").Inc()
		return r, fmt.Errorf("report: save %s report for %q: %w", kind, c.ID, err)
	}
	metrics.ReportsGenerated.WithLabelValues(string(kind)).Inc()
	slog.Info("report: generated", "client", c.ID, "kind", kind, "id", r.ID, "period", r.PeriodString())
	return r, nil
}

// CriticalIssues lists every down system of a health result.
func CriticalIssues(h types.ClientHealthResult) []types.CriticalIssue {
	out := []types.CriticalIssue{}
	for _, s := range h.Systems {
		if s.Status != types.StatusDown {
			continue
		}
		errText := s.Error
		if errText == "" {
			errText = "Unknown error"
		}
		out = append(out, types.CriticalIssue{System: s.SystemName, Issue: "System down", Error: errText})
	}
	return out
}

// uptimeSummary averages the stored samples of the period, falling back to
// the live samples when history is empty or unreadable.
func (a *Assembler) uptimeSummary(ctx context.Context, clientID string, from, to time.Time, live types.ClientHealthResult) types.UptimeSummary {
	samples, err := a.history.QueryHealthSamples(ctx, clientID, from, to)
	if err != nil {
		slog.Warn("report: health history unavailable", "client", clientID, "err", err)
	}
	if len(samples) == 0 {
		samples = live.Systems
	}

	var out types.UptimeSummary
	var total float64
	for _, s := range samples {
		total += s.UptimePct
		if s.Status == types.StatusDown {
			out.DownSamples++
		}
	}
	out.Samples = len(samples)
	if out.Samples > 0 {
		out.AverageUptime = compute.Round2(total / float64(out.Samples))
	}
	return out
}

func (a *Assembler) alertsSection(ctx context.Context, clientID string, from, to time.Time) types.AlertsSection {
	events, err := a.history.QueryAlertEvents(ctx, clientID, from, to)
	if err != nil {
		slog.Warn("report: alert history unavailable", "client", clientID, "err", err)
		return types.AlertsSection{}
	}
	out := types.AlertsSection{TotalAlerts: len(events)}
	for _, e := range events {
		if e.Severity == types.SeverityCritical {
			out.CriticalAlerts++
		}
		if e.Acknowledged {
			out.ResolvedIssues++
		}
	}
	out.PendingIssues = out.TotalAlerts - out.ResolvedIssues
	return out
}

func executiveSummary(h types.ClientHealthResult, s types.PerformanceSnapshot, roi types.ROI, t types.Trend, al types.AlertsSection) types.ExecutiveSummary {
	out := types.ExecutiveSummary{
		OverallHealth: h.OverallStatus,
		KeyMetrics: types.KeyMetrics{
			TotalAutomations: s.TotalAutomations,
			SuccessRate:      compute.Round2(s.SuccessRate),
			CostSavings:      compute.Round2(s.CostSavings),
			TotalValue:       roi.TotalValue,
		},
		MajorIssues:  []string{},
		Achievements: []string{},
	}

	sum := h.Summary
	if sum.DownSystems > 0 {
		out.MajorIssues = append(out.MajorIssues, fmt.Sprintf("%d of %d systems down", sum.DownSystems, sum.TotalSystems))
	}
	if sum.DegradedSystems > 0 {
		out.MajorIssues = append(out.MajorIssues, fmt.Sprintf("%d systems degraded", sum.DegradedSystems))
	}
	if s.TotalAutomations > 0 && s.SuccessRate < minSuccessRate {
		out.MajorIssues = append(out.MajorIssues, fmt.Sprintf("Success rate below %.0f%% (%.1f%%)", minSuccessRate, s.SuccessRate))
	}
	if al.CriticalAlerts > 0 {
		out.MajorIssues = append(out.MajorIssues, fmt.Sprintf("%d critical alerts in period", al.CriticalAlerts))
	}

	if sum.TotalSystems > 0 && sum.HealthySystems == sum.TotalSystems {
		out.Achievements = append(out.Achievements, fmt.Sprintf("All %d systems healthy", sum.TotalSystems))
	}
	if s.TotalAutomations > 0 && s.SuccessRate >= highSuccessRate {
		out.Achievements = append(out.Achievements, fmt.Sprintf("Success rate of %.1f%%", s.SuccessRate))
	}
	if roi.TotalValue > 0 {
		out.Achievements = append(out.Achievements, fmt.Sprintf("$%.2f total automation value", roi.TotalValue))
	}
	if t.Status == types.TrendOK && t.Direction == types.DirectionUp {
		out.Achievements = append(out.Achievements, fmt.Sprintf("Automation volume up %.1f%%", t.AutomationVolumeTrend))
	}
	return out
}
