package report

import (
	"fmt"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Rule thresholds.
const (
	minSuccessRate       = 95.0  // percent
	maxAvgProcessingTime = 300.0 // seconds
	maxAvgResponseTime   = 2000.0
	highSuccessRate      = 99.0
)

// PerformanceRecommendations returns hints derived from one snapshot.
func PerformanceRecommendations(s types.PerformanceSnapshot) []string {
	out := []string{}
	if s.TotalAutomations == 0 {
		return append(out, "No automations detected - verify system connectivity")
	}
	if s.SuccessRate < minSuccessRate {
		out = append(out, fmt.Sprintf("Success rate at %.1f%% - investigate failed automations", s.SuccessRate))
	}
	if s.AvgProcessingTime > maxAvgProcessingTime {
		out = append(out, fmt.Sprintf("Average processing time is %.1fs - consider optimization", s.AvgProcessingTime))
	}
	return out
}

// SystemRecommendations returns one hint per unhealthy system plus a latency
// hint when the client is slow overall.
func SystemRecommendations(h types.ClientHealthResult) []string {
	out := []string{}
	for _, s := range h.Systems {
		switch s.Status {
		case types.StatusDown:
			msg := fmt.Sprintf("Restore %s", s.SystemName)
			if s.Error != "" {
				msg += ": " + s.Error
			}
			out = append(out, msg)
		case types.StatusDegraded:
			out = append(out, fmt.Sprintf("Investigate degraded %s (uptime %.1f%%)", s.SystemName, s.UptimePct))
		}
	}
	if h.AvgResponseTimeMs > maxAvgResponseTime {
		out = append(out, fmt.Sprintf("Average response time is %.0fms - review endpoint capacity", h.AvgResponseTimeMs))
	}
	if len(out) == 0 && len(h.Systems) > 0 {
		out = append(out, "All systems healthy - keep the current monitoring cadence")
	}
	return out
}

// CostRecommendations relates failures and reported savings to labour value.
func CostRecommendations(s types.PerformanceSnapshot, roi types.ROI) []string {
	out := []string{}
	if s.TotalAutomations == 0 {
		return out
	}
	if s.FailedAutomations > 0 {
		perRun := roi.LaborCostSavings / float64(s.TotalAutomations)
		out = append(out, fmt.Sprintf("Fixing %d failed automations would recover about $%.2f in labour value",
			s.FailedAutomations, perRun*float64(s.FailedAutomations)))
	}
	if s.CostSavings == 0 {
		out = append(out, "No direct cost savings reported - confirm cost tracking on endpoints")
	}
	if roi.TotalValue > 0 {
		out = append(out, fmt.Sprintf("Automation value for the period is $%.2f - prioritise high-volume workflows for further savings", roi.TotalValue))
	}
	return out
}

// StrategicRecommendations reads the direction of the volume trend.
func StrategicRecommendations(t types.Trend) []string {
	if t.Status != types.TrendOK {
		return []string{"Collect at least two days of performance history to enable trend analysis"}
	}
	switch t.Direction {
	case types.DirectionUp:
		return []string{fmt.Sprintf("Automation volume up %.1f%% - plan capacity for continued growth", t.AutomationVolumeTrend)}
	case types.DirectionDown:
		return []string{fmt.Sprintf("Automation volume down %.1f%% - review adoption with stakeholders", -t.AutomationVolumeTrend)}
	default:
		return []string{"Automation volume is stable - identify new processes to automate"}
	}
}
