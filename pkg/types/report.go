package types

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// ReportKind selects the period a report covers.
type ReportKind string

const (
	ReportDaily     ReportKind = "daily"
	ReportWeekly    ReportKind = "weekly"
	ReportMonthly   ReportKind = "monthly"
	ReportQuarterly ReportKind = "quarterly"

	ReportVersion = "1.0"
)

// ParseReportKind validates s. An empty string selects ReportMonthly.
func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(s); k {
	case "":
		return ReportMonthly, nil
	case ReportDaily, ReportWeekly, ReportMonthly, ReportQuarterly:
		return k, nil
	default:
		return "", fmt.Errorf("unknown report kind %q: want daily|weekly|monthly|quarterly: %w", s, ErrConfiguration)
	}
}

// Period is the length of time the report covers.
func (k ReportKind) Period() time.Duration {
	switch k {
	case ReportDaily:
		return 24 * time.Hour
	case ReportWeekly:
		return 7 * 24 * time.Hour
	case ReportQuarterly:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Label is the human-readable period name.
func (k ReportKind) Label() string {
	switch k {
	case ReportDaily:
		return "Last 24 Hours"
	case ReportWeekly:
		return "Last 7 Days"
	case ReportQuarterly:
		return "Last 90 Days"
	default:
		return "Last 30 Days"
	}
}

// PerformanceTimeframe is the window used for the report's performance
// section: 90d for quarterly reports and 30d for every other kind. It is
// deliberately independent of Period.
func (k ReportKind) PerformanceTimeframe() Timeframe {
	if k == ReportQuarterly {
		return Timeframe90d
	}
	return Timeframe30d
}

// Report is an immutable, persisted snapshot of a client's state over a period.
type Report struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"client_id"`
	Kind        ReportKind    `json:"report_type"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	GeneratedAt time.Time     `json:"generated_at"`
	Payload     ReportPayload `json:"report_data"`
}

// PeriodString formats the period as "<start>_to_<end>" dates.
func (r *Report) PeriodString() string {
	return r.PeriodStart.UTC().Format(time.DateOnly) + "_to_" + r.PeriodEnd.UTC().Format(time.DateOnly)
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	p := &r.Payload
	p.ExecutiveSummary.MajorIssues = slices.Clone(p.ExecutiveSummary.MajorIssues)
	p.ExecutiveSummary.Achievements = slices.Clone(p.ExecutiveSummary.Achievements)
	p.SystemHealth.CriticalIssues = slices.Clone(p.SystemHealth.CriticalIssues)
	p.Performance.EfficiencyGains = maps.Clone(p.Performance.EfficiencyGains)
	if p.Recommendations != nil {
		rec := Recommendations{
			PerformanceOptimizations: slices.Clone(p.Recommendations.PerformanceOptimizations),
			SystemImprovements:       slices.Clone(p.Recommendations.SystemImprovements),
			CostOptimization:         slices.Clone(p.Recommendations.CostOptimization),
			StrategicInitiatives:     slices.Clone(p.Recommendations.StrategicInitiatives),
		}
		p.Recommendations = &rec
	}
	return r
}

// ReportPayload is the nested structure of a report.
type ReportPayload struct {
	Metadata         ReportMetadata     `json:"report_metadata"`
	ExecutiveSummary ExecutiveSummary   `json:"executive_summary"`
	SystemHealth     HealthSection      `json:"system_health"`
	Performance      PerformanceSection `json:"performance_metrics"`
	Trends           Trend              `json:"trends_analysis"`
	Alerts           AlertsSection      `json:"alerts_incidents"`
	Recommendations  *Recommendations   `json:"recommendations,omitempty"`
}

type ReportMetadata struct {
	ClientID      string     `json:"client_id"`
	ClientName    string     `json:"client_name"`
	Industry      string     `json:"industry,omitempty"`
	ReportType    ReportKind `json:"report_type"`
	PeriodLabel   string     `json:"period_label"`
	PeriodStart   time.Time  `json:"period_start"`
	PeriodEnd     time.Time  `json:"period_end"`
	GeneratedAt   time.Time  `json:"generated_at"`
	ReportVersion string     `json:"report_version"`
}

type KeyMetrics struct {
	TotalAutomations int64   `json:"total_automations"`
	SuccessRate      float64 `json:"success_rate"`
	CostSavings      float64 `json:"cost_savings"`
	TotalValue       float64 `json:"total_value"`
}

type ExecutiveSummary struct {
	OverallHealth Status     `json:"overall_health"`
	KeyMetrics    KeyMetrics `json:"key_metrics"`
	MajorIssues   []string   `json:"major_issues"`
	Achievements  []string   `json:"achievements"`
}

// CriticalIssue is raised for every system whose sample is down.
type CriticalIssue struct {
	System string `json:"system"`
	Issue  string `json:"issue"`
	Error  string `json:"error,omitempty"`
}

type UptimeSummary struct {
	AverageUptime float64 `json:"average_uptime"`
	Samples       int     `json:"samples"`
	DownSamples   int     `json:"down_samples"`
}

type HealthSection struct {
	OverallStatus   Status          `json:"overall_status"`
	SystemsOverview HealthSummary   `json:"systems_overview"`
	CriticalIssues  []CriticalIssue `json:"critical_issues"`
	UptimeSummary   UptimeSummary   `json:"uptime_summary"`
}

type AutomationSummary struct {
	TotalAutomations      int64   `json:"total_automations"`
	SuccessfulAutomations int64   `json:"successful_automations"`
	FailedAutomations     int64   `json:"failed_automations"`
	SuccessRate           float64 `json:"success_rate"`
	AvgProcessingTime     float64 `json:"average_processing_time"`
}

type PerformanceSection struct {
	AutomationSummary AutomationSummary  `json:"automation_summary"`
	ROIAnalysis       ROI                `json:"roi_analysis"`
	EfficiencyGains   map[string]float64 `json:"efficiency_gains"`
	CostSavings       float64            `json:"cost_savings"`
}

type AlertsSection struct {
	TotalAlerts    int `json:"total_alerts"`
	CriticalAlerts int `json:"critical_alerts"`
	ResolvedIssues int `json:"resolved_issues"`
	PendingIssues  int `json:"pending_issues"`
}

type Recommendations struct {
	PerformanceOptimizations []string `json:"performance_optimizations"`
	SystemImprovements       []string `json:"system_improvements"`
	CostOptimization         []string `json:"cost_optimization"`
	StrategicInitiatives     []string `json:"strategic_initiatives"`
}
