package types

import (
	"fmt"
	"time"
)

// Timeframe is a supported performance query window.
type Timeframe string

const (
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe90d Timeframe = "90d"

	DefaultTimeframe = Timeframe30d
)

// ParseTimeframe validates s. An empty string selects DefaultTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case "":
		return DefaultTimeframe, nil
	case Timeframe24h, Timeframe7d, Timeframe30d, Timeframe90d:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q: want 24h|7d|30d|90d: %w", s, ErrConfiguration)
	}
}

// Duration returns the window length covered by the timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe24h:
		return 24 * time.Hour
	case Timeframe7d:
		return 7 * 24 * time.Hour
	case Timeframe90d:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// TrendLookbackDays is the history depth used for trends of this timeframe:
// 7 days for 24h, 30 days for 7d, 90 days otherwise.
func (t Timeframe) TrendLookbackDays() int {
	switch t {
	case Timeframe24h:
		return 7
	case Timeframe7d:
		return 30
	default:
		return 90
	}
}

// MetricsSample is the normalised counter payload from one endpoint's
// metrics call. Absent fields are zero.
type MetricsSample struct {
	TotalAutomations      int64              `json:"total_automations"`
	SuccessfulAutomations int64              `json:"successful_automations"`
	FailedAutomations     int64              `json:"failed_automations"`
	TotalProcessingTime   float64            `json:"total_processing_time"`
	CostSavings           float64            `json:"cost_savings"`
	EfficiencyGains       map[string]float64 `json:"efficiency_gains"`
}

// PerformanceSnapshot aggregates performance counters of one client over
// the window [WindowStart, WindowEnd). It is stored as a daily rollup keyed
// by (ClientID, MetricDate).
type PerformanceSnapshot struct {
	ClientID    string    `json:"client_id"`
	Timeframe   Timeframe `json:"timeframe"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	MetricDate  time.Time `json:"metric_date"`

	TotalAutomations      int64              `json:"total_automations"`
	SuccessfulAutomations int64              `json:"successful_automations"`
	FailedAutomations     int64              `json:"failed_automations"`
	TotalProcessingTime   float64            `json:"total_processing_time"`
	CostSavings           float64            `json:"cost_savings"`
	EfficiencyGains       map[string]float64 `json:"efficiency_gains"`

	// Derived by Derive.
	SuccessRate       float64 `json:"success_rate"`
	AvgProcessingTime float64 `json:"average_processing_time"`

	EndpointsTotal     int `json:"endpoints_total"`
	EndpointsReporting int `json:"endpoints_reporting"`
}

// NewSnapshot returns an empty snapshot for the given window. MetricDate is
// the UTC calendar date of the window end.
func NewSnapshot(clientID string, tf Timeframe, start, end time.Time) PerformanceSnapshot {
	return PerformanceSnapshot{
		ClientID:        clientID,
		Timeframe:       tf,
		WindowStart:     start,
		WindowEnd:       end,
		MetricDate:      DateOf(end),
		EfficiencyGains: make(map[string]float64),
	}
}

// Add merges one endpoint's sample into s. Counters sum; efficiency gains
// merge by key with additive combination. Add is commutative.
func (s *PerformanceSnapshot) Add(m MetricsSample) {
	s.TotalAutomations += m.TotalAutomations
	s.SuccessfulAutomations += m.SuccessfulAutomations
	s.FailedAutomations += m.FailedAutomations
	s.TotalProcessingTime += m.TotalProcessingTime
	s.CostSavings += m.CostSavings
	if len(m.EfficiencyGains) > 0 && s.EfficiencyGains == nil {
		s.EfficiencyGains = make(map[string]float64, len(m.EfficiencyGains))
	}
	for k, v := range m.EfficiencyGains {
		s.EfficiencyGains[k] += v
	}
}

// Derive recomputes SuccessRate and AvgProcessingTime from the counters.
// Both are zero when there were no automations.
func (s *PerformanceSnapshot) Derive() {
	denom := float64(max(s.TotalAutomations, 1))
	s.SuccessRate = float64(s.SuccessfulAutomations) / denom * 100
	if s.SuccessRate > 100 {
		s.SuccessRate = 100
	} else if s.SuccessRate < 0 {
		s.SuccessRate = 0
	}
	s.AvgProcessingTime = s.TotalProcessingTime / denom
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ROI is the value derived from one performance snapshot.
type ROI struct {
	TimeSavedHours        float64   `json:"time_saved_hours"`
	LaborCostSavings      float64   `json:"labor_cost_savings"`
	CostSavings           float64   `json:"cost_savings"`
	TotalValue            float64   `json:"total_value"`
	AutomationEfficiency  float64   `json:"automation_efficiency"`
	AverageProcessingTime float64   `json:"average_processing_time"`
	Timeframe             Timeframe `json:"timeframe"`
}

// TrendStatus reports whether a trend could be computed.
type TrendStatus string

const (
	TrendOK               TrendStatus = "ok"
	TrendInsufficientData TrendStatus = "insufficient_data"

	// TrendUnavailable marks a trend whose history could not be read.
	TrendUnavailable TrendStatus = "unavailable"
)

// TrendDirection follows the sign of the automation volume trend.
type TrendDirection string

const (
	DirectionUp     TrendDirection = "up"
	DirectionDown   TrendDirection = "down"
	DirectionStable TrendDirection = "stable"
)

// Trend compares the earliest and latest stored snapshot in a lookback window.
type Trend struct {
	Status                TrendStatus    `json:"trend"`
	PeriodDays            int            `json:"period_days"`
	DataPoints            int            `json:"data_points"`
	AutomationVolumeTrend float64        `json:"automation_volume_trend"`
	SuccessRateTrend      float64        `json:"success_rate_trend"`
	CostSavingsTrend      float64        `json:"cost_savings_trend"`
	Direction             TrendDirection `json:"trend_direction,omitempty"`
}

// PerformanceReport is the result of a performance query: the aggregated
// snapshot plus everything derived from it.
type PerformanceReport struct {
	Snapshot        PerformanceSnapshot `json:"snapshot"`
	ROI             ROI                 `json:"roi"`
	Trend           Trend               `json:"trends"`
	Recommendations []string            `json:"recommendations"`
	Persisted       bool                `json:"persisted"`
}
