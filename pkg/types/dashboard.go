package types

import "time"

// ClientStatusError marks a client whose status could not be determined.
const ClientStatusError = "error"

// ClientSummary is one row of the all-clients view.
type ClientSummary struct {
	ClientID          string        `json:"client_id"`
	Name              string        `json:"name"`
	Industry          string        `json:"industry,omitempty"`
	Status            string        `json:"status"`
	Systems           HealthSummary `json:"systems"`
	AvgResponseTimeMs float64       `json:"average_response_time_ms"`
	AutomationsToday  int64         `json:"automations_today"`
	SuccessRate       float64       `json:"success_rate"`
	CostSavingsToday  float64       `json:"cost_savings_today"`
	Error             string        `json:"error,omitempty"`
}

// DashboardSummary totals the all-clients view.
type DashboardSummary struct {
	TotalClients          int     `json:"total_clients"`
	HealthyClients        int     `json:"healthy_clients"`
	DegradedClients       int     `json:"degraded_clients"`
	DownClients           int     `json:"down_clients"`
	ErrorClients          int     `json:"error_clients"`
	TotalAutomationsToday int64   `json:"total_automations_today"`
	OverallSuccessRate    float64 `json:"overall_success_rate"`
}

// AllClientsStatus is the result of an all-clients status query.
type AllClientsStatus struct {
	Summary      DashboardSummary `json:"summary"`
	Clients      []ClientSummary  `json:"clients"`
	QuickActions []string         `json:"quick_actions"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// ClientDetails is the drill-down view of one client.
type ClientDetails struct {
	Client *Client `json:"client_info"`
	// HealthSamples are the samples of the last 24 hours, newest first.
	HealthSamples []HealthSample `json:"health_data"`
	// DailyMetrics are the 24h rollups of the last 30 days, newest first.
	DailyMetrics []PerformanceSnapshot `json:"performance_metrics"`
	// RecentAlerts are at most 10 events of the last 7 days, newest first.
	RecentAlerts []AlertEvent `json:"recent_alerts"`
}

// DailyAutomation totals the daily rollups of every client for one date.
type DailyAutomation struct {
	Date        time.Time `json:"date"`
	Automations int64     `json:"automations"`
	SuccessRate float64   `json:"success_rate"`
	CostSavings float64   `json:"cost_savings"`
}

// DailyHealth averages the health samples of every client for one date.
// HealthScore counts a healthy sample as 100, degraded as 50 and down as 0.
type DailyHealth struct {
	Date        time.Time `json:"date"`
	HealthScore float64   `json:"health_score"`
	AvgUptime   float64   `json:"avg_uptime"`
	Samples     int       `json:"samples"`
}

// SystemTrends is the system-wide day-by-day view over the last Days days.
type SystemTrends struct {
	Days             int               `json:"days"`
	AutomationTrends []DailyAutomation `json:"automation_trends"`
	HealthTrends     []DailyHealth     `json:"health_trends"`
}
