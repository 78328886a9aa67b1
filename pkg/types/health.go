package types

import "time"

// Status is the health classification of one system or of a whole client.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worse returns whichever of a and b is the more severe status.
// down dominates degraded, degraded dominates healthy.
func Worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// HealthSample is one system's probe result. Immutable once stored.
type HealthSample struct {
	ClientID         string    `json:"client_id"`
	SystemName       string    `json:"system_name"`
	Endpoint         string    `json:"endpoint"`
	Status           Status    `json:"status"`
	ResponseTimeMs   float64   `json:"response_time_ms"`
	EndpointsChecked int       `json:"endpoints_checked"`
	EndpointsHealthy int       `json:"endpoints_healthy"`
	UptimePct        float64   `json:"uptime_percentage"`
	Error            string    `json:"error,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}

// HealthSummary counts systems per status.
type HealthSummary struct {
	TotalSystems    int `json:"total_systems"`
	HealthySystems  int `json:"healthy_systems"`
	DegradedSystems int `json:"degraded_systems"`
	DownSystems     int `json:"down_systems"`
}

// ClientHealthResult is the rolled-up health of one client at one instant.
type ClientHealthResult struct {
	ClientID          string         `json:"client_id"`
	ClientName        string         `json:"client_name"`
	OverallStatus     Status         `json:"overall_status"`
	Systems           []HealthSample `json:"systems"`
	Summary           HealthSummary  `json:"summary"`
	AvgResponseTimeMs float64        `json:"average_response_time_ms"`
	CheckedAt         time.Time      `json:"checked_at"`

	// PersistenceErrors counts samples that could not be stored.
	PersistenceErrors int `json:"persistence_errors,omitempty"`
}

// MeanUptime returns the mean uptime percentage across all systems.
// ok is false when the client has no systems; the mean is then undefined.
func (r *ClientHealthResult) MeanUptime() (mean float64, ok bool) {
	if len(r.Systems) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range r.Systems {
		sum += s.UptimePct
	}
	return sum / float64(len(r.Systems)), true
}
