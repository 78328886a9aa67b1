package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeDuration tracks the latency of outbound endpoint probes.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clientpulse_probe_duration_seconds",
		Help:    "Duration of outbound endpoint probes",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// ProbeResults counts probe outcomes. For health probes outcome is the
	// derived status; for metrics probes it is ok or error.
	ProbeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientpulse_probe_results_total",
		Help: "Total endpoint probes by mode and outcome",
	}, []string{"mode", "outcome"})

	// ClientStatus is the latest overall status per client (0=healthy, 1=degraded, 2=down).
	ClientStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clientpulse_client_status",
		Help: "Latest rolled-up client status (0=healthy, 1=degraded, 2=down)",
	}, []string{"client"})

	// AlertEvaluations counts threshold evaluations by metric and result.
	AlertEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientpulse_alert_evaluations_total",
		Help: "Total alert threshold evaluations",
	}, []string{"metric", "result"})

	// AlertsFired counts alert events appended to history.
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientpulse_alerts_fired_total",
		Help: "Total alert events recorded",
	}, []string{"metric", "severity"})

	// ReportsGenerated counts persisted reports by kind.
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientpulse_reports_generated_total",
		Help: "Total reports generated",
	}, []string{"kind"})

	// StoreErrors counts persistence failures by operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientpulse_store_errors_total",
		Help: "Total persistence failures",
	}, []string{"op"})
)

// StatusValue maps a status string to the ClientStatus gauge encoding.
func StatusValue(status string) float64 {
	switch status {
	case "down":
		return 2
	case "degraded":
		return 1
	default:
		return 0
	}
}
