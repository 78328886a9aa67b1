package prober

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Metric families read from endpoints that answer /metrics with a
// Prometheus text exposition instead of JSON.
const (
	famTotal          = "automation_total"
	famSuccessful     = "automation_successful_total"
	famFailed         = "automation_failed_total"
	famProcessingTime = "automation_processing_seconds_total"
	famCostSavings    = "automation_cost_savings_total"

	// famEfficiencyGain carries one series per efficiency kind, e.g.
	// automation_efficiency_gain{kind="manual_hours_avoided"} 12.5
	famEfficiencyGain = "automation_efficiency_gain"
	efficiencyLabel   = "kind"
)

// parsePromSample decodes a Prometheus text exposition into a MetricsSample.
// A partial parse with at least one family is accepted.
func parsePromSample(r io.Reader) (types.MetricsSample, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return types.MetricsSample{}, fmt.Errorf("parse prometheus text: %w", err)
	}

	out := types.MetricsSample{
		TotalAutomations:      roundCount(sumFamily(mfs[famTotal])),
		SuccessfulAutomations: roundCount(sumFamily(mfs[famSuccessful])),
		FailedAutomations:     roundCount(sumFamily(mfs[famFailed])),
		TotalProcessingTime:   sumFamily(mfs[famProcessingTime]),
		CostSavings:           sumFamily(mfs[famCostSavings]),
		EfficiencyGains:       make(map[string]float64),
	}

	if mf := mfs[famEfficiencyGain]; mf != nil {
		for _, m := range mf.GetMetric() {
			kind := labelValue(m, efficiencyLabel)
			if kind == "" {
				continue
			}
			out.EfficiencyGains[kind] += metricValue(m)
		}
	}
	return out, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the exposition).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += metricValue(m)
	}
	return total
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	default:
		return 0
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
