package compute

import (
	"math"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Uptime thresholds that map a percentage to a health status.
const (
	ThresholdHealthy  = 95.0
	ThresholdDegraded = 80.0
)

// StatusFromUptime maps an uptime percentage to a health status.
func StatusFromUptime(uptime float64) types.Status {
	switch {
	case uptime >= ThresholdHealthy:
		return types.StatusHealthy
	case uptime >= ThresholdDegraded:
		return types.StatusDegraded
	default:
		return types.StatusDown
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent returns part/max(whole,1)*100, clamped to [0, 100].
func Percent(part, whole int64) float64 {
	return clamp(float64(part)/float64(max(whole, 1))*100, 0, 100)
}

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
