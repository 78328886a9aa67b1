package alerts

import (
	"fmt"
	"math"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// equalsTolerance is the band within which the equals comparator fires.
const equalsTolerance = 0.01

// criticalDeviation is the relative distance from the threshold at which a
// firing alert is raised as critical rather than warning.
const criticalDeviation = 0.20

// compare applies a comparator to a value and its threshold.
func compare(v float64, cmp types.Comparator, threshold float64) bool {
	switch cmp {
	case types.GreaterThan:
		return v > threshold
	case types.LessThan:
		return v < threshold
	case types.Equals:
		return math.Abs(v-threshold) < equalsTolerance
	default:
		return false
	}
}

// severity grades a firing reading. Uptime alerts on a client that is down
// are always critical.
func severity(metric string, r Reading, threshold float64) string {
	if metric == types.MetricUptime && r.Status == types.StatusDown {
		return types.SeverityCritical
	}
	dev := math.Abs(r.Value-threshold) / math.Max(math.Abs(threshold), 1)
	if dev >= criticalDeviation {
		return types.SeverityCritical
	}
	return types.SeverityWarning
}

func describe(metric string, r Reading, threshold float64) string {
	if !r.Defined {
		return fmt.Sprintf("%s undefined: client has no systems", metric)
	}
	return fmt.Sprintf("Current %s: %.2f, threshold: %.2f", metric, r.Value, threshold)
}
