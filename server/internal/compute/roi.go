package compute

import (
	"github.com/shopspring/decimal"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Assumptions are the value inputs of the ROI calculation.
type Assumptions struct {
	// MinutesPerAutomation is the manual time one automation replaces.
	MinutesPerAutomation float64
	// HourlyRate is the labour cost of one manual hour.
	HourlyRate float64
}

// DefaultAssumptions returns 15 minutes per automation at 25 per hour.
func DefaultAssumptions() Assumptions {
	return Assumptions{MinutesPerAutomation: 15, HourlyRate: 25}
}

var sixty = decimal.NewFromInt(60)

// ROI derives time and cost savings from a snapshot:
//
//	time_saved_hours      = total_automations * minutes / 60
//	labor_cost_savings    = time_saved_hours * hourly_rate
//	total_value           = cost_savings + labor_cost_savings
//	automation_efficiency = successful / max(total, 1) * 100
//
// Monetary and hour figures are rounded to two decimals.
func ROI(s types.PerformanceSnapshot, a Assumptions) types.ROI {
	hours := decimal.NewFromInt(s.TotalAutomations).
		Mul(decimal.NewFromFloat(a.MinutesPerAutomation)).
		Div(sixty)
	labor := hours.Mul(decimal.NewFromFloat(a.HourlyRate))
	cost := decimal.NewFromFloat(s.CostSavings)
	avg := decimal.NewFromFloat(s.TotalProcessingTime).Div(decimal.NewFromInt(max(s.TotalAutomations, 1)))

	return types.ROI{
		TimeSavedHours:        hours.Round(2).InexactFloat64(),
		LaborCostSavings:      labor.Round(2).InexactFloat64(),
		CostSavings:           cost.Round(2).InexactFloat64(),
		TotalValue:            cost.Add(labor).Round(2).InexactFloat64(),
		AutomationEfficiency:  Round2(Percent(s.SuccessfulAutomations, s.TotalAutomations)),
		AverageProcessingTime: avg.Round(2).InexactFloat64(),
		Timeframe:             s.Timeframe,
	}
}
