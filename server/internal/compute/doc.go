// Package compute holds the pure calculations of the engine.
//
// status.go maps an uptime percentage to a health status:
// healthy ≥95, degraded 80–95, down <80.
//
// roi.go derives time and cost savings from a performance snapshot using
// decimal arithmetic. Default assumptions: 15 minutes saved per automation,
// labour valued at 25 per hour.
//
// trend.go compares the earliest and latest stored snapshot in a lookback
// window. TrendCalculator wraps it with a read from the snapshot store and
// compares rollups of a single timeframe.
//
// daily.go groups daily rollups and health samples by date for the
// system-wide trend view.
package compute
