// Package metrics exposes the service's own Prometheus instrumentation.
//
// Collectors register with the default registry on import and are served
// at /metrics. Counters that describe recorded history (AlertsFired,
// ReportsGenerated) only move after the store write succeeds; failed writes
// are counted in StoreErrors by operation instead.
package metrics
