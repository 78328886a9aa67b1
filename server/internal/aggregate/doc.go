// Package aggregate fans the prober out across a client's systems and
// reduces the results.
//
// HealthAggregator probes every system in health mode and rolls the samples
// up into one ClientHealthResult: any down sample makes the client down,
// otherwise any degraded sample makes it degraded, otherwise it is healthy.
// Every sample is persisted independently; a failed write is counted on the
// result and never aborts the fan-out.
//
// PerformanceAggregator probes every system in metrics mode and merges the
// reachable ones into a PerformanceSnapshot. Unreachable endpoints are logged
// and skipped, so total failure yields an all-zero snapshot.
//
// Fanout bounds concurrency: a global semaphore caps probes in flight across
// all clients, an errgroup limit caps probes within one client, and an
// optional token bucket per endpoint host caps request rate.
package aggregate
