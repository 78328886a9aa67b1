// Package store persists clients, health samples, performance snapshots,
// alert thresholds, alert events and reports.
//
// Store is the interface the engine consumes. MemoryStore keeps everything in
// process with copy-on-read semantics and evicts expired samples, rollups and
// alert events on a background loop (Run). PostgresStore is backed by a pgx connection pool; it
// applies its embedded schema with EnsureSchema.
//
// Performance snapshots are a daily rollup per timeframe: saving a snapshot
// for a (client, metric date, timeframe) that already exists replaces it. Alert thresholds
// are keyed by (client, metric) with the same upsert semantics. Health
// samples, alert events and reports are append-only.
//
// Every backend failure is wrapped with types.ErrPersistence; unknown clients
// are reported as types.ErrNotFound.
package store
