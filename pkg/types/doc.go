// Package types defines the shared domain types used across the monitoring
// engine: clients and their systems, health samples, performance snapshots,
// alert thresholds and events, and reports. These are the canonical in-memory
// representations, separate from any storage schema or HTTP payload.
package types
