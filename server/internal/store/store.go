package store

import (
	"context"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Store is the persistence interface consumed by the engine.
// Implementations must be safe for concurrent use; each call is an
// independent write or read.
type Store interface {
	QueryClient(ctx context.Context, clientID string) (*types.Client, error)
	QueryAllClients(ctx context.Context, includeInactive bool) ([]*types.Client, error)
	UpsertClient(ctx context.Context, c *types.Client) error

	SaveHealthSample(ctx context.Context, s types.HealthSample) error
	QueryHealthSamples(ctx context.Context, clientID string, from, to time.Time) ([]types.HealthSample, error)

	// SavePerformanceSnapshot upserts by (ClientID, MetricDate, Timeframe).
	SavePerformanceSnapshot(ctx context.Context, s types.PerformanceSnapshot) error
	// QuerySnapshotsInWindow returns snapshots of every timeframe whose
	// MetricDate falls between the date of from and to, ordered by MetricDate
	// ascending and then by timeframe length.
	QuerySnapshotsInWindow(ctx context.Context, clientID string, from, to time.Time) ([]types.PerformanceSnapshot, error)

	// UpsertAlertThreshold replaces any threshold with the same (ClientID, MetricName).
	UpsertAlertThreshold(ctx context.Context, t types.AlertThreshold) error
	// QueryAlertThresholds returns the thresholds of clientID, or of every
	// client when clientID is empty.
	QueryAlertThresholds(ctx context.Context, clientID string) ([]types.AlertThreshold, error)

	AppendAlertEvent(ctx context.Context, e types.AlertEvent) error
	QueryAlertEvents(ctx context.Context, clientID string, from, to time.Time) ([]types.AlertEvent, error)

	SaveReport(ctx context.Context, r types.Report) error
	// QueryReports returns the newest reports first. limit <= 0 returns all.
	QueryReports(ctx context.Context, clientID string, limit int) ([]types.Report, error)

	Close()
}

// inRange reports whether t lies within [from, to].
func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
