package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/metrics"
)

// MetricsProber fetches one endpoint's counters for a window.
type MetricsProber interface {
	Metrics(ctx context.Context, endpoint string, from, to time.Time) (types.MetricsSample, error)
}

// SnapshotWriter persists performance snapshots.
type SnapshotWriter interface {
	SavePerformanceSnapshot(ctx context.Context, s types.PerformanceSnapshot) error
}

// PerformanceAggregator merges metrics across a client's systems.
type PerformanceAggregator struct {
	prober MetricsProber
	store  SnapshotWriter
	fanout *Fanout
	now    func() time.Time // injectable for deterministic tests
}

// NewPerformanceAggregator wires a PerformanceAggregator.
func NewPerformanceAggregator(p MetricsProber, s SnapshotWriter, f *Fanout) *PerformanceAggregator {
	return &PerformanceAggregator{prober: p, store: s, fanout: f, now: time.Now}
}

// Collect fetches and merges metrics for the window [from, to) without
// persisting. Endpoints that fail are logged and skipped.
func (a *PerformanceAggregator) Collect(ctx context.Context, c *types.Client, tf types.Timeframe, from, to time.Time) types.PerformanceSnapshot {
	results := make([]types.MetricsSample, len(c.Systems))

	errs := a.fanout.Each(ctx, endpointsOf(c), func(ctx context.Context, i int) error {
		m, err := a.prober.Metrics(ctx, c.Systems[i].URL, from, to)
		if err != nil {
			return err
		}
		results[i] = m
		return nil
	})

	snap := types.NewSnapshot(c.ID, tf, from, to)
	snap.EndpointsTotal = len(c.Systems)
	for i, m := range results {
		if errs[i] != nil {
			slog.Warn("aggregate: metrics unavailable, skipping endpoint",
				"client", c.ID, "system", c.SystemName(i), "err", errs[i])
			continue
		}
		snap.Add(m)
		snap.EndpointsReporting++
	}
	snap.Derive()
	return snap
}

// Aggregate collects the timeframe ending now and persists the result as the
// daily rollup. When persisting fails the snapshot is still returned along
// with an error wrapping types.ErrPersistence.
func (a *PerformanceAggregator) Aggregate(ctx context.Context, c *types.Client, tf types.Timeframe) (types.PerformanceSnapshot, error) {
	to := a.now().UTC()
	from := to.Add(-tf.Duration())
	snap := a.Collect(ctx, c, tf, from, to)

	if err := a.store.SavePerformanceSnapshot(ctx, snap); err != nil {
		metrics.StoreErrors.WithLabelValues("save_performance_snapshot").Inc()
		slog.Warn("aggregate: save performance snapshot failed", "client", c.ID, "err", err)
		return snap, fmt.Errorf("aggregate: performance %q: %w", c.ID, err)
	}
	return snap, nil
}
