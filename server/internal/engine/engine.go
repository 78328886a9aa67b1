package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/aggregate"
	"github.com/clientpulse/clientpulse/server/internal/alerts"
	"github.com/clientpulse/clientpulse/server/internal/compute"
	"github.com/clientpulse/clientpulse/server/internal/report"
	"github.com/clientpulse/clientpulse/server/internal/store"
)

// Prober probes client endpoints in both modes.
type Prober interface {
	aggregate.HealthProber
	aggregate.MetricsProber
}

// Options tunes the engine. The zero value uses default ROI assumptions,
// an in-memory cooldown with no window, and the log publisher.
type Options struct {
	ROI            compute.Assumptions
	Cooldown       alerts.Cooldown
	CooldownWindow time.Duration
	Publisher      alerts.Publisher
}

// Engine implements the monitoring operations. It is safe for concurrent use.
type Engine struct {
	store    store.Store
	fanout   *aggregate.Fanout
	health   *aggregate.HealthAggregator
	perf     *aggregate.PerformanceAggregator
	trends   *compute.TrendCalculator
	registry alerts.Registry
	alerts   *alerts.Evaluator
	reports  *report.Assembler
	roi      compute.Assumptions
	now      func() time.Time
}

// New wires an Engine over st, probing through p with fan-out bounded by f.
func New(st store.Store, p Prober, f *aggregate.Fanout, opts Options) *Engine {
	if opts.ROI == (compute.Assumptions{}) {
		opts.ROI = compute.DefaultAssumptions()
	}
	health := aggregate.NewHealthAggregator(p, st, f)
	perf := aggregate.NewPerformanceAggregator(p, st, f)
	trends := compute.NewTrendCalculator(st)
	registry := alerts.NewRegistry(health, perf)

	return &Engine{
		store:    st,
		fanout:   f,
		health:   health,
		perf:     perf,
		trends:   trends,
		registry: registry,
		alerts:   alerts.NewEvaluator(registry, st, opts.Cooldown, opts.CooldownWindow, opts.Publisher),
		reports:  report.NewAssembler(health, perf, trends, st, opts.ROI),
		roi:      opts.ROI,
		now:      time.Now,
	}
}

// Poller returns a scheduled evaluator over every stored threshold.
func (e *Engine) Poller(interval time.Duration) *alerts.Poller {
	return alerts.NewPoller(e.store, e.alerts, interval)
}

func (e *Engine) client(ctx context.Context, clientID string) (*types.Client, error) {
	c, err := e.store.QueryClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return c, nil
}

// CheckHealth probes every system of the client and rolls the samples up.
func (e *Engine) CheckHealth(ctx context.Context, clientID string) (types.ClientHealthResult, error) {
	c, err := e.client(ctx, clientID)
	if err != nil {
		return types.ClientHealthResult{}, err
	}
	return e.health.Check(ctx, c), nil
}

// GetPerformance aggregates the timeframe ending now and derives ROI, trend
// and recommendations. An empty timeframe selects 30d. A snapshot that could
// not be persisted is still returned with Persisted set to false.
func (e *Engine) GetPerformance(ctx context.Context, clientID, timeframe string) (types.PerformanceReport, error) {
	tf, err := types.ParseTimeframe(timeframe)
	if err != nil {
		return types.PerformanceReport{}, fmt.Errorf("engine: %w", err)
	}
	c, err := e.client(ctx, clientID)
	if err != nil {
		return types.PerformanceReport{}, err
	}

	snap, err := e.perf.Aggregate(ctx, c, tf)
	persisted := err == nil
	if err != nil {
		slog.Warn("engine: performance snapshot not persisted", "client", clientID, "err", err)
	}

	trend, err := e.trends.Calculate(ctx, c.ID, tf, tf.TrendLookbackDays())
	if err != nil {
		slog.Warn("engine: trend unavailable", "client", clientID, "err", err)
	}

	return types.PerformanceReport{
		Snapshot:        snap,
		ROI:             compute.ROI(snap, e.roi),
		Trend:           trend,
		Recommendations: report.PerformanceRecommendations(snap),
		Persisted:       persisted,
	}, nil
}

// RegisterClient validates and stores c, then runs an initial health check.
// Registering an existing id replaces its record.
func (e *Engine) RegisterClient(ctx context.Context, c *types.Client) (types.ClientHealthResult, error) {
	if err := c.Validate(); err != nil {
		return types.ClientHealthResult{}, fmt.Errorf("engine: %w", err)
	}
	c = c.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = e.now().UTC()
	}
	if err := e.store.UpsertClient(ctx, c); err != nil {
		return types.ClientHealthResult{}, fmt.Errorf("engine: register %q: %w", c.ID, err)
	}
	slog.Info("engine: client registered", "client", c.ID, "systems", len(c.Systems))
	return e.health.Check(ctx, c), nil
}

// ListClients returns the registered clients ordered by id.
func (e *Engine) ListClients(ctx context.Context, includeInactive bool) ([]*types.Client, error) {
	clients, err := e.store.QueryAllClients(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("engine: list clients: %w", err)
	}
	return clients, nil
}
