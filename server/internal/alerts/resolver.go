package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Reading is the live value of one metric for one client.
type Reading struct {
	Value float64
	// Defined is false when the metric has no value for the client.
	Defined bool
	// Status is the overall client status when the reading came from a
	// health check, empty otherwise.
	Status types.Status
}

// Resolver fetches the live value of one metric.
type Resolver interface {
	Resolve(ctx context.Context, c *types.Client) (Reading, error)
}

// HealthChecker runs a health fan-out for a client.
type HealthChecker interface {
	Check(ctx context.Context, c *types.Client) types.ClientHealthResult
}

// PerformanceCollector merges a client's metrics for a window without
// persisting them.
type PerformanceCollector interface {
	Collect(ctx context.Context, c *types.Client, tf types.Timeframe, from, to time.Time) types.PerformanceSnapshot
}

// successRateResolver reads the success rate of the last 24 hours.
type successRateResolver struct {
	perf PerformanceCollector
	now  func() time.Time
}

func (r successRateResolver) Resolve(ctx context.Context, c *types.Client) (Reading, error) {
	to := r.now().UTC()
	snap := r.perf.Collect(ctx, c, types.Timeframe24h, to.Add(-types.Timeframe24h.Duration()), to)
	return Reading{Value: snap.SuccessRate, Defined: true}, nil
}

// responseTimeResolver reads the average latency of a fresh health check.
type responseTimeResolver struct {
	health HealthChecker
}

func (r responseTimeResolver) Resolve(ctx context.Context, c *types.Client) (Reading, error) {
	res := r.health.Check(ctx, c)
	return Reading{Value: res.AvgResponseTimeMs, Defined: true, Status: res.OverallStatus}, nil
}

// uptimeResolver reads the mean uptime of a fresh health check. A client
// without systems has no uptime.
type uptimeResolver struct {
	health HealthChecker
}

func (r uptimeResolver) Resolve(ctx context.Context, c *types.Client) (Reading, error) {
	res := r.health.Check(ctx, c)
	v, ok := res.MeanUptime()
	return Reading{Value: v, Defined: ok, Status: res.OverallStatus}, nil
}

// Registry maps metric names to resolvers.
type Registry map[string]Resolver

// NewRegistry returns a registry with the built-in metrics.
func NewRegistry(health HealthChecker, perf PerformanceCollector) Registry {
	return Registry{
		types.MetricSuccessRate:  successRateResolver{perf: perf, now: time.Now},
		types.MetricResponseTime: responseTimeResolver{health: health},
		types.MetricUptime:       uptimeResolver{health: health},
	}
}

// Lookup returns the resolver for metric. Unknown names wrap
// types.ErrConfiguration.
func (r Registry) Lookup(metric string) (Resolver, error) {
	res, ok := r[metric]
	if !ok {
		return nil, fmt.Errorf("alerts: unknown metric %q (known: %v): %w", metric, r.Names(), types.ErrConfiguration)
	}
	return res, nil
}

// Names returns the registered metric names in sorted order.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
