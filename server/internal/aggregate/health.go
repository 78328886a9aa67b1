package aggregate

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/compute"
	"github.com/clientpulse/clientpulse/server/internal/metrics"
)

// HealthProber probes one endpoint in health mode. It never fails.
type HealthProber interface {
	Health(ctx context.Context, endpoint string) types.HealthSample
}

// SampleWriter persists health samples.
type SampleWriter interface {
	SaveHealthSample(ctx context.Context, s types.HealthSample) error
}

// HealthAggregator checks every system of a client concurrently.
type HealthAggregator struct {
	prober HealthProber
	store  SampleWriter
	fanout *Fanout
	now    func() time.Time // injectable for deterministic tests
}

// NewHealthAggregator wires a HealthAggregator.
func NewHealthAggregator(p HealthProber, s SampleWriter, f *Fanout) *HealthAggregator {
	return &HealthAggregator{prober: p, store: s, fanout: f, now: time.Now}
}

// Check probes every system of c and rolls the samples up. Samples keep the
// client's system order. Every sample is persisted, including the down
// samples of probes that were never admitted. It never fails; persistence
// failures are counted in PersistenceErrors.
func (a *HealthAggregator) Check(ctx context.Context, c *types.Client) types.ClientHealthResult {
	samples := make([]types.HealthSample, len(c.Systems))
	var persistErrs atomic.Int32

	errs := a.fanout.Each(ctx, endpointsOf(c), func(ctx context.Context, i int) error {
		s := a.prober.Health(ctx, c.Systems[i].URL)
		s.ClientID = c.ID
		s.SystemName = c.SystemName(i)
		samples[i] = s
		if !a.save(ctx, s) {
			persistErrs.Add(1)
		}
		return nil
	})

	// A probe that could not be admitted (caller gone) still counts as down
	// and is recorded past the caller's cancellation.
	for i, err := range errs {
		if err == nil {
			continue
		}
		samples[i] = types.HealthSample{
			ClientID:   c.ID,
			SystemName: c.SystemName(i),
			Endpoint:   c.Systems[i].URL,
			Status:     types.StatusDown,
			Error:      err.Error(),
			CheckedAt:  a.now().UTC(),
		}
		if !a.save(context.WithoutCancel(ctx), samples[i]) {
			persistErrs.Add(1)
		}
	}

	status, summary, avg := Rollup(samples)
	metrics.ClientStatus.WithLabelValues(c.ID).Set(metrics.StatusValue(string(status)))

	return types.ClientHealthResult{
		ClientID:          c.ID,
		ClientName:        c.Name,
		OverallStatus:     status,
		Systems:           samples,
		Summary:           summary,
		AvgResponseTimeMs: avg,
		CheckedAt:         a.now().UTC(),
		PersistenceErrors: int(persistErrs.Load()),
	}
}

func (a *HealthAggregator) save(ctx context.Context, s types.HealthSample) bool {
	if err := a.store.SaveHealthSample(ctx, s); err != nil {
		metrics.StoreErrors.WithLabelValues("save_health_sample").Inc()
		slog.Warn("aggregate: save health sample failed",
			"client", s.ClientID, "system", s.SystemName, "err", err)
		return false
	}
	return true
}

// Rollup reduces samples to an overall status, per-status counts and the
// average latency. The result does not depend on sample order; an empty
// list is healthy with zero counts.
func Rollup(samples []types.HealthSample) (types.Status, types.HealthSummary, float64) {
	overall := types.StatusHealthy
	summary := types.HealthSummary{TotalSystems: len(samples)}
	var latency float64

	for _, s := range samples {
		overall = types.Worse(overall, s.Status)
		switch s.Status {
		case types.StatusHealthy:
			summary.HealthySystems++
		case types.StatusDegraded:
			summary.DegradedSystems++
		default:
			summary.DownSystems++
		}
		latency += s.ResponseTimeMs
	}

	var avg float64
	if len(samples) > 0 {
		avg = compute.Round2(latency / float64(len(samples)))
	}
	return overall, summary, avg
}

func endpointsOf(c *types.Client) []string {
	out := make([]string, len(c.Systems))
	for i, s := range c.Systems {
		out[i] = s.URL
	}
	return out
}
