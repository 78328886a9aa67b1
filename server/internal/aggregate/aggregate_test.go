package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/config"
	"github.com/clientpulse/clientpulse/server/internal/prober"
	"github.com/clientpulse/clientpulse/server/internal/store"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// stubProber answers health and metrics calls from per-endpoint tables.
type stubProber struct {
	health  map[string]types.HealthSample
	metrics map[string]types.MetricsSample
	fail    map[string]bool
	delay   time.Duration

	inFlight, peak atomic.Int32
}

func (p *stubProber) enter() {
	n := p.inFlight.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
}

func (p *stubProber) Health(_ context.Context, ep string) types.HealthSample {
	p.enter()
	defer p.inFlight.Add(-1)
	s := p.health[ep]
	s.Endpoint = ep
	return s
}

func (p *stubProber) Metrics(_ context.Context, ep string, _, _ time.Time) (types.MetricsSample, error) {
	p.enter()
	defer p.inFlight.Add(-1)
	if p.fail[ep] {
		return types.MetricsSample{}, fmt.Errorf("stub: %w", types.ErrUpstreamUnavailable)
	}
	return p.metrics[ep], nil
}

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) SaveHealthSample(context.Context, types.HealthSample) error {
	return types.ErrPersistence
}

func (failingStore) SavePerformanceSnapshot(context.Context, types.PerformanceSnapshot) error {
	return types.ErrPersistence
}

func clientWith(urls ...string) *types.Client {
	c := &types.Client{ID: "acme", Name: "Acme", Active: true}
	for i, u := range urls {
		c.Systems = append(c.Systems, types.Endpoint{Name: fmt.Sprintf("sys-%d", i+1), URL: u})
	}
	return c
}

func sample(st types.Status, latency float64) types.HealthSample {
	return types.HealthSample{Status: st, ResponseTimeMs: latency}
}

func TestRollup_DownWinsInAnyOrder(t *testing.T) {
	orders := [][]types.Status{
		{types.StatusHealthy, types.StatusDegraded, types.StatusDown},
		{types.StatusDown, types.StatusDegraded, types.StatusHealthy},
		{types.StatusDegraded, types.StatusDown, types.StatusHealthy},
		{types.StatusHealthy, types.StatusDown, types.StatusDegraded},
	}
	for _, order := range orders {
		var samples []types.HealthSample
		for _, st := range order {
			samples = append(samples, sample(st, 10))
		}
		got, summary, _ := Rollup(samples)
		if got != types.StatusDown {
			t.Errorf("Rollup(%v) = %s, want down", order, got)
		}
		if summary.DownSystems != 1 || summary.DegradedSystems != 1 || summary.HealthySystems != 1 {
			t.Errorf("Rollup(%v) summary = %+v", order, summary)
		}
	}
}

func TestRollup_DegradedWithoutDown(t *testing.T) {
	got, _, avg := Rollup([]types.HealthSample{sample(types.StatusHealthy, 10), sample(types.StatusDegraded, 21)})
	if got != types.StatusDegraded {
		t.Errorf("status = %s, want degraded", got)
	}
	if !almostEqual(avg, 15.5) {
		t.Errorf("avg latency = %v, want 15.5", avg)
	}
}

func TestRollup_Empty(t *testing.T) {
	got, summary, avg := Rollup(nil)
	if got != types.StatusHealthy {
		t.Errorf("status = %s, want healthy", got)
	}
	if summary != (types.HealthSummary{}) || avg != 0 {
		t.Errorf("summary = %+v avg = %v, want zero", summary, avg)
	}
}

func TestHealthCheck_EmptyClient(t *testing.T) {
	st := store.NewMemoryStore(0)
	agg := NewHealthAggregator(&stubProber{}, st, NewFanout(4, 2, 0, 0))
	res := agg.Check(context.Background(), clientWith())
	if res.OverallStatus != types.StatusHealthy || res.Summary.TotalSystems != 0 || len(res.Systems) != 0 {
		t.Errorf("empty client: got %+v", res)
	}
}

func TestHealthCheck_EndToEnd_UptimeScenario(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"uptime_percentage": 100}`))
	}))
	defer up.Close()
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"uptime_percentage": 70, "endpoints_checked": 4, "endpoints_healthy": 3}`))
	}))
	defer flaky.Close()

	st := store.NewMemoryStore(0)
	p := prober.New(config.ProbeConfig{HealthTimeout: 2 * time.Second, MetricsTimeout: 2 * time.Second, PerClientFanout: 2})
	agg := NewHealthAggregator(p, st, NewFanout(4, 2, 0, 0))

	c := clientWith(up.URL, flaky.URL)
	res := agg.Check(context.Background(), c)

	if res.OverallStatus != types.StatusDown {
		t.Errorf("overall = %s, want down", res.OverallStatus)
	}
	if res.Summary.DownSystems != 1 || res.Summary.HealthySystems != 1 {
		t.Errorf("summary = %+v, want down=1 healthy=1", res.Summary)
	}
	if res.Systems[0].SystemName != "sys-1" || res.Systems[1].EndpointsHealthy != 3 {
		t.Errorf("samples out of order or incomplete: %+v", res.Systems)
	}

	stored, _ := st.QueryHealthSamples(context.Background(), "acme", time.Time{}, time.Now().Add(time.Hour))
	if len(stored) != 2 {
		t.Errorf("persisted samples = %d, want 2", len(stored))
	}
}

func TestHealthCheck_PersistenceFailureDoesNotAbort(t *testing.T) {
	p := &stubProber{health: map[string]types.HealthSample{
		"a": sample(types.StatusHealthy, 5),
		"b": sample(types.StatusDegraded, 7),
	}}
	agg := NewHealthAggregator(p, failingStore{}, NewFanout(4, 2, 0, 0))
	res := agg.Check(context.Background(), clientWith("a", "b"))

	if len(res.Systems) != 2 || res.OverallStatus != types.StatusDegraded {
		t.Errorf("result = %+v", res)
	}
	if res.PersistenceErrors != 2 {
		t.Errorf("PersistenceErrors = %d, want 2", res.PersistenceErrors)
	}
}

func TestHealthCheck_ProbesConcurrently(t *testing.T) {
	p := &stubProber{delay: 200 * time.Millisecond, health: map[string]types.HealthSample{}}
	agg := NewHealthAggregator(p, store.NewMemoryStore(0), NewFanout(8, 4, 0, 0))

	start := time.Now()
	res := agg.Check(context.Background(), clientWith("a", "b", "c", "d"))
	elapsed := time.Since(start)

	if len(res.Systems) != 4 {
		t.Fatalf("systems = %d, want 4", len(res.Systems))
	}
	if elapsed > 700*time.Millisecond {
		t.Errorf("4 probes of 200ms took %v; fan-out is serialised", elapsed)
	}
	if p.peak.Load() > 4 {
		t.Errorf("peak in-flight = %d, want <= 4", p.peak.Load())
	}
}

func TestHealthCheck_CancelledContextYieldsDownSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := store.NewMemoryStore(0)
	agg := NewHealthAggregator(&stubProber{}, st, NewFanout(1, 1, 0, 0))
	res := agg.Check(ctx, clientWith("a", "b"))
	for _, s := range res.Systems {
		if s.Status != types.StatusDown || s.Error == "" {
			t.Errorf("sample = %+v, want down with error", s)
		}
	}

	stored, _ := st.QueryHealthSamples(context.Background(), "acme", time.Time{}, time.Now().Add(time.Hour))
	if len(stored) != 2 {
		t.Fatalf("persisted samples = %d, want 2", len(stored))
	}
	for _, s := range stored {
		if s.Status != types.StatusDown || s.SystemName == "" {
			t.Errorf("persisted sample = %+v, want down with system name", s)
		}
	}
}

func TestHealthCheck_CancelledContextCountsPersistenceErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agg := NewHealthAggregator(&stubProber{}, failingStore{}, NewFanout(1, 1, 0, 0))
	if res := agg.Check(ctx, clientWith("a", "b", "c")); res.PersistenceErrors != 3 {
		t.Errorf("PersistenceErrors = %d, want 3", res.PersistenceErrors)
	}
}

func TestFanout_GlobalBoundAcrossClients(t *testing.T) {
	p := &stubProber{delay: 50 * time.Millisecond, health: map[string]types.HealthSample{}}
	f := NewFanout(2, 2, 0, 0)
	agg := NewHealthAggregator(p, store.NewMemoryStore(0), f)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Check(context.Background(), clientWith("a", "b", "c"))
		}()
	}
	wg.Wait()
	if p.peak.Load() > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", p.peak.Load())
	}
}

func TestPerformance_MergeScenario(t *testing.T) {
	p := &stubProber{metrics: map[string]types.MetricsSample{
		"a": {TotalAutomations: 10, SuccessfulAutomations: 9},
		"b": {TotalAutomations: 10, SuccessfulAutomations: 9},
	}}
	agg := NewPerformanceAggregator(p, store.NewMemoryStore(0), NewFanout(4, 2, 0, 0))
	snap := agg.Collect(context.Background(), clientWith("a", "b"), types.Timeframe24h, time.Now().Add(-24*time.Hour), time.Now())

	if snap.TotalAutomations != 20 || snap.SuccessfulAutomations != 18 {
		t.Errorf("totals = %d/%d, want 20/18", snap.TotalAutomations, snap.SuccessfulAutomations)
	}
	if !almostEqual(snap.SuccessRate, 90) {
		t.Errorf("success rate = %v, want 90", snap.SuccessRate)
	}
}

func TestPerformance_OrderIndependent(t *testing.T) {
	p := &stubProber{metrics: map[string]types.MetricsSample{
		"a": {TotalAutomations: 7, SuccessfulAutomations: 5, TotalProcessingTime: 70, CostSavings: 1.5, EfficiencyGains: map[string]float64{"hours": 2}},
		"b": {TotalAutomations: 3, SuccessfulAutomations: 3, TotalProcessingTime: 9, CostSavings: 2.25, EfficiencyGains: map[string]float64{"hours": 1, "errors": 4}},
	}}
	agg := NewPerformanceAggregator(p, store.NewMemoryStore(0), NewFanout(4, 2, 0, 0))
	now := time.Now()
	ab := agg.Collect(context.Background(), clientWith("a", "b"), types.Timeframe7d, now.Add(-time.Hour), now)
	ba := agg.Collect(context.Background(), clientWith("b", "a"), types.Timeframe7d, now.Add(-time.Hour), now)

	if ab.TotalAutomations != ba.TotalAutomations || !almostEqual(ab.CostSavings, ba.CostSavings) ||
		!almostEqual(ab.AvgProcessingTime, ba.AvgProcessingTime) || !almostEqual(ab.SuccessRate, ba.SuccessRate) {
		t.Errorf("[a,b] = %+v\n[b,a] = %+v", ab, ba)
	}
	if !almostEqual(ab.EfficiencyGains["hours"], 3) || !almostEqual(ba.EfficiencyGains["errors"], 4) {
		t.Errorf("efficiency gains = %v / %v", ab.EfficiencyGains, ba.EfficiencyGains)
	}
}

func TestPerformance_PartialAndTotalFailure(t *testing.T) {
	p := &stubProber{
		metrics: map[string]types.MetricsSample{"ok": {TotalAutomations: 4, SuccessfulAutomations: 4}},
		fail:    map[string]bool{"bad": true, "worse": true},
	}
	agg := NewPerformanceAggregator(p, store.NewMemoryStore(0), NewFanout(4, 2, 0, 0))
	now := time.Now()

	partial := agg.Collect(context.Background(), clientWith("ok", "bad"), types.Timeframe24h, now.Add(-time.Hour), now)
	if partial.TotalAutomations != 4 || partial.EndpointsReporting != 1 || partial.EndpointsTotal != 2 {
		t.Errorf("partial = %+v", partial)
	}

	none := agg.Collect(context.Background(), clientWith("bad", "worse"), types.Timeframe24h, now.Add(-time.Hour), now)
	if none.TotalAutomations != 0 || none.SuccessRate != 0 || none.EndpointsReporting != 0 {
		t.Errorf("total failure = %+v, want zero snapshot", none)
	}
}

func TestPerformance_AggregatePersistsDailyRollup(t *testing.T) {
	p := &stubProber{metrics: map[string]types.MetricsSample{"a": {TotalAutomations: 2, SuccessfulAutomations: 1}}}
	st := store.NewMemoryStore(0)
	agg := NewPerformanceAggregator(p, st, NewFanout(4, 2, 0, 0))
	now := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if _, err := agg.Aggregate(context.Background(), clientWith("a"), types.Timeframe24h); err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
	}
	rows, _ := st.QuerySnapshotsInWindow(context.Background(), "acme", now.AddDate(0, 0, -1), now)
	if len(rows) != 1 {
		t.Errorf("stored rows = %d, want 1 per day", len(rows))
	}
	if !rows[0].WindowStart.Equal(now.Add(-24*time.Hour)) {
		t.Errorf("window start = %v", rows[0].WindowStart)
	}
}

func TestPerformance_AggregatePersistenceError(t *testing.T) {
	p := &stubProber{metrics: map[string]types.MetricsSample{"a": {TotalAutomations: 2}}}
	agg := NewPerformanceAggregator(p, failingStore{}, NewFanout(4, 2, 0, 0))
	snap, err := agg.Aggregate(context.Background(), clientWith("a"), types.Timeframe24h)
	if !errors.Is(err, types.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if snap.TotalAutomations != 2 {
		t.Errorf("snapshot not returned alongside error: %+v", snap)
	}
}

func TestHostLimiter_PerHostBuckets(t *testing.T) {
	l := NewHostLimiter(0.001, 1)
	if !l.Allow("a:80") {
		t.Fatal("first request to a: want allowed")
	}
	if l.Allow("a:80") {
		t.Error("second request to a: want throttled")
	}
	if !l.Allow("b:80") {
		t.Error("first request to b: want allowed")
	}
}

func TestHostOf(t *testing.T) {
	if got := hostOf("http://crm.acme.test:8000/api"); got != "crm.acme.test:8000" {
		t.Errorf("hostOf = %q", got)
	}
	if got := hostOf("not a url"); got != "not a url" {
		t.Errorf("hostOf(raw) = %q", got)
	}
}
