package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/aggregate"
	"github.com/clientpulse/clientpulse/server/internal/store"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// fakeProber answers from per-URL tables. Unknown URLs are healthy with
// default counts and report no metrics.
type fakeProber struct {
	uptime  map[string]float64
	metrics map[string]types.MetricsSample
}

func (p fakeProber) Health(_ context.Context, ep string) types.HealthSample {
	u, ok := p.uptime[ep]
	if !ok {
		u = 100
	}
	st := types.StatusHealthy
	switch {
	case u < 80:
		st = types.StatusDown
	case u < 95:
		st = types.StatusDegraded
	}
	return types.HealthSample{Endpoint: ep, Status: st, UptimePct: u, ResponseTimeMs: 40, EndpointsChecked: 1, EndpointsHealthy: 1}
}

func (p fakeProber) Metrics(_ context.Context, ep string, _, _ time.Time) (types.MetricsSample, error) {
	m, ok := p.metrics[ep]
	if !ok {
		return types.MetricsSample{}, fmt.Errorf("no metrics at %s: %w", ep, types.ErrUpstreamUnavailable)
	}
	return m, nil
}

// flakyStore fails snapshot writes for the listed clients.
type flakyStore struct {
	*store.MemoryStore
	failSnapshots map[string]bool
}

func (s flakyStore) SavePerformanceSnapshot(ctx context.Context, ps types.PerformanceSnapshot) error {
	if s.failSnapshots[ps.ClientID] {
		return fmt.Errorf("disk full: %w", types.ErrPersistence)
	}
	return s.MemoryStore.SavePerformanceSnapshot(ctx, ps)
}

func newTestEngine(t *testing.T, st store.Store, p Prober) *Engine {
	t.Helper()
	return New(st, p, aggregate.NewFanout(8, 4, 0, 0), Options{})
}

func register(t *testing.T, e *Engine, c *types.Client) {
	t.Helper()
	if _, err := e.RegisterClient(context.Background(), c); err != nil {
		t.Fatalf("RegisterClient(%s): %v", c.ID, err)
	}
}

func client(id string, urls ...string) *types.Client {
	c := &types.Client{ID: id, Name: strings.ToUpper(id), Active: true}
	for _, u := range urls {
		c.Systems = append(c.Systems, types.Endpoint{URL: u})
	}
	return c
}

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore(0), fakeProber{uptime: map[string]float64{"up": 100, "flaky": 70}})
	register(t, e, client("acme", "up", "flaky"))

	res, err := e.CheckHealth(ctx, "acme")
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if res.OverallStatus != types.StatusDown || res.Summary.DownSystems != 1 || res.Summary.HealthySystems != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.Systems[1].SystemName != "system_2" {
		t.Errorf("fallback name = %q, want system_2", res.Systems[1].SystemName)
	}

	if _, err := e.CheckHealth(ctx, "nobody"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown client: err = %v, want ErrNotFound", err)
	}
}

func TestGetPerformance(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0)
	e := newTestEngine(t, st, fakeProber{metrics: map[string]types.MetricsSample{
		"a": {TotalAutomations: 10, SuccessfulAutomations: 9, CostSavings: 5},
		"b": {TotalAutomations: 10, SuccessfulAutomations: 9, CostSavings: 5},
	}})
	register(t, e, client("acme", "a", "b"))

	for i := 0; i < 2; i++ {
		got, err := e.GetPerformance(ctx, "acme", "24h")
		if err != nil {
			t.Fatalf("GetPerformance: %v", err)
		}
		s := got.Snapshot
		if s.TotalAutomations != 20 || s.SuccessfulAutomations != 18 || !almostEqual(s.SuccessRate, 90) {
			t.Errorf("snapshot = %+v", s)
		}
		// 20 * 15 / 60 = 5 h; 5 * 25 = 125 labour; + 10 direct.
		if !almostEqual(got.ROI.TimeSavedHours, 5) || !almostEqual(got.ROI.TotalValue, 135) {
			t.Errorf("roi = %+v", got.ROI)
		}
		if got.Trend.Status != types.TrendInsufficientData || got.Trend.PeriodDays != 7 {
			t.Errorf("trend = %+v", got.Trend)
		}
		if !got.Persisted {
			t.Error("Persisted = false")
		}
		if len(got.Recommendations) != 1 || !strings.Contains(got.Recommendations[0], "90.0%") {
			t.Errorf("recommendations = %v", got.Recommendations)
		}
	}

	rows, _ := st.QuerySnapshotsInWindow(ctx, "acme", time.Now().AddDate(0, 0, -2), time.Now().Add(time.Hour))
	if len(rows) != 1 {
		t.Errorf("stored rows = %d, want one daily rollup", len(rows))
	}
}

func TestGetPerformance_TrendComparesOneTimeframe(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0)
	e := newTestEngine(t, st, fakeProber{metrics: map[string]types.MetricsSample{
		"a": {TotalAutomations: 10, SuccessfulAutomations: 10},
	}})
	register(t, e, client("acme", "a"))

	now := time.Now().UTC()
	yesterday := types.NewSnapshot("acme", types.Timeframe24h, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	yesterday.TotalAutomations, yesterday.SuccessfulAutomations = 10, 10
	yesterday.Derive()
	if err := st.SavePerformanceSnapshot(ctx, yesterday); err != nil {
		t.Fatal(err)
	}

	monthly, err := e.GetPerformance(ctx, "acme", "30d")
	if err != nil {
		t.Fatalf("GetPerformance(30d): %v", err)
	}
	if monthly.Trend.Status != types.TrendInsufficientData || monthly.Trend.DataPoints != 1 {
		t.Errorf("30d trend mixed in daily rollups: %+v", monthly.Trend)
	}

	daily, err := e.GetPerformance(ctx, "acme", "24h")
	if err != nil {
		t.Fatalf("GetPerformance(24h): %v", err)
	}
	if daily.Trend.Status != types.TrendOK || daily.Trend.DataPoints != 2 || daily.Trend.Direction != types.DirectionStable {
		t.Errorf("24h trend = %+v", daily.Trend)
	}
}

func TestGetPerformance_Errors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore(0), fakeProber{})
	register(t, e, client("acme"))

	if _, err := e.GetPerformance(ctx, "acme", "1y"); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("bad timeframe: err = %v, want ErrConfiguration", err)
	}
	if _, err := e.GetPerformance(ctx, "nobody", "7d"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown client: err = %v, want ErrNotFound", err)
	}

	got, err := e.GetPerformance(ctx, "acme", "")
	if err != nil {
		t.Fatalf("default timeframe: %v", err)
	}
	if got.Snapshot.Timeframe != types.Timeframe30d || got.Trend.PeriodDays != 90 {
		t.Errorf("default timeframe = %s lookback %d", got.Snapshot.Timeframe, got.Trend.PeriodDays)
	}
	if got.Snapshot.SuccessRate != 0 || got.Snapshot.TotalAutomations != 0 {
		t.Errorf("client without systems should yield a zero snapshot: %+v", got.Snapshot)
	}
}

func TestGetPerformance_PersistenceFailureIsFlagged(t *testing.T) {
	st := flakyStore{MemoryStore: store.NewMemoryStore(0), failSnapshots: map[string]bool{"acme": true}}
	e := newTestEngine(t, st, fakeProber{metrics: map[string]types.MetricsSample{"a": {TotalAutomations: 3, SuccessfulAutomations: 3}}})
	register(t, e, client("acme", "a"))

	got, err := e.GetPerformance(context.Background(), "acme", "7d")
	if err != nil {
		t.Fatalf("GetPerformance: %v", err)
	}
	if got.Persisted || got.Snapshot.TotalAutomations != 3 {
		t.Errorf("got persisted=%v snapshot=%+v", got.Persisted, got.Snapshot)
	}
}

func TestConfigureAlert_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0)
	e := newTestEngine(t, st, fakeProber{uptime: map[string]float64{"a": 90}})
	register(t, e, client("acme", "a"))

	if _, err := e.ConfigureAlert(ctx, "acme", "uptime", 95, "less_than", "slack"); err != nil {
		t.Fatalf("first ConfigureAlert: %v", err)
	}
	cfg, err := e.ConfigureAlert(ctx, "acme", "uptime", 80, "less_than", "")
	if err != nil {
		t.Fatalf("second ConfigureAlert: %v", err)
	}

	thresholds, _ := st.QueryAlertThresholds(ctx, "acme")
	if len(thresholds) != 1 {
		t.Fatalf("thresholds = %d, want 1", len(thresholds))
	}
	if thresholds[0].Threshold != 80 || thresholds[0].Channel != types.ChannelEmail || !thresholds[0].Active {
		t.Errorf("threshold = %+v", thresholds[0])
	}
	if cfg.TestResult.WouldFire || !almostEqual(cfg.TestResult.CurrentValue, 90) {
		t.Errorf("test result = %+v, want uptime 90 not below 80", cfg.TestResult)
	}
}

func TestConfigureAlert_Rejections(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0)
	e := newTestEngine(t, st, fakeProber{})
	register(t, e, client("acme", "a"))

	tests := []struct {
		name                         string
		client, metric, cmp, channel string
	}{
		{"unregistered client", "ghost", "uptime", "less_than", ""},
		{"unknown metric", "acme", "cpu", "less_than", ""},
		{"unknown comparator", "acme", "uptime", "around", ""},
		{"unknown channel", "acme", "uptime", "less_than", "pigeon"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ConfigureAlert(ctx, tc.client, tc.metric, 1, tc.cmp, tc.channel)
			if !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
	if all, _ := st.QueryAlertThresholds(ctx, ""); len(all) != 0 {
		t.Errorf("rejected configurations were stored: %+v", all)
	}
}

func TestTestAlert(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore(0), fakeProber{uptime: map[string]float64{"a": 95.005}})
	register(t, e, client("acme", "a"))
	register(t, e, client("empty"))

	res, err := e.TestAlert(ctx, "acme", "uptime", 95, "equals")
	if err != nil || !res.WouldFire {
		t.Errorf("equals within 0.01: res=%+v err=%v", res, err)
	}
	res, err = e.TestAlert(ctx, "acme", "uptime", 94.985, "equals")
	if err != nil || res.WouldFire {
		t.Errorf("equals at 0.02: res=%+v err=%v", res, err)
	}

	res, err = e.TestAlert(ctx, "empty", "uptime", 50, "less_than")
	if err != nil || res.Defined || res.WouldFire {
		t.Errorf("uptime without systems: res=%+v err=%v", res, err)
	}

	if _, err := e.TestAlert(ctx, "acme", "latency_p99", 1, "greater_than"); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("unknown metric: err = %v", err)
	}
	if _, err := e.TestAlert(ctx, "ghost", "uptime", 1, "greater_than"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown client: err = %v", err)
	}
}

func TestGenerateReport(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore(0), fakeProber{
		uptime:  map[string]float64{"b": 10},
		metrics: map[string]types.MetricsSample{"a": {TotalAutomations: 4, SuccessfulAutomations: 4}},
	})
	register(t, e, client("acme", "a", "b"))

	r, err := e.GenerateReport(ctx, "acme", "quarterly", true)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if r.Kind != types.ReportQuarterly || r.Payload.Performance.AutomationSummary.TotalAutomations != 4 {
		t.Errorf("report = %+v", r)
	}
	if len(r.Payload.SystemHealth.CriticalIssues) != 1 || r.Payload.SystemHealth.CriticalIssues[0].System != "system_2" {
		t.Errorf("critical issues = %+v", r.Payload.SystemHealth.CriticalIssues)
	}
	if r.Payload.Recommendations == nil {
		t.Error("recommendations missing")
	}

	if _, err := e.GenerateReport(ctx, "acme", "", false); err != nil {
		t.Fatalf("default kind: %v", err)
	}
	list, err := e.ListReports(ctx, "acme", 10)
	if err != nil || len(list) != 2 || list[0].Kind != types.ReportMonthly {
		t.Errorf("ListReports = %d reports err=%v", len(list), err)
	}

	if _, err := e.GenerateReport(ctx, "acme", "hourly", false); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("unknown kind: err = %v", err)
	}
	if _, err := e.GenerateReport(ctx, "ghost", "daily", false); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown client: err = %v", err)
	}
}

func TestGetAllClientsStatus(t *testing.T) {
	ctx := context.Background()
	st := flakyStore{MemoryStore: store.NewMemoryStore(0), failSnapshots: map[string]bool{"echo": true}}
	e := newTestEngine(t, st, fakeProber{
		uptime: map[string]float64{"d1": 85, "x1": 50},
		metrics: map[string]types.MetricsSample{
			"h1": {TotalAutomations: 10, SuccessfulAutomations: 10},
			"d1": {TotalAutomations: 10, SuccessfulAutomations: 6},
			"e1": {TotalAutomations: 100, SuccessfulAutomations: 0},
		},
	})
	register(t, e, client("delta", "d1"))
	register(t, e, client("alpha", "h1"))
	register(t, e, client("xray", "x1"))
	register(t, e, client("echo", "e1"))
	dormant := client("zulu", "z1")
	dormant.Active = false
	register(t, e, dormant)

	got, err := e.GetAllClientsStatus(ctx, false)
	if err != nil {
		t.Fatalf("GetAllClientsStatus: %v", err)
	}

	ids := make([]string, len(got.Clients))
	for i, c := range got.Clients {
		ids[i] = c.ClientID
	}
	if strings.Join(ids, ",") != "alpha,delta,echo,xray" {
		t.Errorf("clients = %v", ids)
	}

	s := got.Summary
	if s.TotalClients != 4 || s.HealthyClients != 1 || s.DegradedClients != 1 || s.DownClients != 1 || s.ErrorClients != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.TotalAutomationsToday != 20 || !almostEqual(s.OverallSuccessRate, 80) {
		t.Errorf("totals = %d / %v, want 20 / 80", s.TotalAutomationsToday, s.OverallSuccessRate)
	}
	if got.Clients[2].Status != types.ClientStatusError || got.Clients[2].Error == "" {
		t.Errorf("echo = %+v", got.Clients[2])
	}

	want := []string{"Urgent: 1 clients have systems down", "Review: 1 clients show degraded performance"}
	if strings.Join(got.QuickActions, "|") != strings.Join(want, "|") {
		t.Errorf("quick actions = %v", got.QuickActions)
	}

	withInactive, _ := e.GetAllClientsStatus(ctx, true)
	if withInactive.Summary.TotalClients != 5 {
		t.Errorf("include inactive: total = %d, want 5", withInactive.Summary.TotalClients)
	}
}

func TestGetAllClientsStatus_Empty(t *testing.T) {
	e := newTestEngine(t, store.NewMemoryStore(0), fakeProber{})
	got, err := e.GetAllClientsStatus(context.Background(), false)
	if err != nil {
		t.Fatalf("GetAllClientsStatus: %v", err)
	}
	if got.Summary.TotalClients != 0 || got.Summary.OverallSuccessRate != 0 || len(got.QuickActions) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestRegisterClient(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0)
	e := newTestEngine(t, st, fakeProber{})

	if _, err := e.RegisterClient(ctx, &types.Client{Name: "no id"}); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("missing id: err = %v", err)
	}
	bad := client("acme")
	bad.Systems = []types.Endpoint{{Name: "crm"}}
	if _, err := e.RegisterClient(ctx, bad); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("missing endpoint: err = %v", err)
	}

	res, err := e.RegisterClient(ctx, client("acme", "a"))
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	if res.ClientID != "acme" || res.OverallStatus != types.StatusHealthy {
		t.Errorf("initial check = %+v", res)
	}
	stored, err := st.QueryClient(ctx, "acme")
	if err != nil || stored.CreatedAt.IsZero() {
		t.Errorf("stored = %+v err=%v", stored, err)
	}
}

func TestPoller_FiresThroughEngine(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0)
	e := newTestEngine(t, st, fakeProber{uptime: map[string]float64{"a": 60}})
	register(t, e, client("acme", "a"))
	if _, err := e.ConfigureAlert(ctx, "acme", "uptime", 95, "less_than", "log"); err != nil {
		t.Fatalf("ConfigureAlert: %v", err)
	}

	if fired := e.Poller(time.Minute).Tick(ctx); fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	events, _ := st.QueryAlertEvents(ctx, "acme", time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if len(events) != 1 || events[0].Severity != types.SeverityCritical {
		t.Errorf("events = %+v", events)
	}
}
