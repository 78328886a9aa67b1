package types

import (
	"errors"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWorse_DownDominates(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusHealthy, StatusHealthy, StatusHealthy},
		{StatusHealthy, StatusDegraded, StatusDegraded},
		{StatusDegraded, StatusHealthy, StatusDegraded},
		{StatusDown, StatusDegraded, StatusDown},
		{StatusDegraded, StatusDown, StatusDown},
		{StatusDown, StatusHealthy, StatusDown},
	}
	for _, tc := range tests {
		if got := Worse(tc.a, tc.b); got != tc.want {
			t.Errorf("Worse(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestClient_SystemNameFallback(t *testing.T) {
	c := &Client{Systems: []Endpoint{{Name: "billing", URL: "http://a"}, {URL: "http://b"}}}
	if got := c.SystemName(0); got != "billing" {
		t.Errorf("SystemName(0) = %q, want billing", got)
	}
	if got := c.SystemName(1); got != "system_2" {
		t.Errorf("SystemName(1) = %q, want system_2", got)
	}
}

func TestClient_Validate(t *testing.T) {
	if err := (&Client{}).Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty id: got %v, want ErrConfiguration", err)
	}
	c := &Client{ID: "acme", Systems: []Endpoint{{Name: "x"}}}
	if err := c.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing endpoint: got %v, want ErrConfiguration", err)
	}
	c.Systems[0].URL = "http://x"
	if err := c.Validate(); err != nil {
		t.Errorf("valid client: got %v", err)
	}
}

func TestClient_CloneIsDeep(t *testing.T) {
	c := &Client{ID: "acme", Systems: []Endpoint{{Name: "a", URL: "u"}}, AlertPreferences: map[string]string{"k": "v"}}
	cp := c.Clone()
	cp.Systems[0].Name = "changed"
	cp.AlertPreferences["k"] = "changed"
	if c.Systems[0].Name != "a" || c.AlertPreferences["k"] != "v" {
		t.Error("Clone shares state with the original")
	}
}

func TestSnapshot_MergeIsCommutative(t *testing.T) {
	a := MetricsSample{TotalAutomations: 10, SuccessfulAutomations: 9, CostSavings: 5, EfficiencyGains: map[string]float64{"x": 1}}
	b := MetricsSample{TotalAutomations: 4, SuccessfulAutomations: 2, TotalProcessingTime: 8, EfficiencyGains: map[string]float64{"x": 2, "y": 3}}

	ab := NewSnapshot("c", Timeframe24h, time.Time{}, time.Time{})
	ab.Add(a)
	ab.Add(b)
	ab.Derive()

	ba := NewSnapshot("c", Timeframe24h, time.Time{}, time.Time{})
	ba.Add(b)
	ba.Add(a)
	ba.Derive()

	if ab.TotalAutomations != ba.TotalAutomations || ab.SuccessfulAutomations != ba.SuccessfulAutomations {
		t.Errorf("counters differ: %+v vs %+v", ab, ba)
	}
	if !almostEqual(ab.SuccessRate, ba.SuccessRate) || !almostEqual(ab.AvgProcessingTime, ba.AvgProcessingTime) {
		t.Errorf("derived fields differ: %+v vs %+v", ab, ba)
	}
	for k, v := range ab.EfficiencyGains {
		if !almostEqual(ba.EfficiencyGains[k], v) {
			t.Errorf("efficiency_gains[%s]: %v vs %v", k, v, ba.EfficiencyGains[k])
		}
	}
	if !almostEqual(ab.EfficiencyGains["x"], 3) || !almostEqual(ab.EfficiencyGains["y"], 3) {
		t.Errorf("efficiency_gains = %v, want x=3 y=3", ab.EfficiencyGains)
	}
}

func TestSnapshot_DeriveZeroTotal(t *testing.T) {
	s := NewSnapshot("c", Timeframe24h, time.Time{}, time.Time{})
	s.Derive()
	if s.SuccessRate != 0 || s.AvgProcessingTime != 0 {
		t.Errorf("zero total: rate=%v avg=%v, want 0/0", s.SuccessRate, s.AvgProcessingTime)
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("")
	if err != nil || tf != Timeframe30d {
		t.Errorf("empty: got %q, %v", tf, err)
	}
	if _, err := ParseTimeframe("1y"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("1y: got %v, want ErrConfiguration", err)
	}
	lookbacks := map[Timeframe]int{Timeframe24h: 7, Timeframe7d: 30, Timeframe30d: 90, Timeframe90d: 90}
	for tf, want := range lookbacks {
		if got := tf.TrendLookbackDays(); got != want {
			t.Errorf("%s.TrendLookbackDays() = %d, want %d", tf, got, want)
		}
	}
}

func TestReportKind_PerformanceTimeframe(t *testing.T) {
	for _, k := range []ReportKind{ReportDaily, ReportWeekly, ReportMonthly} {
		if got := k.PerformanceTimeframe(); got != Timeframe30d {
			t.Errorf("%s: got %s, want 30d", k, got)
		}
	}
	if got := ReportQuarterly.PerformanceTimeframe(); got != Timeframe90d {
		t.Errorf("quarterly: got %s, want 90d", got)
	}
}

func TestMeanUptime_NoSystems(t *testing.T) {
	r := &ClientHealthResult{}
	if _, ok := r.MeanUptime(); ok {
		t.Error("MeanUptime with no systems: ok = true, want false")
	}
	r.Systems = []HealthSample{{UptimePct: 100}, {UptimePct: 70}}
	if v, ok := r.MeanUptime(); !ok || !almostEqual(v, 85) {
		t.Errorf("MeanUptime = %v, %v; want 85, true", v, ok)
	}
}
