package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/metrics"
)

// EventWriter appends fired events to history.
type EventWriter interface {
	AppendAlertEvent(ctx context.Context, e types.AlertEvent) error
}

// Evaluator compares live metric values against thresholds.
//
// Evaluator is safe for concurrent use.
type Evaluator struct {
	resolvers Registry
	events    EventWriter
	cooldown  Cooldown
	window    time.Duration
	pub       Publisher
	now       func() time.Time
}

// NewEvaluator wires an Evaluator. A zero window disables cooldown.
func NewEvaluator(r Registry, events EventWriter, cd Cooldown, window time.Duration, pub Publisher) *Evaluator {
	if cd == nil {
		cd = NewMemoryCooldown()
	}
	if pub == nil {
		pub = LogPublisher{}
	}
	return &Evaluator{
		resolvers: r,
		events:    events,
		cooldown:  cd,
		window:    window,
		pub:       pub,
		now:       time.Now,
	}
}

// Test reports whether the threshold would fire right now. Nothing is
// recorded. Unknown metrics wrap types.ErrConfiguration.
func (e *Evaluator) Test(ctx context.Context, c *types.Client, metric string, threshold float64, cmp types.Comparator) (types.AlertTestResult, error) {
	res, _, err := e.test(ctx, c, metric, threshold, cmp)
	return res, err
}

func (e *Evaluator) test(ctx context.Context, c *types.Client, metric string, threshold float64, cmp types.Comparator) (types.AlertTestResult, Reading, error) {
	resolver, err := e.resolvers.Lookup(metric)
	if err != nil {
		return types.AlertTestResult{}, Reading{}, err
	}
	r, err := resolver.Resolve(ctx, c)
	if err != nil {
		return types.AlertTestResult{}, Reading{}, fmt.Errorf("alerts: resolve %s for %q: %w", metric, c.ID, err)
	}

	fires := r.Defined && compare(r.Value, cmp, threshold)
	outcome := "ok"
	switch {
	case !r.Defined:
		outcome = "undefined"
	case fires:
		outcome = "fire"
	}
	metrics.AlertEvaluations.WithLabelValues(metric, outcome).Inc()

	return types.AlertTestResult{
		ClientID:     c.ID,
		MetricName:   metric,
		Threshold:    threshold,
		Comparator:   cmp,
		CurrentValue: r.Value,
		Defined:      r.Defined,
		WouldFire:    fires,
		Message:      describe(metric, r, threshold),
	}, r, nil
}

// Evaluate runs one threshold for real. When it fires and the cooldown
// allows, an event is appended to history, published, and returned.
// A nil event with a nil error means nothing fired.
func (e *Evaluator) Evaluate(ctx context.Context, c *types.Client, t types.AlertThreshold) (*types.AlertEvent, error) {
	res, r, err := e.test(ctx, c, t.MetricName, t.Threshold, t.Comparator)
	if err != nil || !res.WouldFire {
		return nil, err
	}

	allowed, err := e.cooldown.Allow(ctx, t.Key(), e.window)
	if err != nil {
		// Fail open: a duplicate event beats a silent one.
		slog.Warn("alerts: cooldown check failed, firing anyway", "key", t.Key(), "err", err)
		allowed = true
	}
	if !allowed {
		slog.Debug("alerts: suppressed by cooldown", "key", t.Key())
		return nil, nil
	}

	ev := types.AlertEvent{
		ID:          uuid.NewString(),
		ClientID:    c.ID,
		MetricName:  t.MetricName,
		Threshold:   t.Threshold,
		Comparator:  t.Comparator,
		Channel:     t.Channel,
		ActualValue: r.Value,
		Message:     fmt.Sprintf("%s %s %s %.2f (actual %.2f)", c.ID, t.MetricName, t.Comparator, t.Threshold, r.Value),
		Severity:    severity(t.MetricName, r, t.Threshold),
		FiredAt:     e.now().UTC(),
	}
	if err := e.events.AppendAlertEvent(ctx, ev); err != nil {
		metrics.StoreErrors.WithLabelValues("append_alert_event").Inc()
		return &ev, fmt.Errorf("alerts: append event for %q: %w", c.ID, err)
	}
	metrics.AlertsFired.WithLabelValues(t.MetricName, ev.Severity).Inc()
	if err := e.pub.Publish(ctx, ev); err != nil {
		slog.Error("alerts: publish failed", "id", ev.ID, "client", c.ID, "err", err)
	}
	return &ev, nil
}
