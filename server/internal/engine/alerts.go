package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// AlertConfiguration is the stored threshold and its immediate test.
type AlertConfiguration struct {
	Threshold  types.AlertThreshold  `json:"alert_config"`
	TestResult types.AlertTestResult `json:"test_result"`
}

// ConfigureAlert stores the single active threshold for (client, metric),
// replacing any previous one, and tests it against the live value.
// An unknown client, metric, comparator or channel wraps
// types.ErrConfiguration.
func (e *Engine) ConfigureAlert(ctx context.Context, clientID, metric string, threshold float64, comparator, channel string) (AlertConfiguration, error) {
	c, err := e.store.QueryClient(ctx, clientID)
	if errors.Is(err, types.ErrNotFound) {
		return AlertConfiguration{}, fmt.Errorf("engine: unregistered client %q: %w", clientID, types.ErrConfiguration)
	}
	if err != nil {
		return AlertConfiguration{}, fmt.Errorf("engine: %w", err)
	}
	if _, err := e.registry.Lookup(metric); err != nil {
		return AlertConfiguration{}, fmt.Errorf("engine: %w", err)
	}
	cmp, err := types.ParseComparator(comparator)
	if err != nil {
		return AlertConfiguration{}, fmt.Errorf("engine: %w", err)
	}
	ch, err := types.ParseChannel(channel)
	if err != nil {
		return AlertConfiguration{}, fmt.Errorf("engine: %w", err)
	}

	t := types.AlertThreshold{
		ClientID:   c.ID,
		MetricName: metric,
		Threshold:  threshold,
		Comparator: cmp,
		Channel:    ch,
		Active:     true,
		UpdatedAt:  e.now().UTC(),
	}
	if err := e.store.UpsertAlertThreshold(ctx, t); err != nil {
		return AlertConfiguration{}, fmt.Errorf("engine: save threshold %s: %w", t.Key(), err)
	}
	slog.Info("engine: alert configured", "client", c.ID, "metric", metric, "comparator", cmp, "threshold", threshold)

	res, err := e.alerts.Test(ctx, c, metric, threshold, cmp)
	if err != nil {
		return AlertConfiguration{Threshold: t}, fmt.Errorf("engine: %w", err)
	}
	return AlertConfiguration{Threshold: t, TestResult: res}, nil
}

// TestAlert reports whether the given threshold would fire now without
// storing anything.
func (e *Engine) TestAlert(ctx context.Context, clientID, metric string, threshold float64, comparator string) (types.AlertTestResult, error) {
	cmp, err := types.ParseComparator(comparator)
	if err != nil {
		return types.AlertTestResult{}, fmt.Errorf("engine: %w", err)
	}
	c, err := e.client(ctx, clientID)
	if err != nil {
		return types.AlertTestResult{}, err
	}
	res, err := e.alerts.Test(ctx, c, metric, threshold, cmp)
	if err != nil {
		return types.AlertTestResult{}, fmt.Errorf("engine: %w", err)
	}
	return res, nil
}
