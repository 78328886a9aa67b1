package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/compute"
)

// Windows of the client details view.
const (
	detailsHealthWindow = 24 * time.Hour
	detailsMetricsDays  = 30
	detailsAlertsWindow = 7 * 24 * time.Hour
	detailsAlertLimit   = 10
)

const (
	// DefaultTrendDays is the system trends window when none is given.
	DefaultTrendDays = 30
	maxTrendDays     = 365
)

// ClientDetails returns the client record with its recent history: health
// samples of the last 24 hours, daily rollups of the last 30 days and the
// 10 newest alerts of the last 7 days. It reads the store only.
func (e *Engine) ClientDetails(ctx context.Context, clientID string) (types.ClientDetails, error) {
	c, err := e.client(ctx, clientID)
	if err != nil {
		return types.ClientDetails{}, err
	}
	now := e.now().UTC()

	samples, err := e.store.QueryHealthSamples(ctx, c.ID, now.Add(-detailsHealthWindow), now)
	if err != nil {
		return types.ClientDetails{}, fmt.Errorf("engine: details %q: %w", c.ID, err)
	}
	slices.SortStableFunc(samples, func(a, b types.HealthSample) int { return b.CheckedAt.Compare(a.CheckedAt) })

	rows, err := e.store.QuerySnapshotsInWindow(ctx, c.ID, now.AddDate(0, 0, -detailsMetricsDays), now)
	if err != nil {
		return types.ClientDetails{}, fmt.Errorf("engine: details %q: %w", c.ID, err)
	}
	daily := compute.OfTimeframe(rows, types.Timeframe24h)
	slices.Reverse(daily)

	events, err := e.store.QueryAlertEvents(ctx, c.ID, now.Add(-detailsAlertsWindow), now)
	if err != nil {
		return types.ClientDetails{}, fmt.Errorf("engine: details %q: %w", c.ID, err)
	}
	slices.SortStableFunc(events, func(a, b types.AlertEvent) int { return b.FiredAt.Compare(a.FiredAt) })
	if len(events) > detailsAlertLimit {
		events = events[:detailsAlertLimit]
	}

	return types.ClientDetails{
		Client:        c,
		HealthSamples: nonNil(samples),
		DailyMetrics:  daily,
		RecentAlerts:  nonNil(events),
	}, nil
}

// SystemTrends groups the stored daily rollups and health samples of every
// client, active or not, by date over the last days days. Zero selects
// DefaultTrendDays.
func (e *Engine) SystemTrends(ctx context.Context, days int) (types.SystemTrends, error) {
	if days == 0 {
		days = DefaultTrendDays
	}
	if days < 0 || days > maxTrendDays {
		return types.SystemTrends{}, fmt.Errorf("engine: days %d out of range [1, %d]: %w", days, maxTrendDays, types.ErrConfiguration)
	}
	clients, err := e.store.QueryAllClients(ctx, true)
	if err != nil {
		return types.SystemTrends{}, fmt.Errorf("engine: list clients: %w", err)
	}

	to := e.now().UTC()
	from := to.AddDate(0, 0, -days)
	var rows []types.PerformanceSnapshot
	var samples []types.HealthSample
	for _, c := range clients {
		r, err := e.store.QuerySnapshotsInWindow(ctx, c.ID, from, to)
		if err != nil {
			return types.SystemTrends{}, fmt.Errorf("engine: trends %q: %w", c.ID, err)
		}
		rows = append(rows, r...)

		s, err := e.store.QueryHealthSamples(ctx, c.ID, from, to)
		if err != nil {
			return types.SystemTrends{}, fmt.Errorf("engine: trends %q: %w", c.ID, err)
		}
		samples = append(samples, s...)
	}

	return types.SystemTrends{
		Days:             days,
		AutomationTrends: compute.DailyAutomations(rows),
		HealthTrends:     compute.DailyHealthTrend(samples),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
