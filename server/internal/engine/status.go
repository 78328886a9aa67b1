package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/compute"
)

// clientRow is one client's contribution to the all-clients view.
type clientRow struct {
	summary    types.ClientSummary
	successful int64
}

// GetAllClientsStatus checks every client concurrently and summarises the
// result. A client that cannot be evaluated appears with status "error";
// only a failure to list the clients fails the call.
func (e *Engine) GetAllClientsStatus(ctx context.Context, includeInactive bool) (types.AllClientsStatus, error) {
	clients, err := e.store.QueryAllClients(ctx, includeInactive)
	if err != nil {
		return types.AllClientsStatus{}, fmt.Errorf("engine: list clients: %w", err)
	}

	rows := make([]clientRow, len(clients))
	e.fanout.Clients(ctx, len(clients), func(ctx context.Context, i int) {
		rows[i] = e.clientRow(ctx, clients[i])
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].summary.ClientID < rows[j].summary.ClientID })

	out := types.AllClientsStatus{
		Clients:     make([]types.ClientSummary, len(rows)),
		GeneratedAt: e.now().UTC(),
	}
	var successful int64
	sum := &out.Summary
	sum.TotalClients = len(rows)
	for i, r := range rows {
		out.Clients[i] = r.summary
		switch r.summary.Status {
		case string(types.StatusHealthy):
			sum.HealthyClients++
		case string(types.StatusDegraded):
			sum.DegradedClients++
		case string(types.StatusDown):
			sum.DownClients++
		default:
			sum.ErrorClients++
			continue
		}
		sum.TotalAutomationsToday += r.summary.AutomationsToday
		successful += r.successful
	}
	sum.OverallSuccessRate = compute.Round2(compute.Percent(successful, sum.TotalAutomationsToday))
	out.QuickActions = quickActions(*sum)
	return out, nil
}

func (e *Engine) clientRow(ctx context.Context, c *types.Client) clientRow {
	row := clientRow{summary: types.ClientSummary{
		ClientID: c.ID,
		Name:     c.Name,
		Industry: c.Industry,
	}}
	if err := ctx.Err(); err != nil {
		row.summary.Status = types.ClientStatusError
		row.summary.Error = err.Error()
		return row
	}

	health := e.health.Check(ctx, c)
	row.summary.Status = string(health.OverallStatus)
	row.summary.Systems = health.Summary
	row.summary.AvgResponseTimeMs = health.AvgResponseTimeMs

	snap, err := e.perf.Aggregate(ctx, c, types.Timeframe24h)
	row.summary.AutomationsToday = snap.TotalAutomations
	row.summary.SuccessRate = compute.Round2(snap.SuccessRate)
	row.summary.CostSavingsToday = compute.Round2(snap.CostSavings)
	row.successful = snap.SuccessfulAutomations
	if err != nil {
		slog.Warn("engine: client status incomplete", "client", c.ID, "err", err)
		row.summary.Status = types.ClientStatusError
		row.summary.Error = err.Error()
	}
	return row
}

func quickActions(s types.DashboardSummary) []string {
	out := []string{}
	if s.DownClients > 0 {
		out = append(out, fmt.Sprintf("Urgent: %d clients have systems down", s.DownClients))
	}
	if s.DegradedClients > 0 {
		out = append(out, fmt.Sprintf("Review: %d clients show degraded performance", s.DegradedClients))
	}
	return out
}
