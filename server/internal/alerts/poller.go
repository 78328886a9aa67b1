package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// ThresholdSource lists the clients and thresholds to evaluate.
type ThresholdSource interface {
	QueryAllClients(ctx context.Context, includeInactive bool) ([]*types.Client, error)
	QueryAlertThresholds(ctx context.Context, clientID string) ([]types.AlertThreshold, error)
}

// Poller evaluates every active threshold of every active client on a fixed
// interval.
type Poller struct {
	src      ThresholdSource
	eval     *Evaluator
	interval time.Duration
}

// NewPoller returns a Poller. An interval of zero disables Run.
func NewPoller(src ThresholdSource, eval *Evaluator, interval time.Duration) *Poller {
	return &Poller{src: src, eval: eval, interval: interval}
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		slog.Info("alerts: poller disabled")
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick evaluates all thresholds once and returns the number of events fired.
// A failure on one client or threshold is logged and skipped.
func (p *Poller) Tick(ctx context.Context) int {
	clients, err := p.src.QueryAllClients(ctx, false)
	if err != nil {
		slog.Error("alerts: list clients failed", "err", err)
		return 0
	}

	fired := 0
	for _, c := range clients {
		thresholds, err := p.src.QueryAlertThresholds(ctx, c.ID)
		if err != nil {
			slog.Warn("alerts: list thresholds failed", "client", c.ID, "err", err)
			continue
		}
		for _, t := range thresholds {
			if !t.Active {
				continue
			}
			ev, err := p.eval.Evaluate(ctx, c, t)
			if err != nil {
				slog.Warn("alerts: evaluation failed", "client", c.ID, "metric", t.MetricName, "err", err)
			}
			if ev != nil {
				fired++
			}
		}
	}
	slog.Debug("alerts: poll complete", "clients", len(clients), "fired", fired)
	return fired
}
