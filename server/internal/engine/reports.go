package engine

import (
	"context"
	"fmt"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// GenerateReport assembles and stores a new report. An empty kind selects
// monthly.
func (e *Engine) GenerateReport(ctx context.Context, clientID, kind string, includeRecommendations bool) (types.Report, error) {
	k, err := types.ParseReportKind(kind)
	if err != nil {
		return types.Report{}, fmt.Errorf("engine: %w", err)
	}
	c, err := e.client(ctx, clientID)
	if err != nil {
		return types.Report{}, err
	}
	r, err := e.reports.Generate(ctx, c, k, includeRecommendations)
	if err != nil {
		return r, fmt.Errorf("engine: %w", err)
	}
	return r, nil
}

// ListReports returns the client's stored reports, newest first.
func (e *Engine) ListReports(ctx context.Context, clientID string, limit int) ([]types.Report, error) {
	if _, err := e.client(ctx, clientID); err != nil {
		return nil, err
	}
	out, err := e.store.QueryReports(ctx, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("engine: list reports: %w", err)
	}
	return out, nil
}
