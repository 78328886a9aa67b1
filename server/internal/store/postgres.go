package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clientpulse/clientpulse/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(schemaSQL) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return persistErr("ensure schema", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- clients ---

const clientColumns = `client_id, name, industry, contact_email, alert_preferences, systems, active, created_at`

func (s *PostgresStore) QueryClient(ctx context.Context, clientID string) (*types.Client, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE client_id = $1`, clientID)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: client %q: %w", clientID, types.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("query client", err)
	}
	return c, nil
}

func (s *PostgresStore) QueryAllClients(ctx context.Context, includeInactive bool) ([]*types.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE active OR $1 ORDER BY client_id`, includeInactive)
	if err != nil {
		return nil, persistErr("query clients", err)
	}
	defer rows.Close()

	var out []*types.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, persistErr("scan client", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query clients", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertClient(ctx context.Context, c *types.Client) error {
	prefs, systems, err := encodeClient(c)
	if err != nil {
		return persistErr("encode client", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO clients (client_id, name, industry, contact_email, alert_preferences, systems, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (client_id) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			contact_email = EXCLUDED.contact_email,
			alert_preferences = EXCLUDED.alert_preferences,
			systems = EXCLUDED.systems,
			active = EXCLUDED.active`,
		c.ID, c.Name, c.Industry, c.ContactEmail, prefs, systems, c.Active,
	)
	if err != nil {
		return persistErr("upsert client", err)
	}
	return nil
}

// --- health samples ---

func (s *PostgresStore) SaveHealthSample(ctx context.Context, hs types.HealthSample) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO health_checks (client_id, system_name, endpoint, status, response_time_ms,
			endpoints_checked, endpoints_healthy, uptime_percentage, error_message, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		hs.ClientID, hs.SystemName, hs.Endpoint, string(hs.Status), hs.ResponseTimeMs,
		hs.EndpointsChecked, hs.EndpointsHealthy, hs.UptimePct, hs.Error, hs.CheckedAt,
	)
	if err != nil {
		return persistErr("save health sample", err)
	}
	return nil
}

func (s *PostgresStore) QueryHealthSamples(ctx context.Context, clientID string, from, to time.Time) ([]types.HealthSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, system_name, endpoint, status, response_time_ms,
			endpoints_checked, endpoints_healthy, uptime_percentage, error_message, checked_at
		FROM health_checks
		WHERE client_id = $1 AND checked_at BETWEEN $2 AND $3
		ORDER BY checked_at`, clientID, from, to)
	if err != nil {
		return nil, persistErr("query health samples", err)
	}
	defer rows.Close()

	var out []types.HealthSample
	for rows.Next() {
		var hs types.HealthSample
		var status string
		if err := rows.Scan(&hs.ClientID, &hs.SystemName, &hs.Endpoint, &status, &hs.ResponseTimeMs,
			&hs.EndpointsChecked, &hs.EndpointsHealthy, &hs.UptimePct, &hs.Error, &hs.CheckedAt); err != nil {
			return nil, persistErr("scan health sample", err)
		}
		hs.Status = types.Status(status)
		out = append(out, hs)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query health samples", err)
	}
	return out, nil
}

// --- performance snapshots ---

func (s *PostgresStore) SavePerformanceSnapshot(ctx context.Context, ps types.PerformanceSnapshot) error {
	gains, err := json.Marshal(ps.EfficiencyGains)
	if err != nil {
		return persistErr("encode efficiency gains", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO performance_metrics (client_id, metric_date, timeframe, window_start, window_end,
			total_automations, successful_automations, failed_automations, total_processing_time,
			cost_savings, efficiency_gains, success_rate, avg_processing_time, endpoints_total, endpoints_reporting)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (client_id, metric_date, timeframe) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			total_automations = EXCLUDED.total_automations,
			successful_automations = EXCLUDED.successful_automations,
			failed_automations = EXCLUDED.failed_automations,
			total_processing_time = EXCLUDED.total_processing_time,
			cost_savings = EXCLUDED.cost_savings,
			efficiency_gains = EXCLUDED.efficiency_gains,
			success_rate = EXCLUDED.success_rate,
			avg_processing_time = EXCLUDED.avg_processing_time,
			endpoints_total = EXCLUDED.endpoints_total,
			endpoints_reporting = EXCLUDED.endpoints_reporting`,
		ps.ClientID, types.DateOf(ps.MetricDate), string(ps.Timeframe), ps.WindowStart, ps.WindowEnd,
		ps.TotalAutomations, ps.SuccessfulAutomations, ps.FailedAutomations, ps.TotalProcessingTime,
		ps.CostSavings, gains, ps.SuccessRate, ps.AvgProcessingTime, ps.EndpointsTotal, ps.EndpointsReporting,
	)
	if err != nil {
		return persistErr("save performance snapshot", err)
	}
	return nil
}

func (s *PostgresStore) QuerySnapshotsInWindow(ctx context.Context, clientID string, from, to time.Time) ([]types.PerformanceSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, metric_date, timeframe, window_start, window_end,
			total_automations, successful_automations, failed_automations, total_processing_time,
			cost_savings, efficiency_gains, success_rate, avg_processing_time, endpoints_total, endpoints_reporting
		FROM performance_metrics
		WHERE client_id = $1 AND metric_date BETWEEN $2 AND $3
		ORDER BY metric_date, window_end - window_start`, clientID, types.DateOf(from), to)
	if err != nil {
		return nil, persistErr("query snapshots", err)
	}
	defer rows.Close()

	var out []types.PerformanceSnapshot
	for rows.Next() {
		var ps types.PerformanceSnapshot
		var tf string
		var gains []byte
		if err := rows.Scan(&ps.ClientID, &ps.MetricDate, &tf, &ps.WindowStart, &ps.WindowEnd,
			&ps.TotalAutomations, &ps.SuccessfulAutomations, &ps.FailedAutomations, &ps.TotalProcessingTime,
			&ps.CostSavings, &gains, &ps.SuccessRate, &ps.AvgProcessingTime, &ps.EndpointsTotal, &ps.EndpointsReporting); err != nil {
			return nil, persistErr("scan snapshot", err)
		}
		ps.Timeframe = types.Timeframe(tf)
		if err := json.Unmarshal(gains, &ps.EfficiencyGains); err != nil {
			return nil, persistErr("decode efficiency gains", err)
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query snapshots", err)
	}
	return out, nil
}

// --- alert thresholds and events ---

func (s *PostgresStore) UpsertAlertThreshold(ctx context.Context, t types.AlertThreshold) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_thresholds (client_id, metric_name, threshold_value, comparison_operator,
			notification_channel, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (client_id, metric_name) DO UPDATE SET
			threshold_value = EXCLUDED.threshold_value,
			comparison_operator = EXCLUDED.comparison_operator,
			notification_channel = EXCLUDED.notification_channel,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		t.ClientID, t.MetricName, t.Threshold, string(t.Comparator), t.Channel, t.Active, t.UpdatedAt,
	)
	if err != nil {
		return persistErr("upsert alert threshold", err)
	}
	return nil
}

func (s *PostgresStore) QueryAlertThresholds(ctx context.Context, clientID string) ([]types.AlertThreshold, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, metric_name, threshold_value, comparison_operator, notification_channel, is_active, updated_at
		FROM alert_thresholds
		WHERE $1 = '' OR client_id = $1
		ORDER BY client_id, metric_name`, clientID)
	if err != nil {
		return nil, persistErr("query alert thresholds", err)
	}
	defer rows.Close()

	var out []types.AlertThreshold
	for rows.Next() {
		var t types.AlertThreshold
		var cmp string
		if err := rows.Scan(&t.ClientID, &t.MetricName, &t.Threshold, &cmp, &t.Channel, &t.Active, &t.UpdatedAt); err != nil {
			return nil, persistErr("scan alert threshold", err)
		}
		t.Comparator = types.Comparator(cmp)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query alert thresholds", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendAlertEvent(ctx context.Context, e types.AlertEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_history (id, client_id, metric_name, threshold_value, comparison_operator,
			notification_channel, actual_value, message, severity, fired_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ClientID, e.MetricName, e.Threshold, string(e.Comparator),
		e.Channel, e.ActualValue, e.Message, e.Severity, e.FiredAt, e.Acknowledged,
	)
	if err != nil {
		return persistErr("append alert event", err)
	}
	return nil
}

func (s *PostgresStore) QueryAlertEvents(ctx context.Context, clientID string, from, to time.Time) ([]types.AlertEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, metric_name, threshold_value, comparison_operator,
			notification_channel, actual_value, message, severity, fired_at, acknowledged
		FROM alert_history
		WHERE client_id = $1 AND fired_at BETWEEN $2 AND $3
		ORDER BY fired_at`, clientID, from, to)
	if err != nil {
		return nil, persistErr("query alert events", err)
	}
	defer rows.Close()

	var out []types.AlertEvent
	for rows.Next() {
		var e types.AlertEvent
		var cmp string
		if err := rows.Scan(&e.ID, &e.ClientID, &e.MetricName, &e.Threshold, &cmp,
			&e.Channel, &e.ActualValue, &e.Message, &e.Severity, &e.FiredAt, &e.Acknowledged); err != nil {
			return nil, persistErr("scan alert event", err)
		}
		e.Comparator = types.Comparator(cmp)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query alert events", err)
	}
	return out, nil
}

// --- reports ---

func (s *PostgresStore) SaveReport(ctx context.Context, r types.Report) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return persistErr("encode report", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO client_reports (id, client_id, report_type, report_period, period_start, period_end, report_data, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.ClientID, string(r.Kind), r.PeriodString(), r.PeriodStart, r.PeriodEnd, payload, r.GeneratedAt,
	)
	if err != nil {
		return persistErr("save report", err)
	}
	return nil
}

func (s *PostgresStore) QueryReports(ctx context.Context, clientID string, limit int) ([]types.Report, error) {
	q := `SELECT id, client_id, report_type, period_start, period_end, report_data, generated_at
		FROM client_reports WHERE client_id = $1 ORDER BY generated_at DESC`
	args := []any{clientID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, persistErr("query reports", err)
	}
	defer rows.Close()

	var out []types.Report
	for rows.Next() {
		var r types.Report
		var kind string
		var payload []byte
		if err := rows.Scan(&r.ID, &r.ClientID, &kind, &r.PeriodStart, &r.PeriodEnd, &payload, &r.GeneratedAt); err != nil {
			return nil, persistErr("scan report", err)
		}
		r.Kind = types.ReportKind(kind)
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, persistErr("decode report", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query reports", err)
	}
	return out, nil
}

// --- helpers ---

func scanClient(row pgx.Row) (*types.Client, error) {
	var c types.Client
	var prefs, systems []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Industry, &c.ContactEmail, &prefs, &systems, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeClient(&c, prefs, systems); err != nil {
		return nil, err
	}
	return &c, nil
}

// encodeClient marshals the JSONB columns of a client.
func encodeClient(c *types.Client) (prefs, systems []byte, err error) {
	p := c.AlertPreferences
	if p == nil {
		p = map[string]string{}
	}
	if prefs, err = json.Marshal(p); err != nil {
		return nil, nil, err
	}
	sys := c.Systems
	if sys == nil {
		sys = []types.Endpoint{}
	}
	if systems, err = json.Marshal(sys); err != nil {
		return nil, nil, err
	}
	return prefs, systems, nil
}

// decodeClient unmarshals the JSONB columns of a client.
func decodeClient(c *types.Client, prefs, systems []byte) error {
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &c.AlertPreferences); err != nil {
			return fmt.Errorf("decode alert preferences: %w", err)
		}
	}
	if len(systems) > 0 {
		if err := json.Unmarshal(systems, &c.Systems); err != nil {
			return fmt.Errorf("decode systems: %w", err)
		}
	}
	return nil
}

// schemaStatements splits the embedded schema into individual statements.
func schemaStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func persistErr(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, types.ErrPersistence, err)
}
