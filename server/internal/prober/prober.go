package prober

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/compute"
	"github.com/clientpulse/clientpulse/server/internal/config"
	"github.com/clientpulse/clientpulse/server/internal/metrics"
)

// Probe modes.
const (
	ModeHealth  = "health"
	ModeMetrics = "metrics"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Default sample values when a health body omits a field.
const (
	defaultEndpointsChecked = 1
	defaultEndpointsHealthy = 1
	defaultUptimePct        = 100.0
)

// TimeoutError is the error text recorded on a sample whose probe timed out.
const TimeoutError = "timeout"

// Prober calls client endpoints. It is safe for concurrent use.
type Prober struct {
	client         *http.Client
	healthTimeout  time.Duration
	metricsTimeout time.Duration
	now            func() time.Time
}

// New returns a Prober configured from the probe section of the config.
func New(cfg config.ProbeConfig) *Prober {
	return &Prober{
		client:         buildHTTPClient(cfg),
		healthTimeout:  cfg.HealthTimeout,
		metricsTimeout: cfg.MetricsTimeout,
		now:            time.Now,
	}
}

// healthBody is the optional JSON payload of GET /health.
type healthBody struct {
	EndpointsChecked *int     `json:"endpoints_checked"`
	EndpointsHealthy *int     `json:"endpoints_healthy"`
	UptimePercentage *float64 `json:"uptime_percentage"`
}

// Health probes {endpoint}/health. It never fails: every error path yields a
// sample with status down. ClientID and SystemName are left for the caller.
func (p *Prober) Health(ctx context.Context, endpoint string) types.HealthSample {
	sample := types.HealthSample{
		Endpoint:         endpoint,
		EndpointsChecked: defaultEndpointsChecked,
		CheckedAt:        p.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
	defer cancel()

	start := time.Now()
	body, status, err := p.get(ctx, joinPath(endpoint, "/health"), "application/json")
	elapsed := time.Since(start)
	metrics.ProbeDuration.WithLabelValues(ModeHealth).Observe(elapsed.Seconds())

	switch {
	case err != nil && isTimeout(err):
		sample.Status = types.StatusDown
		sample.ResponseTimeMs = float64(p.healthTimeout.Milliseconds())
		sample.Error = TimeoutError
	case err != nil:
		sample.Status = types.StatusDown
		sample.Error = err.Error()
	case status < 200 || status > 299:
		sample.Status = types.StatusDown
		sample.ResponseTimeMs = millis(elapsed)
		sample.Error = fmt.Sprintf("HTTP %d", status)
	default:
		if derr := decodeHealth(body, &sample); derr != nil {
			sample = types.HealthSample{
				Endpoint:         endpoint,
				Status:           types.StatusDown,
				EndpointsChecked: defaultEndpointsChecked,
				Error:            derr.Error(),
				CheckedAt:        sample.CheckedAt,
			}
			break
		}
		sample.ResponseTimeMs = millis(elapsed)
		sample.Status = compute.StatusFromUptime(sample.UptimePct)
	}

	if sample.Error != "" {
		slog.Warn("prober: health probe failed", "endpoint", endpoint, "err", sample.Error)
	}
	metrics.ProbeResults.WithLabelValues(ModeHealth, string(sample.Status)).Inc()
	return sample
}

// decodeHealth fills the count and uptime fields of s from a health body.
// An empty body is treated as a body with every field absent.
func decodeHealth(body []byte, s *types.HealthSample) error {
	var hb healthBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &hb); err != nil {
			return fmt.Errorf("decode health body: %w", err)
		}
	}
	s.EndpointsChecked = defaultEndpointsChecked
	s.EndpointsHealthy = defaultEndpointsHealthy
	s.UptimePct = defaultUptimePct
	if hb.EndpointsChecked != nil {
		s.EndpointsChecked = *hb.EndpointsChecked
	}
	if hb.EndpointsHealthy != nil {
		s.EndpointsHealthy = *hb.EndpointsHealthy
	}
	if hb.UptimePercentage != nil {
		s.UptimePct = *hb.UptimePercentage
	}
	return nil
}

// Metrics fetches {endpoint}/metrics for the window [from, to). Failures are
// returned wrapped in types.ErrUpstreamUnavailable.
func (p *Prober) Metrics(ctx context.Context, endpoint string, from, to time.Time) (types.MetricsSample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.metricsTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("start_date", from.UTC().Format(time.RFC3339))
	q.Set("end_date", to.UTC().Format(time.RFC3339))
	target := joinPath(endpoint, "/metrics") + "?" + q.Encode()

	accept := "application/json, " + string(expfmt.NewFormat(expfmt.TypeTextPlain)) + ";q=0.5"

	start := time.Now()
	sample, err := p.fetchMetrics(ctx, target, accept)
	metrics.ProbeDuration.WithLabelValues(ModeMetrics).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProbeResults.WithLabelValues(ModeMetrics, "error").Inc()
		if isTimeout(err) {
			err = errors.New(TimeoutError)
		}
		return types.MetricsSample{}, fmt.Errorf("prober: metrics %s: %v: %w", endpoint, err, types.ErrUpstreamUnavailable)
	}
	metrics.ProbeResults.WithLabelValues(ModeMetrics, "ok").Inc()
	return sample, nil
}

func (p *Prober) fetchMetrics(ctx context.Context, target, accept string) (types.MetricsSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return types.MetricsSample{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.MetricsSample{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.MetricsSample{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return parsePromSample(body)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return types.MetricsSample{}, fmt.Errorf("read body: %w", err)
	}
	return decodeMetrics(data)
}

// metricsBody is the optional JSON payload of GET /metrics. Counts are
// decoded as floats so that 10 and 10.0 are both accepted.
type metricsBody struct {
	TotalAutomations      float64         `json:"total_automations"`
	SuccessfulAutomations float64         `json:"successful_automations"`
	FailedAutomations     float64         `json:"failed_automations"`
	TotalProcessingTime   float64         `json:"total_processing_time"`
	CostSavings           float64         `json:"cost_savings"`
	EfficiencyGains       json.RawMessage `json:"efficiency_gains"`
}

// decodeMetrics parses a JSON metrics body. Absent fields are zero and
// non-numeric efficiency entries are ignored.
func decodeMetrics(data []byte) (types.MetricsSample, error) {
	var mb metricsBody
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &mb); err != nil {
			return types.MetricsSample{}, fmt.Errorf("decode metrics body: %w", err)
		}
	}

	out := types.MetricsSample{
		TotalAutomations:      roundCount(mb.TotalAutomations),
		SuccessfulAutomations: roundCount(mb.SuccessfulAutomations),
		FailedAutomations:     roundCount(mb.FailedAutomations),
		TotalProcessingTime:   mb.TotalProcessingTime,
		CostSavings:           mb.CostSavings,
		EfficiencyGains:       make(map[string]float64),
	}

	var gains map[string]any
	if len(mb.EfficiencyGains) > 0 && json.Unmarshal(mb.EfficiencyGains, &gains) == nil {
		for k, v := range gains {
			if f, ok := v.(float64); ok {
				out.EfficiencyGains[k] = f
			}
		}
	}
	return out, nil
}

// get performs a GET and returns the (size-capped) body and status code.
func (p *Prober) get(ctx context.Context, target, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// isTimeout reports whether err came from a deadline rather than a
// connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func joinPath(endpoint, suffix string) string {
	return strings.TrimRight(endpoint, "/") + suffix
}

func millis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}

func roundCount(v float64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int64(math.Round(v))
}
