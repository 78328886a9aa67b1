package types

import (
	"fmt"
	"time"
)

// Comparator decides how a metric value is tested against a threshold.
type Comparator string

const (
	GreaterThan Comparator = "greater_than"
	LessThan    Comparator = "less_than"
	Equals      Comparator = "equals"
)

// ParseComparator validates s.
func ParseComparator(s string) (Comparator, error) {
	switch c := Comparator(s); c {
	case GreaterThan, LessThan, Equals:
		return c, nil
	default:
		return "", fmt.Errorf("unknown comparator %q: want greater_than|less_than|equals: %w", s, ErrConfiguration)
	}
}

// Alert metric names understood by the evaluator.
const (
	MetricSuccessRate  = "success_rate"
	MetricResponseTime = "response_time"
	MetricUptime       = "uptime"
)

// Delivery channels an alert threshold may name. The engine records the
// channel; delivery itself happens outside the engine.
const (
	ChannelEmail   = "email"
	ChannelSlack   = "slack"
	ChannelWebhook = "webhook"
	ChannelSMS     = "sms"
	ChannelLog     = "log"

	DefaultChannel = ChannelEmail
)

// ParseChannel validates s. An empty string selects DefaultChannel.
func ParseChannel(s string) (string, error) {
	switch s {
	case "":
		return DefaultChannel, nil
	case ChannelEmail, ChannelSlack, ChannelWebhook, ChannelSMS, ChannelLog:
		return s, nil
	default:
		return "", fmt.Errorf("unknown channel %q: %w", s, ErrConfiguration)
	}
}

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertThreshold is the single active rule for one (ClientID, MetricName).
// Registering a new threshold for the same pair replaces the previous one.
type AlertThreshold struct {
	ClientID   string     `json:"client_id"`
	MetricName string     `json:"metric_name"`
	Threshold  float64    `json:"threshold_value"`
	Comparator Comparator `json:"comparison_operator"`
	Channel    string     `json:"notification_channel"`
	Active     bool       `json:"is_active"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Key returns the identity of the threshold.
func (t AlertThreshold) Key() string { return t.ClientID + ":" + t.MetricName }

// AlertEvent is one firing instance. Append-only.
type AlertEvent struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	MetricName   string     `json:"metric_name"`
	Threshold    float64    `json:"threshold_value"`
	Comparator   Comparator `json:"comparison_operator"`
	Channel      string     `json:"notification_channel"`
	ActualValue  float64    `json:"actual_value"`
	Message      string     `json:"message"`
	Severity     string     `json:"severity"`
	FiredAt      time.Time  `json:"fired_at"`
	Acknowledged bool       `json:"acknowledged"`
}

// AlertTestResult is the outcome of evaluating one threshold.
// When Defined is false the metric had no value (for example uptime of a
// client without systems) and WouldFire is always false.
type AlertTestResult struct {
	ClientID     string     `json:"client_id"`
	MetricName   string     `json:"metric_name"`
	Threshold    float64    `json:"threshold_value"`
	Comparator   Comparator `json:"comparison_operator"`
	CurrentValue float64    `json:"current_value"`
	Defined      bool       `json:"defined"`
	WouldFire    bool       `json:"would_fire"`
	Message      string     `json:"message"`
}
