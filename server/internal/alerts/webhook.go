package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Webhook payload formats.
const (
	FormatJSON  = "json"
	FormatSlack = "slack"
	FormatTeams = "teams"
)

// WebhookPublisher posts events to an HTTP endpoint.
type WebhookPublisher struct {
	url    string
	format string
	client *http.Client
}

// NewWebhookPublisher returns a publisher posting to url in the given format.
func NewWebhookPublisher(url, format string) *WebhookPublisher {
	if format == "" {
		format = FormatJSON
	}
	return &WebhookPublisher{
		url:    url,
		format: format,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish implements Publisher.
func (w *WebhookPublisher) Publish(ctx context.Context, e types.AlertEvent) error {
	body, err := webhookBody(w.format, e)
	if err != nil {
		return err
	}
	return w.post(ctx, body)
}

// Close implements Publisher.
func (w *WebhookPublisher) Close() error { return nil }

func webhookBody(format string, e types.AlertEvent) ([]byte, error) {
	var payload any
	switch format {
	case FormatSlack:
		payload = slackMessage{
			Text: fmt.Sprintf("*%s* %s: %s", severityLabel(e.Severity), e.ClientID, e.MetricName),
			Attachments: []slackAttachment{{
				Color: "#" + severityColor(e.Severity),
				Title: fmt.Sprintf("ClientPulse alert: %s %s", e.ClientID, e.MetricName),
				Text:  e.Message,
				Fields: []slackField{
					{Title: "Metric", Value: e.MetricName, Short: true},
					{Title: "Severity", Value: e.Severity, Short: true},
					{Title: "Threshold", Value: fmt.Sprintf("%s %.2f", e.Comparator, e.Threshold), Short: true},
					{Title: "Actual", Value: fmt.Sprintf("%.2f", e.ActualValue), Short: true},
				},
				Footer: e.ID,
				Ts:     e.FiredAt.Unix(),
			}},
		}
	case FormatTeams:
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(e.Severity),
			"summary":    e.MetricName,
			"title":      fmt.Sprintf("ClientPulse alert: %s %s", e.ClientID, e.MetricName),
			"text":       e.Message,
		}
	case FormatJSON:
		payload = map[string]any{"alert": e}
	default:
		return nil, fmt.Errorf("alerts: unknown webhook format %q", format)
	}
	return json.Marshal(payload)
}

// slackMessage is an incoming-webhook body with one attachment per event.
type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (w *WebhookPublisher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case types.SeverityCritical:
		return "[CRITICAL]"
	case types.SeverityWarning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case types.SeverityCritical:
		return "FF4F6A"
	case types.SeverityWarning:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
