package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Publisher hands fired events to an external delivery system.
type Publisher interface {
	Publish(ctx context.Context, e types.AlertEvent) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default sink.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, e types.AlertEvent) error {
	slog.Warn("alert fired",
		"id", e.ID,
		"client", e.ClientID,
		"metric", e.MetricName,
		"value", e.ActualValue,
		"threshold", e.Threshold,
		"severity", e.Severity,
		"channel", e.Channel,
	)
	return nil
}

// Close implements Publisher.
func (LogPublisher) Close() error { return nil }

// NATSPublisher publishes events as JSON on one subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("clientpulse-alerts"))
	if err != nil {
		return nil, fmt.Errorf("alerts: nats connect %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, e types.AlertEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("alerts: encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("alerts: nats publish %s: %w", p.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn.Close()
	return err
}

// kafkaWriter is the subset of *kafka.Writer used by KafkaPublisher.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by client id, so events for
// one client stay ordered within a partition.
type KafkaPublisher struct {
	w kafkaWriter
}

// NewKafkaPublisher returns a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e types.AlertEvent) error {
	msg, err := kafkaMessage(e)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("alerts: kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

func kafkaMessage(e types.AlertEvent) (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("alerts: encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.ClientID),
		Value: data,
		Time:  e.FiredAt,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(e.Severity)},
			{Key: "channel", Value: []byte(e.Channel)},
		},
	}, nil
}
