// Package kafka publishes flood-risk alerts to the alert topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/urbantwin/flood-risk-service/internal/domain"
)

// Publisher produces risk alerts to a Kafka topic. It implements
// monitor.AlertPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the alert topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishAlerts serializes and publishes multiple risk alerts in a single
// WriteMessages call for efficiency.
func (p *Publisher) PublishAlerts(ctx context.Context, alerts []domain.RiskAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeAlert(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Debug("published risk alerts", "count", len(msgs), "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeAlert marshals a RiskAlert into a Kafka message. Alerts for the
// same catchment share a key so consumers see them in order.
func serializeAlert(alert domain.RiskAlert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.CatchmentID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(alert.RiskLevel)},
			{Key: "generated_at", Value: []byte(alert.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
