package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// EventPublisher pushes one outbox event to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// MockPublisher is a simple in-memory publisher for development/testing
type MockPublisher struct {
	logger *slog.Logger

	Published []OutboxEvent
}

func NewMockPublisher(logger *slog.Logger) *MockPublisher {
	return &MockPublisher{logger: logger}
}

func (p *MockPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	p.Published = append(p.Published, event)
	p.logger.Info("publishing event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("user_id", event.UserID.String()))
	return nil
}

// NATSPublisher publishes focus events to NATS. Subjects are
// <prefix>.<event_type>.<user_id> so the gateway can subscribe with a single
// wildcard and still filter per user.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

func NewNATSPublisher(nc *nats.Conn, subjectPrefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:            nc,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

func (p *NATSPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, event.EventType, event.UserID.String())

	envelope := map[string]interface{}{
		"id":         event.ID.String(),
		"user_id":    event.UserID.String(),
		"event_type": event.EventType,
		"timestamp":  event.CreatedAt,
		"payload":    event.Payload,
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, messageBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("published event",
		slog.String("subject", subject),
		slog.String("event_id", event.ID.String()),
		slog.Int("size", len(messageBytes)))

	return nil
}
