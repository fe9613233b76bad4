package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ConsumerConfig holds configuration for the NATS event consumer
type ConsumerConfig struct {
	URL           string
	SubjectFilter string // e.g., "focus.events.>"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default NATS consumer configuration
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectFilter: "focus.events.>",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer consumes focus events from NATS and forwards each one to the
// owning user's WebSocket connections.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            ConsumerConfig
}

// NewEventConsumer connects to NATS and prepares a consumer
func NewEventConsumer(cm *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		config:            config,
	}, nil
}

// Start subscribes to the focus event subjects
func (ec *EventConsumer) Start() error {
	sub, err := ec.nc.Subscribe(ec.config.SubjectFilter, ec.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ec.config.SubjectFilter, err)
	}
	ec.sub = sub

	log.Info().Str("subject", ec.config.SubjectFilter).Msg("event consumer started")
	return nil
}

// Stop drains the subscription and closes the connection
func (ec *EventConsumer) Stop() {
	if ec.sub != nil {
		_ = ec.sub.Drain()
	}
	ec.nc.Close()
	log.Info().Msg("event consumer stopped")
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	var event FocusEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal focus event")
		return
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", event.UserID).Msg("event carries invalid user id")
		return
	}

	// Reject malformed payloads here rather than pushing them to clients.
	if _, err := ParseEventPayload(&event); err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to parse event payload")
		return
	}

	ec.connectionManager.BroadcastToUser(userID, &event)
}
