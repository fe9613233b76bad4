package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"github.com/mcdev12/focusd/go/clients/identity_client"
	"github.com/mcdev12/focusd/go/internal/focusday"
	"github.com/mcdev12/focusd/go/internal/gateway"
	"github.com/mcdev12/focusd/go/internal/ledger"
	"github.com/mcdev12/focusd/go/internal/outbox"
	outboxdb "github.com/mcdev12/focusd/go/internal/outbox/db"
)

type Services struct {
	Gateway      *gateway.Service
	WebSocket    *gateway.WebSocketHandler
	Connections  *gateway.ConnectionManager
	Consumer     *gateway.EventConsumer
	OutboxWorker *outbox.Worker
	Identity     *identity_client.IdentityClient
	nc           *nats.Conn
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	clock := clockwork.NewRealClock()

	engineCfg, err := config.engineConfig()
	if err != nil {
		return nil, err
	}

	// Outbox
	outboxRepo := outbox.NewRepository(outboxdb.New(database), clock)

	// Ledger
	ledgerRepo := ledger.NewRepository(database)
	ledgerApp := ledger.NewApp(ledgerRepo, config.Rules, clock, outboxRepo)

	// Focus day
	focusRepo := focusday.NewRepository(database)
	focusApp := focusday.NewApp(focusRepo, ledgerApp, outboxRepo, clock, engineCfg)

	// Gateway
	service := gateway.NewService(focusApp, ledgerApp)
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	wsHandler := gateway.NewWebSocketHandler(connections)

	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = config.NATS.URL
	consumerCfg.SubjectFilter = config.NATS.SubjectPrefix + ".>"
	consumer, err := gateway.NewEventConsumer(connections, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	// Outbox worker publishes committed events to NATS
	nc, err := nats.Connect(config.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := outbox.NewNATSPublisher(nc, config.NATS.SubjectPrefix, slogger)
	worker := outbox.NewWorker(database, publisher, outbox.DefaultConfig(), slogger)

	identity := identity_client.NewIdentityClient(config.Identity.BaseURL)

	return &Services{
		Gateway:      service,
		WebSocket:    wsHandler,
		Connections:  connections,
		Consumer:     consumer,
		OutboxWorker: worker,
		Identity:     identity,
		nc:           nc,
	}, nil
}

func (s *Services) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
