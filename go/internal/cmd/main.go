package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	services, err := setupServices(database, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}
	defer services.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Connections.Start(ctx)

	if err := services.Consumer.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start event consumer")
	}
	defer services.Consumer.Stop()

	if err := services.OutboxWorker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}
	defer func() {
		if err := services.OutboxWorker.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop outbox worker")
		}
	}()

	server := setupServer(services)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("focus engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
