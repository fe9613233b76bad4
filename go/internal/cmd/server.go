package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusd/go/internal/gateway"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Every API and WebSocket route runs under a verified identity.
	registerAuthenticatedRoutes(mux, services)

	// Add health check endpoint
	setupHealthCheck(mux, services)

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerAuthenticatedRoutes(mux *http.ServeMux, services *Services) {
	api := http.NewServeMux()
	services.Gateway.RegisterRoutes(api)
	services.WebSocket.RegisterRoutes(api)

	authed := gateway.AuthMiddleware(services.Identity)(api)
	mux.Handle("/api/", authed)
	mux.Handle("/ws/", authed)
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		pending, err := services.OutboxWorker.PendingCount(ctx)
		if err != nil {
			http.Error(w, "degraded", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, "OK (outbox pending: %d)", pending); err != nil {
			log.Warn().Err(err).Msg("failed to write health check response")
		}
	})
}
