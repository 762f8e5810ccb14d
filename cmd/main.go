/**
 * @description
 * This is the main entry point for the conekta-cashier service.
 * It initializes and wires together all the components of the application,
 * including configuration, database connection, repository, the Conekta API
 * client, the webhook dispatcher, and the HTTP router.
 * Finally, it starts the HTTP server to listen for incoming requests.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinkbit/conekta-cashier/internal/api"
	"github.com/dinkbit/conekta-cashier/internal/app"
	"github.com/dinkbit/conekta-cashier/internal/config"
	"github.com/dinkbit/conekta-cashier/internal/domain"
	"github.com/dinkbit/conekta-cashier/internal/store"
	"github.com/dinkbit/conekta-cashier/pkg/conekta"
	"github.com/dinkbit/conekta-cashier/pkg/rabbitmq"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load application configuration from environment variables. A missing
	// Conekta API key is fatal: no gateway operation can run without it.
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up channel to listen for OS signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// The Conekta API credential is established once and immutable afterwards.
	client := conekta.NewClient(cfg.ConektaAPIURL, cfg.ConektaKey)

	// RabbitMQ is optional; without it webhook cancellations are not fanned out.
	var producer app.EventPublisher
	if cfg.AmqpURL != "" {
		p, err := rabbitmq.NewEventProducer(cfg.AmqpURL)
		if err != nil {
			logger.Error("unable to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		producer = p
		logger.Info("rabbitmq connection established")
	}

	// Initialize application layers
	repository := store.NewRepository(dbpool)
	gateways := func(billable *domain.BillableRecord, plan string) *app.Gateway {
		return app.NewGateway(client, repository, billable, plan)
	}
	dispatcher := app.NewWebhookDispatcher(client, repository, func(billable *domain.BillableRecord) *app.Gateway {
		return app.NewGateway(client, repository, billable, "")
	}, producer, logger)

	handler := api.NewHandler(repository, gateways)
	webhooks := api.NewWebhookHandler(dispatcher, logger)
	router := api.NewRouter(handler, webhooks, cfg.JWKSURL)

	// Configure and start the HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for an OS signal
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	// Create a context with a timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
