// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/auditsentinel/internal/config"
	"github.com/tomtom215/auditsentinel/internal/eventprocessor"
	"github.com/tomtom215/auditsentinel/internal/health"
	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/supervisor"
	"github.com/tomtom215/auditsentinel/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger still has its defaults here.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(loggingConfig(cfg))

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Audit sentinel failed to start")
	}
}

// run builds every component, runs the supervisor tree until SIGINT or
// SIGTERM and tears down in reverse order. Any error it returns is a
// startup failure.
func run(cfg *config.Config) error {
	logging.Info().
		Str("service", cfg.Service.Name).
		Str("events_stream", cfg.NATS.EventsStream).
		Str("durable", cfg.NATS.Durable).
		Str("window_store", cfg.WindowStore.Backend).
		Msg("Starting audit sentinel")

	tracker := health.NewTracker()

	var embedded *eventprocessor.EmbeddedServer
	if cfg.NATS.Embedded.Enabled {
		srv, err := startEmbeddedNATS(cfg)
		if err != nil {
			return err
		}
		embedded = srv
		defer shutdownEmbeddedNATS(embedded, cfg.Server.ShutdownTimeout)
	}

	store, err := newWindowStore(cfg, tracker)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing window store")
		}
	}()

	engine := newEngine(cfg, store)

	publisher, err := eventprocessor.NewAlertPublisher(publisherConfig(cfg), logging.NewWatermillAdapter("alert-publisher"))
	if err != nil {
		return fmt.Errorf("create alert publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert publisher")
		}
	}()

	consumer, err := eventprocessor.NewConsumer(consumerConfig(cfg), eventprocessor.ConsumerDeps{
		Engine:    engine,
		Publisher: publisher,
		Store:     store,
		Broker:    tracker,
		Liveness:  tracker,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	// Bind before starting the tree so a taken port fails startup.
	server := newHTTPServer(cfg, tracker)
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("bind HTTP listener on %s: %w", server.Addr, err)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig(cfg))
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddPipelineService(services.NewConsumerService(consumer))
	tree.AddAPIService(services.NewHTTPServerService(server, listener, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", listener.Addr().String()).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	stats := consumer.Stats()
	logging.Info().
		Int64("acked", stats.Acked).
		Int64("requeued", stats.Requeued).
		Int64("rejected", stats.Rejected).
		Int64("reconnects", stats.Reconnects).
		Msg("Audit sentinel stopped")
	return nil
}
