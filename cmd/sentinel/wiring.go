// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/auditsentinel/internal/api"
	"github.com/tomtom215/auditsentinel/internal/config"
	"github.com/tomtom215/auditsentinel/internal/detection"
	"github.com/tomtom215/auditsentinel/internal/eventprocessor"
	"github.com/tomtom215/auditsentinel/internal/health"
	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/metrics"
	"github.com/tomtom215/auditsentinel/internal/supervisor"
	"github.com/tomtom215/auditsentinel/internal/windowstore"
)

func loggingConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	lc.Caller = cfg.Logging.Caller
	return lc
}

func connectionConfig(cfg *config.Config) eventprocessor.ConnectionConfig {
	n := cfg.NATS
	return eventprocessor.ConnectionConfig{
		URL:                 n.URL,
		Name:                n.ClientName,
		ConnectTimeout:      n.ConnectTimeout,
		PingInterval:        n.PingInterval,
		MaxPingsOutstanding: n.MaxPingsOutstanding,
	}
}

func consumerConfig(cfg *config.Config) eventprocessor.ConsumerConfig {
	n := cfg.NATS
	return eventprocessor.ConsumerConfig{
		Connection: connectionConfig(cfg),
		Events: eventprocessor.StreamConfig{
			Name:            n.EventsStream,
			Subjects:        n.EventsSubjects,
			MaxAge:          n.EventsMaxAge,
			MaxBytes:        -1,
			MaxMsgs:         -1,
			DuplicateWindow: n.DuplicateWindow,
			Replicas:        n.Replicas,
		},
		Alerts: eventprocessor.StreamConfig{
			Name:            n.AlertsStream,
			Subjects:        []string{n.AlertsSubject},
			MaxAge:          n.AlertsMaxAge,
			MaxBytes:        -1,
			MaxMsgs:         -1,
			DuplicateWindow: n.DuplicateWindow,
			Replicas:        n.Replicas,
		},
		Durable:           n.Durable,
		FilterSubject:     n.FilterSubject,
		FetchWait:         n.FetchWait,
		AckWait:           n.AckWait,
		AckTimeout:        n.AckTimeout,
		MaxDeliver:        n.MaxDeliver,
		Redelivery:        n.Redelivery,
		SetupTimeout:      n.SetupTimeout,
		Backoff:           n.Reconnect,
		MalformedLogBurst: n.MalformedLogBurst,
	}
}

func publisherConfig(cfg *config.Config) eventprocessor.PublisherConfig {
	breaker := cfg.NATS.PublishBreaker
	breaker.Name = "alert-publisher"
	return eventprocessor.PublisherConfig{
		Connection:     connectionConfig(cfg),
		Subject:        cfg.NATS.AlertsSubject,
		PublishTimeout: cfg.NATS.PublishTimeout,
		MaxReconnects:  -1,
		ReconnectWait:  cfg.NATS.PublishReconnectWait,
		Breaker:        breaker,
	}
}

func embeddedServerConfig(cfg *config.Config) *eventprocessor.ServerConfig {
	e := cfg.NATS.Embedded
	return &eventprocessor.ServerConfig{
		Host:              e.Host,
		Port:              e.Port,
		StoreDir:          e.StoreDir,
		JetStreamMaxMem:   e.MaxMem,
		JetStreamMaxStore: e.MaxStore,
	}
}

func redisConfig(cfg *config.Config) windowstore.RedisConfig {
	r := cfg.WindowStore.Redis
	breaker := r.Breaker
	breaker.Name = "window-store"
	return windowstore.RedisConfig{
		Addr:             r.Addr,
		Username:         r.Username,
		Password:         r.Password,
		DB:               r.DB,
		DialTimeout:      r.DialTimeout,
		OperationTimeout: cfg.WindowStore.OperationTimeout,
		PoolSize:         r.PoolSize,
		MaxRetries:       r.MaxRetries,
		KeyTTLGrace:      r.KeyTTLGrace,
		Breaker:          breaker,
	}
}

// newWindowStore builds the configured store. The tracker receives the
// store's connectivity flag.
func newWindowStore(cfg *config.Config, tracker *health.Tracker) (windowstore.Store, error) {
	switch cfg.WindowStore.Backend {
	case config.BackendMemory:
		logging.Warn().Msg("Using in-memory window store; window state is lost on restart")
		return windowstore.NewMemoryStore(tracker), nil
	case config.BackendRedis:
		store, err := windowstore.NewRedisStore(redisConfig(cfg), tracker)
		if err != nil {
			return nil, fmt.Errorf("create redis window store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown window store backend %q", cfg.WindowStore.Backend)
	}
}

// newEngine registers the built-in rules in their fixed order.
func newEngine(cfg *config.Config, store windowstore.Store) *detection.Engine {
	opts := detection.Options{
		SourceService: cfg.Service.Name,
		KeyPrefix:     cfg.WindowStore.KeyPrefix,
	}

	fl := cfg.Rules.FailedLoginBurst
	loginCfg := detection.FailedLoginBurstConfig{
		Enabled:       fl.Enabled,
		Window:        fl.Window(),
		Threshold:     fl.Threshold,
		Severity:      fl.Severity,
		EventTypes:    fl.EventTypes,
		FailureResult: fl.FailureResult,
	}

	sf := cfg.Rules.SensitiveFile
	fileCfg := detection.SensitiveFileConfig{
		Enabled:    sf.Enabled,
		Paths:      sf.Paths,
		Severity:   sf.Severity,
		EventTypes: sf.EventTypes,
		PathKeys:   sf.PathKeys,
	}

	// Event types the rules match on get their own metric label.
	metrics.RegisterEventTypes(fl.EventTypes...)
	metrics.RegisterEventTypes(sf.EventTypes...)

	return detection.NewEngine(
		detection.NewFailedLoginBurst(loginCfg, store, opts),
		detection.NewSensitiveFileModification(fileCfg, opts),
	)
}

func treeConfig(cfg *config.Config) supervisor.TreeConfig {
	s := cfg.Supervisor
	return supervisor.TreeConfig{
		FailureThreshold: s.FailureThreshold,
		FailureDecay:     s.FailureDecay,
		FailureBackoff:   s.FailureBackoff,
		ShutdownTimeout:  s.ShutdownTimeout,
	}
}

func httpAddr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

func newHTTPServer(cfg *config.Config, tracker *health.Tracker) *http.Server {
	router := api.NewRouter(api.NewHandler(tracker), api.RouterConfig{
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})
	return &http.Server{
		Addr:              httpAddr(cfg),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// startEmbeddedNATS starts the development broker and points the client
// configuration at it.
func startEmbeddedNATS(cfg *config.Config) (*eventprocessor.EmbeddedServer, error) {
	srv, err := eventprocessor.NewEmbeddedServer(embeddedServerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("start embedded NATS server: %w", err)
	}
	cfg.NATS.URL = srv.ClientURL()
	logging.Info().
		Str("url", srv.ClientURL()).
		Str("store_dir", cfg.NATS.Embedded.StoreDir).
		Msg("Embedded NATS JetStream server started")
	return srv, nil
}

func shutdownEmbeddedNATS(srv *eventprocessor.EmbeddedServer, timeout time.Duration) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Embedded NATS server did not stop cleanly")
	}
}
