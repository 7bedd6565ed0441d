// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/auditsentinel/internal/resilience"
)

// DefaultConfigPaths are searched in order; the first existing file is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/auditsentinel/config.yaml",
	"/etc/auditsentinel/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "audit-analysis-service",
		},
		NATS: NATSConfig{
			URL:                  "nats://127.0.0.1:4222",
			ClientName:           "audit-sentinel",
			ConnectTimeout:       5 * time.Second,
			PingInterval:         20 * time.Second,
			MaxPingsOutstanding:  3,
			EventsStream:         "AUDIT_EVENTS",
			EventsSubjects:       []string{"audit.events.>"},
			EventsMaxAge:         7 * 24 * time.Hour,
			AlertsStream:         "AUDIT_ALERTS",
			AlertsSubject:        "audit.alerts",
			AlertsMaxAge:         30 * 24 * time.Hour,
			DuplicateWindow:      10 * time.Minute,
			Replicas:             1,
			Durable:              "audit-analysis",
			FetchWait:            5 * time.Second,
			AckWait:              30 * time.Second,
			AckTimeout:           5 * time.Second,
			MaxDeliver:           -1,
			Redelivery:           resilience.DefaultRedeliveryBackoff(),
			SetupTimeout:         10 * time.Second,
			Reconnect:            resilience.DefaultBackoff(),
			PublishTimeout:       5 * time.Second,
			PublishReconnectWait: 2 * time.Second,
			PublishBreaker:       resilience.DefaultBreakerConfig("alert-publisher"),
			MalformedLogBurst:    10,
			Embedded: EmbeddedNATSConfig{
				Enabled:  false,
				Host:     "127.0.0.1",
				Port:     4222,
				StoreDir: "./data/jetstream",
				MaxMem:   256 << 20,
				MaxStore: 1 << 30,
			},
		},
		WindowStore: WindowStoreConfig{
			Backend:          BackendRedis,
			KeyPrefix:        "sentinel:window:",
			OperationTimeout: 2 * time.Second,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				DialTimeout: 5 * time.Second,
				PoolSize:    4,
				MaxRetries:  1,
				KeyTTLGrace: 60 * time.Second,
				Breaker:     resilience.DefaultBreakerConfig("window-store"),
			},
		},
		Rules: RulesConfig{
			FailedLoginBurst: FailedLoginBurstConfig{
				Enabled:       true,
				WindowSeconds: 60,
				Threshold:     3,
				Severity:      "HIGH",
				EventTypes:    []string{"LOGIN_ATTEMPT"},
				FailureResult: "FAILURE",
			},
			SensitiveFile: SensitiveFileConfig{
				Enabled: true,
				Paths: []string{
					"/etc/passwd",
					"/etc/shadow",
					"/etc/sudoers",
					"/root/.ssh/authorized_keys",
				},
				Severity:   "CRITICAL",
				EventTypes: []string{"FILE_MODIFIED"},
				PathKeys:   []string{"file_path", "resource"},
			},
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 1000,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load reads configuration from, in increasing priority:
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. environment variables listed in envMappings
//
// The result is validated; any problem is returned wrapped in ErrInvalidConfig.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are read from the environment as comma-separated lists.
var sliceConfigPaths = []string{
	"nats.events_subjects",
	"rules.failed_login_burst.event_types",
	"rules.sensitive_file_modification.paths",
	"rules.sensitive_file_modification.event_types",
	"rules.sensitive_file_modification.path_keys",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"service_name": "service.name",

	"nats_url":                    "nats.url",
	"nats_client_name":            "nats.client_name",
	"nats_connect_timeout":        "nats.connect_timeout",
	"nats_ping_interval":          "nats.ping_interval",
	"audit_events_stream":         "nats.events_stream",
	"audit_events_subjects":       "nats.events_subjects",
	"audit_alerts_stream":         "nats.alerts_stream",
	"audit_alerts_subject":        "nats.alerts_subject",
	"nats_duplicate_window":       "nats.duplicate_window",
	"nats_replicas":               "nats.replicas",
	"nats_durable_name":           "nats.durable",
	"nats_filter_subject":         "nats.filter_subject",
	"nats_fetch_wait":             "nats.fetch_wait",
	"nats_ack_wait":               "nats.ack_wait",
	"nats_ack_timeout":            "nats.ack_timeout",
	"nats_max_deliver":            "nats.max_deliver",
	"nats_nak_delay":              "nats.redelivery.initial",
	"nats_nak_max_delay":          "nats.redelivery.max",
	"nats_reconnect_initial":      "nats.reconnect.initial",
	"nats_reconnect_max":          "nats.reconnect.max",
	"nats_publish_timeout":        "nats.publish_timeout",
	"nats_embedded":               "nats.embedded.enabled",
	"nats_embedded_port":          "nats.embedded.port",
	"nats_store_dir":              "nats.embedded.store_dir",
	"nats_max_memory":             "nats.embedded.max_memory",
	"nats_max_store":              "nats.embedded.max_store",
	"window_store_backend":        "window_store.backend",
	"window_key_prefix":           "window_store.key_prefix",
	"window_store_timeout":        "window_store.operation_timeout",
	"redis_addr":                  "window_store.redis.addr",
	"redis_username":              "window_store.redis.username",
	"redis_password":              "window_store.redis.password",
	"redis_db":                    "window_store.redis.db",
	"redis_dial_timeout":          "window_store.redis.dial_timeout",
	"redis_pool_size":             "window_store.redis.pool_size",
	"failed_login_enabled":        "rules.failed_login_burst.enabled",
	"failed_login_window_seconds": "rules.failed_login_burst.window_seconds",
	"failed_login_threshold":      "rules.failed_login_burst.threshold",
	"failed_login_severity":       "rules.failed_login_burst.severity",
	"sensitive_file_enabled":      "rules.sensitive_file_modification.enabled",
	"sensitive_files":             "rules.sensitive_file_modification.paths",
	"sensitive_file_severity":     "rules.sensitive_file_modification.severity",
	"http_host":                   "server.host",
	"http_port":                   "server.port",
	"http_shutdown_timeout":       "server.shutdown_timeout",
	"rate_limit_requests":         "server.rate_limit_requests",
	"rate_limit_window":           "server.rate_limit_window",
	"log_level":                   "logging.level",
	"log_format":                  "logging.format",
	"log_caller":                  "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
