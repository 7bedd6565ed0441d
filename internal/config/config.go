// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package config

import (
	"time"

	"github.com/tomtom215/auditsentinel/internal/resilience"
)

// Window store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the whole process configuration. It is loaded once at startup
// and never changed afterwards.
type Config struct {
	Service     ServiceConfig     `koanf:"service"`
	NATS        NATSConfig        `koanf:"nats"`
	WindowStore WindowStoreConfig `koanf:"window_store"`
	Rules       RulesConfig       `koanf:"rules"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

// ServiceConfig identifies this process in alerts and broker connections.
type ServiceConfig struct {
	// Name is written to every alert's source_service_name.
	Name string `koanf:"name" validate:"required"`
}

// NATSConfig holds broker, stream and consumer settings.
type NATSConfig struct {
	URL                 string        `koanf:"url" validate:"required"`
	ClientName          string        `koanf:"client_name"`
	ConnectTimeout      time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	PingInterval        time.Duration `koanf:"ping_interval" validate:"gt=0"`
	MaxPingsOutstanding int           `koanf:"max_pings_outstanding" validate:"gte=1"`

	EventsStream    string        `koanf:"events_stream" validate:"required"`
	EventsSubjects  []string      `koanf:"events_subjects" validate:"min=1,dive,required"`
	EventsMaxAge    time.Duration `koanf:"events_max_age" validate:"gte=0"`
	AlertsStream    string        `koanf:"alerts_stream" validate:"required"`
	AlertsSubject   string        `koanf:"alerts_subject" validate:"required"`
	AlertsMaxAge    time.Duration `koanf:"alerts_max_age" validate:"gte=0"`
	DuplicateWindow time.Duration `koanf:"duplicate_window" validate:"gt=0"`
	Replicas        int           `koanf:"replicas" validate:"gte=1"`

	Durable       string        `koanf:"durable" validate:"required"`
	FilterSubject string        `koanf:"filter_subject"`
	FetchWait     time.Duration `koanf:"fetch_wait" validate:"gt=0"`
	AckWait       time.Duration `koanf:"ack_wait" validate:"gt=0"`
	AckTimeout    time.Duration `koanf:"ack_timeout" validate:"gt=0"`
	MaxDeliver    int           `koanf:"max_deliver"`
	SetupTimeout  time.Duration `koanf:"setup_timeout" validate:"gt=0"`

	// Redelivery sets the NAK delay of a failed message from its delivery
	// count; initial 0 redelivers at once.
	Redelivery resilience.Backoff `koanf:"redelivery"`

	// Reconnect paces the consumer loop's reconnect attempts.
	Reconnect resilience.Backoff `koanf:"reconnect"`

	PublishTimeout       time.Duration            `koanf:"publish_timeout" validate:"gt=0"`
	PublishReconnectWait time.Duration            `koanf:"publish_reconnect_wait" validate:"gt=0"`
	PublishBreaker       resilience.BreakerConfig `koanf:"publish_breaker"`

	// MalformedLogBurst caps malformed-message warnings per second.
	MalformedLogBurst int `koanf:"malformed_log_burst" validate:"gte=1"`

	Embedded EmbeddedNATSConfig `koanf:"embedded"`
}

// EmbeddedNATSConfig runs an in-process JetStream server for development.
type EmbeddedNATSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"gte=-1,lte=65535"`
	StoreDir string `koanf:"store_dir"`
	MaxMem   int64  `koanf:"max_memory" validate:"gte=0"`
	MaxStore int64  `koanf:"max_store" validate:"gte=0"`
}

// WindowStoreConfig selects and configures the sliding-window store.
type WindowStoreConfig struct {
	Backend          string        `koanf:"backend" validate:"oneof=redis memory"`
	KeyPrefix        string        `koanf:"key_prefix"`
	OperationTimeout time.Duration `koanf:"operation_timeout" validate:"gt=0"`
	Redis            RedisConfig   `koanf:"redis"`
}

// RedisConfig holds the Redis client settings.
type RedisConfig struct {
	Addr        string                   `koanf:"addr"`
	Username    string                   `koanf:"username"`
	Password    string                   `koanf:"password"`
	DB          int                      `koanf:"db" validate:"gte=0"`
	DialTimeout time.Duration            `koanf:"dial_timeout" validate:"gt=0"`
	PoolSize    int                      `koanf:"pool_size" validate:"gte=1"`
	MaxRetries  int                      `koanf:"max_retries" validate:"gte=0"`
	KeyTTLGrace time.Duration            `koanf:"key_ttl_grace" validate:"gte=0"`
	Breaker     resilience.BreakerConfig `koanf:"breaker"`
}

// RulesConfig holds per-rule settings.
type RulesConfig struct {
	FailedLoginBurst FailedLoginBurstConfig `koanf:"failed_login_burst"`
	SensitiveFile    SensitiveFileConfig    `koanf:"sensitive_file_modification"`
}

// FailedLoginBurstConfig configures the failed-login-burst rule.
type FailedLoginBurstConfig struct {
	Enabled       bool     `koanf:"enabled"`
	WindowSeconds int      `koanf:"window_seconds" validate:"gte=1"`
	Threshold     int64    `koanf:"threshold" validate:"gte=1"`
	Severity      string   `koanf:"severity" validate:"oneof=LOW MEDIUM HIGH CRITICAL"`
	EventTypes    []string `koanf:"event_types" validate:"min=1,dive,required"`
	FailureResult string   `koanf:"failure_result" validate:"required"`
}

// Window returns the window length as a duration.
func (c FailedLoginBurstConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// SensitiveFileConfig configures the sensitive-file-modification rule.
type SensitiveFileConfig struct {
	Enabled    bool     `koanf:"enabled"`
	Paths      []string `koanf:"paths" validate:"dive,required"`
	Severity   string   `koanf:"severity" validate:"oneof=LOW MEDIUM HIGH CRITICAL"`
	EventTypes []string `koanf:"event_types" validate:"min=1,dive,required"`
	PathKeys   []string `koanf:"path_keys" validate:"min=1,dive,required"`
}

// ServerConfig configures the health and metrics HTTP server.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig configures the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gte=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}
