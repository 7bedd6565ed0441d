// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/tomtom215/auditsentinel/internal/resilience"
)

// Default names of the broker objects.
const (
	DefaultEventsStream  = "AUDIT_EVENTS"
	DefaultEventsSubject = "audit.events.>"
	DefaultAlertsStream  = "AUDIT_ALERTS"
	DefaultAlertsSubject = "audit.alerts"
	DefaultDurableName   = "audit-analysis"
)

// ConnectionConfig describes how to reach NATS.
type ConnectionConfig struct {
	URL  string
	Name string

	// ConnectTimeout bounds the initial dial.
	ConnectTimeout time.Duration

	// PingInterval and MaxPingsOutstanding form the heartbeat: a broker that
	// misses MaxPingsOutstanding pings is treated as gone.
	PingInterval        time.Duration
	MaxPingsOutstanding int
}

// DefaultConnectionConfig targets a local NATS server.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		URL:                 "nats://127.0.0.1:4222",
		Name:                "audit-sentinel",
		ConnectTimeout:      5 * time.Second,
		PingInterval:        20 * time.Second,
		MaxPingsOutstanding: 3,
	}
}

// StreamConfig holds JetStream stream settings.
type StreamConfig struct {
	Name     string
	Subjects []string

	// MaxAge is how long messages are retained; 0 keeps them until limits are hit.
	MaxAge   time.Duration
	MaxBytes int64
	MaxMsgs  int64

	// DuplicateWindow is how long Nats-Msg-Id values are remembered.
	DuplicateWindow time.Duration

	Replicas int
}

// DefaultEventsStreamConfig returns the inbound audit event stream.
func DefaultEventsStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            DefaultEventsStream,
		Subjects:        []string{DefaultEventsSubject},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        -1,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// DefaultAlertsStreamConfig returns the outbound alert stream.
func DefaultAlertsStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            DefaultAlertsStream,
		Subjects:        []string{DefaultAlertsSubject},
		MaxAge:          30 * 24 * time.Hour,
		MaxBytes:        -1,
		MaxMsgs:         -1,
		DuplicateWindow: 10 * time.Minute,
		Replicas:        1,
	}
}

// Validate checks the stream settings.
func (c *StreamConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("stream name is required")
	}
	if len(c.Subjects) == 0 {
		return fmt.Errorf("stream %s: at least one subject is required", c.Name)
	}
	if c.Replicas < 1 {
		return fmt.Errorf("stream %s: replicas must be at least 1", c.Name)
	}
	return nil
}

// ConsumerConfig configures the event consumer loop.
type ConsumerConfig struct {
	Connection ConnectionConfig

	Events StreamConfig
	Alerts StreamConfig

	// Durable is the durable pull consumer name on the events stream.
	Durable string

	// FilterSubject narrows the consumer; empty consumes the whole stream.
	FilterSubject string

	// FetchWait bounds one Next call; an empty fetch is not an error.
	FetchWait time.Duration

	// AckWait is the server-side redelivery timeout for an unacked message.
	AckWait time.Duration

	// AckTimeout bounds the double-ack round trip.
	AckTimeout time.Duration

	// MaxDeliver caps deliveries per message; -1 is unlimited.
	MaxDeliver int

	// Redelivery sets the NAK delay from the delivery count so a message that
	// keeps failing comes back less and less often. A zero Initial redelivers
	// at once.
	Redelivery resilience.Backoff

	// SetupTimeout bounds stream and consumer provisioning after connecting.
	SetupTimeout time.Duration

	// Backoff paces reconnect attempts.
	Backoff resilience.Backoff

	// MalformedLogBurst limits how many malformed-message warnings are logged
	// per second; the rest go to debug.
	MalformedLogBurst int
}

// DefaultConsumerConfig returns production defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Connection:        DefaultConnectionConfig(),
		Events:            DefaultEventsStreamConfig(),
		Alerts:            DefaultAlertsStreamConfig(),
		Durable:           DefaultDurableName,
		FetchWait:         5 * time.Second,
		AckWait:           30 * time.Second,
		AckTimeout:        5 * time.Second,
		MaxDeliver:        -1,
		Redelivery:        resilience.DefaultRedeliveryBackoff(),
		SetupTimeout:      10 * time.Second,
		Backoff:           resilience.DefaultBackoff(),
		MalformedLogBurst: 10,
	}
}

// Validate checks the consumer settings.
func (c *ConsumerConfig) Validate() error {
	if c.Connection.URL == "" {
		return fmt.Errorf("nats url is required")
	}
	if c.Durable == "" {
		return fmt.Errorf("durable consumer name is required")
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	if err := c.Alerts.Validate(); err != nil {
		return err
	}
	if c.FetchWait <= 0 || c.AckWait <= 0 || c.AckTimeout <= 0 {
		return fmt.Errorf("fetch_wait, ack_wait and ack_timeout must be positive")
	}
	if c.FetchWait >= c.AckWait {
		return fmt.Errorf("fetch_wait (%s) must be shorter than ack_wait (%s)", c.FetchWait, c.AckWait)
	}
	if c.MaxDeliver == 0 || c.MaxDeliver < -1 {
		return fmt.Errorf("max_deliver must be -1 (unlimited) or positive")
	}
	if c.Redelivery.Initial < 0 || (c.Redelivery.Initial > 0 && c.Redelivery.Max < c.Redelivery.Initial) {
		return fmt.Errorf("redelivery.initial must not be negative or above redelivery.max")
	}
	return nil
}

// PublisherConfig configures the alert publisher.
type PublisherConfig struct {
	Connection ConnectionConfig

	// Subject is where alerts are published.
	Subject string

	// PublishTimeout bounds the wait for the JetStream PubAck.
	PublishTimeout time.Duration

	// MaxReconnects and ReconnectWait control the publisher's own client
	// reconnection; -1 retries forever.
	MaxReconnects int
	ReconnectWait time.Duration

	Breaker resilience.BreakerConfig
}

// DefaultPublisherConfig returns production defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Connection:     DefaultConnectionConfig(),
		Subject:        DefaultAlertsSubject,
		PublishTimeout: 5 * time.Second,
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
		Breaker:        resilience.DefaultBreakerConfig("alert-publisher"),
	}
}

// ServerConfig configures the embedded NATS server used in development mode.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig listens on the standard client port.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "./data/jetstream",
		JetStreamMaxMem:   256 << 20,
		JetStreamMaxStore: 1 << 30,
	}
}
