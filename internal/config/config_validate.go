// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/validation"
)

// ErrInvalidConfig wraps every configuration problem reported by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	for _, check := range []func() error{
		c.validateService,
		c.validateNATS,
		c.validateWindowStore,
		c.validateRules,
		c.validateServer,
		c.validateLogging,
		c.validateSupervisor,
	} {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func section(name string, v interface{}, extra ...error) error {
	var errs []error
	if err := validation.Struct(v); err != nil {
		errs = append(errs, err)
	}
	for _, err := range extra {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %w", name, errors.Join(errs...))
}

func (c *Config) validateService() error {
	return section("service", &c.Service)
}

func (c *Config) validateNATS() error {
	n := &c.NATS
	var extra []error
	if n.FetchWait > 0 && n.AckWait > 0 && n.FetchWait >= n.AckWait {
		extra = append(extra, fmt.Errorf("fetch_wait (%s) must be shorter than ack_wait (%s)", n.FetchWait, n.AckWait))
	}
	if n.MaxDeliver == 0 || n.MaxDeliver < -1 {
		extra = append(extra, errors.New("max_deliver must be -1 (unlimited) or positive"))
	}
	if n.EventsStream != "" && n.EventsStream == n.AlertsStream {
		extra = append(extra, errors.New("events_stream and alerts_stream must differ"))
	}
	if n.Reconnect.Initial <= 0 || n.Reconnect.Max < n.Reconnect.Initial {
		extra = append(extra, errors.New("reconnect.initial must be positive and not above reconnect.max"))
	}
	if n.Redelivery.Initial < 0 || (n.Redelivery.Initial > 0 && n.Redelivery.Max < n.Redelivery.Initial) {
		extra = append(extra, errors.New("redelivery.initial must not be negative or above redelivery.max"))
	}
	if n.Embedded.Enabled && n.Embedded.StoreDir == "" {
		extra = append(extra, errors.New("embedded.store_dir is required when the embedded server is enabled"))
	}
	return section("nats", n, extra...)
}

func (c *Config) validateWindowStore() error {
	w := &c.WindowStore
	var extra []error
	if w.Backend == BackendRedis && w.Redis.Addr == "" {
		extra = append(extra, errors.New("redis.addr is required for the redis backend"))
	}
	return section("window_store", w, extra...)
}

func (c *Config) validateRules() error {
	var extra []error
	if c.Rules.SensitiveFile.Enabled && len(c.Rules.SensitiveFile.Paths) == 0 {
		extra = append(extra, errors.New("sensitive_file_modification.paths must not be empty while the rule is enabled"))
	}
	return section("rules", &c.Rules, extra...)
}

func (c *Config) validateServer() error {
	return section("server", &c.Server)
}

func (c *Config) validateLogging() error {
	var extra []error
	if !logging.ValidLevel(c.Logging.Level) {
		extra = append(extra, fmt.Errorf("level %q is not a valid log level", c.Logging.Level))
	}
	return section("logging", &c.Logging, extra...)
}

func (c *Config) validateSupervisor() error {
	return section("supervisor", &c.Supervisor)
}
