// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

/*
Package config loads the sentinel's configuration with koanf.

# Sources

Later layers override earlier ones:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: $CONFIG_PATH, else config.yaml, config.yml,
    /etc/auditsentinel/config.yaml or /etc/auditsentinel/config.yml
 3. Environment variables

# Environment Variables

Only the variables below are read; everything else in the environment is
ignored.

Broker:
  - NATS_URL: broker URL (default: nats://127.0.0.1:4222)
  - AUDIT_EVENTS_STREAM: inbound stream (default: AUDIT_EVENTS)
  - AUDIT_EVENTS_SUBJECTS: comma-separated inbound subjects (default: audit.events.>)
  - AUDIT_ALERTS_STREAM / AUDIT_ALERTS_SUBJECT: outbound stream and subject
  - NATS_DURABLE_NAME: durable consumer (default: audit-analysis)
  - NATS_FETCH_WAIT, NATS_ACK_WAIT, NATS_ACK_TIMEOUT: durations
  - NATS_NAK_DELAY / NATS_NAK_MAX_DELAY: first and largest redelivery delay
    after a transient failure; the delay doubles per delivery (default: 1s, 1m)
  - NATS_MAX_DELIVER: -1 for unlimited (default)
  - NATS_PUBLISH_TIMEOUT: PubAck wait (default: 5s)
  - NATS_EMBEDDED: run an in-process JetStream server (default: false)

Window store:
  - WINDOW_STORE_BACKEND: redis or memory (default: redis)
  - REDIS_ADDR, REDIS_USERNAME, REDIS_PASSWORD, REDIS_DB
  - WINDOW_STORE_TIMEOUT: per-operation timeout (default: 2s)

Rules:
  - FAILED_LOGIN_WINDOW_SECONDS (default: 60)
  - FAILED_LOGIN_THRESHOLD (default: 3)
  - FAILED_LOGIN_ENABLED, SENSITIVE_FILE_ENABLED
  - SENSITIVE_FILES: comma-separated exact paths

HTTP and logging:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:8080)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW
  - LOG_LEVEL, LOG_FORMAT (json or console), LOG_CALLER

# Validation

Load validates the result. Struct tags handle field ranges; cross-field
rules (fetch_wait below ack_wait, a Redis address for the redis backend)
are checked by hand. All problems are reported together, wrapped in
ErrInvalidConfig.
*/
package config
