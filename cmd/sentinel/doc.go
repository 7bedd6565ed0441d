// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

/*
Command sentinel consumes audit events from NATS JetStream, evaluates them
against the detection rules and publishes alerts.

# Process Tree

	RootSupervisor ("audit-sentinel")
	├── PipelineSupervisor ("pipeline-layer")
	│   └── event-consumer
	└── APISupervisor ("api-layer")
	    └── http-server (/healthz, /readyz, /livez, /metrics)

Startup order:

 1. Configuration (koanf: defaults, YAML file, environment)
 2. Logging (zerolog)
 3. Embedded NATS server, when nats.embedded.enabled is set
 4. Window store (Redis or in-memory)
 5. Rule engine (failed-login-burst, sensitive-file-modification)
 6. Alert publisher and event consumer
 7. HTTP listener, then the supervisor tree

Any failure before the tree starts is logged at fatal level and the process
exits with status 1. Broker and window store outages after startup are not
fatal: the consumer loop reconnects and readiness drops to 503 meanwhile.

# Signals

SIGINT and SIGTERM stop fetching, let the in-flight message finish, drain
the HTTP server and close the broker and store clients.

# Example

Local development without external services:

	NATS_EMBEDDED=true WINDOW_STORE_BACKEND=memory LOG_FORMAT=console ./sentinel

Against real infrastructure:

	NATS_URL=nats://nats:4222 REDIS_ADDR=redis:6379 \
	FAILED_LOGIN_THRESHOLD=5 FAILED_LOGIN_WINDOW_SECONDS=120 ./sentinel
*/
package main
