// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

// Package eventprocessor moves audit events from NATS JetStream through the
// detection engine and publishes the resulting alerts.
//
// # Message Flow
//
//	AUDIT_EVENTS (audit.events.>)
//	        │  durable pull consumer "audit-analysis", MaxAckPending=1
//	        ▼
//	   Consumer.HandleMessage ── parse ──► malformed ──► Term (never redelivered)
//	        │
//	        ▼
//	   Analyzer.Evaluate ──► AlertPublisher.Publish ──► AUDIT_ALERTS (audit.alerts)
//	        │
//	        ├── all succeeded ──► DoubleAck
//	        └── any failure   ──► NakWithDelay (redelivered later)
//
// Events are handled one at a time in delivery order. An alert is always
// published (and its PubAck received) before the event is acknowledged, so
// a crash between the two leads to a redelivery and at most a duplicate
// alert, never a lost one. Duplicates inside the alert stream's duplicate
// window are dropped by JetStream because the message ID is derived from the
// event ID and rule ID.
//
// A failed message is redelivered after a delay that doubles with every
// delivery (ConsumerConfig.Redelivery), so a window store outage does not
// turn into a tight requeue loop. Messages without a JSON Content-Type are
// counted in sentinel_messages_without_json_content_type_total and still
// parsed.
//
// # Connection Lifecycle
//
// The Consumer owns its broker connection. Each connect checks the window
// store, dials NATS with client reconnects disabled, provisions both streams
// and the durable consumer, then consumes. Any connection-level failure
// closes the session and the loop reconnects with bounded exponential
// backoff:
//
//	Disconnected → Connecting → Consuming → Reconnecting → Connecting …
//	                                   any state → Stopped (on shutdown)
//
// The AlertPublisher keeps a separate, self-reconnecting connection behind a
// circuit breaker.
//
// # Development
//
// EmbeddedServer runs an in-process JetStream server so the engine can run
// without external services; tests use it with Port -1.
package eventprocessor
