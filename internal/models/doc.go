// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

/*
Package models defines the records that cross the broker: inbound audit
events and outbound alerts.

# AuditEvent

ParseAuditEvent decodes one message body with goccy/go-json, checks the
required fields (event_id, timestamp, event_type) with the shared validator
and normalizes the timestamp to UTC. Timestamps must carry a zone; the
"+00:00Z" form some producers emit is accepted. Every failure wraps
ErrMalformedEvent, which the consumer treats as permanent.

The raw bytes are kept so alerts can embed the event exactly as received.

# Alert

Alerts are built by rule evaluators through NewAlert and never modified
afterwards. The alert ID is always a fresh UUID; the correlation ID is
carried over from the event when present. DedupKey ("event_id:rule_id") is
used as the JetStream message ID so a redelivered event does not store the
same alert twice.
*/
package models
