// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package models

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/auditsentinel/internal/validation"
)

// ErrMalformedEvent marks a message that can never be processed: bad
// encoding, a missing required field or an unusable timestamp.
var ErrMalformedEvent = errors.New("malformed audit event")

// Well-known event types and results.
const (
	EventTypeLoginAttempt = "LOGIN_ATTEMPT"
	EventTypeFileModified = "FILE_MODIFIED"

	ActionResultSuccess = "SUCCESS"
	ActionResultFailure = "FAILURE"
)

// AuditEvent is an inbound audit record. It is never modified after parsing.
type AuditEvent struct {
	EventID        string                 `json:"event_id" validate:"required"`
	RawTimestamp   string                 `json:"timestamp" validate:"required"`
	EventType      string                 `json:"event_type" validate:"required"`
	ServerHostname string                 `json:"server_hostname,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	ActorID        string                 `json:"actor_id,omitempty"`
	ActionResult   string                 `json:"action_result,omitempty"`
	SourceService  string                 `json:"source_service,omitempty"`
	Severity       string                 `json:"severity,omitempty"`
	ClientIP       string                 `json:"client_ip,omitempty"`
	CorrelationID  string                 `json:"correlation_id,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`

	// Timestamp is RawTimestamp parsed and normalized to UTC.
	Timestamp time.Time `json:"-"`

	raw []byte
}

// ParseAuditEvent decodes and validates one message body. Every failure wraps
// ErrMalformedEvent.
func ParseAuditEvent(data []byte) (*AuditEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedEvent)
	}

	var ev AuditEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validation.Struct(&ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ts, err := ParseEventTimestamp(ev.RawTimestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.Timestamp = ts
	ev.raw = append([]byte(nil), trimmed...)
	return &ev, nil
}

// ParseEventTimestamp parses an RFC 3339 timestamp that must carry a zone
// ("Z" or a numeric offset). A "Z" appended after a numeric offset
// ("...+00:00Z") is accepted and ignored.
func ParseEventTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n := len(s); n > 7 && s[n-1] == 'Z' && (s[n-7] == '+' || s[n-7] == '-') && s[n-4] == ':' {
		s = s[:n-1]
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not RFC 3339 with a zone", s)
	}
	return t.UTC(), nil
}

// Raw returns the event exactly as received.
func (e *AuditEvent) Raw() json.RawMessage {
	return json.RawMessage(e.raw)
}

// Actor returns user_id, falling back to actor_id.
func (e *AuditEvent) Actor() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.ActorID
}

// DetailString returns details[key] when it is a non-empty string.
func (e *AuditEvent) DetailString(key string) (string, bool) {
	v, ok := e.Details[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ClientAddress returns client_ip, falling back to details.ip_address.
func (e *AuditEvent) ClientAddress() string {
	if e.ClientIP != "" {
		return e.ClientIP
	}
	ip, _ := e.DetailString("ip_address")
	return ip
}
