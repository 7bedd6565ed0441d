// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

// Package windowstore records time-scored markers per subject key and counts
// those inside a trailing window.
//
// Each call to IncrementAndCount adds one marker, prunes markers older than
// the window and returns the number of markers left in [now-window, now].
// Markers are identified by a member string (the triggering event ID), so
// re-adding the same member after a redelivery does not grow the count.
package windowstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable wraps every connectivity or timeout failure. There is no
// not-found case: an absent key counts as zero markers.
var ErrUnavailable = errors.New("window store unavailable")

var (
	errStoreClosed     = errors.New("store closed")
	errSimulatedOutage = errors.New("simulated outage")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// Store is the window store contract used by stateful rules.
type Store interface {
	// IncrementAndCount atomically adds member scored at now under key,
	// removes markers older than now-window and returns the count in range.
	IncrementAndCount(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying client.
	Close() error
}

// DefaultKeyPrefix namespaces window keys in a shared keyspace.
const DefaultKeyPrefix = "sentinel:window:"

// keyPartEscaper keeps ':' unambiguous as the separator between key parts.
var keyPartEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key builds the window key for a rule and subject, e.g.
// "sentinel:window:failed-login-burst:u1:h1". Subject parts are escaped, so
// ("a:b", "c") and ("a", "b:c") map to different keys. An empty part stays
// empty and never collides with a literal value.
func Key(prefix, ruleID string, subject ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(ruleID)
	for _, part := range subject {
		b.WriteByte(':')
		b.WriteString(keyPartEscaper.Replace(part))
	}
	return b.String()
}
