// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package eventprocessor

import "errors"

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("alert publisher closed")

// ErrConnectionLost marks a broker connection failure that requires a
// reconnect rather than a per-message retry.
var ErrConnectionLost = errors.New("broker connection lost")

// ErrNotConsuming is returned when a session operation runs without an
// established consumer.
var ErrNotConsuming = errors.New("consumer not established")
