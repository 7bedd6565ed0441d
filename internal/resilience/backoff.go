// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is a bounded exponential backoff: Initial * Multiplier^attempt,
// capped at Max, with up to Jitter (fraction of the delay) added.
type Backoff struct {
	Initial    time.Duration `koanf:"initial"`
	Max        time.Duration `koanf:"max"`
	Multiplier float64       `koanf:"multiplier"`
	Jitter     float64       `koanf:"jitter"`
}

// DefaultBackoff starts at 1s and caps at 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// DefaultRedeliveryBackoff paces NAK redelivery of a message that keeps
// failing: 1s after the first delivery, doubling up to 1m.
func DefaultRedeliveryBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// Duration returns the delay before retry number attempt (0-based).
func (b Backoff) Duration(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(b.Initial) * math.Pow(mult, float64(attempt))
	if delay > float64(b.Max) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay += delay * b.Jitter * rand.Float64() //nolint:gosec // jitter does not need crypto randomness
	}
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}

// Wait sleeps for d or until ctx is done, returning ctx.Err() in the latter case.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
