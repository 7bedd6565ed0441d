// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/auditsentinel/internal/metrics"
)

func TestBackoff_Duration(t *testing.T) {
	t.Parallel()

	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{1000, time.Second},
	}
	for _, tt := range tests {
		if got := b.Duration(tt.attempt); got != tt.want {
			t.Errorf("Duration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_JitterStaysBounded(t *testing.T) {
	t.Parallel()

	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Multiplier: 2, Jitter: 0.5}
	for i := 0; i < 200; i++ {
		d := b.Duration(1)
		if d < 200*time.Millisecond || d > 300*time.Millisecond {
			t.Fatalf("Duration(1) = %v, want within [200ms, 300ms]", d)
		}
	}
}

func TestWait(t *testing.T) {
	t.Parallel()

	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Wait returned %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on canceled ctx = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait should return immediately on a canceled context")
	}
}

func TestNewCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := BreakerConfig{Name: "test-breaker", MaxRequests: 1, Timeout: time.Hour, FailureThreshold: 3}
	cb := NewCircuitBreaker[int](cfg)

	failing := errors.New("redis down")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, failing }); !errors.Is(err, failing) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !IsBreakerOpen(err) {
		t.Errorf("expected open-breaker error, got %v", err)
	}
	if v := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-breaker")); v != float64(gobreaker.StateOpen) {
		t.Errorf("breaker gauge = %v, want %v", v, float64(gobreaker.StateOpen))
	}
}

func TestIsBreakerOpen(t *testing.T) {
	t.Parallel()

	if IsBreakerOpen(errors.New("other")) {
		t.Error("plain error reported as breaker open")
	}
	if !IsBreakerOpen(gobreaker.ErrTooManyRequests) {
		t.Error("ErrTooManyRequests should count as breaker open")
	}
}
