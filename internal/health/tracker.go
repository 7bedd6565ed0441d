// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

// Package health tracks broker and window-store connectivity plus consumer
// liveness, and derives readiness from them.
//
// Each flag is written only by the component owning the connection. The
// owners receive the narrow setter interfaces below rather than the Tracker.
package health

import (
	"sync"
	"time"

	"github.com/tomtom215/auditsentinel/internal/metrics"
)

// StatusType is the overall health status reported to probes.
type StatusType string

const (
	StatusHealthy   StatusType = "healthy"
	StatusUnhealthy StatusType = "unhealthy"
)

// BrokerStatus is implemented by the Tracker and handed to the consumer loop.
type BrokerStatus interface {
	SetBrokerConnected(connected bool)
}

// WindowStoreStatus is implemented by the Tracker and handed to the window store client.
type WindowStoreStatus interface {
	SetWindowStoreConnected(connected bool)
}

// ConsumerLiveness is implemented by the Tracker and handed to the consumer loop.
type ConsumerLiveness interface {
	SetConsumerAlive(alive bool)
}

// Snapshot is a consistent copy of the tracked flags.
type Snapshot struct {
	Status               StatusType `json:"status"`
	Ready                bool       `json:"ready"`
	BrokerConnected      bool       `json:"broker_connected"`
	WindowStoreConnected bool       `json:"window_store_connected"`
	ConsumerAlive        bool       `json:"consumer_alive"`
	CheckedAt            time.Time  `json:"checked_at"`
}

// Tracker holds the connectivity flags. The zero value is usable and reports
// not ready.
type Tracker struct {
	mu                   sync.RWMutex
	brokerConnected      bool
	windowStoreConnected bool
	consumerAlive        bool
	now                  func() time.Time
}

// NewTracker returns a Tracker with every flag down and the gauges reset.
func NewTracker() *Tracker {
	metrics.SetBrokerConnected(false)
	metrics.SetWindowStoreConnected(false)
	return &Tracker{now: time.Now}
}

// SetBrokerConnected implements BrokerStatus.
func (t *Tracker) SetBrokerConnected(connected bool) {
	t.mu.Lock()
	t.brokerConnected = connected
	t.mu.Unlock()
	metrics.SetBrokerConnected(connected)
}

// SetWindowStoreConnected implements WindowStoreStatus.
func (t *Tracker) SetWindowStoreConnected(connected bool) {
	t.mu.Lock()
	t.windowStoreConnected = connected
	t.mu.Unlock()
	metrics.SetWindowStoreConnected(connected)
}

// SetConsumerAlive implements ConsumerLiveness.
func (t *Tracker) SetConsumerAlive(alive bool) {
	t.mu.Lock()
	t.consumerAlive = alive
	t.mu.Unlock()
}

// Snapshot returns the current flags. Ready requires all three to be true.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		BrokerConnected:      t.brokerConnected,
		WindowStoreConnected: t.windowStoreConnected,
		ConsumerAlive:        t.consumerAlive,
	}
	now := t.now
	t.mu.RUnlock()

	if now == nil {
		now = time.Now
	}
	s.CheckedAt = now().UTC()
	s.Ready = s.BrokerConnected && s.WindowStoreConnected && s.ConsumerAlive
	s.Status = StatusUnhealthy
	if s.Ready {
		s.Status = StatusHealthy
	}
	return s
}

// Ready is shorthand for Snapshot().Ready.
func (t *Tracker) Ready() bool {
	return t.Snapshot().Ready
}
