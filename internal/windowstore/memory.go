// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package windowstore

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/auditsentinel/internal/health"
	"github.com/tomtom215/auditsentinel/internal/metrics"
)

// MemoryStore keeps markers in process memory. It backs local development
// (window_store.backend = memory) and unit tests; state is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]map[string]int64 // key -> member -> score (unix ms)
	status  health.WindowStoreStatus
	closed  bool

	// failNext makes the next n calls fail with ErrUnavailable.
	failNext int
}

// NewMemoryStore returns an empty store. status may be nil.
func NewMemoryStore(status health.WindowStoreStatus) *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]map[string]int64),
		status:  status,
	}
}

// IncrementAndCount implements Store.
func (m *MemoryStore) IncrementAndCount(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	start := time.Now()
	count, err := m.incrementAndCount(ctx, key, member, now, window)
	metrics.RecordWindowStoreOperation("increment_and_count", time.Since(start), err)
	m.report(err)
	return count, err
}

func (m *MemoryStore) incrementAndCount(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("increment_and_count", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(); err != nil {
		return 0, err
	}

	score := now.UnixMilli()
	cutoff := score - window.Milliseconds()

	markers, ok := m.windows[key]
	if !ok {
		markers = make(map[string]int64)
		m.windows[key] = markers
	}
	markers[member] = score

	var count int64
	for mem, s := range markers {
		if s < cutoff {
			delete(markers, mem)
			continue
		}
		if s <= score {
			count++
		}
	}
	return count, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	err := ctx.Err()
	if err != nil {
		err = unavailable("ping", err)
	} else {
		m.mu.Lock()
		err = m.checkLocked()
		m.mu.Unlock()
	}
	m.report(err)
	return err
}

// Close implements Store. Later calls fail with ErrUnavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FailNext makes the next n operations fail with ErrUnavailable, simulating
// an outage.
func (m *MemoryStore) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Len returns the number of live markers under key.
func (m *MemoryStore) Len(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows[key])
}

// checkLocked must be called with mu held.
func (m *MemoryStore) checkLocked() error {
	if m.closed {
		return unavailable("memory", errStoreClosed)
	}
	if m.failNext > 0 {
		m.failNext--
		return unavailable("memory", errSimulatedOutage)
	}
	return nil
}

func (m *MemoryStore) report(err error) {
	if m.status != nil {
		m.status.SetWindowStoreConnected(err == nil)
	}
}
