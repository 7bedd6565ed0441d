// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package health

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/auditsentinel/internal/metrics"
)

func TestTracker_InitiallyNotReady(t *testing.T) {
	tr := NewTracker()

	s := tr.Snapshot()
	if s.Ready {
		t.Error("new tracker should not be ready")
	}
	if s.Status != StatusUnhealthy {
		t.Errorf("status = %s, want %s", s.Status, StatusUnhealthy)
	}
	if s.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
}

func TestTracker_ZeroValue(t *testing.T) {
	var tr Tracker
	if tr.Ready() {
		t.Error("zero tracker should not be ready")
	}
}

func TestTracker_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		broker   bool
		store    bool
		consumer bool
		want     bool
	}{
		{"all up", true, true, true, true},
		{"broker down", false, true, true, false},
		{"store down", true, false, true, false},
		{"consumer dead", true, true, false, false},
		{"all down", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tr.SetBrokerConnected(tt.broker)
			tr.SetWindowStoreConnected(tt.store)
			tr.SetConsumerAlive(tt.consumer)

			s := tr.Snapshot()
			if s.Ready != tt.want {
				t.Errorf("Ready = %v, want %v", s.Ready, tt.want)
			}
			if s.BrokerConnected != tt.broker || s.WindowStoreConnected != tt.store || s.ConsumerAlive != tt.consumer {
				t.Errorf("flags not reflected in snapshot: %+v", s)
			}
			wantStatus := StatusUnhealthy
			if tt.want {
				wantStatus = StatusHealthy
			}
			if s.Status != wantStatus {
				t.Errorf("Status = %s, want %s", s.Status, wantStatus)
			}
		})
	}
}

func TestTracker_UpdatesGauges(t *testing.T) {
	tr := NewTracker()

	tr.SetBrokerConnected(true)
	tr.SetWindowStoreConnected(true)
	if v := testutil.ToFloat64(metrics.BrokerConnectionStatus); v != 1 {
		t.Errorf("broker gauge = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.WindowStoreConnectionStatus); v != 1 {
		t.Errorf("window store gauge = %v, want 1", v)
	}

	tr.SetWindowStoreConnected(false)
	if v := testutil.ToFloat64(metrics.WindowStoreConnectionStatus); v != 0 {
		t.Errorf("window store gauge = %v, want 0", v)
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(v bool) {
			defer wg.Done()
			tr.SetBrokerConnected(v)
		}(i%2 == 0)
		go func(v bool) {
			defer wg.Done()
			tr.SetWindowStoreConnected(v)
		}(i%3 == 0)
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()
}

func TestTracker_SatisfiesOwnerInterfaces(t *testing.T) {
	tr := NewTracker()

	var (
		_ BrokerStatus      = tr
		_ WindowStoreStatus = tr
		_ ConsumerLiveness  = tr
	)
}
