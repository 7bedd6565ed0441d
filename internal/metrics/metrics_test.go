// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// histogramCount reads the sample count of one histogram series.
func histogramCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := h.(prometheus.Metric)
	if !ok {
		t.Fatalf("%T is not a prometheus.Metric", h)
	}
	var m io_prometheus_client.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordEventProcessed(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		outcome   string
		wantLabel string
	}{
		{"login acked", "LOGIN_ATTEMPT", OutcomeAcked, "LOGIN_ATTEMPT"},
		{"file requeued", "FILE_MODIFIED", OutcomeRequeued, "FILE_MODIFIED"},
		{"malformed without type", "", OutcomeMalformed, "unknown"},
		{"unregistered type", "PROCESS_START", OutcomeAcked, "other"},
		{"oversized type", strings.Repeat("X", 200), OutcomeAcked, "other"},
		{"multibyte at label boundary", strings.Repeat("A", 63) + "\u00e9", OutcomeAcked, "other"},
		{"invalid utf-8", "LOGIN\xff", OutcomeRequeued, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(EventsProcessed.WithLabelValues(tt.wantLabel, tt.outcome))
			RecordEventProcessed(tt.eventType, tt.outcome, 5*time.Millisecond)
			after := testutil.ToFloat64(EventsProcessed.WithLabelValues(tt.wantLabel, tt.outcome))
			if after-before != 1 {
				t.Errorf("expected counter to increase by 1, got %v", after-before)
			}
		})
	}
}

func TestRegisterEventTypes(t *testing.T) {
	if got := eventTypeLabel("SSH_KEY_ADDED"); got != "other" {
		t.Fatalf("label before registration = %q, want other", got)
	}
	RegisterEventTypes("SSH_KEY_ADDED", "")
	if got := eventTypeLabel("SSH_KEY_ADDED"); got != "SSH_KEY_ADDED" {
		t.Errorf("label after registration = %q", got)
	}
	if got := eventTypeLabel(""); got != "unknown" {
		t.Errorf("empty type label = %q, want unknown", got)
	}
}

func TestRecordAlertGenerated(t *testing.T) {
	c := AlertsGenerated.WithLabelValues("failed-login-burst", "HIGH")
	before := testutil.ToFloat64(c)
	RecordAlertGenerated("failed-login-burst", "HIGH")
	RecordAlertGenerated("failed-login-burst", "HIGH")
	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("expected 2 alerts recorded, got %v", got)
	}
}

func TestRequeueAndReject(t *testing.T) {
	requeuedBefore := testutil.ToFloat64(MessagesRequeued)
	rejectedBefore := testutil.ToFloat64(MessagesRejected.WithLabelValues("malformed"))

	RecordRequeued()
	RecordRejected("malformed")

	if got := testutil.ToFloat64(MessagesRequeued) - requeuedBefore; got != 1 {
		t.Errorf("requeued delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(MessagesRejected.WithLabelValues("malformed")) - rejectedBefore; got != 1 {
		t.Errorf("rejected delta = %v, want 1", got)
	}
}

func TestConnectionGauges(t *testing.T) {
	SetBrokerConnected(true)
	if v := testutil.ToFloat64(BrokerConnectionStatus); v != 1 {
		t.Errorf("broker gauge = %v, want 1", v)
	}
	SetBrokerConnected(false)
	if v := testutil.ToFloat64(BrokerConnectionStatus); v != 0 {
		t.Errorf("broker gauge = %v, want 0", v)
	}

	SetWindowStoreConnected(true)
	if v := testutil.ToFloat64(WindowStoreConnectionStatus); v != 1 {
		t.Errorf("window store gauge = %v, want 1", v)
	}
	SetWindowStoreConnected(false)
}

func TestSetConsumerState(t *testing.T) {
	SetConsumerState("consuming")

	for _, s := range consumerStates {
		want := 0.0
		if s == "consuming" {
			want = 1
		}
		if got := testutil.ToFloat64(ConsumerState.WithLabelValues(s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestRecordAlertPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(AlertsPublished.WithLabelValues("success"))
	errBefore := testutil.ToFloat64(AlertsPublished.WithLabelValues("error"))

	RecordAlertPublish(2*time.Millisecond, nil)
	RecordAlertPublish(0, errors.New("no responders"))

	if got := testutil.ToFloat64(AlertsPublished.WithLabelValues("success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AlertsPublished.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordWindowStoreOperation(t *testing.T) {
	RecordWindowStoreOperation("increment_and_count", time.Millisecond, nil)
	RecordWindowStoreOperation("increment_and_count", time.Millisecond, errors.New("timeout"))

	if n := testutil.CollectAndCount(WindowStoreOperationDuration); n < 2 {
		t.Errorf("expected success and error series, got %d", n)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	before := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("window-store", "closed", "open"))
	RecordCircuitBreakerTransition("window-store", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("window-store", "closed", "open")) - before; got != 1 {
		t.Errorf("transition delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("window-store")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	counter := HTTPRequests.WithLabelValues("GET", "/healthz", "200")
	before := testutil.ToFloat64(counter)
	samplesBefore := histogramCount(t, HTTPRequestDuration.WithLabelValues("GET", "/healthz"))

	RecordHTTPRequest("GET", "/healthz", "200", 3*time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("request delta = %v, want 1", got)
	}
	if got := histogramCount(t, HTTPRequestDuration.WithLabelValues("GET", "/healthz")) - samplesBefore; got != 1 {
		t.Errorf("duration samples delta = %d, want 1", got)
	}
}

func TestAlertPublishDuration_OnlyOnSuccess(t *testing.T) {
	before := histogramCount(t, AlertPublishDuration)

	RecordAlertPublish(time.Millisecond, errors.New("no pub ack"))
	if got := histogramCount(t, AlertPublishDuration); got != before {
		t.Errorf("failed publish observed latency: %d -> %d", before, got)
	}
	RecordAlertPublish(time.Millisecond, nil)
	if got := histogramCount(t, AlertPublishDuration); got != before+1 {
		t.Errorf("samples = %d, want %d", got, before+1)
	}
}

func TestMetricsLint(t *testing.T) {
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, p := range problems {
		if strings.HasPrefix(p.Metric, "sentinel_") {
			t.Errorf("lint problem in %s: %s", p.Metric, p.Text)
		}
	}
}
