// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

// Package metrics holds the Prometheus collectors of the analysis engine.
//
// Collectors are registered on the default registry at package init and are
// written only through the Record*/Set* helpers below, at the moment the
// corresponding event happens. The /metrics endpoint reads them via promhttp.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes used as the "outcome" label.
const (
	OutcomeAcked      = "acked"
	OutcomeRequeued   = "requeued"
	OutcomeMalformed  = "malformed"
	OutcomeAckFailed  = "ack_failed"
	unknownEventType  = "unknown"
	otherEventType    = "other"
)

// knownEventTypes are the event types that get their own label value.
// Everything else is counted as "other" so producers cannot grow the series
// count.
var (
	knownEventTypesMu sync.RWMutex
	knownEventTypes   = map[string]struct{}{
		"LOGIN_ATTEMPT": {},
		"FILE_MODIFIED": {},
	}
)

// RegisterEventTypes adds event types that are reported under their own
// label, typically the event types the enabled rules match on.
func RegisterEventTypes(eventTypes ...string) {
	knownEventTypesMu.Lock()
	defer knownEventTypesMu.Unlock()
	for _, et := range eventTypes {
		if et != "" {
			knownEventTypes[et] = struct{}{}
		}
	}
}

// Consumer loop states used as the "state" label.
var consumerStates = []string{"disconnected", "connecting", "consuming", "reconnecting", "stopped"}

var (
	// EventsProcessed counts finished messages by event type and outcome.
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_events_processed_total",
			Help: "Audit events processed, by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_generated_total",
			Help: "Alerts produced by rule evaluators",
		},
		[]string{"rule_id", "severity"},
	)

	MessagesRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_messages_requeued_total",
			Help: "Messages rejected with requeue after a transient failure",
		},
	)

	// MessagesRejected counts messages rejected without requeue (poison messages).
	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_messages_rejected_total",
			Help: "Messages rejected without requeue",
		},
		[]string{"reason"},
	)

	AckFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_ack_failures_total",
			Help: "Ack, nak or term calls the broker did not confirm",
		},
	)

	// MessagesWithoutJSONContentType counts messages whose Content-Type
	// header is missing or not JSON. The body is parsed regardless.
	MessagesWithoutJSONContentType = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_messages_without_json_content_type_total",
			Help: "Inbound messages that did not declare a JSON content type",
		},
	)

	BrokerConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_broker_connection_status",
			Help: "Broker connection status (1 = connected, 0 = disconnected)",
		},
	)

	WindowStoreConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_window_store_connection_status",
			Help: "Window store connection status (1 = connected, 0 = disconnected)",
		},
	)

	ConsumerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_consumer_state",
			Help: "Current consumer loop state (1 for the active state)",
		},
		[]string{"state"},
	)

	BrokerReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_broker_reconnects_total",
			Help: "Reconnect attempts made by the consumer loop",
		},
	)

	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_event_processing_duration_seconds",
			Help:    "Time from receipt to ack decision",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_rule_evaluation_duration_seconds",
			Help:    "Duration of a single rule evaluation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"rule_id"},
	)

	WindowStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_window_store_operation_duration_seconds",
			Help:    "Window store round-trip duration",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"operation", "status"},
	)

	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_published_total",
			Help: "Alert publish attempts by status",
		},
		[]string{"status"},
	)

	AlertPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_alert_publish_duration_seconds",
			Help:    "Time from publish call to broker confirmation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_circuit_breaker_state",
			Help: "Circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Probe and metrics requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "Probe and metrics request latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "route"},
	)
)

// RecordEventProcessed records the final outcome of one message.
func RecordEventProcessed(eventType, outcome string, duration time.Duration) {
	EventsProcessed.WithLabelValues(eventTypeLabel(eventType), outcome).Inc()
	EventProcessingDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordAlertGenerated records one alert produced by a rule.
func RecordAlertGenerated(ruleID, severity string) {
	AlertsGenerated.WithLabelValues(ruleID, severity).Inc()
}

// RecordRequeued records a reject-with-requeue decision.
func RecordRequeued() {
	MessagesRequeued.Inc()
}

// RecordRejected records a reject-without-requeue decision.
func RecordRejected(reason string) {
	MessagesRejected.WithLabelValues(reason).Inc()
}

// RecordAckFailure records a settlement the broker did not confirm.
func RecordAckFailure() {
	AckFailures.Inc()
}

func RecordMissingJSONContentType() {
	MessagesWithoutJSONContentType.Inc()
}

// SetBrokerConnected updates the broker connection gauge.
func SetBrokerConnected(connected bool) {
	BrokerConnectionStatus.Set(boolToFloat(connected))
}

// SetWindowStoreConnected updates the window store connection gauge.
func SetWindowStoreConnected(connected bool) {
	WindowStoreConnectionStatus.Set(boolToFloat(connected))
}

// SetConsumerState marks state as the only active consumer state.
func SetConsumerState(state string) {
	for _, s := range consumerStates {
		if s == state {
			ConsumerState.WithLabelValues(s).Set(1)
		} else {
			ConsumerState.WithLabelValues(s).Set(0)
		}
	}
}

// RecordReconnect records one reconnect attempt.
func RecordReconnect() {
	BrokerReconnects.Inc()
}

// RecordRuleEvaluation records how long a rule took.
func RecordRuleEvaluation(ruleID string, duration time.Duration) {
	RuleEvaluationDuration.WithLabelValues(ruleID).Observe(duration.Seconds())
}

// RecordWindowStoreOperation records a window store round trip.
func RecordWindowStoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WindowStoreOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordAlertPublish records a publish attempt and its confirm latency.
func RecordAlertPublish(duration time.Duration, err error) {
	if err != nil {
		AlertsPublished.WithLabelValues("error").Inc()
		return
	}
	AlertsPublished.WithLabelValues("success").Inc()
	AlertPublishDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records one served request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a breaker state change.
// State values follow gobreaker: closed=0, half-open=1, open=2.
func RecordCircuitBreakerTransition(name, from, to string, toValue int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(toValue))
}

// eventTypeLabel maps an untrusted event type onto the bounded label set.
func eventTypeLabel(eventType string) string {
	if eventType == "" {
		return unknownEventType
	}
	knownEventTypesMu.RLock()
	_, ok := knownEventTypes[eventType]
	knownEventTypesMu.RUnlock()
	if !ok {
		return otherEventType
	}
	return eventType
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
