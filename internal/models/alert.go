// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Severity levels carried by alerts.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// AlertTimeLayout renders UTC with exactly one "Z" suffix and microseconds.
const AlertTimeLayout = "2006-01-02T15:04:05.000000Z"

// AnalysisRule names the evaluator that fired.
type AnalysisRule struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
}

// TriggeredBy describes who or what caused the alert.
type TriggeredBy struct {
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// ImpactedResource describes what was affected.
type ImpactedResource struct {
	ResourceType   string `json:"resource_type"`
	ResourceID     string `json:"resource_id"`
	ServerHostname string `json:"server_hostname"`
}

// Alert is the outbound record. Only rule evaluators build alerts (through
// NewAlert) and nothing mutates one afterwards.
type Alert struct {
	AlertID           string                 `json:"alert_id"`
	CorrelationID     string                 `json:"correlation_id"`
	Timestamp         string                 `json:"timestamp"`
	AlertName         string                 `json:"alert_name"`
	AlertType         string                 `json:"alert_type"`
	Severity          string                 `json:"severity"`
	Description       string                 `json:"description"`
	SourceServiceName string                 `json:"source_service_name"`
	AnalysisRule      AnalysisRule           `json:"analysis_rule"`
	TriggeredBy       TriggeredBy            `json:"triggered_by"`
	ImpactedResource  ImpactedResource       `json:"impacted_resource"`
	ActionObserved    string                 `json:"action_observed"`
	Metadata          map[string]interface{} `json:"metadata"`
	RawEventData      json.RawMessage        `json:"raw_event_data"`

	eventID string
}

// AlertSpec is the rule-specific part of an alert.
type AlertSpec struct {
	Name             string
	Type             string
	Severity         string
	Description      string
	Rule             AnalysisRule
	TriggeredBy      TriggeredBy
	ImpactedResource ImpactedResource
	ActionObserved   string
	Metadata         map[string]interface{}
}

// NewAlert builds an alert for event. The alert ID is always fresh; the
// correlation ID is taken from the event when it has one.
//
//nolint:gocritic // AlertSpec is a value-style parameter bag
func NewAlert(sourceService string, event *AuditEvent, spec AlertSpec, now time.Time) *Alert {
	correlationID := event.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	metadata := spec.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return &Alert{
		AlertID:           uuid.NewString(),
		CorrelationID:     correlationID,
		Timestamp:         FormatAlertTime(now),
		AlertName:         spec.Name,
		AlertType:         spec.Type,
		Severity:          spec.Severity,
		Description:       spec.Description,
		SourceServiceName: sourceService,
		AnalysisRule:      spec.Rule,
		TriggeredBy:       spec.TriggeredBy,
		ImpactedResource:  spec.ImpactedResource,
		ActionObserved:    spec.ActionObserved,
		Metadata:          metadata,
		RawEventData:      event.Raw(),
		eventID:           event.EventID,
	}
}

// FormatAlertTime formats t in UTC using AlertTimeLayout.
func FormatAlertTime(t time.Time) string {
	return t.UTC().Format(AlertTimeLayout)
}

// EventID returns the ID of the triggering event.
func (a *Alert) EventID() string {
	return a.eventID
}

// DedupKey is stable across redeliveries of the same event: the same event
// evaluated by the same rule always yields the same key.
func (a *Alert) DedupKey() string {
	return a.eventID + ":" + a.AnalysisRule.RuleID
}

// Marshal encodes the alert for the wire.
func (a *Alert) Marshal() ([]byte, error) {
	return json.Marshal(a)
}
