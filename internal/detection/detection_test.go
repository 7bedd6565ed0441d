// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/auditsentinel/internal/models"
	"github.com/tomtom215/auditsentinel/internal/windowstore"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return base.Add(time.Hour) }

// event builds a parsed AuditEvent from fields.
func event(t *testing.T, fields map[string]interface{}) *models.AuditEvent {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ev, err := models.ParseAuditEvent(data)
	if err != nil {
		t.Fatalf("ParseAuditEvent: %v", err)
	}
	return ev
}

func failedLogin(t *testing.T, id, user, host string, at time.Duration) *models.AuditEvent {
	t.Helper()
	return event(t, map[string]interface{}{
		"event_id":        id,
		"timestamp":       base.Add(at).Format(time.RFC3339),
		"event_type":      models.EventTypeLoginAttempt,
		"server_hostname": host,
		"user_id":         user,
		"action_result":   models.ActionResultFailure,
		"details":         map[string]interface{}{"ip_address": "10.0.0.5"},
	})
}

func fileModified(t *testing.T, id, path string) *models.AuditEvent {
	t.Helper()
	return event(t, map[string]interface{}{
		"event_id":        id,
		"timestamp":       base.Format(time.RFC3339),
		"event_type":      models.EventTypeFileModified,
		"server_hostname": "h1",
		"user_id":         "u1",
		"action_result":   models.ActionResultSuccess,
		"details":         map[string]interface{}{"file_path": path},
	})
}

func loginRule(store windowstore.Store, threshold int64, window time.Duration) *FailedLoginBurst {
	cfg := DefaultFailedLoginBurstConfig()
	cfg.Threshold = threshold
	cfg.Window = window
	return NewFailedLoginBurst(cfg, store, Options{SourceService: "audit-analysis", Now: fixedNow})
}

func TestFailedLoginBurst_FiresAtThreshold(t *testing.T) {
	t.Parallel()

	for threshold := int64(1); threshold <= 5; threshold++ {
		t.Run(fmt.Sprintf("threshold=%d", threshold), func(t *testing.T) {
			t.Parallel()
			rule := loginRule(windowstore.NewMemoryStore(nil), threshold, 60*time.Second)

			for n := int64(1); n <= threshold+1; n++ {
				ev := failedLogin(t, fmt.Sprintf("e%d", n), "u1", "h1", time.Duration(n)*time.Second)
				alerts, err := rule.Evaluate(context.Background(), ev)
				if err != nil {
					t.Fatalf("Evaluate: %v", err)
				}
				if n < threshold && len(alerts) != 0 {
					t.Errorf("event %d below threshold produced %d alerts", n, len(alerts))
				}
				if n >= threshold && len(alerts) != 1 {
					t.Errorf("event %d at/above threshold produced %d alerts, want 1", n, len(alerts))
				}
			}
		})
	}
}

func TestFailedLoginBurst_WindowExpiry(t *testing.T) {
	t.Parallel()

	window := 60 * time.Second
	rule := loginRule(windowstore.NewMemoryStore(nil), 2, window)
	ctx := context.Background()

	if alerts, err := rule.Evaluate(ctx, failedLogin(t, "e1", "u1", "h1", 0)); err != nil || len(alerts) != 0 {
		t.Fatalf("first event = (%d alerts, %v)", len(alerts), err)
	}
	alerts, err := rule.Evaluate(ctx, failedLogin(t, "e2", "u1", "h1", window+time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("event outside the window must not count, got %d alerts", len(alerts))
	}
}

func TestFailedLoginBurst_ExampleScenario(t *testing.T) {
	t.Parallel()

	rule := loginRule(windowstore.NewMemoryStore(nil), 3, 60*time.Second)
	ctx := context.Background()

	var got []*models.Alert
	for i, at := range []time.Duration{0, 10 * time.Second, 20 * time.Second} {
		alerts, err := rule.Evaluate(ctx, failedLogin(t, fmt.Sprintf("e%d", i), "u1", "h1", at))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if i < 2 && len(alerts) != 0 {
			t.Fatalf("event %d fired early", i)
		}
		got = append(got, alerts...)
	}

	if len(got) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(got))
	}
	a := got[0]
	if a.AnalysisRule.RuleID != RuleIDFailedLoginBurst {
		t.Errorf("rule_id = %q", a.AnalysisRule.RuleID)
	}
	if a.ImpactedResource.ServerHostname != "h1" {
		t.Errorf("impacted_resource.server_hostname = %q", a.ImpactedResource.ServerHostname)
	}
	if a.Severity != models.SeverityHigh {
		t.Errorf("severity = %q, want HIGH", a.Severity)
	}
	if a.TriggeredBy.ActorID != "u1" || a.TriggeredBy.ClientIP != "10.0.0.5" {
		t.Errorf("triggered_by = %+v", a.TriggeredBy)
	}
	if a.ActionObserved != models.ActionResultFailure {
		t.Errorf("action_observed = %q", a.ActionObserved)
	}
	if a.Metadata["attempts_in_window"] != int64(3) {
		t.Errorf("metadata.attempts_in_window = %v", a.Metadata["attempts_in_window"])
	}
	if a.SourceServiceName != "audit-analysis" {
		t.Errorf("source_service_name = %q", a.SourceServiceName)
	}
	if a.Timestamp != models.FormatAlertTime(fixedNow()) {
		t.Errorf("timestamp = %q", a.Timestamp)
	}
}

func TestFailedLoginBurst_SubjectsAreIndependent(t *testing.T) {
	t.Parallel()

	rule := loginRule(windowstore.NewMemoryStore(nil), 2, time.Minute)
	ctx := context.Background()

	subjects := [][2]string{{"u1", "h1"}, {"u1", "h2"}, {"u2", "h1"}}
	for i, s := range subjects {
		alerts, err := rule.Evaluate(ctx, failedLogin(t, fmt.Sprintf("e%d", i), s[0], s[1], 0))
		if err != nil {
			t.Fatal(err)
		}
		if len(alerts) != 0 {
			t.Errorf("subject %v fired on its first failure", s)
		}
	}
}

func TestFailedLoginBurst_RedeliveryDoesNotDoubleCount(t *testing.T) {
	t.Parallel()

	rule := loginRule(windowstore.NewMemoryStore(nil), 2, time.Minute)
	ev := failedLogin(t, "same-event", "u1", "h1", 0)

	for i := 0; i < 3; i++ {
		alerts, err := rule.Evaluate(context.Background(), ev)
		if err != nil {
			t.Fatal(err)
		}
		if len(alerts) != 0 {
			t.Fatalf("redelivery %d fired: one event must count once", i)
		}
	}
}

func TestFailedLoginBurst_IgnoresNonQualifyingEvents(t *testing.T) {
	t.Parallel()

	store := windowstore.NewMemoryStore(nil)
	rule := loginRule(store, 1, time.Minute)

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{"successful login", map[string]interface{}{"event_type": "LOGIN_ATTEMPT", "action_result": "SUCCESS"}},
		{"lowercase failure", map[string]interface{}{"event_type": "LOGIN_ATTEMPT", "action_result": "failure"}},
		{"other event type", map[string]interface{}{"event_type": "USER_LOGOUT", "action_result": "FAILURE"}},
	}
	for _, tt := range tests {
		fields := map[string]interface{}{
			"event_id": "x", "timestamp": base.Format(time.RFC3339), "user_id": "u1", "server_hostname": "h1",
		}
		for k, v := range tt.fields {
			fields[k] = v
		}
		alerts, err := rule.Evaluate(context.Background(), event(t, fields))
		if err != nil || len(alerts) != 0 {
			t.Errorf("%s: got (%d alerts, %v), want none", tt.name, len(alerts), err)
		}
	}
	if n := store.Len(windowstore.Key(windowstore.DefaultKeyPrefix, RuleIDFailedLoginBurst, "u1", "h1")); n != 0 {
		t.Errorf("non-qualifying events touched the window store (%d markers)", n)
	}
}

func TestFailedLoginBurst_ActorIDFallback(t *testing.T) {
	t.Parallel()

	store := windowstore.NewMemoryStore(nil)
	rule := loginRule(store, 1, time.Minute)
	ev := event(t, map[string]interface{}{
		"event_id": "e1", "timestamp": base.Format(time.RFC3339), "event_type": "LOGIN_ATTEMPT",
		"action_result": "FAILURE", "actor_id": "svc-1", "server_hostname": "h9",
	})

	alerts, err := rule.Evaluate(context.Background(), ev)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("got (%d alerts, %v)", len(alerts), err)
	}
	if alerts[0].TriggeredBy.ActorID != "svc-1" {
		t.Errorf("actor_id = %q, want svc-1", alerts[0].TriggeredBy.ActorID)
	}
	if store.Len(windowstore.Key(windowstore.DefaultKeyPrefix, RuleIDFailedLoginBurst, "svc-1", "h9")) != 1 {
		t.Error("window key should use the actor_id fallback")
	}
}

func TestFailedLoginBurst_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	store := windowstore.NewMemoryStore(nil)
	store.FailNext(1)
	rule := loginRule(store, 1, time.Minute)

	_, err := rule.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0))
	if !errors.Is(err, windowstore.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestSensitiveFileModification(t *testing.T) {
	t.Parallel()

	rule := NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{Now: fixedNow})

	tests := []struct {
		path string
		want int
	}{
		{"/etc/shadow", 1},
		{"/etc/passwd", 1},
		{"/root/.ssh/authorized_keys", 1},
		{"/etc/SHADOW", 0},
		{"/etc/shadow/", 0},
		{"/tmp/notes.txt", 0},
		{"", 0},
	}
	for _, tt := range tests {
		alerts, err := rule.Evaluate(context.Background(), fileModified(t, "f1", tt.path))
		if err != nil {
			t.Fatalf("%q: %v", tt.path, err)
		}
		if len(alerts) != tt.want {
			t.Errorf("%q: %d alerts, want %d", tt.path, len(alerts), tt.want)
		}
	}
}

func TestSensitiveFileModification_ExampleScenario(t *testing.T) {
	t.Parallel()

	rule := NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{})
	alerts, err := rule.Evaluate(context.Background(), fileModified(t, "f1", "/etc/shadow"))
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Severity != models.SeverityCritical {
		t.Errorf("severity = %q, want CRITICAL", a.Severity)
	}
	if a.ImpactedResource.ResourceType != "file" || a.ImpactedResource.ResourceID != "/etc/shadow" {
		t.Errorf("impacted_resource = %+v", a.ImpactedResource)
	}
	if a.ActionObserved != models.EventTypeFileModified {
		t.Errorf("action_observed = %q", a.ActionObserved)
	}
}

func TestSensitiveFileModification_ResourceKeyFallback(t *testing.T) {
	t.Parallel()

	rule := NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{})
	ev := event(t, map[string]interface{}{
		"event_id": "f2", "timestamp": base.Format(time.RFC3339), "event_type": "FILE_MODIFIED",
		"details": map[string]interface{}{"resource": "/etc/sudoers"},
	})

	alerts, err := rule.Evaluate(context.Background(), ev)
	if err != nil || len(alerts) != 1 {
		t.Errorf("got (%d alerts, %v), want one", len(alerts), err)
	}
}

func TestSensitiveFileModification_WrongEventType(t *testing.T) {
	t.Parallel()

	rule := NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{})
	ev := event(t, map[string]interface{}{
		"event_id": "f3", "timestamp": base.Format(time.RFC3339), "event_type": "FILE_READ",
		"details": map[string]interface{}{"file_path": "/etc/shadow"},
	})

	alerts, err := rule.Evaluate(context.Background(), ev)
	if err != nil || len(alerts) != 0 {
		t.Errorf("got (%d alerts, %v), want none", len(alerts), err)
	}
}
