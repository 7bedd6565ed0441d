// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/auditsentinel/internal/models"
	"github.com/tomtom215/auditsentinel/internal/windowstore"
)

type stubEvaluator struct {
	id      string
	enabled bool
	alerts  int
	err     error
	panics  bool
	calls   int
}

func (s *stubEvaluator) RuleID() string   { return s.id }
func (s *stubEvaluator) RuleName() string { return "stub " + s.id }
func (s *stubEvaluator) Enabled() bool    { return s.enabled }

func (s *stubEvaluator) Evaluate(_ context.Context, event *models.AuditEvent) ([]*models.Alert, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.Alert, s.alerts)
	for i := range out {
		out[i] = models.NewAlert("test", event, models.AlertSpec{
			Severity: models.SeverityLow,
			Rule:     models.AnalysisRule{RuleID: s.id},
		}, time.Now())
	}
	return out, nil
}

func TestEngine_CollectsAlertsInOrder(t *testing.T) {
	t.Parallel()

	a := &stubEvaluator{id: "a", enabled: true, alerts: 1}
	b := &stubEvaluator{id: "b", enabled: true, alerts: 2}
	engine := NewEngine(a, b)

	alerts, err := engine.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}
	want := []string{"a", "b", "b"}
	for i, alert := range alerts {
		if alert.AnalysisRule.RuleID != want[i] {
			t.Errorf("alert %d rule = %q, want %q", i, alert.AnalysisRule.RuleID, want[i])
		}
	}

	stats := engine.Stats()
	if stats.EventsEvaluated != 1 || stats.AlertsGenerated != 3 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestEngine_SkipsDisabledEvaluators(t *testing.T) {
	t.Parallel()

	off := &stubEvaluator{id: "off", enabled: false, alerts: 1}
	on := &stubEvaluator{id: "on", enabled: true}
	engine := NewEngine(off, on)

	if _, err := engine.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0)); err != nil {
		t.Fatal(err)
	}
	if off.calls != 0 {
		t.Error("disabled evaluator was called")
	}
	if on.calls != 1 {
		t.Errorf("enabled evaluator called %d times, want 1", on.calls)
	}
}

func TestEngine_ErrorAbortsEvaluation(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("dependency down")
	first := &stubEvaluator{id: "first", enabled: true, alerts: 1}
	failing := &stubEvaluator{id: "failing", enabled: true, err: sentinel}
	after := &stubEvaluator{id: "after", enabled: true, alerts: 1}
	engine := NewEngine(first, failing, after)

	alerts, err := engine.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected evaluator error, got %v", err)
	}
	if alerts != nil {
		t.Errorf("no alerts may be returned alongside an error, got %d", len(alerts))
	}
	if after.calls != 0 {
		t.Error("evaluators after a failure must not run")
	}
	if engine.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", engine.Stats().Errors)
	}
}

func TestEngine_RecoversPanics(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&stubEvaluator{id: "panicky", enabled: true, panics: true})

	_, err := engine.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0))
	if !errors.Is(err, ErrEvaluatorPanic) {
		t.Fatalf("expected ErrEvaluatorPanic, got %v", err)
	}
}

func TestEngine_BuiltinRules(t *testing.T) {
	t.Parallel()

	store := windowstore.NewMemoryStore(nil)
	engine := NewEngine(
		loginRule(store, 3, time.Minute),
		NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{}),
	)
	ctx := context.Background()

	alerts, err := engine.Evaluate(ctx, fileModified(t, "f1", "/etc/shadow"))
	if err != nil || len(alerts) != 1 || alerts[0].AnalysisRule.RuleID != RuleIDSensitiveFileModification {
		t.Fatalf("file event: got (%v, %v)", alerts, err)
	}

	for i, at := range []time.Duration{0, 10 * time.Second, 20 * time.Second} {
		alerts, err = engine.Evaluate(ctx, failedLogin(t, string(rune('a'+i)), "u1", "h1", at))
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(alerts) != 1 || alerts[0].AnalysisRule.RuleID != RuleIDFailedLoginBurst {
		t.Errorf("third failure: got %d alerts", len(alerts))
	}
}

func TestEngine_StoreOutageFailsEvent(t *testing.T) {
	t.Parallel()

	store := windowstore.NewMemoryStore(nil)
	engine := NewEngine(
		NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{}),
		loginRule(store, 1, time.Minute),
	)
	store.FailNext(1)

	alerts, err := engine.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0))
	if !errors.Is(err, windowstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if alerts != nil {
		t.Error("no alerts expected on store failure")
	}

	alerts, err = engine.Evaluate(context.Background(), failedLogin(t, "e1", "u1", "h1", 0))
	if err != nil || len(alerts) != 1 {
		t.Errorf("retry after recovery: got (%d alerts, %v)", len(alerts), err)
	}
}

func TestFailedLoginBurst_SetEnabled(t *testing.T) {
	t.Parallel()

	rule := loginRule(windowstore.NewMemoryStore(nil), 1, time.Minute)
	rule.SetEnabled(false)
	if rule.Enabled() || rule.Config().Enabled {
		t.Error("rule should be disabled")
	}
	rule.SetEnabled(true)
	if !rule.Enabled() {
		t.Error("rule should be enabled")
	}
}

func TestEngine_StatefulAndStatelessRulesAreIndependent(t *testing.T) {
	t.Parallel()

	loginCfg := DefaultFailedLoginBurstConfig()
	loginCfg.Threshold = 1
	loginCfg.EventTypes = []string{models.EventTypeLoginAttempt, models.EventTypeFileModified}
	engine := NewEngine(
		NewFailedLoginBurst(loginCfg, windowstore.NewMemoryStore(nil), Options{}),
		NewSensitiveFileModification(DefaultSensitiveFileConfig(), Options{}),
	)

	ev := event(t, map[string]interface{}{
		"event_id":        "both-1",
		"timestamp":       base.Format(time.RFC3339),
		"event_type":      models.EventTypeFileModified,
		"server_hostname": "h1",
		"user_id":         "u1",
		"action_result":   models.ActionResultFailure,
		"details":         map[string]interface{}{"file_path": "/etc/shadow"},
	})

	alerts, err := engine.Evaluate(context.Background(), ev)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].AnalysisRule.RuleID != RuleIDFailedLoginBurst || alerts[1].AnalysisRule.RuleID != RuleIDSensitiveFileModification {
		t.Errorf("rule ids = %q, %q", alerts[0].AnalysisRule.RuleID, alerts[1].AnalysisRule.RuleID)
	}
	if alerts[0].AlertID == alerts[1].AlertID {
		t.Error("each alert needs its own alert_id")
	}
	if alerts[0].DedupKey() == alerts[1].DedupKey() {
		t.Error("dedup keys must differ per rule")
	}
}
