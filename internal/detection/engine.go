// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package detection

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/metrics"
	"github.com/tomtom215/auditsentinel/internal/models"
)

// Engine runs evaluators in registration order.
type Engine struct {
	evaluators []Evaluator

	eventsEvaluated atomic.Int64
	alertsGenerated atomic.Int64
	errors          atomic.Int64
}

// EngineStats is a point-in-time copy of the engine counters.
type EngineStats struct {
	EventsEvaluated int64
	AlertsGenerated int64
	Errors          int64
}

// NewEngine returns an engine over evaluators. The slice order is the
// evaluation order.
func NewEngine(evaluators ...Evaluator) *Engine {
	list := make([]Evaluator, len(evaluators))
	copy(list, evaluators)

	for _, ev := range list {
		logging.Info().
			Str("rule_id", ev.RuleID()).
			Bool("enabled", ev.Enabled()).
			Msg("Registered rule evaluator")
	}
	return &Engine{evaluators: list}
}

// Evaluators returns the evaluators in evaluation order.
func (e *Engine) Evaluators() []Evaluator {
	out := make([]Evaluator, len(e.evaluators))
	copy(out, e.evaluators)
	return out
}

// Evaluate runs every enabled evaluator on event and collects their alerts.
// The first evaluator error aborts the run; no alerts are returned with it.
func (e *Engine) Evaluate(ctx context.Context, event *models.AuditEvent) ([]*models.Alert, error) {
	e.eventsEvaluated.Add(1)

	var alerts []*models.Alert
	for _, ev := range e.evaluators {
		if !ev.Enabled() {
			continue
		}

		start := time.Now()
		produced, err := runEvaluator(ctx, ev, event)
		metrics.RecordRuleEvaluation(ev.RuleID(), time.Since(start))
		if err != nil {
			e.errors.Add(1)
			return nil, err
		}
		alerts = append(alerts, produced...)
	}

	for _, a := range alerts {
		metrics.RecordAlertGenerated(a.AnalysisRule.RuleID, a.Severity)
		logging.Ctx(ctx).Info().
			Str("alert_id", a.AlertID).
			Str("rule_id", a.AnalysisRule.RuleID).
			Str("severity", a.Severity).
			Msg("Alert generated")
	}
	e.alertsGenerated.Add(int64(len(alerts)))
	return alerts, nil
}

// Stats returns the engine counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		EventsEvaluated: e.eventsEvaluated.Load(),
		AlertsGenerated: e.alertsGenerated.Load(),
		Errors:          e.errors.Load(),
	}
}

// runEvaluator converts a panic in rule code into ErrEvaluatorPanic.
func runEvaluator(ctx context.Context, ev Evaluator, event *models.AuditEvent) (alerts []*models.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().
				Str("rule_id", ev.RuleID()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Rule evaluator panicked")
			alerts = nil
			err = fmt.Errorf("%s: %w: %v", ev.RuleID(), ErrEvaluatorPanic, r)
		}
	}()
	return ev.Evaluate(ctx, event)
}
