// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package detection

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/auditsentinel/internal/models"
	"github.com/tomtom215/auditsentinel/internal/windowstore"
)

// FailedLoginBurst fires when a user accumulates Threshold failed logins on
// one host inside the trailing window.
//
// Once the count is at or above the threshold, every further failure inside
// the window raises another alert.
type FailedLoginBurst struct {
	store      windowstore.Store
	opts       Options
	mu         sync.RWMutex
	config     FailedLoginBurstConfig
	eventTypes map[string]struct{}
}

// NewFailedLoginBurst creates the rule over store.
//
//nolint:gocritic // config structs are passed by value throughout
func NewFailedLoginBurst(cfg FailedLoginBurstConfig, store windowstore.Store, opts Options) *FailedLoginBurst {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = windowstore.DefaultKeyPrefix
	}
	return &FailedLoginBurst{
		store:      store,
		opts:       opts.withDefaults(),
		config:     cfg,
		eventTypes: stringSet(cfg.EventTypes),
	}
}

// RuleID implements Evaluator.
func (r *FailedLoginBurst) RuleID() string { return RuleIDFailedLoginBurst }

// RuleName implements Evaluator.
func (r *FailedLoginBurst) RuleName() string { return "Failed Login Burst" }

// Enabled implements Evaluator.
func (r *FailedLoginBurst) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Enabled
}

// SetEnabled toggles the rule.
func (r *FailedLoginBurst) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Enabled = enabled
}

// Config returns a copy of the active configuration.
func (r *FailedLoginBurst) Config() FailedLoginBurstConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Evaluate implements Evaluator.
func (r *FailedLoginBurst) Evaluate(ctx context.Context, event *models.AuditEvent) ([]*models.Alert, error) {
	r.mu.RLock()
	cfg := r.config
	eventTypes := r.eventTypes
	r.mu.RUnlock()

	if _, ok := eventTypes[event.EventType]; !ok || event.ActionResult != cfg.FailureResult {
		return nil, nil
	}

	actor := event.Actor()
	key := windowstore.Key(r.opts.KeyPrefix, RuleIDFailedLoginBurst, actor, event.ServerHostname)

	count, err := r.store.IncrementAndCount(ctx, key, event.EventID, event.Timestamp, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", RuleIDFailedLoginBurst, err)
	}
	if count < cfg.Threshold {
		return nil, nil
	}

	windowSeconds := int64(cfg.Window.Seconds())
	alert := models.NewAlert(r.opts.SourceService, event, models.AlertSpec{
		Name:     "Failed Login Burst Detected",
		Type:     "failed_login_burst",
		Severity: cfg.Severity,
		Description: fmt.Sprintf("%d failed login attempts for user %q on host %q within %ds (threshold %d)",
			count, actor, event.ServerHostname, windowSeconds, cfg.Threshold),
		Rule: models.AnalysisRule{RuleID: r.RuleID(), RuleName: r.RuleName()},
		TriggeredBy: models.TriggeredBy{
			ActorType: "user",
			ActorID:   actor,
			ClientIP:  event.ClientAddress(),
		},
		ImpactedResource: models.ImpactedResource{
			ResourceType:   "host",
			ResourceID:     event.ServerHostname,
			ServerHostname: event.ServerHostname,
		},
		ActionObserved: event.ActionResult,
		Metadata: map[string]interface{}{
			"attempts_in_window": count,
			"threshold":          cfg.Threshold,
			"window_seconds":     windowSeconds,
		},
	}, r.opts.Now())

	return []*models.Alert{alert}, nil
}
