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
)

// SensitiveFileModification fires on every modification of a watched path.
// It keeps no state.
type SensitiveFileModification struct {
	opts       Options
	mu         sync.RWMutex
	config     SensitiveFileConfig
	paths      map[string]struct{}
	eventTypes map[string]struct{}
}

// NewSensitiveFileModification creates the rule.
//
//nolint:gocritic // config structs are passed by value throughout
func NewSensitiveFileModification(cfg SensitiveFileConfig, opts Options) *SensitiveFileModification {
	if len(cfg.PathKeys) == 0 {
		cfg.PathKeys = DefaultSensitiveFileConfig().PathKeys
	}
	return &SensitiveFileModification{
		opts:       opts.withDefaults(),
		config:     cfg,
		paths:      stringSet(cfg.Paths),
		eventTypes: stringSet(cfg.EventTypes),
	}
}

// RuleID implements Evaluator.
func (r *SensitiveFileModification) RuleID() string { return RuleIDSensitiveFileModification }

// RuleName implements Evaluator.
func (r *SensitiveFileModification) RuleName() string { return "Sensitive File Modification" }

// Enabled implements Evaluator.
func (r *SensitiveFileModification) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Enabled
}

// SetEnabled toggles the rule.
func (r *SensitiveFileModification) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Enabled = enabled
}

// Evaluate implements Evaluator.
func (r *SensitiveFileModification) Evaluate(_ context.Context, event *models.AuditEvent) ([]*models.Alert, error) {
	r.mu.RLock()
	cfg := r.config
	paths := r.paths
	eventTypes := r.eventTypes
	r.mu.RUnlock()

	if _, ok := eventTypes[event.EventType]; !ok {
		return nil, nil
	}

	path, ok := filePath(event, cfg.PathKeys)
	if !ok {
		return nil, nil
	}
	if _, watched := paths[path]; !watched {
		return nil, nil
	}

	actor := event.Actor()
	alert := models.NewAlert(r.opts.SourceService, event, models.AlertSpec{
		Name:        "Sensitive File Modification Detected",
		Type:        "sensitive_file_modified",
		Severity:    cfg.Severity,
		Description: fmt.Sprintf("Sensitive file %q modified on host %q by %q", path, event.ServerHostname, actor),
		Rule:        models.AnalysisRule{RuleID: r.RuleID(), RuleName: r.RuleName()},
		TriggeredBy: models.TriggeredBy{
			ActorType: "user",
			ActorID:   actor,
			ClientIP:  event.ClientAddress(),
		},
		ImpactedResource: models.ImpactedResource{
			ResourceType:   "file",
			ResourceID:     path,
			ServerHostname: event.ServerHostname,
		},
		ActionObserved: event.EventType,
		Metadata: map[string]interface{}{
			"file_path": path,
		},
	}, r.opts.Now())

	return []*models.Alert{alert}, nil
}

// filePath returns the first non-empty string found under keys.
func filePath(event *models.AuditEvent, keys []string) (string, bool) {
	for _, k := range keys {
		if p, ok := event.DetailString(k); ok {
			return p, true
		}
	}
	return "", false
}
