// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

// Package detection evaluates audit events against detection rules.
//
// Every rule implements Evaluator. The Engine runs a fixed, ordered list of
// evaluators on each event and returns every alert they produce; an error
// from any evaluator (including a recovered panic) fails the whole event so
// the caller can requeue it. Adding a rule means adding an Evaluator to the
// list handed to NewEngine.
package detection

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/auditsentinel/internal/models"
)

// Rule identifiers, used as analysis_rule.rule_id and metric labels.
const (
	RuleIDFailedLoginBurst          = "failed-login-burst"
	RuleIDSensitiveFileModification = "sensitive-file-modification"
)

// ErrEvaluatorPanic wraps a panic recovered from rule logic.
var ErrEvaluatorPanic = errors.New("rule evaluator panicked")

// Evaluator inspects one event and returns zero or more alerts. Evaluate must
// not fail on well-formed input except for dependency errors.
type Evaluator interface {
	RuleID() string
	RuleName() string
	Enabled() bool
	Evaluate(ctx context.Context, event *models.AuditEvent) ([]*models.Alert, error)
}

// Options carries the settings shared by all evaluators.
type Options struct {
	// SourceService is written to alert.source_service_name.
	SourceService string

	// KeyPrefix namespaces window store keys.
	KeyPrefix string

	// Now stamps alerts; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SourceService == "" {
		o.SourceService = "audit-sentinel"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FailedLoginBurstConfig configures the failed-login-burst rule.
type FailedLoginBurstConfig struct {
	Enabled bool

	// Window is the trailing interval failures are counted over.
	Window time.Duration

	// Threshold is the failure count that fires the rule.
	Threshold int64

	Severity string

	// EventTypes are the event_type values treated as login attempts.
	EventTypes []string

	// FailureResult is the action_result value counted as a failure.
	FailureResult string
}

// DefaultFailedLoginBurstConfig returns 3 failures in 60s at HIGH.
func DefaultFailedLoginBurstConfig() FailedLoginBurstConfig {
	return FailedLoginBurstConfig{
		Enabled:       true,
		Window:        60 * time.Second,
		Threshold:     3,
		Severity:      models.SeverityHigh,
		EventTypes:    []string{models.EventTypeLoginAttempt},
		FailureResult: models.ActionResultFailure,
	}
}

// SensitiveFileConfig configures the sensitive-file-modification rule.
type SensitiveFileConfig struct {
	Enabled bool

	// Paths are matched exactly and case-sensitively.
	Paths []string

	Severity string

	// EventTypes are the event_type values treated as file modifications.
	EventTypes []string

	// PathKeys are the details keys holding the file path, tried in order.
	PathKeys []string
}

// DefaultSensitiveFileConfig watches the usual credential and sudo files.
func DefaultSensitiveFileConfig() SensitiveFileConfig {
	return SensitiveFileConfig{
		Enabled: true,
		Paths: []string{
			"/etc/passwd",
			"/etc/shadow",
			"/etc/sudoers",
			"/root/.ssh/authorized_keys",
		},
		Severity:   models.SeverityCritical,
		EventTypes: []string{models.EventTypeFileModified},
		PathKeys:   []string{"file_path", "resource"},
	}
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
