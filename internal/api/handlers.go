// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/auditsentinel/internal/health"
	"github.com/tomtom215/auditsentinel/internal/logging"
)

// HealthSource provides the current health snapshot; health.Tracker implements it.
type HealthSource interface {
	Snapshot() health.Snapshot
}

// Handler serves the probe endpoints.
type Handler struct {
	health    HealthSource
	startTime time.Time
}

// NewHandler creates a Handler reading from src.
func NewHandler(src HealthSource) *Handler {
	return &Handler{health: src, startTime: time.Now()}
}

// Liveness is the /livez body.
type Liveness struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Healthz reports connectivity and readiness. The status code is 200 only
// when the broker, the window store and the consumer are all up.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.health.Snapshot()
	status := http.StatusOK
	if !snap.Ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, snap)
}

// Readyz is the readiness probe; it shares the /healthz semantics.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.Healthz(w, r)
}

// Livez answers as long as the HTTP server runs.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, Liveness{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
