// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

// Package api serves the probe and metrics endpoints over a Chi router.
//
// Endpoints:
//   - GET /healthz  overall health; 200 when ready, 503 otherwise
//   - GET /readyz   same body and status as /healthz, for readiness probes
//   - GET /livez    200 while the process serves HTTP
//   - GET /metrics  Prometheus exposition
//
// The handlers only read the health tracker; they never probe the broker or
// the window store themselves.
package api
