// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

/*
Package services adapts sentinel components to suture's Serve(ctx) model.

ConsumerService wraps the blocking consumer loop. It returns ctx.Err() on
shutdown and an error in every other case, so suture restarts it.

HTTPServerService wraps *http.Server. The first run serves on a listener
bound during startup; restarts bind the same address again. Shutdown drains
connections within a fixed timeout.
*/
package services
