// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

/*
Package supervisor runs the sentinel's long-lived services under suture v4.

	RootSupervisor ("audit-sentinel")
	├── PipelineSupervisor ("pipeline-layer")
	│   └── ConsumerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A service that returns an error or panics is restarted with suture's
failure decay and backoff. The consumer loop already retries broken broker
connections on its own, so a restart here means something went wrong
outside the loop (a panic, or a configuration error surfacing late).

Supervisor events are logged through sutureslog on top of the zerolog
bridge in internal/logging:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewConsumerService(consumer))
	tree.AddAPIService(services.NewHTTPServerService(server, listener, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
