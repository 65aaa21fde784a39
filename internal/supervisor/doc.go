// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package supervisor runs the long-lived parts of the server under suture v4.

# Overview

	RootSupervisor ("soulbloom")
	├── MessagingSupervisor ("messaging-layer")
	│   └── RealtimeService "autocomment-worker" (if AUTO_COMMENT_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

The realtime worker holds a websocket to Supabase. When the socket drops,
Serve returns an error and suture restarts the worker with backoff. The
HTTP layer is unaffected and requests keep flowing.

Failure counting follows suture's model: each failure adds one to a counter
that decays by FailureDecay seconds. Past FailureThreshold the supervisor
waits FailureBackoff before the next restart.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if worker != nil {
	    tree.AddMessagingService(services.NewRealtimeService(worker))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = <-tree.ServeBackground(ctx)

Supervisor events (start, failure, backoff) are logged through sutureslog
into the zerolog-backed slog handler from internal/logging.

# Shutdown

Cancelling the context stops both layers. Each service gets ShutdownTimeout
to return; services still running after that are listed by
UnstoppedServiceReport.
*/
package supervisor
