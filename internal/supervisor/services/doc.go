// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package services adapts server components to suture.Service.

HTTPServerService turns http.Server's blocking ListenAndServe into a
context-aware Serve with graceful Shutdown.

RealtimeService supervises a realtime subscriber such as the auto-comment
worker. Each run carries its own correlation ID, and any exit while the
context is live is returned as an error so suture restarts the subscriber
with backoff.

Both record supervised_service_runs_total on exit.
*/
package services
