// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package api provides the HTTP surface of the diary companion: a chi router,
middleware factories, the JSON response envelope and one handler per
companion feature.

# Routes

	GET  /api/v1/health                  summary (breakers, Supabase, auth mode)
	GET  /api/v1/health/live             liveness
	GET  /api/v1/health/ready            readiness, 503 without an OpenRouter key
	POST /api/v1/chat                    server-sent event stream
	POST /api/v1/title                   {title, model, fallback}
	POST /api/v1/comment                 {comment, model}
	POST /api/v1/prompts                 {prompts, model, cached}
	POST /api/v1/bubble                  {message, model, fallback}
	POST /api/v1/wishes/split            {steps, model}
	POST /api/v1/letters/weekly          {letter, model, week_start, entry_count, saved}
	POST /api/v1/characters/analyze      {character, model}
	POST /api/v1/daydream                {scene, strategy, model}
	GET  /metrics                        Prometheus

The web client's original paths (/api/chat, /api/generate-title, ...) are
served by the same handlers.

# Response Format

Every JSON response uses one envelope:

	{
	  "success": true,
	  "data": {...},
	  "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 12, "model": "..."}
	}

	{
	  "success": false,
	  "error": {"code": "EXTERNAL_SERVICE_FAILED", "message": "...", "request_id": "..."}
	}

When every model in a chain fails the status is 502. Features whose storage
dependency is not configured answer 503.

# Middleware

Global: request ID with logging context, RealIP, Recoverer, CORS. Under
/api: security headers and Cache-Control: no-store. Companion routes add the
global per-IP limit, Prometheus metrics, the body limit, bearer token
authentication (required when REQUIRE_AUTH is set) and the AI limit keyed
by user ID or IP.
*/
package api
