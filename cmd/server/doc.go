// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package main is the entry point for the Soul Bloom Diary API server.

The server is the stateless backend of a journaling app. It proxies every AI
feature (chat, titles, comments, prompts, bubbles, wish steps, weekly
letters, character analysis, daydreams) to OpenRouter with per-feature model
fallback, and uses Supabase for auth, diary storage, realtime events and
character images.

# Application Architecture

	RootSupervisor ("soulbloom")
	├── MessagingSupervisor ("messaging-layer")
	│   └── autocomment-worker (optional, AUTO_COMMENT_ENABLED)
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: .env, then Koanf v2 defaults, config file and environment
 2. Logging: zerolog with JSON or console output
 3. OpenRouter client with outbound rate limiting
 4. Fallback runner with one circuit breaker per model
 5. Supabase client with its own breaker (optional)
 6. Token verifier: local HS256 with SUPABASE_JWT_SECRET, else remote lookup
 7. Companion service and the optional auto-comment worker
 8. Chi router and HTTP server
 9. Supervisor tree

# Configuration

	# Server
	HTTP_PORT=3000               # PORT is honored when HTTP_PORT is unset
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# OpenRouter
	OPENROUTER_API_KEY=sk-or-... # required
	CHAT_MODELS=model-a,model-b  # per-feature chains, tried in order

	# Supabase (optional)
	SUPABASE_URL=https://<project>.supabase.co
	SUPABASE_ANON_KEY=...
	SUPABASE_SERVICE_ROLE_KEY=...  # needed by AUTO_COMMENT_ENABLED
	SUPABASE_JWT_SECRET=...        # local token verification

	# Access
	REQUIRE_AUTH=false
	CORS_ORIGINS=https://diary.example

A config.yaml (or CONFIG_PATH) may carry the same settings; environment
variables win.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server stops accepting
connections and drains in-flight requests for HTTP_SHUTDOWN_TIMEOUT; the
auto-comment worker finishes queued entries before returning.
*/
package main
