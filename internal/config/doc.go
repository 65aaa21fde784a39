// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package config provides configuration loading and validation.

Configuration is layered with Koanf v2: struct defaults, then an optional
YAML file (CONFIG_PATH or config.yaml), then environment variables. A .env
file is merged into the environment first for local development.

# Environment Variables

Server:
  - HTTP_PORT / PORT: Listen port (default: 3000)
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT
  - ENVIRONMENT: development, staging, production

OpenRouter:
  - OPENROUTER_API_KEY: API key (required)
  - OPENROUTER_BASE_URL: API root (default: https://openrouter.ai/api/v1)
  - OPENROUTER_SITE_URL, OPENROUTER_APP_NAME: attribution headers
  - OPENROUTER_TIMEOUT, OPENROUTER_ATTEMPT_TIMEOUT
  - OPENROUTER_RPS, OPENROUTER_BURST: outbound rate limit
  - OPENROUTER_MAX_RETRIES: retries per model on 429/5xx (default: 2)

Model chains (comma-separated, tried in order):
  - CHAT_MODELS, TITLE_MODELS, COMMENT_MODELS, PROMPT_MODELS, BUBBLE_MODELS
  - WISH_MODELS, LETTER_MODELS, VISION_MODELS, DAYDREAM_MODELS

Supabase (optional):
  - SUPABASE_URL, SUPABASE_ANON_KEY, SUPABASE_SERVICE_ROLE_KEY
  - SUPABASE_JWT_SECRET: verifies access tokens locally
  - SUPABASE_STORAGE_BUCKET: character image bucket

Security:
  - CORS_ORIGINS, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - AI_RATE_LIMIT_REQUESTS, AI_RATE_LIMIT_WINDOW
  - REQUIRE_AUTH: reject requests without a Supabase access token
  - MAX_BODY_BYTES

Companion:
  - AUTO_COMMENT_ENABLED: comment on new diary entries via Supabase Realtime
  - PROMPT_CACHE_TTL, COMPANION_PERSONA

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
*/
package config
