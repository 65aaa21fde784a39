// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package metrics defines the Prometheus collectors exported at /metrics.

Collectors are registered with promauto on the default registry. Callers use
the Record* helpers rather than touching the vectors directly so label sets
stay consistent.

Metric families:
  - api_*: request count, latency and in-flight requests per route
  - llm_*: attempts per feature/model/outcome, fallback depth, exhaustion, tokens
  - sse_*: relayed content events and stream results
  - daydream_parse_strategy_total: which recovery strategy parsed a scene
  - supabase_*, realtime_*, autocomment_*: persistence and change feed
  - circuit_breaker_*: per-model and Supabase breaker state
  - prompt_cache_*: journaling prompt cache efficiency

Model identifiers are bounded by configuration, so using them as label
values does not grow cardinality with traffic.
*/
package metrics
