// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LLM attempt outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected" // model answered but the output was unusable
	OutcomeSkipped  = "skipped"  // circuit breaker open
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of requests currently being processed",
		},
	)

	// LLM Gateway Metrics
	LLMAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_attempts_total",
			Help: "Model attempts by feature, model and outcome",
		},
		[]string{"feature", "model", "outcome"},
	)

	LLMAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_attempt_duration_seconds",
			Help:    "Duration of a single model attempt in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"feature", "model"},
	)

	LLMFallbackExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_fallback_exhausted_total",
			Help: "Requests where every model in the chain failed",
		},
		[]string{"feature"},
	)

	LLMFallbackDepth = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_fallback_depth",
			Help:    "Position of the model that answered (0 = first choice)",
			Buckets: []float64{0, 1, 2, 3, 4, 6},
		},
		[]string{"feature"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens reported by the gateway",
		},
		[]string{"feature", "kind"}, // kind: prompt, completion
	)

	// SSE Metrics
	SSEEventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_events_relayed_total",
			Help: "Content events relayed to clients",
		},
		[]string{"feature"},
	)

	SSEStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_streams_total",
			Help: "Client streams by result",
		},
		[]string{"feature", "result"}, // result: completed, upstream_error, client_gone
	)

	// Daydream Parser Metrics
	DaydreamParseStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daydream_parse_strategy_total",
			Help: "Daydream scenes by the recovery strategy that parsed them",
		},
		[]string{"strategy"},
	)

	// Supabase Metrics
	SupabaseRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supabase_requests_total",
			Help: "Supabase REST, auth and storage requests",
		},
		[]string{"operation", "status"},
	)

	SupabaseRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supabase_request_duration_seconds",
			Help:    "Duration of Supabase requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Supabase Realtime change events received",
		},
		[]string{"table", "event"},
	)

	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected",
			Help: "1 while the Supabase Realtime socket is joined",
		},
	)

	AutoCommentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocomment_generated_total",
			Help: "Automatic entry comments by result",
		},
		[]string{"result"}, // created, duplicate, exists, failed
	)

	SupervisedServiceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervised_service_runs_total",
			Help: "Supervised service runs by service and exit result",
		},
		[]string{"service", "result"}, // stopped, failed
	)

	AuthVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_verifications_total",
			Help: "Access token verifications by method and result",
		},
		[]string{"method", "result"}, // local|remote|cache, valid|invalid|error
	)

	// Prompt Cache Metrics
	PromptCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prompt_cache_hits_total",
			Help: "Journaling prompt requests served from cache",
		},
	)

	PromptCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prompt_cache_misses_total",
			Help: "Journaling prompt requests that called a model",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordLLMAttempt records one model attempt.
func RecordLLMAttempt(feature, model, outcome string, duration time.Duration) {
	LLMAttemptsTotal.WithLabelValues(feature, model, outcome).Inc()
	if outcome != OutcomeSkipped {
		LLMAttemptDuration.WithLabelValues(feature, model).Observe(duration.Seconds())
	}
}

// RecordFallbackResult records where in the chain a request was answered,
// or that no model answered when index is negative.
func RecordFallbackResult(feature string, index int) {
	if index < 0 {
		LLMFallbackExhausted.WithLabelValues(feature).Inc()
		return
	}
	LLMFallbackDepth.WithLabelValues(feature).Observe(float64(index))
}

// RecordTokenUsage records gateway-reported token counts.
func RecordTokenUsage(feature string, prompt, completion int) {
	if prompt > 0 {
		LLMTokensUsed.WithLabelValues(feature, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		LLMTokensUsed.WithLabelValues(feature, "completion").Add(float64(completion))
	}
}

// RecordSSEStream records a finished client stream.
func RecordSSEStream(feature, result string, events int) {
	SSEStreamsTotal.WithLabelValues(feature, result).Inc()
	if events > 0 {
		SSEEventsRelayed.WithLabelValues(feature).Add(float64(events))
	}
}

// RecordDaydreamParse records which strategy recovered a scene.
func RecordDaydreamParse(strategy string) {
	DaydreamParseStrategy.WithLabelValues(strategy).Inc()
}

// RecordSupabaseRequest records a Supabase call. status is the HTTP status
// code, or 0 for transport errors.
func RecordSupabaseRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	SupabaseRequestsTotal.WithLabelValues(operation, label).Inc()
	SupabaseRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRealtimeEvent records a received change event.
func RecordRealtimeEvent(table, event string) {
	RealtimeEventsTotal.WithLabelValues(table, event).Inc()
}

// SetRealtimeConnected updates the realtime connection gauge.
func SetRealtimeConnected(connected bool) {
	if connected {
		RealtimeConnected.Set(1)
	} else {
		RealtimeConnected.Set(0)
	}
}

// RecordAutoComment records an auto-comment outcome.
func RecordAutoComment(result string) {
	AutoCommentsTotal.WithLabelValues(result).Inc()
}

// RecordServiceRun records one supervised service run ending.
func RecordServiceRun(service, result string) {
	SupervisedServiceRuns.WithLabelValues(service, result).Inc()
}

// RecordPromptCache records a prompt cache lookup.
func RecordPromptCache(hit bool) {
	if hit {
		PromptCacheHits.Inc()
	} else {
		PromptCacheMisses.Inc()
	}
}

// RecordAuthVerification records one access token verification.
func RecordAuthVerification(method, result string) {
	AuthVerificationsTotal.WithLabelValues(method, result).Inc()
}
