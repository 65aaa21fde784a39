// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"
	"sort"
	"time"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status               string            `json:"status"`
	Version              string            `json:"version"`
	Uptime               float64           `json:"uptime"`
	OpenRouterConfigured bool              `json:"openrouter_configured"`
	SupabaseEnabled      bool              `json:"supabase_enabled"`
	AutoCommentEnabled   bool              `json:"auto_comment_enabled"`
	AuthMode             string            `json:"auth_mode,omitempty"`
	Breakers             map[string]string `json:"breakers"`
	OpenBreakers         []string          `json:"open_breakers,omitempty"`
	PromptCache          *PromptCacheInfo  `json:"prompt_cache,omitempty"`
}

// PromptCacheInfo summarizes the prompt suggestion cache.
type PromptCacheInfo struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int64 `json:"keys"`
}

// Health reports the service summary. It is degraded, not failed, when
// breakers are open: other models in a chain may still answer.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	breakers := map[string]string{}
	if h.config.Breakers != nil {
		for name, state := range h.config.Breakers() {
			breakers[name] = state
		}
	}

	var open []string
	for name, state := range breakers {
		if state == "open" {
			open = append(open, name)
		}
	}
	sort.Strings(open)

	status := "healthy"
	switch {
	case !h.ready():
		status = "unavailable"
	case len(open) > 0:
		status = "degraded"
	}

	health := HealthStatus{
		Status:               status,
		Version:              h.config.Version,
		Uptime:               time.Since(h.startTime).Seconds(),
		OpenRouterConfigured: h.config.OpenRouterConfigured,
		SupabaseEnabled:      h.config.SupabaseEnabled,
		AutoCommentEnabled:   h.config.AutoCommentEnabled,
		AuthMode:             h.config.AuthMode,
		Breakers:             breakers,
		OpenBreakers:         open,
	}
	if h.companion != nil {
		stats := h.companion.PromptCacheStats()
		health.PromptCache = &PromptCacheInfo{Hits: stats.Hits, Misses: stats.Misses, Keys: stats.TotalKeys}
	}

	NewResponseWriter(w, r).Success(health)
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 503 until an OpenRouter key is configured.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Service is not ready", map[string]interface{}{"openrouter_configured": h.config.OpenRouterConfigured})
		return
	}
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"ready": true,
	})
}
