// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/soulbloom/internal/auth"
	"github.com/tomtom215/soulbloom/internal/companion"
)

// DefaultKeepAlive is how often an idle chat stream gets a comment frame.
const DefaultKeepAlive = 15 * time.Second

// HandlerConfig carries the handler dependencies.
type HandlerConfig struct {
	Companion *companion.Service

	// Breakers reports circuit breaker states by name. Optional.
	Breakers func() map[string]string

	OpenRouterConfigured bool
	SupabaseEnabled      bool
	AutoCommentEnabled   bool
	// AuthMode is "local", "remote" or "" when tokens are not verified.
	AuthMode string
	Version  string

	KeepAlive time.Duration
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers
//   - handlers_health.go: liveness, readiness and summary
//   - handlers_chat.go: streaming chat
//   - handlers_companion.go: the JSON companion features
type Handler struct {
	companion *companion.Service
	config    HandlerConfig
	startTime time.Time
}

// NewHandler creates a handler.
//
// Example:
//
//	handler := api.NewHandler(api.HandlerConfig{Companion: svc, OpenRouterConfigured: true})
//	router := api.NewRouter(handler, authMiddleware, chiMiddleware, cfg)
//	http.ListenAndServe(":3000", router.SetupChi())
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		companion: cfg.Companion,
		config:    cfg,
		startTime: time.Now(),
	}
}

// callerFrom returns the signed-in user behind r, if any.
func callerFrom(r *http.Request) companion.Caller {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		return companion.Caller{}
	}
	return companion.Caller{UserID: user.ID, Token: auth.TokenFromContext(r.Context())}
}

// ready reports whether model-backed routes can work at all.
func (h *Handler) ready() bool {
	return h.companion != nil && h.config.OpenRouterConfigured
}

// requireCompanion writes a 503 when the companion is not configured.
func (h *Handler) requireCompanion(w http.ResponseWriter, r *http.Request) bool {
	if h.ready() {
		return true
	}
	NewResponseWriter(w, r).ServiceUnavailable("The AI companion is not configured")
	return false
}
