// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"

	"github.com/tomtom215/soulbloom/internal/auth"
	"github.com/tomtom215/soulbloom/internal/config"
)

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	middleware    *auth.Middleware
	chiMiddleware *ChiMiddleware

	maxBodyBytes int64
	requireAuth  bool
}

// NewRouter creates a router. A nil auth middleware treats every request as
// anonymous. Auth failures are written with the API envelope.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, chiMW *ChiMiddleware, security config.SecurityConfig) *Router {
	if authMiddleware == nil {
		authMiddleware = auth.NewMiddleware(nil)
	}
	authMiddleware.SetErrorWriter(WriteError)

	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}

	return &Router{
		handler:       handler,
		middleware:    authMiddleware,
		chiMiddleware: chiMW,
		maxBodyBytes:  security.MaxBodyBytes,
		requireAuth:   security.RequireAuth,
	}
}

// NewChiMiddlewareFromConfig builds the middleware factory from the
// security settings.
func NewChiMiddlewareFromConfig(security config.SecurityConfig) *ChiMiddleware {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = security.CORSOrigins
	cfg.RateLimitRequests = security.RateLimitReqs
	cfg.RateLimitWindow = security.RateLimitWindow
	cfg.RateLimitDisabled = security.RateLimitDisabled
	cfg.AIRateLimitRequests = security.AIRateLimitReqs
	cfg.AIRateLimitWindow = security.AIRateLimitWindow
	return NewChiMiddleware(cfg)
}

func payloadTooLarge(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body is too large")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Error(http.StatusNotFound, ErrCodeNotFound, "Route not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
}
