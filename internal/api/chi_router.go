// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/soulbloom/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// legacyRoutes maps the web client's original serverless paths to the
// versioned handlers.
var legacyRoutes = map[string]string{
	"/chat":              "/v1/chat",
	"/generate-title":    "/v1/title",
	"/generate-comment":  "/v1/comment",
	"/generate-prompt":   "/v1/prompts",
	"/bubble-message":    "/v1/bubble",
	"/split-wish":        "/v1/wishes/split",
	"/weekly-letter":     "/v1/letters/weekly",
	"/analyze-character": "/v1/characters/analyze",
	"/daydream":          "/v1/daydream",
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())      // X-Request-ID and logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Set before the nested mounts so they inherit the JSON bodies.
		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)
		r.Use(APISecurityHeaders())
		r.Use(NoStore)

		// ========================
		// Health Endpoints
		// ========================
		r.Route("/v1/health", func(r chi.Router) {
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
			r.Get("/", router.handler.Health)
		})

		// ========================
		// Companion Endpoints
		// ========================
		// Authenticate runs before the AI limiter so signed-in users are
		// limited per account.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(chiMiddleware(middleware.PrometheusMetrics))
			r.Use(middleware.BodyLimit(router.maxBodyBytes, payloadTooLarge))
			r.Use(router.middleware.Authenticate)
			if router.requireAuth {
				r.Use(router.middleware.RequireUser)
			}
			r.Use(router.chiMiddleware.AIRateLimit())

			routes := router.companionRoutes()
			for path, handler := range routes {
				r.Post(path, handler)
			}
			for legacy, target := range legacyRoutes {
				r.Post(legacy, routes[target])
			}
		})
	})

	return r
}

func (router *Router) companionRoutes() map[string]http.HandlerFunc {
	h := router.handler
	return map[string]http.HandlerFunc{
		"/v1/chat":               h.Chat,
		"/v1/title":              h.Title,
		"/v1/comment":            h.Comment,
		"/v1/prompts":            h.Prompts,
		"/v1/bubble":             h.Bubble,
		"/v1/wishes/split":       h.SplitWish,
		"/v1/letters/weekly":     h.WeeklyLetter,
		"/v1/characters/analyze": h.AnalyzeCharacter,
		"/v1/daydream":           h.Daydream,
	}
}
