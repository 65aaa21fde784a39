// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/soulbloom/internal/companion"
	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/openrouter"
	"github.com/tomtom215/soulbloom/internal/supabase"
)

// statusClientClosedRequest is logged when the client went away first.
const statusClientClosedRequest = 499

// errorResponse maps a feature error to a status, code and message.
type errorResponse struct {
	status  int
	code    string
	message string
	details interface{}
}

func classifyError(err error) errorResponse {
	var exhausted *fallback.ExhaustedError

	// The chain's attempts may wrap per-attempt deadlines, so an exhausted
	// chain is matched before the context errors.
	switch {
	case errors.As(err, &exhausted):
		return errorResponse{http.StatusBadGateway, ErrCodeExternalServiceFail, "All AI models failed, please try again", attemptDetails(exhausted)}
	case errors.Is(err, context.Canceled):
		return errorResponse{statusClientClosedRequest, ErrCodeBadRequest, "Request cancelled", nil}
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse{http.StatusGatewayTimeout, ErrCodeExternalServiceFail, "The companion took too long to answer", nil}
	case errors.Is(err, companion.ErrInvalidRequest):
		return errorResponse{http.StatusBadRequest, ErrCodeBadRequest, userMessage(err), nil}
	case errors.Is(err, companion.ErrSignInRequired):
		return errorResponse{http.StatusUnauthorized, ErrCodeUnauthorized, "Sign in to use images from your storage", nil}
	case errors.Is(err, companion.ErrForbidden):
		return errorResponse{http.StatusForbidden, ErrCodeForbidden, userMessage(err), nil}
	case errors.Is(err, companion.ErrNoEntries):
		return errorResponse{http.StatusBadRequest, ErrCodeBadRequest, "No diary entries found for that week", nil}
	case errors.Is(err, companion.ErrUnavailable), errors.Is(err, supabase.ErrNotConfigured):
		return errorResponse{http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "This feature needs Supabase, which is not configured", nil}
	case errors.Is(err, fallback.ErrNoModels), errors.Is(err, openrouter.ErrNoAPIKey):
		return errorResponse{http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "No AI model is configured for this feature", nil}
	case errors.Is(err, supabase.ErrNotFound):
		return errorResponse{http.StatusNotFound, ErrCodeNotFound, "Stored item not found", nil}
	case openrouter.IsFatal(err):
		return errorResponse{http.StatusBadGateway, ErrCodeExternalServiceFail, "The AI provider rejected the request", nil}
	default:
		return errorResponse{http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", nil}
	}
}

// respondError writes err as an envelope and logs it at a level matching
// the status.
func respondError(w http.ResponseWriter, r *http.Request, feature string, err error) {
	resp := classifyError(err)
	log := logging.Ctx(r.Context())

	event := log.Warn()
	if resp.status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("feature", feature).Int("status", resp.status).Msg("Feature request failed")

	if resp.status == statusClientClosedRequest {
		return
	}
	NewResponseWriter(w, r).ErrorWithDetails(resp.status, resp.code, resp.message, resp.details)
}

// attemptDetails lists the models tried without leaking upstream bodies.
func attemptDetails(e *fallback.ExhaustedError) map[string]interface{} {
	models := make([]map[string]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		models = append(models, map[string]string{"model": a.Model, "outcome": a.Outcome})
	}
	return map[string]interface{}{"attempts": models}
}

// userMessage strips the package prefix from a companion error.
func userMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, "companion:") {
		msg = msg[i+2:]
	}
	msg = strings.TrimPrefix(msg, "invalid request: ")
	msg = strings.TrimPrefix(msg, "forbidden: ")
	if msg == "" {
		return "Invalid request"
	}
	return msg
}
