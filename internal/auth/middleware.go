// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/soulbloom/internal/logging"
)

// TokenVerifier is implemented by *Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// ErrorWriter writes an authentication failure. status is 401 or 503.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Middleware authenticates requests with bearer tokens.
type Middleware struct {
	verifier TokenVerifier
	onError  ErrorWriter
}

// NewMiddleware creates auth middleware. A nil verifier makes every
// request anonymous and rejects any bearer token it cannot check.
func NewMiddleware(verifier TokenVerifier) *Middleware {
	return &Middleware{verifier: verifier, onError: writeError}
}

// SetErrorWriter replaces the default JSON error body.
func (m *Middleware) SetErrorWriter(fn ErrorWriter) {
	if fn != nil {
		m.onError = fn
	}
}

// Authenticate attaches the user for a valid bearer token. Requests without
// an Authorization header pass through anonymously.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			m.onError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header")
			return
		}
		if m.verifier == nil {
			m.onError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "authentication is not configured")
			return
		}

		user, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected access token")
				m.onError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired access token")
				return
			}
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Token verification unavailable")
			m.onError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not verify access token")
			return
		}

		ctx := ContextWithUser(r.Context(), user, token)
		ctx = logging.ContextWithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous requests. Mount it after Authenticate.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="soulbloom"`)
			m.onError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":       code,
			"message":    message,
			"request_id": logging.RequestIDFromContext(r.Context()),
		},
	})
}
