// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package supabase

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrNotFound matches 404 responses and PostgREST's "no rows" error
	// for Single queries.
	ErrNotFound = errors.New("supabase: not found")

	// ErrNotConfigured is returned when a required key is missing.
	ErrNotConfigured = errors.New("supabase: not configured")

	// ErrObjectTooLarge is returned when a storage object exceeds the
	// download limit.
	ErrObjectTooLarge = errors.New("supabase: object too large")

	// ErrInvalidPath is returned for empty object paths and paths with
	// empty, "." or ".." segments.
	ErrInvalidPath = errors.New("supabase: invalid object path")
)

// APIError is a non-2xx response from any Supabase service.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, msg)
}

// Is reports ErrNotFound for missing rows and objects.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && (e.Status == http.StatusNotFound || e.Code == "PGRST116")
}

// parseError reads the error shapes used by PostgREST, GoTrue and Storage.
func parseError(status int, body []byte) *APIError {
	var resp struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          string `json:"details"`
		Hint             string `json:"hint"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		StatusCode       any    `json:"statusCode"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &resp); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	if resp.Code != nil {
		apiErr.Code = fmt.Sprint(resp.Code)
	}
	for _, m := range []string{resp.Message, resp.Msg, resp.ErrorDescription, resp.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.Details = resp.Details
	apiErr.Hint = resp.Hint
	// Storage reports its own status in the body, e.g. a 400 carrying "404".
	if resp.StatusCode != nil && fmt.Sprint(resp.StatusCode) == "404" {
		apiErr.Status = http.StatusNotFound
	}
	return apiErr
}
