// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package openrouter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tomtom215/soulbloom/internal/logging"
)

var (
	// ErrNoAPIKey is returned by New when no API key is configured.
	ErrNoAPIKey = errors.New("openrouter: API key not configured")

	// ErrEmptyCompletion is returned when a model answers with no content.
	ErrEmptyCompletion = errors.New("openrouter: empty completion")
)

// StatusError is a non-success answer from the gateway, either an HTTP
// status or an error object embedded in a 200 response.
type StatusError struct {
	StatusCode int
	Message    string
	Model      string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("openrouter: %s: status %d: %s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openrouter: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same model may succeed on retry.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// Fatal reports errors no other model can fix: a bad key, exhausted credits
// or a forbidden account.
func (e *StatusError) Fatal() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return true
	}
	return false
}

// IsFatal reports whether err is a fatal StatusError.
func IsFatal(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Fatal()
}

// IsRetryable reports whether err is a retryable StatusError.
func IsRetryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Retryable()
}

// parseStatusError builds a StatusError from an error response body. The
// gateway answers {"error":{"code":429,"message":"..."}}; anything else is
// reported as a truncated snippet.
func parseStatusError(status int, body []byte, header http.Header, model string) *StatusError {
	se := &StatusError{StatusCode: status, Model: model}

	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		se.Message = msg.String()
		if raw := gjson.GetBytes(body, "error.metadata.raw"); raw.Exists() {
			se.Message += ": " + logging.Truncate(raw.String(), 200)
		}
	} else {
		se.Message = logging.Truncate(strings.TrimSpace(string(body)), 512)
	}
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}

	if header != nil {
		if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}

// embeddedError extracts an error object from a 200 body, as sent when the
// upstream provider fails after the gateway accepted the request.
func embeddedError(body []byte, model string) *StatusError {
	errObj := gjson.GetBytes(body, "error")
	if !errObj.Exists() || errObj.Type == gjson.Null {
		return nil
	}
	code := int(errObj.Get("code").Int())
	if code == 0 {
		code = http.StatusBadGateway
	}
	msg := errObj.Get("message").String()
	if msg == "" {
		msg = "upstream provider error"
	}
	return &StatusError{StatusCode: code, Message: msg, Model: model}
}
