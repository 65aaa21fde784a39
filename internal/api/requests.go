// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/soulbloom/internal/daydream"
	"github.com/tomtom215/soulbloom/internal/validation"
)

// DaydreamRequest is the body of POST /daydream. The story fields are
// inlined from daydream.Request.
type DaydreamRequest struct {
	daydream.Request
	Persona string `json:"persona" validate:"omitempty,max=32"`
}

// decodeRequest reads a JSON body into dst and validates it. On failure it
// writes the error response and returns false.
//
// Unknown fields are rejected so client typos surface as 400s instead of
// silently using defaults.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		rw.Error(http.StatusUnsupportedMediaType, ErrCodeBadRequest, "Content-Type must be application/json")
		return false
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeDecodeError(rw, err)
		return false
	}
	if dec.More() {
		rw.BadRequest("Request body must contain a single JSON object")
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

func writeDecodeError(rw *ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, io.EOF):
		rw.BadRequest("Request body is required")
	default:
		rw.BadRequest("Invalid JSON body: " + err.Error())
	}
}
