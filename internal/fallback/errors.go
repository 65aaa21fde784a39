// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package fallback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoModels is returned when a feature has an empty model chain.
	ErrNoModels = errors.New("fallback: no models configured")

	// ErrAllModelsFailed matches any *ExhaustedError.
	ErrAllModelsFailed = errors.New("fallback: all models failed")

	// ErrBreakerOpen marks an attempt skipped because the model's breaker is open.
	ErrBreakerOpen = errors.New("fallback: circuit open")
)

// Attempt describes what happened with one model in the chain.
type Attempt struct {
	Model    string
	Outcome  string // metrics.Outcome*
	Err      error
	Duration time.Duration
}

// ExhaustedError is returned when every model in the chain failed.
type ExhaustedError struct {
	Feature  string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Model, a.Err))
	}
	return fmt.Sprintf("fallback: all %d models failed for %s [%s]", len(e.Attempts), e.Feature, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrAllModelsFailed) true.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllModelsFailed
}

// Unwrap exposes the per-model errors to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// RejectedError wraps the reason a model's output failed validation.
type RejectedError struct {
	Model  string
	Reason error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("fallback: %s output rejected: %v", e.Model, e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Reason }
