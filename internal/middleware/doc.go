// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package middleware provides HTTP middleware shared by the API router:
// Prometheus instrumentation that keeps streaming responses flushable, and
// request body limits.
package middleware
