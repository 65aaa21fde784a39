// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package logging

import (
	"strings"
	"unicode/utf8"
)

// RedactSecret masks an API key or token, keeping a short prefix so
// operators can tell keys apart ("sk-or-v1..." -> "sk-o****").
func RedactSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// RedactBearer masks the token part of an Authorization header value.
func RedactBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return RedactSecret(header)
	}
	return scheme + " " + RedactSecret(token)
}

// Truncate shortens s to at most max runes, appending "..." when cut. Used
// for upstream error bodies, which can echo request content.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
