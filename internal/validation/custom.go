// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package validation

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Moods is the diary mood vocabulary shared with the web client.
var Moods = []string{
	"happy", "calm", "grateful", "excited", "hopeful", "loved",
	"neutral", "tired", "bored", "confused",
	"sad", "lonely", "anxious", "stressed", "angry", "hurt",
}

var moodSet = func() map[string]bool {
	m := make(map[string]bool, len(Moods))
	for _, mood := range Moods {
		m[mood] = true
	}
	return m
}()

// IsMood reports whether s names a known mood, ignoring case.
func IsMood(s string) bool {
	return moodSet[strings.ToLower(strings.TrimSpace(s))]
}

func validateMood(fl validator.FieldLevel) bool {
	return IsMood(fl.Field().String())
}

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
	"image/gif":  true,
}

// IsImageDataURL reports whether s is a base64 data URL of a supported image type.
func IsImageDataURL(s string) bool {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return false
	}
	mediaType, encoding, ok := strings.Cut(meta, ";")
	return ok && encoding == "base64" && allowedImageTypes[strings.ToLower(mediaType)]
}

// IsHTTPURL reports whether s is an absolute http or https URL.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateImageRef(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return IsImageDataURL(s) || IsHTTPURL(s)
}
