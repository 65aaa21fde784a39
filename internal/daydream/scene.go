// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package daydream drives the branching narrative feature: the model plays
// narrator and a non-player character, and offers the user a few actions
// to choose from.
//
// Models are asked for a JSON object {narrator, npc_say, options}, but they
// regularly wrap it in prose, break its quoting, or ignore the format
// altogether. Parse recovers a Scene from whatever came back.
package daydream

import (
	"errors"
	"strings"

	"github.com/tomtom215/soulbloom/internal/llmtext"
)

// MaxOptions is the most options a scene offers.
const MaxOptions = 4

// MaxHistory is how many past turns are sent back to the model.
const MaxHistory = 12

// ErrEmptyScene is returned by Validate when no narration was recovered.
var ErrEmptyScene = errors.New("daydream: no narration recovered")

// DefaultOptions are offered when the model gave none.
var DefaultOptions = []string{
	"Look around",
	"Keep walking",
	"Say something",
}

// Scene is one step of the story.
type Scene struct {
	Narrator string   `json:"narrator"`
	NPCSay   string   `json:"npc_say"`
	Options  []string `json:"options"`
}

// Turn is one entry of the conversation so far.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

// Request is a daydream continuation request.
type Request struct {
	Setting   string `json:"setting" validate:"max=500"`
	Character string `json:"character" validate:"max=500"`
	History   []Turn `json:"history" validate:"max=100,dive"`
	Action    string `json:"action" validate:"max=500"`
}

// Acceptable reports whether s is good enough to show.
func Acceptable(s Scene) bool {
	return strings.TrimSpace(s.Narrator) != ""
}

// Validate parses content and rejects it when no narration is recovered.
// It fits fallback.Validator.
func Validate(content string) error {
	if s, _ := Parse(content); !Acceptable(s) {
		return ErrEmptyScene
	}
	return nil
}

// normalize trims and unescapes every field, deduplicates options and
// caps them at MaxOptions, supplying DefaultOptions when none survive.
func normalize(s Scene) Scene {
	s.Narrator = cleanProse(s.Narrator)
	s.NPCSay = cleanProse(s.NPCSay)

	options := make([]string, 0, len(s.Options))
	for _, o := range s.Options {
		if c := llmtext.CleanLine(llmtext.Unescape(o)); c != "" {
			options = append(options, c)
		}
	}
	options = llmtext.Dedupe(options)
	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}
	if len(options) == 0 {
		options = append([]string(nil), DefaultOptions...)
	}
	s.Options = options
	return s
}

func cleanProse(s string) string {
	s = strings.TrimSpace(llmtext.Unescape(s))
	return strings.TrimRight(s, ", \t\r\n")
}
