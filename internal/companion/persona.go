// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import "strings"

// DefaultPersona is used when no persona is configured or requested.
const DefaultPersona = "bloom"

// Persona is a companion voice.
type Persona struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Voice string `json:"voice"`
}

var personas = map[string]Persona{
	"bloom": {
		Key:   "bloom",
		Name:  "Bloom",
		Voice: "a gentle, warm friend who listens closely and answers softly, never preachy",
	},
	"sage": {
		Key:   "sage",
		Name:  "Sage",
		Voice: "a calm, thoughtful mentor who reflects back what they hear and asks one good question at a time",
	},
	"sunny": {
		Key:   "sunny",
		Name:  "Sunny",
		Voice: "an upbeat, playful companion who notices small joys and cheers the user on",
	},
}

// Personas lists the available personas.
func Personas() []Persona {
	return []Persona{personas["bloom"], personas["sage"], personas["sunny"]}
}

// personaFor returns the persona for key, or the service default.
func (s *Service) personaFor(key string) Persona {
	if p, ok := personas[strings.ToLower(strings.TrimSpace(key))]; ok {
		return p
	}
	return personas[s.persona]
}

func moodLine(mood string) string {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return ""
	}
	return "The user's current mood is " + strings.ToLower(mood) + "."
}
