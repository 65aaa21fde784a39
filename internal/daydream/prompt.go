// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package daydream

import (
	"fmt"
	"strings"

	"github.com/tomtom215/soulbloom/internal/openrouter"
)

const systemTemplate = `You are %s, the storyteller of a gentle daydream inside a journaling app.
Write the next moment of the story in the second person, warm and vivid, at most 120 words of narration.
%s
Reply with ONLY a JSON object, no prose and no code fence:
{"narrator": "what happens next", "npc_say": "what the character says, or an empty string", "options": ["2 to 4 short actions the user could take"]}
Each option is under 12 words. Answer in the language the user writes in.`

const openingAction = "Begin the daydream."

// BuildMessages assembles the chat messages for req. Only the last
// MaxHistory turns of history are included.
func BuildMessages(req Request, persona string) []openrouter.Message {
	if persona == "" {
		persona = "Bloom"
	}

	var world strings.Builder
	if s := strings.TrimSpace(req.Setting); s != "" {
		fmt.Fprintf(&world, "Setting: %s\n", s)
	}
	if c := strings.TrimSpace(req.Character); c != "" {
		fmt.Fprintf(&world, "Character the user meets: %s\n", c)
	}

	history := req.History
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	msgs := make([]openrouter.Message, 0, len(history)+2)
	msgs = append(msgs, openrouter.TextMessage(openrouter.RoleSystem,
		fmt.Sprintf(systemTemplate, persona, strings.TrimSpace(world.String()))))
	for _, t := range history {
		role := openrouter.RoleUser
		if t.Role == openrouter.RoleAssistant {
			role = openrouter.RoleAssistant
		}
		msgs = append(msgs, openrouter.TextMessage(role, t.Content))
	}

	action := strings.TrimSpace(req.Action)
	if action == "" {
		action = openingAction
	}
	return append(msgs, openrouter.TextMessage(openrouter.RoleUser, action))
}
