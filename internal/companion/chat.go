// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// MaxChatHistory is how many recent messages are sent upstream.
const MaxChatHistory = 20

// ChatMessage is one turn of a companion conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=8000"`
}

// ChatRequest is a chat turn.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=40,dive"`
	Mood     string        `json:"mood" validate:"omitempty,mood"`
	Persona  string        `json:"persona" validate:"omitempty,max=32"`
	Name     string        `json:"name" validate:"omitempty,max=60"`
}

const chatSystemTemplate = `You are %s, %s.
You live inside the user's private diary and talk with them about their day and feelings.
Keep replies short: two to four sentences, plain text, no lists or headings.
Never diagnose. If the user mentions self-harm, gently encourage reaching out to someone they trust or a local helpline.
Answer in the language the user writes in.`

// ChatMessages builds the upstream messages for req.
func (s *Service) ChatMessages(req ChatRequest) []openrouter.Message {
	p := s.personaFor(req.Persona)

	system := fmt.Sprintf(chatSystemTemplate, p.Name, p.Voice)
	if line := moodLine(req.Mood); line != "" {
		system += "\n" + line
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		system += "\nThe user's name is " + name + "."
	}

	history := req.Messages
	if len(history) > MaxChatHistory {
		history = history[len(history)-MaxChatHistory:]
	}

	msgs := make([]openrouter.Message, 0, len(history)+1)
	msgs = append(msgs, openrouter.TextMessage(openrouter.RoleSystem, system))
	for _, m := range history {
		role := openrouter.RoleUser
		if m.Role == openrouter.RoleAssistant {
			role = openrouter.RoleAssistant
		}
		msgs = append(msgs, openrouter.TextMessage(role, m.Content))
	}
	return msgs
}

// StreamChat streams a reply through the chat model chain. consume receives
// each opened stream and reports whether anything reached the client.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest, consume fallback.StreamConsumer) (*fallback.StreamResult, error) {
	upstream := request(s.chatTemp, 600, s.ChatMessages(req)...)
	return s.runner.Stream(ctx, FeatureChat, s.models.Chat, upstream, consume)
}
