// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/llmtext"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// Output limits in runes.
const (
	MaxTitleRunes   = 30
	MaxCommentRunes = 280
	MaxBubbleRunes  = 60
)

// TitleRequest asks for an entry title.
type TitleRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// TitleResult is a generated title.
type TitleResult struct {
	Title string `json:"title"`
	Model string `json:"model,omitempty"`
	// Fallback is set when no model answered and the title was cut from
	// the entry itself.
	Fallback bool `json:"fallback"`
}

const titlePrompt = `Write a short, evocative title for the diary entry below.
At most 8 words and 30 characters. Reply with the title only: no quotes, no label, no punctuation at the end.
Use the same language as the entry.`

// CleanTitle normalizes model output into a title.
func CleanTitle(raw string) string {
	title := llmtext.CleanLine(llmtext.FirstLine(raw))
	title = strings.TrimRight(title, ".。!！")
	return llmtext.TruncateRunes(title, MaxTitleRunes)
}

// Title generates a title for an entry. When every model fails the title is
// taken from the entry's first sentence.
func (s *Service) Title(ctx context.Context, req TitleRequest) (*TitleResult, error) {
	upstream := request(0.7, 40,
		openrouter.TextMessage(openrouter.RoleSystem, titlePrompt),
		openrouter.TextMessage(openrouter.RoleUser, req.Content))

	res, err := s.runner.Complete(ctx, FeatureTitle, s.models.Title, upstream, nonEmpty(CleanTitle))
	if err != nil {
		if !canFallBackLocally(ctx, err) {
			return nil, err
		}
		logging.Ctx(ctx).Warn().Err(err).Msg("Title models failed, using entry text")
		return &TitleResult{Title: LocalTitle(req.Content), Fallback: true}, nil
	}
	return &TitleResult{Title: CleanTitle(res.Completion.Content), Model: res.Model}, nil
}

// LocalTitle cuts a title from the first sentence of content.
func LocalTitle(content string) string {
	text := strings.TrimSpace(llmtext.FirstLine(content))
	if i := strings.IndexFunc(text, isSentenceEnd); i > 0 {
		text = text[:i]
	}
	text = llmtext.TruncateRunes(strings.TrimSpace(text), MaxTitleRunes)
	if text == "" {
		return "Untitled"
	}
	return text
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

// CommentRequest asks for a companion comment on an entry.
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
	Mood    string `json:"mood" validate:"omitempty,mood"`
	Persona string `json:"persona" validate:"omitempty,max=32"`
}

// CommentResult is a generated comment.
type CommentResult struct {
	Comment string `json:"comment"`
	Model   string `json:"model"`
}

const commentTemplate = `You are %s, %s.
Read the user's diary entry and leave a short, kind comment in the margin, like a close friend would.
Two or three sentences, under 280 characters. Notice something specific they wrote. No advice lists, no questions unless they help.
Reply with the comment only, in the language of the entry.`

// CleanComment normalizes model output into a comment.
func CleanComment(raw string) string {
	text := strings.TrimSpace(llmtext.StripCodeFence(raw))
	text = strings.Join(strings.Fields(text), " ")
	text = llmtext.CleanLine(text)
	return llmtext.TruncateRunes(text, MaxCommentRunes)
}

// Comment generates a companion comment for an entry.
func (s *Service) Comment(ctx context.Context, req CommentRequest) (*CommentResult, error) {
	p := s.personaFor(req.Persona)
	system := fmt.Sprintf(commentTemplate, p.Name, p.Voice)
	if line := moodLine(req.Mood); line != "" {
		system += "\n" + line
	}
	upstream := request(0.8, 200,
		openrouter.TextMessage(openrouter.RoleSystem, system),
		openrouter.TextMessage(openrouter.RoleUser, req.Content))

	res, err := s.runner.Complete(ctx, FeatureComment, s.models.Comment, upstream, nonEmpty(CleanComment))
	if err != nil {
		return nil, err
	}
	return &CommentResult{Comment: CleanComment(res.Completion.Content), Model: res.Model}, nil
}

// BubbleRequest asks for the greeting bubble on the home screen.
type BubbleRequest struct {
	Mood      string `json:"mood" validate:"omitempty,mood"`
	TimeOfDay string `json:"time_of_day" validate:"omitempty,oneof=morning afternoon evening night"`
	Name      string `json:"name" validate:"omitempty,max=60"`
	Persona   string `json:"persona" validate:"omitempty,max=32"`
}

// BubbleResult is a greeting.
type BubbleResult struct {
	Message  string `json:"message"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
}

const bubbleTemplate = `You are %s, %s.
Write one short greeting (under 60 characters) for the user opening their diary in the %s.
Reply with the greeting only. Emoji are welcome but not required.`

var cannedBubbles = map[string]string{
	"morning":   "Good morning! What's on your mind today?",
	"afternoon": "Hi there! How is your afternoon going?",
	"evening":   "Good evening. Want to tell me about your day?",
	"night":     "It's late. Write a little, then rest well.",
}

// CleanBubble normalizes model output into a bubble message.
func CleanBubble(raw string) string {
	return llmtext.TruncateRunes(llmtext.CleanLine(llmtext.FirstLine(raw)), MaxBubbleRunes)
}

// Bubble generates a greeting. A canned greeting is returned when every
// model fails.
func (s *Service) Bubble(ctx context.Context, req BubbleRequest) (*BubbleResult, error) {
	tod := req.TimeOfDay
	if tod == "" {
		tod = TimeOfDay(s.now().In(s.location))
	}
	p := s.personaFor(req.Persona)

	system := fmt.Sprintf(bubbleTemplate, p.Name, p.Voice, tod)
	if line := moodLine(req.Mood); line != "" {
		system += "\n" + line
	}
	user := "Say hello."
	if name := strings.TrimSpace(req.Name); name != "" {
		user = "Say hello to " + name + "."
	}

	upstream := request(0.9, 60,
		openrouter.TextMessage(openrouter.RoleSystem, system),
		openrouter.TextMessage(openrouter.RoleUser, user))

	res, err := s.runner.Complete(ctx, FeatureBubble, s.models.Bubble, upstream, nonEmpty(CleanBubble))
	if err != nil {
		if !canFallBackLocally(ctx, err) {
			return nil, err
		}
		logging.Ctx(ctx).Warn().Err(err).Msg("Bubble models failed, using canned greeting")
		return &BubbleResult{Message: cannedBubbles[tod], Fallback: true}, nil
	}
	return &BubbleResult{Message: CleanBubble(res.Completion.Content), Model: res.Model}, nil
}

// TimeOfDay buckets t's hour.
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}
