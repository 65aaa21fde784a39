// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/soulbloom/internal/cache"
	"github.com/tomtom215/soulbloom/internal/llmtext"
	"github.com/tomtom215/soulbloom/internal/metrics"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// Prompt count bounds.
const (
	DefaultPromptCount = 3
	MaxPromptCount     = 5
	maxPromptRunes     = 120
)

// PromptsRequest asks for journaling prompts.
type PromptsRequest struct {
	Mood   string   `json:"mood" validate:"omitempty,mood"`
	Topics []string `json:"topics" validate:"max=5,dive,max=40"`
	Count  int      `json:"count" validate:"omitempty,min=1,max=5"`
}

// PromptsResult holds prompt suggestions.
type PromptsResult struct {
	Prompts []string `json:"prompts"`
	Model   string   `json:"model"`
	Cached  bool     `json:"cached"`
}

type promptSet struct {
	Prompts []string
	Model   string
}

const promptsTemplate = `Suggest %d journaling prompts for someone opening their diary.
Each prompt is one gentle, open question under 100 characters.
%s
Reply with ONLY a JSON array of strings.`

// CleanPrompts parses a prompt list out of model output.
func CleanPrompts(raw string, count int) []string {
	items := llmtext.ParseList(raw)
	out := make([]string, 0, count)
	for _, item := range llmtext.Dedupe(items) {
		item = llmtext.TruncateRunes(llmtext.CleanLine(item), maxPromptRunes)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == count {
			break
		}
	}
	return out
}

// Prompts returns journaling prompts. Results are cached per mood, topics,
// count and calendar day; concurrent identical requests share one model
// call.
func (s *Service) Prompts(ctx context.Context, req PromptsRequest) (*PromptsResult, error) {
	count := req.Count
	if count <= 0 {
		count = DefaultPromptCount
	}
	if count > MaxPromptCount {
		count = MaxPromptCount
	}
	topics := normalizeTopics(req.Topics)
	mood := strings.ToLower(strings.TrimSpace(req.Mood))

	key := cache.GenerateKey("prompts", map[string]any{
		"mood":   mood,
		"topics": topics,
		"count":  count,
		"day":    s.now().In(s.location).Format(time.DateOnly),
	})

	set, hit, err := s.prompts.GetOrLoad(key, func() (promptSet, error) {
		return s.generatePrompts(ctx, mood, topics, count)
	})
	metrics.RecordPromptCache(hit)
	if err != nil {
		return nil, err
	}
	return &PromptsResult{Prompts: set.Prompts, Model: set.Model, Cached: hit}, nil
}

func (s *Service) generatePrompts(ctx context.Context, mood string, topics []string, count int) (promptSet, error) {
	var hints []string
	if line := moodLine(mood); line != "" {
		hints = append(hints, line)
	}
	if len(topics) > 0 {
		hints = append(hints, "Lean toward these topics: "+strings.Join(topics, ", ")+".")
	}
	system := fmt.Sprintf(promptsTemplate, count, strings.Join(hints, "\n"))

	upstream := request(0.9, 300,
		openrouter.TextMessage(openrouter.RoleSystem, system),
		openrouter.TextMessage(openrouter.RoleUser, "Give me something to write about."))

	accept := func(content string) error {
		if len(CleanPrompts(content, count)) == 0 {
			return errors.New("no prompts in output")
		}
		return nil
	}
	res, err := s.runner.Complete(ctx, FeaturePrompts, s.models.Prompt, upstream, accept)
	if err != nil {
		return promptSet{}, err
	}
	return promptSet{Prompts: CleanPrompts(res.Completion.Content, count), Model: res.Model}, nil
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return llmtext.Dedupe(out)
}
