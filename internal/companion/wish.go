// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/tomtom215/soulbloom/internal/llmtext"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// Step count bounds for a split wish.
const (
	MinWishSteps = 2
	MaxWishSteps = 7
)

// WishRequest asks for a wish broken into steps.
type WishRequest struct {
	Wish string `json:"wish" validate:"required,max=1000"`
}

// Step is one small action toward a wish.
type Step struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// WishResult holds the steps.
type WishResult struct {
	Steps []Step `json:"steps"`
	Model string `json:"model"`
}

const wishPrompt = `Break the user's wish into 3 to 5 small, concrete steps they could start this week.
Reply with ONLY a JSON array: [{"title": "short step, under 30 characters", "detail": "one sentence on how"}]
Use the language of the wish.`

var (
	stepListKeys   = []string{"steps", "tasks", "plan", "items", "list"}
	stepTitleKeys  = []string{"title", "step", "name", "task", "action"}
	stepDetailKeys = []string{"detail", "details", "description", "desc", "how"}
)

// wrappedSteps picks the step array out of an object. Known list keys win;
// otherwise the first array by key order is used.
func wrappedSteps(wrapper map[string]any) []any {
	for _, k := range stepListKeys {
		if arr, ok := wrapper[k].([]any); ok && len(arr) > 0 {
			return arr
		}
	}
	for _, k := range slices.Sorted(maps.Keys(wrapper)) {
		if arr, ok := wrapper[k].([]any); ok && len(arr) > 0 {
			return arr
		}
	}
	return nil
}

// ParseSteps recovers steps from model output: a JSON array of objects or
// strings, a JSON object wrapping one, or list lines.
func ParseSteps(raw string) []Step {
	// Decoding into any keeps the outermost value, so an object wrapping
	// several arrays is not cut down to whichever array comes first.
	var items []any
	var decoded any
	if _, err := llmtext.DecodeLenient(raw, &decoded); err == nil {
		switch v := decoded.(type) {
		case []any:
			items = v
		case map[string]any:
			items = wrappedSteps(v)
		}
	}

	var steps []Step
	if len(items) > 0 {
		for _, item := range items {
			switch v := item.(type) {
			case string:
				steps = append(steps, stepFromLine(v))
			case map[string]any:
				steps = append(steps, Step{
					Title:  firstString(v, stepTitleKeys),
					Detail: firstString(v, stepDetailKeys),
				})
			}
		}
	} else {
		for _, line := range llmtext.ParseList(raw) {
			steps = append(steps, stepFromLine(line))
		}
	}
	return normalizeSteps(steps)
}

// stepFromLine splits "Title: detail" or "Title - detail".
func stepFromLine(line string) Step {
	line = llmtext.CleanLine(line)
	for _, sep := range []string{": ", "：", " - ", " — "} {
		if title, detail, ok := strings.Cut(line, sep); ok && strings.TrimSpace(title) != "" {
			return Step{Title: llmtext.CleanLine(title), Detail: strings.TrimSpace(detail)}
		}
	}
	return Step{Title: line}
}

func normalizeSteps(steps []Step) []Step {
	out := make([]Step, 0, len(steps))
	seen := make(map[string]bool, len(steps))
	for _, st := range steps {
		st.Title = llmtext.TruncateRunes(strings.TrimSpace(llmtext.Unescape(st.Title)), 80)
		st.Detail = llmtext.TruncateRunes(strings.TrimSpace(llmtext.Unescape(st.Detail)), 300)
		key := strings.ToLower(st.Title)
		if st.Title == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, st)
		if len(out) == MaxWishSteps {
			break
		}
	}
	return out
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// SplitWish breaks a wish into steps.
func (s *Service) SplitWish(ctx context.Context, req WishRequest) (*WishResult, error) {
	upstream := request(0.5, 500,
		openrouter.TextMessage(openrouter.RoleSystem, wishPrompt),
		openrouter.TextMessage(openrouter.RoleUser, req.Wish))

	accept := func(content string) error {
		if n := len(ParseSteps(content)); n < MinWishSteps {
			return fmt.Errorf("only %d steps recovered", n)
		}
		return nil
	}
	res, err := s.runner.Complete(ctx, FeatureWish, s.models.Wish, upstream, accept)
	if err != nil {
		return nil, err
	}
	return &WishResult{Steps: ParseSteps(res.Completion.Content), Model: res.Model}, nil
}
