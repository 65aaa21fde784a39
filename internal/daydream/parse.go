// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package daydream

import (
	"regexp"
	"strings"

	"github.com/tomtom215/soulbloom/internal/llmtext"
)

// Strategy names the parser stage that produced a Scene.
type Strategy string

// Strategies in the order Parse tries them.
const (
	StrategyJSON      Strategy = "json"
	StrategyFenced    Strategy = "fenced"
	StrategyExtracted Strategy = "extracted"
	StrategyRepaired  Strategy = "repaired"
	StrategyFields    Strategy = "fields"
	StrategyLabeled   Strategy = "labeled"
	StrategyPlaintext Strategy = "plaintext"
)

var stageStrategy = map[llmtext.Stage]Strategy{
	llmtext.StageDirect:    StrategyJSON,
	llmtext.StageFenced:    StrategyFenced,
	llmtext.StageExtracted: StrategyExtracted,
	llmtext.StageRepaired:  StrategyRepaired,
}

// Accepted spellings for each field.
var (
	narratorKeys = []string{"narrator", "narration", "narrative", "story", "scene"}
	npcKeys      = []string{"npc_say", "npcSay", "npc", "dialogue", "npc_dialogue", "character_say"}
	optionKeys   = []string{"options", "choices", "actions"}
)

// Parse recovers a scene from raw model output. It never fails: the last
// strategy uses the whole text as narration. The returned scene is
// normalized.
func Parse(raw string) (Scene, Strategy) {
	if s, strategy, ok := parseJSON(raw); ok {
		return normalize(s), strategy
	}
	if s, ok := parseFields(raw); ok {
		return normalize(s), StrategyFields
	}
	if s, ok := parseLabeled(raw); ok {
		return normalize(s), StrategyLabeled
	}
	return normalize(parsePlaintext(raw)), StrategyPlaintext
}

func parseJSON(raw string) (Scene, Strategy, bool) {
	var obj map[string]any
	stage, err := llmtext.DecodeLenient(raw, &obj)
	if err != nil {
		return Scene{}, "", false
	}
	s := Scene{
		Narrator: stringField(obj, narratorKeys),
		NPCSay:   stringField(obj, npcKeys),
		Options:  listField(obj, optionKeys),
	}
	if strings.TrimSpace(s.Narrator) == "" {
		return Scene{}, "", false
	}
	return s, stageStrategy[stage], true
}

func stringField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			return v
		case map[string]any:
			// {"npc": {"name": "...", "say": "..."}}
			for _, inner := range []string{"say", "text", "line", "content"} {
				if s, ok := v[inner].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

func listField(obj map[string]any, keys []string) []string {
	for _, k := range keys {
		items, ok := obj[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			switch v := it.(type) {
			case string:
				out = append(out, v)
			case map[string]any:
				if s := stringField(v, []string{"text", "label", "action", "option"}); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

// A JSON string value that may be missing its closing quote: the capture
// stops at the first unescaped quote or at the end of input.
const looseString = `\s*:\s*"((?:[^"\\]|\\.)*)`

var (
	narratorFieldRe = fieldRe(narratorKeys)
	npcFieldRe      = fieldRe(npcKeys)
	optionsFieldRe  = regexp.MustCompile(`(?s)["']?\b(?:` + strings.Join(optionKeys, "|") + `)\b["']?\s*:\s*\[(.*?)(?:\]|$)`)
	quotedRe        = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

func fieldRe(keys []string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)["']?\b(?:` + strings.Join(keys, "|") + `)\b["']?` + looseString)
}

// parseFields pulls "key": "value" pairs out of JSON too broken to decode.
func parseFields(raw string) (Scene, bool) {
	text := llmtext.RepairJSON(llmtext.StripCodeFence(raw))

	m := narratorFieldRe.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return Scene{}, false
	}
	s := Scene{Narrator: m[1]}
	if npc := npcFieldRe.FindStringSubmatch(text); npc != nil {
		s.NPCSay = npc[1]
	}
	if opts := optionsFieldRe.FindStringSubmatch(text); opts != nil {
		for _, q := range quotedRe.FindAllStringSubmatch(opts[1], -1) {
			s.Options = append(s.Options, q[1])
		}
	}
	return s, true
}

type section int

const (
	sectionNone section = iota
	sectionNarrator
	sectionNPC
	sectionOptions
)

var labelRe = regexp.MustCompile(`^(?i)[#>*_\s]*(narrator|narration|旁白|叙述|npc_say|npc|dialogue|对白|角色|options|choices|actions|选项)[*_\s]*[:：][*_]*\s*(.*)$`)

func labelSection(label string) section {
	switch strings.ToLower(label) {
	case "narrator", "narration", "旁白", "叙述":
		return sectionNarrator
	case "npc_say", "npc", "dialogue", "对白", "角色":
		return sectionNPC
	default:
		return sectionOptions
	}
}

var listItemRe = regexp.MustCompile(`^\s*(?:[-*•·]\s+|\d+[.):]\s+|\d+、\s*|[a-dA-D][.)]\s+)`)

// parseLabeled reads "Narrator: ..." / "NPC: ..." / "Options:" sections.
// Unlabeled lines continue the current section; before any label they
// count as narration.
func parseLabeled(raw string) (Scene, bool) {
	var (
		narrator, npc []string
		options       []string
		current       = sectionNone
		sawLabel      bool
	)

	for _, line := range strings.Split(llmtext.StripCodeFence(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := labelRe.FindStringSubmatch(line); m != nil {
			sawLabel = true
			current = labelSection(m[1])
			line = strings.TrimSpace(m[2])
			if line == "" {
				continue
			}
		}

		switch current {
		case sectionOptions:
			options = append(options, listItemRe.ReplaceAllString(line, ""))
		case sectionNPC:
			npc = append(npc, line)
		default:
			narrator = append(narrator, line)
		}
	}

	if !sawLabel || len(narrator) == 0 {
		return Scene{}, false
	}
	return Scene{
		Narrator: strings.Join(narrator, "\n"),
		NPCSay:   strings.Join(npc, "\n"),
		Options:  options,
	}, true
}

// parsePlaintext uses the text as narration, peeling a trailing list off
// as options.
func parsePlaintext(raw string) Scene {
	lines := strings.Split(llmtext.StripCodeFence(raw), "\n")

	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	start := end
	for start > 0 && listItemRe.MatchString(lines[start-1]) {
		start--
	}

	var options []string
	for _, l := range lines[start:end] {
		options = append(options, listItemRe.ReplaceAllString(strings.TrimSpace(l), ""))
	}
	narration := strings.TrimSpace(strings.Join(lines[:start], "\n"))
	if narration == "" {
		// Nothing but a list: treat it as prose.
		narration = strings.TrimSpace(strings.Join(lines[:end], "\n"))
		options = nil
	}
	return Scene{Narrator: narration, Options: options}
}
