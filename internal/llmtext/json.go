// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package llmtext recovers structured values from model output that was
// meant to be JSON or a list but often is not quite either.
package llmtext

import (
	"errors"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoJSON is returned when no JSON value can be recovered.
var ErrNoJSON = errors.New("llmtext: no JSON found")

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?[ \t]*```")

// StripCodeFence returns the body of the first markdown code fence, or the
// trimmed input when there is none. An unclosed fence is stripped too.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "```") {
		body := strings.TrimPrefix(text, "```")
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			body = body[i+1:]
		}
		return strings.TrimSpace(body)
	}
	return text
}

// ExtractJSONObject returns the first balanced {...} in text.
func ExtractJSONObject(text string) (string, bool) {
	return extractBalanced(text, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] in text.
func ExtractJSONArray(text string) (string, bool) {
	return extractBalanced(text, '[', ']')
}

// extractBalanced scans from the first open byte, skipping brackets inside
// string literals. When the value is never closed, the rest of the text is
// returned with the missing closers appended so RepairJSON can finish it.
func extractBalanced(text string, open, closeCh byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1], true
			}
		}
	}

	if len(stack) == 0 || stack[0] != closeCh {
		return "", false
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(text[start:], " \t\r\n"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

var (
	smartQuotes = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
		"‘", "'", "’", "'",
	)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// RepairJSON fixes the common ways models break JSON: typographic quotes,
// trailing commas, and raw newlines or tabs inside strings.
func RepairJSON(text string) string {
	text = smartQuotes.Replace(text)
	text = escapeControlInStrings(text)
	return trailingCommaRe.ReplaceAllString(text, "$1")
}

func escapeControlInStrings(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Stage names the step at which DecodeLenient succeeded.
type Stage string

// Stages in the order DecodeLenient tries them.
const (
	StageDirect    Stage = "direct"
	StageFenced    Stage = "fenced"
	StageExtracted Stage = "extracted"
	StageRepaired  Stage = "repaired"
)

// DecodeLenient unmarshals text into v, trying progressively more
// aggressive recovery: the raw text, the fenced body, the first balanced
// object or array, then the repaired candidate.
func DecodeLenient(text string, v any) (Stage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoJSON
	}
	if json.Unmarshal([]byte(text), v) == nil {
		return StageDirect, nil
	}

	fenced := StripCodeFence(text)
	if fenced != text && json.Unmarshal([]byte(fenced), v) == nil {
		return StageFenced, nil
	}

	candidate, ok := extractFor(fenced, v)
	if !ok {
		return "", ErrNoJSON
	}
	if json.Unmarshal([]byte(candidate), v) == nil {
		return StageExtracted, nil
	}
	if err := json.Unmarshal([]byte(RepairJSON(candidate)), v); err != nil {
		return "", errors.Join(ErrNoJSON, err)
	}
	return StageRepaired, nil
}

// extractFor picks object or array extraction. Targets that are slices
// want arrays; everything else prefers the first bracket that appears.
func extractFor(text string, v any) (string, bool) {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	wantArray := isSliceTarget(v)

	switch {
	case wantArray && arr >= 0:
		return ExtractJSONArray(text)
	case obj >= 0 && (arr < 0 || obj < arr || !wantArray):
		if s, ok := ExtractJSONObject(text); ok {
			return s, true
		}
		return ExtractJSONArray(text)
	default:
		return ExtractJSONArray(text)
	}
}
