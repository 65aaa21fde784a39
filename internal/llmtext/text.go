// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package llmtext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

var (
	listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•·]\s+|\d+[.):]\s+|\d+、\s*|\(\d+\)\s*|[a-zA-Z][.)]\s+)`)
	labelRe      = regexp.MustCompile(`^(?i)(?:title|comment|message|prompt|question|answer|step\s*\d*)\s*[:：]\s*`)
	emphasisRe   = regexp.MustCompile(`^(\*\*|__|\*|_)(.+?)(\*\*|__|\*|_)$`)
	headingRe    = regexp.MustCompile(`^#{1,6}\s+`)
)

var quotePairs = [][2]string{
	{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"},
	{"「", "」"}, {"『", "』"}, {"《", "》"}, {"«", "»"}, {"`", "`"},
}

// CleanLine strips the decoration models put around a short answer:
// headings, "Title:" labels, markdown emphasis and wrapping quotes.
func CleanLine(text string) string {
	s := strings.TrimSpace(text)
	for {
		before := s
		s = headingRe.ReplaceAllString(s, "")
		s = labelRe.ReplaceAllString(s, "")
		if m := emphasisRe.FindStringSubmatch(s); m != nil && m[1] == m[3] {
			s = m[2]
		}
		s = trimQuotes(s)
		s = strings.TrimSpace(s)
		if s == before {
			return s
		}
	}
}

func trimQuotes(s string) string {
	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return s[len(q[0]) : len(s)-len(q[1])]
		}
	}
	return s
}

// FirstLine returns the first non-blank line of text.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

// ParseList reads a list of strings from a JSON array (bare, fenced or
// embedded in prose), falling back to numbered or bulleted lines. Items are
// cleaned and blank items dropped.
func ParseList(text string) []string {
	var items []string
	if _, err := DecodeLenient(text, &items); err == nil && len(items) > 0 {
		return cleanItems(items)
	}

	// Arrays of objects: take the first string field of each.
	var objects []map[string]any
	if _, err := DecodeLenient(text, &objects); err == nil && len(objects) > 0 {
		for _, o := range objects {
			if s := firstString(o); s != "" {
				items = append(items, s)
			}
		}
		if len(items) > 0 {
			return cleanItems(items)
		}
	}

	return listLines(StripCodeFence(text))
}

func listLines(text string) []string {
	lines := strings.Split(text, "\n")
	var marked, plain []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if listMarkerRe.MatchString(line) {
			marked = append(marked, listMarkerRe.ReplaceAllString(line, ""))
			continue
		}
		plain = append(plain, line)
	}
	if len(marked) > 0 {
		return cleanItems(marked)
	}
	return cleanItems(plain)
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if c := CleanLine(it); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func firstString(o map[string]any) string {
	for _, key := range []string{"text", "title", "prompt", "content", "step"} {
		if s, ok := o[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Dedupe removes case-insensitive duplicates, keeping the first occurrence.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// TruncateRunes cuts s to at most n runes, trimming trailing spaces and
// punctuation left dangling at the cut.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	return strings.TrimRightFunc(string(r), func(c rune) bool {
		return unicode.IsSpace(c) || c == ',' || c == '，' || c == '、'
	})
}

// Unescape decodes JSON string escapes (\n, \", \u00e9) in text that was
// pulled out of broken JSON. Text that does not decode is returned as is
// apart from the common escapes.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')

	var out string
	if err := json.Unmarshal([]byte(b.String()), &out); err == nil {
		return out
	}
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)
	return r.Replace(s)
}
