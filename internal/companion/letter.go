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

	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/llmtext"
	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

const (
	maxLetterRunes    = 3000
	maxEntryRunes     = 1500
	maxLetterMaterial = 12000
	minLetterRunes    = 40
	letterDateLayout  = "Mon Jan 2"
)

// LetterEntry is an entry supplied inline by the client.
type LetterEntry struct {
	Content string `json:"content" validate:"required,max=20000"`
	Mood    string `json:"mood" validate:"omitempty,mood"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// LetterRequest asks for a weekly letter. Without entries, the signed-in
// user's entries for the week are loaded from the diary.
type LetterRequest struct {
	Entries   []LetterEntry `json:"entries" validate:"max=50,dive"`
	WeekStart string        `json:"week_start" validate:"omitempty,datetime=2006-01-02"`
	Name      string        `json:"name" validate:"omitempty,max=60"`
	Persona   string        `json:"persona" validate:"omitempty,max=32"`
}

// LetterResult is a generated weekly letter.
type LetterResult struct {
	Letter     string `json:"letter"`
	Model      string `json:"model"`
	WeekStart  string `json:"week_start"`
	EntryCount int    `json:"entry_count"`
	Saved      bool   `json:"saved"`
}

const letterTemplate = `You are %s, %s.
Once a week you write the user a letter about their week, based on their diary.
Notice patterns in their moods and days, celebrate small wins, and be gentle about the hard parts.
Write 150 to 300 words in a warm letter format, starting with a greeting and ending with your name.
Plain text only. Write in the language of the diary.`

// CleanLetter normalizes model output into a letter.
func CleanLetter(raw string) string {
	text := strings.TrimSpace(llmtext.StripCodeFence(raw))
	return llmtext.TruncateRunes(text, maxLetterRunes)
}

func acceptLetter(content string) error {
	if n := len([]rune(CleanLetter(content))); n < minLetterRunes {
		return fmt.Errorf("letter too short (%d runes)", n)
	}
	return nil
}

// WeeklyLetter writes the letter for one week. The letter is stored when the
// caller is signed in and a diary store is configured.
func (s *Service) WeeklyLetter(ctx context.Context, caller Caller, req LetterRequest) (*LetterResult, error) {
	week, err := s.weekStart(req.WeekStart)
	if err != nil {
		return nil, err
	}

	entries := req.Entries
	if len(entries) == 0 {
		entries, err = s.loadWeek(ctx, caller, week)
		if err != nil {
			return nil, err
		}
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	p := s.personaFor(req.Persona)
	system := fmt.Sprintf(letterTemplate, p.Name, p.Voice)
	if name := strings.TrimSpace(req.Name); name != "" {
		system += "\nAddress the letter to " + name + "."
	}
	upstream := request(0.8, 900,
		openrouter.TextMessage(openrouter.RoleSystem, system),
		openrouter.TextMessage(openrouter.RoleUser, letterMaterial(week, entries)))

	res, err := s.runner.Complete(ctx, FeatureLetter, s.models.Letter, upstream, acceptLetter)
	if err != nil {
		return nil, err
	}

	out := &LetterResult{
		Letter:     CleanLetter(res.Completion.Content),
		Model:      res.Model,
		WeekStart:  week.Format(time.DateOnly),
		EntryCount: len(entries),
	}
	if caller.UserID != "" && s.store != nil {
		err := s.store.SaveWeeklyLetter(ctx, caller.Token, journal.Letter{
			UserID:    caller.UserID,
			WeekStart: out.WeekStart,
			Content:   out.Letter,
			Model:     out.Model,
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("week_start", out.WeekStart).Msg("Failed to save weekly letter")
		} else {
			out.Saved = true
		}
	}
	return out, nil
}

func (s *Service) weekStart(param string) (time.Time, error) {
	if param == "" {
		return journal.WeekStart(s.now().In(s.location)), nil
	}
	week, err := journal.ParseWeekStart(param, s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: week_start must be YYYY-MM-DD: %w", ErrInvalidRequest, err)
	}
	return week, nil
}

func (s *Service) loadWeek(ctx context.Context, caller Caller, week time.Time) ([]LetterEntry, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if caller.UserID == "" {
		return nil, ErrNoEntries
	}
	stored, err := s.store.EntriesBetween(ctx, caller.Token, caller.UserID, week, week.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	entries := make([]LetterEntry, 0, len(stored))
	for _, e := range stored {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		entries = append(entries, LetterEntry{
			Content: e.Content,
			Mood:    e.Mood,
			Date:    e.CreatedAt.In(s.location).Format(time.DateOnly),
		})
	}
	return entries, nil
}

// letterMaterial lists the week's entries, trimmed to fit the prompt.
func letterMaterial(week time.Time, entries []LetterEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "My diary for the week starting %s:\n", week.Format(time.DateOnly))
	for _, e := range entries {
		if b.Len() >= maxLetterMaterial {
			break
		}
		b.WriteString("\n")
		if d, err := time.Parse(time.DateOnly, e.Date); err == nil {
			b.WriteString("[" + d.Format(letterDateLayout) + "] ")
		}
		if e.Mood != "" {
			b.WriteString("(mood: " + strings.ToLower(e.Mood) + ") ")
		}
		b.WriteString(llmtext.TruncateRunes(strings.TrimSpace(e.Content), maxEntryRunes))
		b.WriteString("\n")
	}
	return b.String()
}
