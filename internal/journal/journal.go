// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package journal reads diary entries and stores generated letters and
// comments in Supabase.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/soulbloom/internal/supabase"
)

// Table names.
const (
	EntriesTable  = "diary_entries"
	LettersTable  = "weekly_letters"
	CommentsTable = "entry_comments"
)

// maxEntries bounds a weekly letter's source material.
const maxEntries = 100

// Entry is a diary entry.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Letter is a stored weekly letter.
type Letter struct {
	UserID    string    `json:"user_id"`
	WeekStart string    `json:"week_start"` // YYYY-MM-DD
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Comment is the companion's reply to an entry.
type Comment struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Store is the persistence the companion needs.
type Store interface {
	EntriesBetween(ctx context.Context, token, userID string, from, to time.Time) ([]Entry, error)
	SaveWeeklyLetter(ctx context.Context, token string, letter Letter) error
	SaveEntryComment(ctx context.Context, comment Comment) error
	HasComment(ctx context.Context, entryID string) (bool, error)
}

// Repository implements Store on Supabase.
type Repository struct {
	client *supabase.Client
}

// NewRepository creates a repository. client should carry the service role
// key; user-scoped calls switch to the caller's token.
func NewRepository(client *supabase.Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) scoped(token string) *supabase.Client {
	if token == "" {
		return r.client
	}
	return r.client.WithToken(token)
}

// EntriesBetween returns the user's entries created in [from, to), oldest
// first.
func (r *Repository) EntriesBetween(ctx context.Context, token, userID string, from, to time.Time) ([]Entry, error) {
	if userID == "" {
		return nil, errors.New("journal: user id is required")
	}
	if !to.After(from) {
		return nil, fmt.Errorf("journal: empty range %s..%s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	var entries []Entry
	err := r.scoped(token).From(EntriesTable).
		Select("id,user_id,content,mood,created_at").
		Eq("user_id", userID).
		Gte("created_at", from.UTC().Format(time.RFC3339)).
		Lt("created_at", to.UTC().Format(time.RFC3339)).
		Order("created_at", true).
		Limit(maxEntries).
		Execute(ctx, &entries)
	if err != nil {
		return nil, fmt.Errorf("journal: load entries: %w", err)
	}
	return entries, nil
}

// SaveWeeklyLetter stores letter, replacing any letter for the same week.
func (r *Repository) SaveWeeklyLetter(ctx context.Context, token string, letter Letter) error {
	if letter.UserID == "" || letter.WeekStart == "" {
		return errors.New("journal: letter needs user id and week start")
	}
	row := map[string]any{
		"user_id":    letter.UserID,
		"week_start": letter.WeekStart,
		"content":    letter.Content,
		"model":      letter.Model,
	}
	if err := r.scoped(token).From(LettersTable).Upsert(ctx, row, "user_id,week_start", nil); err != nil {
		return fmt.Errorf("journal: save letter: %w", err)
	}
	return nil
}

// SaveEntryComment inserts comment with the service role.
func (r *Repository) SaveEntryComment(ctx context.Context, comment Comment) error {
	if comment.EntryID == "" || comment.UserID == "" {
		return errors.New("journal: comment needs entry id and user id")
	}
	row := map[string]any{
		"entry_id": comment.EntryID,
		"user_id":  comment.UserID,
		"content":  comment.Content,
		"model":    comment.Model,
	}
	if err := r.client.From(CommentsTable).Insert(ctx, row, nil); err != nil {
		return fmt.Errorf("journal: save comment: %w", err)
	}
	return nil
}

// HasComment reports whether entryID already has a companion comment.
func (r *Repository) HasComment(ctx context.Context, entryID string) (bool, error) {
	var rows []struct {
		EntryID string `json:"entry_id"`
	}
	err := r.client.From(CommentsTable).Select("entry_id").Eq("entry_id", entryID).Limit(1).Execute(ctx, &rows)
	if err != nil {
		return false, fmt.Errorf("journal: check comment: %w", err)
	}
	return len(rows) > 0, nil
}

// WeekStart returns the Monday starting t's week, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// ParseWeekStart parses a YYYY-MM-DD date and snaps it to its Monday.
func ParseWeekStart(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("journal: invalid week start %q: %w", s, err)
	}
	return WeekStart(t), nil
}
