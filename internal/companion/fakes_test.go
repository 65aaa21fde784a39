// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/soulbloom/internal/config"
	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// fakeRunner answers every chain with the first model and a fixed reply.
type fakeRunner struct {
	mu       sync.Mutex
	content  string
	err      error
	calls    int
	features []string
	requests []openrouter.Request
	models   [][]string
}

func (f *fakeRunner) Complete(ctx context.Context, feature string, models []string, req openrouter.Request, accept fallback.Validator) (*fallback.Result, error) {
	f.mu.Lock()
	f.calls++
	f.features = append(f.features, feature)
	f.requests = append(f.requests, req)
	f.models = append(f.models, models)
	content, err := f.content, f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fallback.ErrNoModels
	}
	if accept != nil {
		if rejectErr := accept(content); rejectErr != nil {
			return nil, &fallback.ExhaustedError{Feature: feature, Attempts: []fallback.Attempt{{
				Model: models[0], Outcome: "rejected", Err: &fallback.RejectedError{Model: models[0], Reason: rejectErr},
			}}}
		}
	}
	return &fallback.Result{
		Completion: &openrouter.Completion{Model: models[0], Content: content},
		Model:      models[0],
	}, nil
}

func (f *fakeRunner) Stream(ctx context.Context, feature string, models []string, req openrouter.Request, consume fallback.StreamConsumer) (*fallback.StreamResult, error) {
	f.mu.Lock()
	f.calls++
	f.features = append(f.features, feature)
	f.requests = append(f.requests, req)
	content, err := f.content, f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	stream := openrouter.NewStream(io.NopCloser(strings.NewReader(content)), models[0])
	defer stream.Close()
	if _, err := consume(stream); err != nil {
		return &fallback.StreamResult{Model: models[0]}, err
	}
	return &fallback.StreamResult{Model: models[0]}, nil
}

func (f *fakeRunner) lastRequest() openrouter.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func exhausted(feature string) error {
	return &fallback.ExhaustedError{Feature: feature, Attempts: []fallback.Attempt{{Model: "m1", Outcome: "error", Err: errors.New("503")}}}
}

type fakeStore struct {
	mu       sync.Mutex
	entries  []journal.Entry
	loadErr  error
	saveErr  error
	letters  []journal.Letter
	tokens   []string
	comments []journal.Comment
	has      map[string]bool
	from, to time.Time
}

func (f *fakeStore) EntriesBetween(ctx context.Context, token, userID string, from, to time.Time) ([]journal.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from, f.to = from, to
	f.tokens = append(f.tokens, token)
	return f.entries, f.loadErr
}

func (f *fakeStore) SaveWeeklyLetter(ctx context.Context, token string, letter journal.Letter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.letters = append(f.letters, letter)
	return nil
}

func (f *fakeStore) SaveEntryComment(ctx context.Context, comment journal.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comment)
	return f.saveErr
}

func (f *fakeStore) HasComment(ctx context.Context, entryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.has[entryID], nil
}

type fakeImages struct {
	data        []byte
	contentType string
	err         error
	token       string
	bucket      string
	path        string
	calls       int
}

func (f *fakeImages) DownloadAs(ctx context.Context, accessToken, bucket, path string) ([]byte, string, error) {
	f.calls++
	f.token, f.bucket, f.path = accessToken, bucket, path
	return f.data, f.contentType, f.err
}

func testModels() config.ModelsConfig {
	m := []string{"m1", "m2"}
	return config.ModelsConfig{Chat: m, Title: m, Comment: m, Prompt: m, Bubble: m, Wish: m, Letter: m, Vision: m, Daydream: m}
}

// fixedNow is a Wednesday afternoon.
var fixedNow = time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)

func newTestService(runner Runner, mutate func(*Config)) *Service {
	cfg := Config{Models: testModels(), Now: func() time.Time { return fixedNow }}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewService(runner, cfg)
}
