// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/soulbloom/internal/auth"
	"github.com/tomtom215/soulbloom/internal/companion"
	"github.com/tomtom215/soulbloom/internal/config"
	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// fakeRunner answers Complete with content and plays streams[i] as the
// upstream body of the i-th model. An empty stream body fails to open.
type fakeRunner struct {
	mu       sync.Mutex
	content  string
	err      error
	streams  []string
	features []string
}

func (f *fakeRunner) Complete(ctx context.Context, feature string, models []string, req openrouter.Request, accept fallback.Validator) (*fallback.Result, error) {
	f.mu.Lock()
	f.features = append(f.features, feature)
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
				Model: models[0], Outcome: "rejected", Err: rejectErr,
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
	f.features = append(f.features, feature)
	streams, err := f.streams, f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	var attempts []fallback.Attempt
	for i, body := range streams {
		model := "model-" + string(rune('a'+i))
		if body == "" {
			attempts = append(attempts, fallback.Attempt{Model: model, Outcome: "error", Err: errors.New("503")})
			continue
		}
		stream := openrouter.NewStream(io.NopCloser(strings.NewReader(body)), model)
		delivered, consumeErr := consume(stream)
		_ = stream.Close()
		if consumeErr == nil {
			return &fallback.StreamResult{Model: model, Index: i}, nil
		}
		if delivered {
			return &fallback.StreamResult{Model: model, Index: i}, consumeErr
		}
		attempts = append(attempts, fallback.Attempt{Model: model, Outcome: "error", Err: consumeErr})
	}
	return nil, &fallback.ExhaustedError{Feature: feature, Attempts: attempts}
}

func exhausted(feature string) error {
	return &fallback.ExhaustedError{Feature: feature, Attempts: []fallback.Attempt{
		{Model: "m1", Outcome: "error", Err: errors.New("upstream 503")},
		{Model: "m2", Outcome: "skipped", Err: fallback.ErrBreakerOpen},
	}}
}

// fakeStore is an in-memory journal.Store.
type fakeStore struct {
	mu      sync.Mutex
	entries []journal.Entry
	letters []journal.Letter
}

func (f *fakeStore) EntriesBetween(ctx context.Context, token, userID string, from, to time.Time) ([]journal.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeStore) SaveWeeklyLetter(ctx context.Context, token string, letter journal.Letter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, letter)
	return nil
}

func (f *fakeStore) SaveEntryComment(ctx context.Context, c journal.Comment) error { return nil }

func (f *fakeStore) HasComment(ctx context.Context, entryID string) (bool, error) { return false, nil }

// fakeImages serves a PNG for every stored path.
type fakeImages struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeImages) DownloadAs(ctx context.Context, accessToken, bucket, path string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	return []byte("\x89PNG"), "image/png", nil
}

func (f *fakeImages) downloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

// fakeVerifier accepts "good-<id>" tokens.
type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, token string) (*auth.User, error) {
	if id, ok := strings.CutPrefix(token, "good-"); ok {
		return &auth.User{ID: id, Role: "authenticated"}, nil
	}
	return nil, auth.ErrInvalidToken
}

func testModels() config.ModelsConfig {
	chain := []string{"model-a", "model-b"}
	return config.ModelsConfig{
		Chat: chain, Title: chain, Comment: chain, Prompt: chain, Bubble: chain,
		Wish: chain, Letter: chain, Vision: chain, Daydream: chain,
	}
}

func testSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		CORSOrigins:       []string{"https://diary.example"},
		RateLimitReqs:     1000,
		RateLimitWindow:   time.Minute,
		AIRateLimitReqs:   1000,
		AIRateLimitWindow: time.Minute,
		MaxBodyBytes:      1 << 20,
	}
}

type testServer struct {
	runner  *fakeRunner
	store   *fakeStore
	handler http.Handler
}

type serverOption func(*HandlerConfig, *companion.Config, *config.SecurityConfig)

func withStore(store *fakeStore) serverOption {
	return func(_ *HandlerConfig, cc *companion.Config, _ *config.SecurityConfig) {
		cc.Store = store
	}
}

func withImages(images *fakeImages) serverOption {
	return func(_ *HandlerConfig, cc *companion.Config, _ *config.SecurityConfig) {
		cc.Images = images
		cc.Bucket = "character-images"
	}
}

func withSecurity(fn func(*config.SecurityConfig)) serverOption {
	return func(_ *HandlerConfig, _ *companion.Config, sc *config.SecurityConfig) {
		fn(sc)
	}
}

func withHandlerConfig(fn func(*HandlerConfig)) serverOption {
	return func(hc *HandlerConfig, _ *companion.Config, _ *config.SecurityConfig) {
		fn(hc)
	}
}

func newTestServer(t *testing.T, runner *fakeRunner, opts ...serverOption) *testServer {
	t.Helper()

	cc := companion.Config{
		Models: testModels(),
		Now:    func() time.Time { return time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC) },
	}
	hc := HandlerConfig{OpenRouterConfigured: true, Version: "test", KeepAlive: time.Hour}
	sc := testSecurity()
	for _, opt := range opts {
		opt(&hc, &cc, &sc)
	}

	svc := companion.NewService(runner, cc)
	t.Cleanup(svc.Close)
	hc.Companion = svc

	ts := &testServer{runner: runner, handler: nil}
	if s, ok := cc.Store.(*fakeStore); ok {
		ts.store = s
	}
	router := NewRouter(NewHandler(hc), auth.NewMiddleware(fakeVerifier{}), NewChiMiddlewareFromConfig(sc), sc)
	ts.handler = router.SetupChi()
	return ts
}

func (ts *testServer) post(t *testing.T, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// envelope decodes an API response, keeping data raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success, got status %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	return env
}

// sseChunk builds an upstream OpenRouter stream chunk.
func sseChunk(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"model":   "upstream",
		"choices": []map[string]interface{}{{"delta": map[string]string{"content": content}}},
	})
	return "data: " + string(data) + "\n\n"
}
