// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/soulbloom/internal/openrouter"
)

const chatBody = `{"messages":[{"role":"user","content":"I had a long day"}],"mood":"tired"}`

func TestChat_StreamsDeltas(t *testing.T) {
	t.Parallel()

	upstream := ": OPENROUTER PROCESSING\n\n" + sseChunk("Rest ") + sseChunk("well.") + "data: [DONE]\n\n"
	ts := newTestServer(t, &fakeRunner{streams: []string{upstream}})

	rec := ts.post(t, "/api/v1/chat", chatBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	want := "data: {\"content\":\"Rest \"}\n\ndata: {\"content\":\"well.\"}\n\ndata: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Errorf("expected body %q, got %q", want, rec.Body.String())
	}
}

func TestChat_FallsBackBeforeFirstToken(t *testing.T) {
	t.Parallel()

	// First model cannot open, second closes without content, third answers.
	ts := newTestServer(t, &fakeRunner{streams: []string{
		"",
		": keep-alive\n\n",
		sseChunk("Hello") + "data: [DONE]\n\n",
	}})

	rec := ts.post(t, "/api/v1/chat", chatBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"content":"Hello"`) {
		t.Errorf("expected third model's content, got %q", rec.Body.String())
	}
	if strings.Count(rec.Body.String(), "[DONE]") != 1 {
		t.Errorf("expected exactly one [DONE], got %q", rec.Body.String())
	}
}

func TestChat_InterruptedAfterOutput(t *testing.T) {
	t.Parallel()

	upstream := sseChunk("Half a thought") + `data: {"error":{"message":"provider overloaded","code":502}}` + "\n\n"
	ts := newTestServer(t, &fakeRunner{streams: []string{upstream, sseChunk("never used")}})

	rec := ts.post(t, "/api/v1/chat", chatBody)

	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once streaming started, got %d", rec.Code)
	}
	if strings.Contains(body, "never used") {
		t.Error("expected no fallback after output was delivered")
	}
	if !strings.Contains(body, "event: error\ndata: {\"code\":\"STREAM_FAILED\"") {
		t.Errorf("expected error event, got %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("expected stream to end with [DONE], got %q", body)
	}
}

func TestChat_AllModelsFailReturnsJSON(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeRunner{streams: []string{"", ""}})

	rec := ts.post(t, "/api/v1/chat", chatBody)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != ErrCodeExternalServiceFail {
		t.Errorf("expected EXTERNAL_SERVICE_FAILED, got %+v", env.Error)
	}
}

func TestChat_FatalUpstreamError(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeRunner{err: &openrouter.StatusError{StatusCode: http.StatusPaymentRequired, Model: "model-a"}})

	rec := ts.post(t, "/api/v1/chat", chatBody)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestChat_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		code string
	}{
		{"no messages", `{"messages":[]}`, ErrCodeValidationFailed},
		{"bad role", `{"messages":[{"role":"system","content":"x"}]}`, ErrCodeValidationFailed},
		{"unknown mood", `{"messages":[{"role":"user","content":"x"}],"mood":"ecstatic-ish"}`, ErrCodeValidationFailed},
		{"unknown field", `{"messages":[{"role":"user","content":"x"}],"model":"gpt"}`, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			runner := &fakeRunner{streams: []string{sseChunk("x")}}
			ts := newTestServer(t, runner)

			rec := ts.post(t, "/api/v1/chat", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			env := decodeEnvelope(t, rec)
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("expected %s, got %+v", tt.code, env.Error)
			}
			if len(runner.features) != 0 {
				t.Error("expected no upstream call for an invalid request")
			}
		})
	}
}
