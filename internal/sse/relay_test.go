// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func chunk(content string) string {
	return `data: {"model":"m1","choices":[{"delta":{"content":` + quote(content) + `}}]}` + "\n\n"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func newTestWriter(t *testing.T) (*Writer, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w, rec
}

func TestRelay_ForwardsDeltas(t *testing.T) {
	t.Parallel()

	upstream := ": OPENROUTER PROCESSING\n\n" +
		chunk("Hel") +
		`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" +
		chunk("lo") +
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\r\n\r\n" +
		"data: [DONE]\n\n" +
		chunk("ignored")

	w, rec := newTestWriter(t)
	res, err := Relay(context.Background(), iotest.HalfReader(stringsReader(upstream)), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Hello" || res.Chunks != 2 {
		t.Errorf("expected Hello in 2 chunks, got %q in %d", res.Text, res.Chunks)
	}
	if res.FinishReason != "stop" || !res.Done || res.Model != "m1" {
		t.Errorf("unexpected result: %+v", res)
	}

	want := "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\n"
	if rec.Body.String() != want {
		t.Errorf("expected body %q, got %q", want, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
}

func TestRelay_UpstreamErrorBeforeContent(t *testing.T) {
	t.Parallel()

	upstream := `data: {"error":{"message":"Provider returned error","code":502}}` + "\n\n"
	w, _ := newTestWriter(t)

	_, err := Relay(context.Background(), stringsReader(upstream), w)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if ue.Message != "Provider returned error" || ue.Code != "502" {
		t.Errorf("unexpected upstream error: %+v", ue)
	}
	if w.Started() {
		t.Error("expected nothing written to the client")
	}
}

func TestRelay_FinishReasonError(t *testing.T) {
	t.Parallel()

	upstream := chunk("Hi") + `data: {"choices":[{"delta":{},"finish_reason":"error"}]}` + "\n\n"
	w, _ := newTestWriter(t)

	res, err := Relay(context.Background(), stringsReader(upstream), w)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Text != "Hi" {
		t.Errorf("expected partial text Hi, got %q", res.Text)
	}
}

func TestRelay_EOFWithoutContent(t *testing.T) {
	t.Parallel()

	w, _ := newTestWriter(t)
	_, err := Relay(context.Background(), stringsReader(": OPENROUTER PROCESSING\n\n"), w)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestRelay_EOFAfterContent(t *testing.T) {
	t.Parallel()

	w, _ := newTestWriter(t)
	res, err := Relay(context.Background(), stringsReader(chunk("partial")), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Done {
		t.Error("expected Done false without [DONE]")
	}
}

func TestRelay_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w, _ := newTestWriter(t)

	if _, err := Relay(ctx, stringsReader(chunk("x")), w); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWriter_Frames(t *testing.T) {
	t.Parallel()

	w, rec := newTestWriter(t)
	if w.Started() {
		t.Fatal("expected writer not started")
	}

	if err := w.Event("note", []byte("a\nb")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Comment("keep-alive"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Error("EXTERNAL_SERVICE_FAILED", "all models failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Done(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "event: note\ndata: a\ndata: b\n\n" +
		": keep-alive\n\n" +
		"event: error\ndata: {\"code\":\"EXTERNAL_SERVICE_FAILED\",\"message\":\"all models failed\"}\n\n" +
		"data: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Errorf("expected %q, got %q", want, rec.Body.String())
	}
	if w.Frames() != 4 {
		t.Errorf("expected 4 frames, got %d", w.Frames())
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Error("expected X-Accel-Buffering: no")
	}
	if !rec.Flushed {
		t.Error("expected response to be flushed")
	}
}

type noFlush struct{ http.ResponseWriter }

func TestNewWriter_RequiresFlusher(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(noFlush{httptest.NewRecorder()})
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Errorf("expected ErrStreamingUnsupported, got %v", err)
	}
}

func TestWriter_KeepAliveOnlyAfterStart(t *testing.T) {
	t.Parallel()

	w, rec := newTestWriter(t)
	stop := w.KeepAlive(context.Background(), time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if w.Started() {
		t.Fatal("expected keep-alive not to start the stream")
	}
	w.Start()
	deadline := time.Now().Add(time.Second)
	for w.Frames() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	stop()
	if !strings.Contains(rec.Body.String(), ": keep-alive") {
		t.Errorf("expected keep-alive comment, got %q", rec.Body.String())
	}
}
