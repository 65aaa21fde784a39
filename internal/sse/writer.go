// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package sse

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("sse: streaming unsupported")

// Writer emits server-sent events to a client. Headers are sent with the
// first frame, so a handler can still answer with a plain error response
// while Started is false. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	frames  int
}

// NewWriter wraps w. It fails when w does not implement http.Flusher.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: f}, nil
}

// Started reports whether anything has been written to the client.
func (w *Writer) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Start sends the stream headers. Calling it again is a no-op.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.startLocked()
}

func (w *Writer) startLocked() {
	if w.started {
		return
	}
	h := w.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.w.WriteHeader(http.StatusOK)
	w.started = true
}

// Event writes a named event. Multi-line data becomes several data lines.
func (w *Writer) Event(name string, data []byte) error {
	var b strings.Builder
	if name != "" {
		b.WriteString("event: ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(string(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return w.write(b.String())
}

// Data writes v as JSON in an unnamed event.
func (w *Writer) Data(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Event("", data)
}

// Comment writes a comment line, ignored by clients.
func (w *Writer) Comment(text string) error {
	return w.write(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n")
}

// Done writes the terminating data: [DONE] frame.
func (w *Writer) Done() error {
	return w.Event("", []byte(DoneMarker))
}

// ErrorFrame is the payload of an error event.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error writes an error event.
func (w *Writer) Error(code, message string) error {
	data, err := json.Marshal(ErrorFrame{Code: code, Message: message})
	if err != nil {
		return err
	}
	return w.Event("error", data)
}

// KeepAlive writes a comment every interval once the stream has started,
// until ctx ends or stop is called.
func (w *Writer) KeepAlive(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if w.Started() {
					if err := w.Comment("keep-alive"); err != nil {
						return
					}
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (w *Writer) write(frame string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.startLocked()
	if _, err := w.w.Write([]byte(frame)); err != nil {
		return err
	}
	w.frames++
	w.flusher.Flush()
	return nil
}
