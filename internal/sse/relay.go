// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package sse reads an upstream OpenRouter event stream and re-emits the
// token deltas to a browser as normalized server-sent events.
//
// The upstream is read in raw chunks and split into lines by LineSplitter,
// because providers differ in line endings and chunk boundaries fall
// anywhere, including inside a multi-byte rune. Decoder groups lines into
// events. Relay extracts choices[0].delta.content from each event with gjson
// and writes it to the client as
//
//	data: {"content":"..."}
//
// ending with data: [DONE].
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// DoneMarker terminates an OpenAI-style stream.
const DoneMarker = "[DONE]"

// Delta is the frame sent to the client for each token chunk.
type Delta struct {
	Content string `json:"content"`
}

// UpstreamError is an error reported inside the upstream stream.
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sse: upstream error %s: %s", e.Code, e.Message)
	}
	return "sse: upstream error: " + e.Message
}

// RelayResult summarizes a relayed stream.
type RelayResult struct {
	Text         string
	Chunks       int
	FinishReason string
	Model        string
	Done         bool // [DONE] was received
}

// Relay copies content deltas from upstream to w until [DONE], end of input
// or an upstream error. It does not write the final [DONE] frame, so the
// caller can decide how the stream ends.
func Relay(ctx context.Context, upstream io.Reader, w *Writer) (RelayResult, error) {
	var (
		res  RelayResult
		text strings.Builder
	)
	reader := NewReader(upstream)

	for {
		if err := ctx.Err(); err != nil {
			res.Text = text.String()
			return res, err
		}

		ev, err := reader.Next()
		if err != nil {
			res.Text = text.String()
			if errors.Is(err, io.EOF) {
				if res.Chunks == 0 && res.FinishReason == "" {
					return res, io.ErrUnexpectedEOF
				}
				return res, nil
			}
			return res, err
		}

		data := strings.TrimSpace(ev.Data)
		if data == DoneMarker {
			res.Done = true
			res.Text = text.String()
			return res, nil
		}
		if ev.Name == "error" {
			return finish(res, &text, upstreamError(data))
		}
		if !gjson.Valid(data) {
			continue
		}

		parsed := gjson.Parse(data)
		if errVal := parsed.Get("error"); errVal.Exists() {
			return finish(res, &text, upstreamError(errVal.Raw))
		}
		if res.Model == "" {
			res.Model = parsed.Get("model").String()
		}

		choice := parsed.Get("choices.0")
		if reason := choice.Get("finish_reason").String(); reason != "" {
			res.FinishReason = reason
			if reason == "error" {
				return finish(res, &text, &UpstreamError{Message: "provider reported an error"})
			}
		}

		content := choice.Get("delta.content").String()
		if content == "" {
			continue
		}
		if err := w.Data(Delta{Content: content}); err != nil {
			return finish(res, &text, err)
		}
		text.WriteString(content)
		res.Chunks++
	}
}

func finish(res RelayResult, text *strings.Builder, err error) (RelayResult, error) {
	res.Text = text.String()
	return res, err
}

// upstreamError reads {"message","code"} or {"error":{...}} from raw.
func upstreamError(raw string) *UpstreamError {
	v := gjson.Parse(raw)
	if inner := v.Get("error"); inner.IsObject() {
		v = inner
	}
	msg := v.Get("message").String()
	if msg == "" {
		msg = strings.TrimSpace(raw)
	}
	if msg == "" {
		msg = "unknown error"
	}
	return &UpstreamError{Code: v.Get("code").String(), Message: msg}
}
