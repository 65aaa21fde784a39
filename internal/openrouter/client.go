// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package openrouter is a client for the OpenRouter chat completions API.
//
// It sends one request to one model. Choosing between models, retries and
// circuit breaking live in the fallback package.
package openrouter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	maxResponseBytes = 10 << 20
	maxErrorBytes    = 64 << 10
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	// SiteURL and AppName are sent as HTTP-Referer and X-Title for
	// attribution on openrouter.ai.
	SiteURL string
	AppName string
	// Timeout bounds a non-streaming request, and the wait for response
	// headers of a streaming one.
	Timeout time.Duration
	// RequestsPerSecond and Burst shape outbound traffic. Zero disables.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to OpenRouter. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	siteURL string
	appName string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client-level timeout: it would cut long streams. Deadlines come
		// from the request context.
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		siteURL: cfg.SiteURL,
		appName: cfg.AppName,
		timeout: cfg.Timeout,
		http:    httpClient,
		limiter: limiter,
	}, nil
}

// Complete sends a non-streaming request and returns the first choice.
func (c *Client) Complete(ctx context.Context, req *Request) (*Completion, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := *req
	body.Stream = false
	resp, err := c.do(ctx, &body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("openrouter: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseStatusError(resp.StatusCode, data, resp.Header, req.Model)
	}
	if se := embeddedError(data, req.Model); se != nil {
		return nil, se
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("openrouter: decode response from %s: %w", req.Model, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", ErrEmptyCompletion, req.Model)
	}

	choice := parsed.Choices[0]
	content := strings.TrimSpace(choice.Message.Content.String())
	if content == "" {
		return nil, fmt.Errorf("%w: %s (finish_reason=%s)", ErrEmptyCompletion, req.Model, choice.FinishReason)
	}

	model := parsed.Model
	if model == "" {
		model = req.Model
	}
	return &Completion{
		ID:           parsed.ID,
		Model:        model,
		Content:      content,
		FinishReason: choice.FinishReason,
		Usage:        parsed.Usage,
	}, nil
}

// Stream is an open server-sent event stream from the gateway.
type Stream struct {
	// Body is the raw text/event-stream body.
	Body  io.Reader
	Model string

	closer    io.Closer
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewStream wraps an already open event stream body.
func NewStream(body io.ReadCloser, model string) *Stream {
	return &Stream{Body: body, Model: model, closer: body, cancel: func() {}}
}

// Close releases the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.closer.Close()
		s.cancel()
	})
	return err
}

// Stream sends a streaming request. A non-2xx status is returned as a
// *StatusError before any event is read, so callers can still fall back to
// another model.
func (c *Client) Stream(ctx context.Context, req *Request) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	headerTimer := time.AfterFunc(c.timeout, cancel)

	body := *req
	body.Stream = true
	resp, err := c.do(ctx, &body, "text/event-stream")
	headerTimer.Stop()
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		resp.Body.Close()
		cancel()
		return nil, parseStatusError(resp.StatusCode, data, resp.Header, req.Model)
	}

	stream := NewStream(resp.Body, req.Model)
	stream.cancel = cancel
	return stream, nil
}

func (c *Client) do(ctx context.Context, req *Request, accept string) (*http.Response, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("openrouter: model is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("openrouter: rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.appName != "" {
		httpReq.Header.Set("X-Title", c.appName)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %s: %w", req.Model, err)
	}
	return resp, nil
}
