// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package supabase is a small client for the Supabase services the API
// uses: PostgREST for the diary tables, GoTrue to resolve access tokens,
// Storage for character images and Realtime for new diary entries.
//
// A Client built from config talks with the service role key. WithToken
// returns a copy that forwards a user's access token instead, so row level
// security applies to everything it does.
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/soulbloom/internal/breaker"
	"github.com/tomtom215/soulbloom/internal/metrics"
)

const maxResponseBytes = 10 << 20

// Config configures a Client.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Breaker guards every HTTP call. Nil disables circuit breaking.
	Breaker *breaker.Breaker
}

// Client talks to one Supabase project.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	token      string
	http       *http.Client
	breaker    *breaker.Breaker
}

// New validates cfg and creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrNotConfigured)
	}
	if cfg.AnonKey == "" && cfg.ServiceKey == "" {
		return nil, fmt.Errorf("%w: an anon or service role key is required", ErrNotConfigured)
	}
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("supabase: invalid URL %q", cfg.URL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    u.String(),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		http:       hc,
		breaker:    cfg.Breaker,
	}, nil
}

// WithToken returns a copy of c that authenticates as the user owning
// accessToken.
func (c *Client) WithToken(accessToken string) *Client {
	cp := *c
	cp.token = accessToken
	return &cp
}

// HasServiceKey reports whether privileged calls are possible.
func (c *Client) HasServiceKey() bool { return c.serviceKey != "" }

// URL returns the project URL.
func (c *Client) URL() string { return c.baseURL }

// apiKey is the project key sent in the apikey header.
func (c *Client) apiKey() string {
	if c.token != "" && c.anonKey != "" {
		return c.anonKey
	}
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

func (c *Client) bearer() string {
	if c.token != "" {
		return c.token
	}
	return c.apiKey()
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do performs a request under the breaker and records metrics. Non-2xx
// responses are returned as *APIError.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body []byte, header http.Header) (*response, error) {
	call := func() (*response, error) {
		return c.roundTrip(ctx, op, method, rawURL, body, header)
	}
	if c.breaker == nil {
		return call()
	}
	return breaker.Do(c.breaker, call)
}

func (c *Client) roundTrip(ctx context.Context, op, method, rawURL string, body []byte, header http.Header) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey())
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordSupabaseRequest(op, 0, time.Since(start))
		return nil, fmt.Errorf("supabase: %s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.RecordSupabaseRequest(op, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("supabase: %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, data)
	}
	if len(data) > maxResponseBytes {
		return nil, ErrObjectTooLarge
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// BreakerSettings suits the Supabase breaker: client errors such as 404 or
// an RLS denial say nothing about the service's health.
func BreakerSettings() breaker.Settings {
	s := breaker.DefaultSettings()
	s.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrObjectTooLarge) {
			return true
		}
		var apiErr *APIError
		return errors.As(err, &apiErr) && apiErr.Status < 500
	}
	return s
}
