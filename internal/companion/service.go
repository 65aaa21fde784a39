// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package companion implements the diary's AI features: chat, titles,
// comments, prompts, bubble messages, wish splitting, weekly letters,
// character analysis and daydreams.
//
// Every feature builds its messages here, runs them through a fallback
// chain of models and cleans the raw output into the shape the web client
// renders. Features that need stored data (weekly letters from saved entries,
// character images in Storage) report ErrUnavailable when Supabase is not
// configured.
package companion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/soulbloom/internal/cache"
	"github.com/tomtom215/soulbloom/internal/config"
	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// Feature names, used as metric labels and breaker log context.
const (
	FeatureChat      = "chat"
	FeatureTitle     = "title"
	FeatureComment   = "comment"
	FeaturePrompts   = "prompts"
	FeatureBubble    = "bubble"
	FeatureWish      = "wish"
	FeatureLetter    = "letter"
	FeatureCharacter = "character"
	FeatureDaydream  = "daydream"
)

var (
	// ErrUnavailable is returned when a feature's storage dependency is
	// not configured.
	ErrUnavailable = errors.New("companion: feature unavailable")

	// ErrInvalidRequest marks input the caller must fix.
	ErrInvalidRequest = errors.New("companion: invalid request")

	// ErrNoEntries is returned when a weekly letter has nothing to read.
	ErrNoEntries = errors.New("companion: no diary entries for that week")

	// ErrSignInRequired is returned when a feature reads the caller's
	// stored data but the request is anonymous.
	ErrSignInRequired = errors.New("companion: sign in required")

	// ErrForbidden is returned for stored data outside the caller's folder.
	ErrForbidden = errors.New("companion: forbidden")
)

// Runner executes fallback chains. *fallback.Runner implements it.
type Runner interface {
	Complete(ctx context.Context, feature string, models []string, req openrouter.Request, accept fallback.Validator) (*fallback.Result, error)
	Stream(ctx context.Context, feature string, models []string, req openrouter.Request, consume fallback.StreamConsumer) (*fallback.StreamResult, error)
}

// ImageStore downloads stored images as the user owning accessToken.
// *supabase.Client implements it.
type ImageStore interface {
	DownloadAs(ctx context.Context, accessToken, bucket, path string) ([]byte, string, error)
}

// Caller identifies the signed-in user behind a request. Zero means
// anonymous.
type Caller struct {
	UserID string
	Token  string
}

// Config configures a Service.
type Config struct {
	Models         config.ModelsConfig
	Persona        string
	PromptCacheTTL time.Duration
	// ChatTemperature is the sampling temperature for chat. Default 0.8.
	ChatTemperature float64
	// Store loads entries and saves results. Nil disables persistence.
	Store journal.Store
	// Images and Bucket resolve character image storage paths.
	Images ImageStore
	Bucket string
	// Location is used for week boundaries and the time of day.
	Location *time.Location
	Now      func() time.Time
}

// Service implements the companion features.
type Service struct {
	runner   Runner
	models   config.ModelsConfig
	persona  string
	chatTemp float64
	prompts  *cache.TTL[promptSet]
	store    journal.Store
	images   ImageStore
	bucket   string
	location *time.Location
	now      func() time.Time
}

// NewService creates a service.
func NewService(runner Runner, cfg Config) *Service {
	ttl := cfg.PromptCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	chatTemp := cfg.ChatTemperature
	if chatTemp <= 0 {
		chatTemp = 0.8
	}
	persona := strings.ToLower(strings.TrimSpace(cfg.Persona))
	if _, ok := personas[persona]; !ok {
		persona = DefaultPersona
	}

	return &Service{
		runner:   runner,
		models:   cfg.Models,
		persona:  persona,
		chatTemp: chatTemp,
		prompts:  cache.NewTTL[promptSet](ttl),
		store:    cfg.Store,
		images:   cfg.Images,
		bucket:   cfg.Bucket,
		location: loc,
		now:      now,
	}
}

// Close stops the prompt cache's cleanup goroutine.
func (s *Service) Close() {
	s.prompts.Close()
}

// PromptCacheStats reports prompt cache effectiveness.
func (s *Service) PromptCacheStats() cache.Stats {
	return s.prompts.GetStats()
}

// HasStore reports whether persistence-backed features are available.
func (s *Service) HasStore() bool { return s.store != nil }

func request(temperature float64, maxTokens int, msgs ...openrouter.Message) openrouter.Request {
	return openrouter.Request{
		Messages:    msgs,
		Temperature: openrouter.Float(temperature),
		MaxTokens:   maxTokens,
	}
}

// nonEmpty rejects output that cleans to nothing.
func nonEmpty(clean func(string) string) fallback.Validator {
	return func(content string) error {
		if clean(content) == "" {
			return errors.New("empty after cleanup")
		}
		return nil
	}
}

// canFallBackLocally reports whether a locally generated answer is still
// wanted after the model chain failed with err. Only the caller's own
// context decides; a per-attempt timeout inside the chain does not.
func canFallBackLocally(ctx context.Context, err error) bool {
	return ctx.Err() == nil && err != nil
}
