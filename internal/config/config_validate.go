// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateOpenRouter,
		c.validateModels,
		c.validateSupabase,
		c.validateSecurity,
		c.validateCompanion,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must not be negative")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateOpenRouter() error {
	or := c.OpenRouter
	if strings.TrimSpace(or.APIKey) == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if containsPlaceholder(or.APIKey) {
		return fmt.Errorf("OPENROUTER_API_KEY contains a placeholder value")
	}
	if err := validateServiceURL(or.BaseURL, "OPENROUTER_BASE_URL"); err != nil {
		return err
	}
	if or.Timeout <= 0 {
		return fmt.Errorf("OPENROUTER_TIMEOUT must be positive")
	}
	if or.AttemptTimeout <= 0 || or.AttemptTimeout > or.Timeout {
		return fmt.Errorf("OPENROUTER_ATTEMPT_TIMEOUT must be positive and not exceed OPENROUTER_TIMEOUT")
	}
	if or.RequestsPerSecond <= 0 || or.Burst < 1 {
		return fmt.Errorf("OPENROUTER_RPS must be positive and OPENROUTER_BURST at least 1")
	}
	if or.MaxRetries < 0 || or.MaxRetries > 5 {
		return fmt.Errorf("OPENROUTER_MAX_RETRIES must be between 0 and 5")
	}
	if or.Temperature < 0 || or.Temperature > 2 {
		return fmt.Errorf("OPENROUTER_TEMPERATURE must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateModels() error {
	chains := []struct {
		env    string
		models []string
	}{
		{"CHAT_MODELS", c.Models.Chat},
		{"TITLE_MODELS", c.Models.Title},
		{"COMMENT_MODELS", c.Models.Comment},
		{"PROMPT_MODELS", c.Models.Prompt},
		{"BUBBLE_MODELS", c.Models.Bubble},
		{"WISH_MODELS", c.Models.Wish},
		{"LETTER_MODELS", c.Models.Letter},
		{"VISION_MODELS", c.Models.Vision},
		{"DAYDREAM_MODELS", c.Models.Daydream},
	}
	for _, chain := range chains {
		if err := validateModelChain(chain.env, chain.models); err != nil {
			return err
		}
	}
	return nil
}

func validateModelChain(envName string, models []string) error {
	if len(models) == 0 {
		return fmt.Errorf("%s must list at least one model", envName)
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" {
			return fmt.Errorf("%s contains an empty model identifier", envName)
		}
		if seen[m] {
			return fmt.Errorf("%s lists %q more than once", envName, m)
		}
		seen[m] = true
	}
	return nil
}

func (c *Config) validateSupabase() error {
	sb := c.Supabase
	anySet := sb.URL != "" || sb.AnonKey != "" || sb.ServiceRoleKey != ""
	if !anySet {
		return nil
	}
	if sb.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required when Supabase keys are set")
	}
	if err := validateHTTPURL(sb.URL, "SUPABASE_URL"); err != nil {
		return fmt.Errorf("SUPABASE_URL is invalid: %w", err)
	}
	if sb.AnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required when SUPABASE_URL is set")
	}
	if sb.StorageBucket == "" {
		return fmt.Errorf("SUPABASE_STORAGE_BUCKET must not be empty")
	}
	if sb.Timeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateCORS(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	if c.Security.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	return c.validateAuth()
}

// validateCORS rejects wildcard origins in production when bearer tokens
// are required.
func (c *Config) validateCORS() error {
	if c.Security.RequireAuth && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with REQUIRE_AUTH=true. " +
			"Set specific origins: CORS_ORIGINS=https://diary.example.com")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports wildcard CORS in production.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS() && c.IsProduction()
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if err := validateRateLimit("RATE_LIMIT", c.Security.RateLimitReqs, c.Security.RateLimitWindow); err != nil {
		return err
	}
	return validateRateLimit("AI_RATE_LIMIT", c.Security.AIRateLimitReqs, c.Security.AIRateLimitWindow)
}

func validateRateLimit(prefix string, reqs int, window time.Duration) error {
	if reqs < minRateLimitRequests || reqs > maxRateLimitRequests {
		return fmt.Errorf("%s_REQUESTS must be between %d and %d", prefix, minRateLimitRequests, maxRateLimitRequests)
	}
	if window < minRateLimitWindow || window > maxRateLimitWindow {
		return fmt.Errorf("%s_WINDOW must be between %v and %v", prefix, minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateAuth requires a way to verify Supabase access tokens when
// REQUIRE_AUTH is on.
func (c *Config) validateAuth() error {
	if !c.Security.RequireAuth {
		return nil
	}
	if c.Supabase.JWTSecret == "" && !c.SupabaseEnabled() {
		return fmt.Errorf("REQUIRE_AUTH=true needs SUPABASE_JWT_SECRET or SUPABASE_URL with SUPABASE_ANON_KEY")
	}
	if c.Supabase.JWTSecret != "" && len(c.Supabase.JWTSecret) < 32 {
		return fmt.Errorf("SUPABASE_JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func (c *Config) validateCompanion() error {
	if c.Companion.AutoCommentEnabled {
		if !c.SupabaseEnabled() || c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("AUTO_COMMENT_ENABLED=true requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
		if c.Companion.AutoCommentTimeout <= 0 {
			return fmt.Errorf("AUTO_COMMENT_TIMEOUT must be positive")
		}
	}
	if c.Companion.PromptCacheTTL < 0 {
		return fmt.Errorf("PROMPT_CACHE_TTL must not be negative")
	}
	return nil
}

// IsProduction returns true when ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true when ENVIRONMENT is unset or development.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_API_KEY",
	"YOUR_KEY",
	"PLACEHOLDER",
}

// containsPlaceholder reports values copied verbatim from an example .env.
func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
