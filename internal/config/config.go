// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml)
//  3. Environment Variables: override any setting
//
// A .env file in the working directory is merged into the process
// environment before step 3 and never overrides variables already set.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Security   SecurityConfig   `koanf:"security"`
	OpenRouter OpenRouterConfig `koanf:"openrouter"`
	Models     ModelsConfig     `koanf:"models"`
	Supabase   SupabaseConfig   `koanf:"supabase"`
	Companion  CompanionConfig  `koanf:"companion"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"` // 0 disables; chat streams outlive any fixed deadline
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds CORS, rate limiting and authentication settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	AIRateLimitReqs   int           `koanf:"ai_rate_limit_reqs"`
	AIRateLimitWindow time.Duration `koanf:"ai_rate_limit_window"`
	RequireAuth       bool          `koanf:"require_auth"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
}

// OpenRouterConfig holds the LLM gateway connection settings.
type OpenRouterConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	SiteURL           string        `koanf:"site_url"`
	AppName           string        `koanf:"app_name"`
	Timeout           time.Duration `koanf:"timeout"`
	AttemptTimeout    time.Duration `koanf:"attempt_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	MaxRetries        int           `koanf:"max_retries"`
	Temperature       float64       `koanf:"temperature"`
}

// ModelsConfig lists OpenRouter model identifiers per feature, tried in order.
type ModelsConfig struct {
	Chat     []string `koanf:"chat"`
	Title    []string `koanf:"title"`
	Comment  []string `koanf:"comment"`
	Prompt   []string `koanf:"prompt"`
	Bubble   []string `koanf:"bubble"`
	Wish     []string `koanf:"wish"`
	Letter   []string `koanf:"letter"`
	Vision   []string `koanf:"vision"`
	Daydream []string `koanf:"daydream"`
}

// SupabaseConfig holds the Supabase project settings. Every field is
// optional; persistence-backed features report unavailable without them.
type SupabaseConfig struct {
	URL            string        `koanf:"url"`
	AnonKey        string        `koanf:"anon_key"`
	ServiceRoleKey string        `koanf:"service_role_key"`
	JWTSecret      string        `koanf:"jwt_secret"`
	StorageBucket  string        `koanf:"storage_bucket"`
	Timeout        time.Duration `koanf:"timeout"`
}

// CompanionConfig holds feature behavior settings.
type CompanionConfig struct {
	AutoCommentEnabled bool          `koanf:"auto_comment_enabled"`
	AutoCommentTimeout time.Duration `koanf:"auto_comment_timeout"`
	PromptCacheTTL     time.Duration `koanf:"prompt_cache_ttl"`
	Persona            string        `koanf:"persona"`
}

// Load reads configuration from defaults, config file, .env and environment
// variables, then validates it.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return LoadWithKoanf()
}

// DotEnvPath is the file merged into the environment by Load.
var DotEnvPath = ".env"

func loadDotEnv() error {
	if err := godotenv.Load(DotEnvPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", DotEnvPath, err)
	}
	return nil
}

// SupabaseEnabled reports whether the REST, auth and storage clients can be built.
func (c *Config) SupabaseEnabled() bool {
	return c.Supabase.URL != "" && (c.Supabase.AnonKey != "" || c.Supabase.ServiceRoleKey != "")
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
