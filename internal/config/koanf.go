// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/soulbloom/config.yaml",
	"/etc/soulbloom/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default model chains. Free-tier models first, paid fallbacks last.
var (
	defaultTextModels = []string{
		"deepseek/deepseek-chat-v3-0324:free",
		"meta-llama/llama-3.3-70b-instruct:free",
		"google/gemini-2.0-flash-exp:free",
		"openai/gpt-4o-mini",
	}
	defaultFastModels = []string{
		"google/gemini-2.0-flash-exp:free",
		"meta-llama/llama-3.3-70b-instruct:free",
		"openai/gpt-4o-mini",
	}
	defaultVisionModels = []string{
		"google/gemini-2.0-flash-exp:free",
		"qwen/qwen2.5-vl-72b-instruct:free",
		"openai/gpt-4o-mini",
	}
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			AIRateLimitReqs:   20,
			AIRateLimitWindow: time.Minute,
			RequireAuth:       false,
			MaxBodyBytes:      8 << 20,
		},
		OpenRouter: OpenRouterConfig{
			BaseURL:           "https://openrouter.ai/api/v1",
			AppName:           "Soul Bloom Diary",
			Timeout:           60 * time.Second,
			AttemptTimeout:    45 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
			MaxRetries:        2,
			Temperature:       0.8,
		},
		Models: ModelsConfig{
			Chat:     defaultTextModels,
			Title:    defaultFastModels,
			Comment:  defaultTextModels,
			Prompt:   defaultFastModels,
			Bubble:   defaultFastModels,
			Wish:     defaultTextModels,
			Letter:   defaultTextModels,
			Vision:   defaultVisionModels,
			Daydream: defaultTextModels,
		},
		Supabase: SupabaseConfig{
			StorageBucket: "character-images",
			Timeout:       15 * time.Second,
		},
		Companion: CompanionConfig{
			AutoCommentEnabled: false,
			AutoCommentTimeout: 90 * time.Second,
			PromptCacheTTL:     30 * time.Minute,
			Persona:            "bloom",
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config File (optional YAML)
//  3. Environment Variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// PORT is what most PaaS runtimes inject; HTTP_PORT wins when both are set.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_PORT") == "" {
		if err := k.Set("server.port", port); err != nil {
			return nil, fmt.Errorf("failed to set server.port: %w", err)
		}
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"models.chat",
	"models.title",
	"models.comment",
	"models.prompt",
	"models.bubble",
	"models.wish",
	"models.letter",
	"models.vision",
	"models.daydream",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Security
	"cors_origins":           "security.cors_origins",
	"rate_limit_requests":    "security.rate_limit_reqs",
	"rate_limit_window":      "security.rate_limit_window",
	"disable_rate_limit":     "security.rate_limit_disabled",
	"ai_rate_limit_requests": "security.ai_rate_limit_reqs",
	"ai_rate_limit_window":   "security.ai_rate_limit_window",
	"require_auth":           "security.require_auth",
	"max_body_bytes":         "security.max_body_bytes",

	// OpenRouter
	"openrouter_api_key":         "openrouter.api_key",
	"openrouter_base_url":        "openrouter.base_url",
	"openrouter_site_url":        "openrouter.site_url",
	"openrouter_app_name":        "openrouter.app_name",
	"openrouter_timeout":         "openrouter.timeout",
	"openrouter_attempt_timeout": "openrouter.attempt_timeout",
	"openrouter_rps":             "openrouter.requests_per_second",
	"openrouter_burst":           "openrouter.burst",
	"openrouter_max_retries":     "openrouter.max_retries",
	"openrouter_temperature":     "openrouter.temperature",

	// Model chains
	"chat_models":     "models.chat",
	"title_models":    "models.title",
	"comment_models":  "models.comment",
	"prompt_models":   "models.prompt",
	"bubble_models":   "models.bubble",
	"wish_models":     "models.wish",
	"letter_models":   "models.letter",
	"vision_models":   "models.vision",
	"daydream_models": "models.daydream",

	// Supabase
	"supabase_url":              "supabase.url",
	"supabase_anon_key":         "supabase.anon_key",
	"supabase_service_role_key": "supabase.service_role_key",
	"supabase_jwt_secret":       "supabase.jwt_secret",
	"supabase_storage_bucket":   "supabase.storage_bucket",
	"supabase_timeout":          "supabase.timeout",

	// Companion
	"auto_comment_enabled": "companion.auto_comment_enabled",
	"auto_comment_timeout": "companion.auto_comment_timeout",
	"prompt_cache_ttl":     "companion.prompt_cache_ttl",
	"companion_persona":    "companion.persona",
}

// envTransformFunc transforms environment variable names to koanf paths:
//   - OPENROUTER_API_KEY -> openrouter.api_key
//   - CHAT_MODELS -> models.chat
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
