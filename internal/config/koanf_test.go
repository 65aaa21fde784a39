// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateConfigFiles points config file discovery at an empty directory so a
// developer's config.yaml does not leak into tests.
func isolateConfigFiles(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))

	saved := DefaultConfigPaths
	DefaultConfigPaths = nil
	t.Cleanup(func() { DefaultConfigPaths = saved })
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("Server.WriteTimeout = %v, want 0 for streaming", cfg.Server.WriteTimeout)
	}
	if cfg.OpenRouter.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("OpenRouter.BaseURL = %q", cfg.OpenRouter.BaseURL)
	}
	if len(cfg.Models.Chat) == 0 || len(cfg.Models.Vision) == 0 {
		t.Error("expected default model chains")
	}
	if cfg.Supabase.StorageBucket != "character-images" {
		t.Errorf("Supabase.StorageBucket = %q", cfg.Supabase.StorageBucket)
	}
	if cfg.Companion.PromptCacheTTL != 30*time.Minute {
		t.Errorf("Companion.PromptCacheTTL = %v, want 30m", cfg.Companion.PromptCacheTTL)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	isolateConfigFiles(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-v1-test")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("CHAT_MODELS", "model/a, model/b ,,model/c")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("OPENROUTER_TIMEOUT", "90s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RANDOM_UNMAPPED_VAR", "ignored")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	want := []string{"model/a", "model/b", "model/c"}
	if strings.Join(cfg.Models.Chat, "|") != strings.Join(want, "|") {
		t.Errorf("Models.Chat = %v, want %v", cfg.Models.Chat, want)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.Security.CORSOrigins)
	}
	if cfg.OpenRouter.Timeout != 90*time.Second {
		t.Errorf("OpenRouter.Timeout = %v, want 90s", cfg.OpenRouter.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Models.Title) == 0 {
		t.Error("expected untouched chains to keep defaults")
	}
}

func TestLoadWithKoanf_PortFallback(t *testing.T) {
	isolateConfigFiles(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-v1-test")
	t.Setenv("PORT", "9090")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090 from PORT", cfg.Server.Port)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	isolateConfigFiles(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 4000
models:
  daydream:
    - story/model-a
    - story/model-b
openrouter:
  api_key: sk-or-v1-from-file
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "4001")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 4001 {
		t.Errorf("Server.Port = %d, want env to win with 4001", cfg.Server.Port)
	}
	if len(cfg.Models.Daydream) != 2 || cfg.Models.Daydream[0] != "story/model-a" {
		t.Errorf("Models.Daydream = %v", cfg.Models.Daydream)
	}
	if cfg.OpenRouter.APIKey != "sk-or-v1-from-file" {
		t.Errorf("OpenRouter.APIKey not loaded from file")
	}
}

func TestLoadWithKoanf_MissingAPIKey(t *testing.T) {
	isolateConfigFiles(t)
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := LoadWithKoanf()
	if err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("expected OPENROUTER_API_KEY error, got %v", err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	isolateConfigFiles(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OPENROUTER_API_KEY=sk-or-v1-dotenv\nCOMPANION_PERSONA=willow\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	saved := DotEnvPath
	DotEnvPath = path
	t.Cleanup(func() { DotEnvPath = saved })

	// Registered with t.Setenv so the values godotenv writes are restored.
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("COMPANION_PERSONA", "")
	os.Unsetenv("OPENROUTER_API_KEY")
	os.Unsetenv("COMPANION_PERSONA")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenRouter.APIKey != "sk-or-v1-dotenv" {
		t.Errorf("OpenRouter.APIKey = %q, want value from .env", cfg.OpenRouter.APIKey)
	}
	if cfg.Companion.Persona != "willow" {
		t.Errorf("Companion.Persona = %q, want willow", cfg.Companion.Persona)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"OPENROUTER_API_KEY":        "openrouter.api_key",
		"DAYDREAM_MODELS":           "models.daydream",
		"SUPABASE_SERVICE_ROLE_KEY": "supabase.service_role_key",
		"HTTP_PORT":                 "server.port",
		"PATH":                      "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
