// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"
	"testing"
)

func TestHealthLive(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeRunner{})

	rec := ts.get(t, "/api/v1/health/live")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data map[string]interface{}
	decodeData(t, rec, &data)
	if data["alive"] != true {
		t.Errorf("expected alive=true, got %v", data["alive"])
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured bool
		want       int
	}{
		{"configured", true, http.StatusOK},
		{"missing key", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t, &fakeRunner{}, withHandlerConfig(func(hc *HandlerConfig) {
				hc.OpenRouterConfigured = tt.configured
			}))

			rec := ts.get(t, "/api/v1/health/ready")

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHealth_Summary(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeRunner{}, withHandlerConfig(func(hc *HandlerConfig) {
		hc.SupabaseEnabled = true
		hc.AuthMode = "local"
		hc.Breakers = func() map[string]string {
			return map[string]string{"llm:model-a": "open", "llm:model-b": "closed", "supabase": "closed"}
		}
	}))

	rec := ts.get(t, "/api/v1/health")

	var health HealthStatus
	decodeData(t, rec, &health)
	if health.Status != "degraded" {
		t.Errorf("expected degraded with an open breaker, got %q", health.Status)
	}
	if len(health.OpenBreakers) != 1 || health.OpenBreakers[0] != "llm:model-a" {
		t.Errorf("expected llm:model-a open, got %v", health.OpenBreakers)
	}
	if !health.SupabaseEnabled || health.AuthMode != "local" {
		t.Errorf("expected supabase enabled with local auth, got %+v", health)
	}
	if len(health.Breakers) != 3 {
		t.Errorf("expected 3 breakers, got %v", health.Breakers)
	}
	if health.PromptCache == nil {
		t.Error("expected prompt cache stats")
	}
	if health.Version != "test" {
		t.Errorf("expected version test, got %q", health.Version)
	}
}

func TestHealth_Healthy(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeRunner{})

	rec := ts.get(t, "/api/v1/health")

	var health HealthStatus
	decodeData(t, rec, &health)
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %q", health.Status)
	}
}
