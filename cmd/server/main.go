// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/soulbloom/internal/api"
	"github.com/tomtom215/soulbloom/internal/auth"
	"github.com/tomtom215/soulbloom/internal/autocomment"
	"github.com/tomtom215/soulbloom/internal/breaker"
	"github.com/tomtom215/soulbloom/internal/companion"
	"github.com/tomtom215/soulbloom/internal/config"
	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/openrouter"
	"github.com/tomtom215/soulbloom/internal/supabase"
	"github.com/tomtom215/soulbloom/internal/supervisor"
	"github.com/tomtom215/soulbloom/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Bool("supabase_enabled", cfg.SupabaseEnabled()).
		Bool("require_auth", cfg.Security.RequireAuth).
		Msg("Starting Soul Bloom Diary API")

	// === MODEL ACCESS ===

	runner, openRouterReady := initRunner(cfg)
	var modelRunner companion.Runner
	if runner != nil {
		modelRunner = runner
	}

	// === SUPABASE ===

	var (
		sb         *supabase.Client
		sbBreaker  *breaker.Breaker
		store      journal.Store
		imageStore companion.ImageStore
	)
	if cfg.SupabaseEnabled() {
		sbBreaker = breaker.New("supabase", supabase.BreakerSettings())
		sb, err = supabase.New(supabase.Config{
			URL:        cfg.Supabase.URL,
			AnonKey:    cfg.Supabase.AnonKey,
			ServiceKey: cfg.Supabase.ServiceRoleKey,
			Timeout:    cfg.Supabase.Timeout,
			Breaker:    sbBreaker,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create Supabase client")
		}
		store = journal.NewRepository(sb)
		imageStore = sb
		logging.Info().
			Str("url", cfg.Supabase.URL).
			Bool("service_role", sb.HasServiceKey()).
			Msg("Supabase client initialized")
	} else {
		logging.Info().Msg("Supabase not configured - weekly letter storage, stored images and auto-comments disabled")
	}

	// === AUTHENTICATION ===

	authMiddleware, authMode := initAuth(cfg, sb)

	// === COMPANION ===

	svc := companion.NewService(modelRunner, companion.Config{
		Models:          cfg.Models,
		Persona:         cfg.Companion.Persona,
		PromptCacheTTL:  cfg.Companion.PromptCacheTTL,
		ChatTemperature: cfg.OpenRouter.Temperature,
		Store:           store,
		Images:          imageStore,
		Bucket:          cfg.Supabase.StorageBucket,
		Location:        time.Local,
	})
	defer svc.Close()

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	autoComment := cfg.Companion.AutoCommentEnabled && openRouterReady && sb != nil && sb.HasServiceKey()
	if autoComment {
		worker := autocomment.New(sb.Realtime(), svc, store, autocomment.Config{
			Timeout: cfg.Companion.AutoCommentTimeout,
		})
		tree.AddMessagingService(services.NewRealtimeService(worker))
		logging.Info().Msg("Auto-comment worker added to supervisor tree")
	} else if cfg.Companion.AutoCommentEnabled {
		logging.Warn().Msg("AUTO_COMMENT_ENABLED ignored: needs OpenRouter and a Supabase service role key")
	}

	// === HTTP ===

	handler := api.NewHandler(api.HandlerConfig{
		Companion:            svc,
		Breakers:             breakerStates(runner, sbBreaker),
		OpenRouterConfigured: openRouterReady,
		SupabaseEnabled:      sb != nil,
		AutoCommentEnabled:   autoComment,
		AuthMode:             authMode,
		Version:              version,
	})
	router := api.NewRouter(handler, authMiddleware, api.NewChiMiddlewareFromConfig(cfg.Security), cfg.Security)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, s := range unstopped {
			logging.Warn().Str("service", s.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// initRunner builds the OpenRouter client and the fallback runner. Without
// an API key the runner is nil and readiness reports unavailable.
func initRunner(cfg *config.Config) (*fallback.Runner, bool) {
	client, err := openrouter.New(openrouter.Config{
		APIKey:            cfg.OpenRouter.APIKey,
		BaseURL:           cfg.OpenRouter.BaseURL,
		SiteURL:           cfg.OpenRouter.SiteURL,
		AppName:           cfg.OpenRouter.AppName,
		Timeout:           cfg.OpenRouter.Timeout,
		RequestsPerSecond: cfg.OpenRouter.RequestsPerSecond,
		Burst:             cfg.OpenRouter.Burst,
	})
	if err != nil {
		if errors.Is(err, openrouter.ErrNoAPIKey) {
			logging.Warn().Msg("OPENROUTER_API_KEY not set - AI routes will return 503")
			return nil, false
		}
		logging.Fatal().Err(err).Msg("Failed to create OpenRouter client")
	}

	policy := fallback.DefaultPolicy()
	policy.MaxRetries = cfg.OpenRouter.MaxRetries
	if cfg.OpenRouter.AttemptTimeout > 0 {
		policy.AttemptTimeout = cfg.OpenRouter.AttemptTimeout
	}

	logging.Info().
		Str("base_url", cfg.OpenRouter.BaseURL).
		Str("api_key", logging.RedactSecret(cfg.OpenRouter.APIKey)).
		Int("max_retries", policy.MaxRetries).
		Msg("OpenRouter client initialized")

	return fallback.NewRunner(client, breaker.NewRegistry("model:", breaker.ModelSettings()), policy), true
}

// initAuth picks local HS256 verification when a JWT secret is configured
// and remote lookup through Supabase Auth otherwise. With neither, every
// request is anonymous.
func initAuth(cfg *config.Config, sb *supabase.Client) (*auth.Middleware, string) {
	var remote auth.UserLookup
	if sb != nil {
		remote = sb
	}

	verifier, err := auth.NewVerifier(cfg.Supabase.JWTSecret, remote)
	if err != nil {
		if errors.Is(err, auth.ErrNoVerifier) {
			logging.Info().Msg("No token verifier configured - all requests are anonymous")
			return auth.NewMiddleware(nil), ""
		}
		logging.Fatal().Err(err).Msg("Failed to create token verifier")
	}

	logging.Info().Str("mode", verifier.Mode()).Msg("Access token verification enabled")
	return auth.NewMiddleware(verifier), verifier.Mode()
}

// breakerStates merges the model breakers and the Supabase breaker for the
// health endpoint.
func breakerStates(runner *fallback.Runner, sb *breaker.Breaker) func() map[string]string {
	return func() map[string]string {
		states := map[string]string{}
		if runner != nil {
			for name, state := range runner.BreakerStates() {
				states[name] = state
			}
		}
		if sb != nil {
			states[sb.Name()] = sb.State()
		}
		return states
	}
}
