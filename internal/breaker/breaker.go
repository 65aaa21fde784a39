// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package breaker wraps sony/gobreaker with logging and Prometheus metrics.
//
// The fallback runner keeps one breaker per model identifier so a model
// that keeps failing is skipped without spending a request on it. The
// Supabase client shares a single breaker for the project.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/metrics"
)

// Settings configures a breaker.
type Settings struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
	// ConsecutiveFailures that open the breaker regardless of ratio. 0 disables.
	ConsecutiveFailures uint32
	// IsSuccessful classifies errors; nil counts every error as a failure
	// except context cancellation.
	IsSuccessful func(err error) bool
}

// DefaultSettings: 3 probes half-open, 1 minute window, 2 minute cool-down,
// open at 60% failures over at least 10 requests.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// ModelSettings trips faster than the default: a model that fails five
// times in a row is skipped for a minute.
func ModelSettings() Settings {
	s := DefaultSettings()
	s.Timeout = time.Minute
	s.MinRequests = 6
	s.ConsecutiveFailures = 5
	return s
}

// Breaker is a named circuit breaker.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New creates a breaker and initializes its metrics.
func New(name string, s Settings) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	isSuccessful := s.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = defaultIsSuccessful
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if s.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= s.ConsecutiveFailures {
				logging.Warn().Str("breaker", name).Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("Opening circuit")
				return true
			}
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		IsSuccessful: isSuccessful,
	})

	return &Breaker{cb: cb, name: name}
}

// A cancelled caller says nothing about the upstream's health.
func defaultIsSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string { return stateToString(b.cb.State()) }

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool { return b.cb.State() == gobreaker.StateOpen }

// Execute runs fn under the breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// Do runs fn under b and returns its typed result.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if IsRejected(err) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, err
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		return result, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// IsRejected reports whether err came from the breaker refusing the call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Registry lazily creates breakers that share settings, keyed by name.
type Registry struct {
	mu       sync.Mutex
	prefix   string
	settings Settings
	breakers map[string]*Breaker
}

// NewRegistry creates a registry. Breaker names are prefix + key.
func NewRegistry(prefix string, s Settings) *Registry {
	return &Registry{
		prefix:   prefix,
		settings: s,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := New(r.prefix+key, r.settings)
	r.breakers[key] = b
	return b
}

// States returns the state of every breaker created so far, keyed by name.
func (r *Registry) States() map[string]string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.breakers))
	for k := range r.breakers {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Strings(keys)

	states := make(map[string]string, len(keys))
	for _, k := range keys {
		states[k] = r.Get(k).State()
	}
	return states
}
