// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/metrics"
)

// errSubscriptionEnded is returned when a subscriber stops without an
// error while its context is still live.
var errSubscriptionEnded = errors.New("subscription ended unexpectedly")

// Subscriber is a long-lived realtime consumer. *autocomment.Worker
// satisfies it.
type Subscriber interface {
	Serve(ctx context.Context) error
	String() string
}

// RealtimeService supervises a realtime subscriber.
//
// Every run gets a fresh correlation ID so the log lines of one websocket
// session can be told apart from the next. A subscriber that returns while
// ctx is live is always reported as a failure, which makes suture restart
// it with backoff instead of treating the exit as final.
type RealtimeService struct {
	sub  Subscriber
	runs atomic.Int64
}

// NewRealtimeService wraps sub.
func NewRealtimeService(sub Subscriber) *RealtimeService {
	return &RealtimeService{sub: sub}
}

// Serve implements suture.Service.
func (s *RealtimeService) Serve(ctx context.Context) error {
	run := s.runs.Add(1)
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.CtxWith(ctx).Str("service", s.sub.String()).Int64("run", run).Logger()

	if run > 1 {
		log.Info().Msg("Restarting realtime subscriber")
	}

	err := s.sub.Serve(ctx)

	if ctx.Err() != nil {
		metrics.RecordServiceRun(s.sub.String(), "stopped")
		return ctx.Err()
	}
	if err == nil {
		err = errSubscriptionEnded
	}
	metrics.RecordServiceRun(s.sub.String(), "failed")
	log.Warn().Err(err).Msg("Realtime subscriber stopped, supervisor will restart it")
	return fmt.Errorf("%s: %w", s.sub.String(), err)
}

// Runs reports how many times Serve has been entered.
func (s *RealtimeService) Runs() int64 {
	return s.runs.Load()
}

// String names the service in supervisor logs.
func (s *RealtimeService) String() string {
	return s.sub.String()
}
