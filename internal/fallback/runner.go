// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package fallback runs a request against an ordered chain of models,
// moving to the next model when one fails.
//
// Models are tried strictly in order and each at most once per request.
// Within a model, transient failures (429, 5xx, dropped connections) are
// retried with exponential backoff. A model whose circuit breaker is open is
// skipped. Errors no model can fix (401, 402, 403) end the chain at once.
package fallback

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/soulbloom/internal/breaker"
	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/metrics"
	"github.com/tomtom215/soulbloom/internal/openrouter"
)

// Completer is the gateway client used by the runner.
type Completer interface {
	Complete(ctx context.Context, req *openrouter.Request) (*openrouter.Completion, error)
	Stream(ctx context.Context, req *openrouter.Request) (*openrouter.Stream, error)
}

// Policy controls retries within a single model.
type Policy struct {
	// MaxRetries after the first try of a model. 0 means one try per model.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds each try. 0 leaves only the caller's deadline.
	AttemptTimeout time.Duration
}

// DefaultPolicy retries twice per model starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
		AttemptTimeout: 45 * time.Second,
	}
}

// Validator inspects model output. A non-nil error rejects the output and
// moves on to the next model.
type Validator func(content string) error

// Result is a successful non-streaming run.
type Result struct {
	Completion *openrouter.Completion
	Model      string // chain entry that answered
	Index      int    // position of Model in the chain
	Attempts   []Attempt
}

// Runner executes fallback chains.
type Runner struct {
	client   Completer
	breakers *breaker.Registry
	policy   Policy
}

// NewRunner creates a runner. breakers may be nil to disable circuit breaking.
func NewRunner(client Completer, breakers *breaker.Registry, policy Policy) *Runner {
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultPolicy().InitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Runner{client: client, breakers: breakers, policy: policy}
}

// BreakerStates reports the state of every model breaker used so far.
func (r *Runner) BreakerStates() map[string]string {
	if r.breakers == nil {
		return map[string]string{}
	}
	return r.breakers.States()
}

// Complete runs req against models in order until one returns content that
// accept (optional) does not reject.
func (r *Runner) Complete(ctx context.Context, feature string, models []string, req openrouter.Request, accept Validator) (*Result, error) {
	if len(models) == 0 {
		return nil, ErrNoModels
	}
	log := logging.CtxWith(ctx).Str("feature", feature).Logger()
	attempts := make([]Attempt, 0, len(models))

	for i, model := range models {
		b := r.breaker(model)
		if b != nil && b.Open() {
			attempts = append(attempts, skipped(feature, model))
			log.Debug().Str("model", model).Msg("Skipping model with open circuit")
			continue
		}

		start := time.Now()
		completion, err := r.completeModel(ctx, b, req.WithModel(model), accept)
		attempt := Attempt{Model: model, Err: err, Duration: time.Since(start), Outcome: outcomeFor(err)}
		if attempt.Outcome == metrics.OutcomeSkipped {
			attempt.Err = ErrBreakerOpen
		}
		metrics.RecordLLMAttempt(feature, model, attempt.Outcome, attempt.Duration)
		attempts = append(attempts, attempt)

		if err == nil {
			metrics.RecordFallbackResult(feature, i)
			metrics.RecordTokenUsage(feature, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
			if i > 0 {
				log.Info().Str("model", model).Int("index", i).Msg("Answered by fallback model")
			}
			return &Result{Completion: completion, Model: model, Index: i, Attempts: attempts}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if openrouter.IsFatal(err) {
			log.Error().Err(err).Str("model", model).Msg("Gateway rejected credentials, aborting model chain")
			metrics.RecordFallbackResult(feature, -1)
			return nil, err
		}
		log.Warn().Err(err).Str("model", model).Int("index", i).Msg("Model attempt failed")
	}

	metrics.RecordFallbackResult(feature, -1)
	return nil, &ExhaustedError{Feature: feature, Attempts: attempts}
}

func (r *Runner) completeModel(ctx context.Context, b *breaker.Breaker, req openrouter.Request, accept Validator) (*openrouter.Completion, error) {
	var result *openrouter.Completion
	bo := r.newBackOff()

	op := func() error {
		attemptCtx, cancel := r.attemptContext(ctx)
		defer cancel()

		call := func() (*openrouter.Completion, error) {
			c, err := r.client.Complete(attemptCtx, &req)
			if err != nil {
				return nil, err
			}
			if accept != nil {
				if verr := accept(c.Content); verr != nil {
					return nil, &RejectedError{Model: req.Model, Reason: verr}
				}
			}
			return c, nil
		}

		var c *openrouter.Completion
		var err error
		if b != nil {
			c, err = breaker.Do(b, call)
		} else {
			c, err = call()
		}
		if err != nil {
			if ctx.Err() != nil || !r.retryable(err) {
				return backoff.Permanent(err)
			}
			bo.observe(err)
			return err
		}
		result = c
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// StreamConsumer reads an open stream. It reports whether anything reached
// the client; once it has, the runner cannot fall back.
type StreamConsumer func(stream *openrouter.Stream) (delivered bool, err error)

// StreamResult describes a completed streaming run.
type StreamResult struct {
	Model    string
	Index    int
	Attempts []Attempt
}

// Stream opens a stream on each model in order and hands it to consume.
// When opening fails, or consume fails before delivering anything, the
// next model is tried. A failure after delivery is returned as is.
func (r *Runner) Stream(ctx context.Context, feature string, models []string, req openrouter.Request, consume StreamConsumer) (*StreamResult, error) {
	if len(models) == 0 {
		return nil, ErrNoModels
	}
	log := logging.CtxWith(ctx).Str("feature", feature).Logger()
	attempts := make([]Attempt, 0, len(models))

	for i, model := range models {
		b := r.breaker(model)
		if b != nil && b.Open() {
			attempts = append(attempts, skipped(feature, model))
			continue
		}

		start := time.Now()
		delivered, err := r.streamModel(ctx, b, req.WithModel(model), consume)
		attempt := Attempt{Model: model, Err: err, Duration: time.Since(start), Outcome: outcomeFor(err)}
		metrics.RecordLLMAttempt(feature, model, attempt.Outcome, attempt.Duration)
		attempts = append(attempts, attempt)

		if err == nil {
			metrics.RecordFallbackResult(feature, i)
			return &StreamResult{Model: model, Index: i, Attempts: attempts}, nil
		}
		if delivered {
			log.Warn().Err(err).Str("model", model).Msg("Stream failed after output was delivered")
			return &StreamResult{Model: model, Index: i, Attempts: attempts}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if openrouter.IsFatal(err) {
			metrics.RecordFallbackResult(feature, -1)
			return nil, err
		}
		log.Warn().Err(err).Str("model", model).Int("index", i).Msg("Stream attempt failed before output, trying next model")
	}

	metrics.RecordFallbackResult(feature, -1)
	return nil, &ExhaustedError{Feature: feature, Attempts: attempts}
}

func (r *Runner) streamModel(ctx context.Context, b *breaker.Breaker, req openrouter.Request, consume StreamConsumer) (bool, error) {
	var stream *openrouter.Stream
	bo := r.newBackOff()

	open := func() error {
		// Only the wait for response headers is bounded per attempt; the
		// body outlives it.
		s, err := r.client.Stream(ctx, &req)
		if err != nil {
			return err
		}
		stream = s
		return nil
	}

	op := func() error {
		var err error
		if b != nil {
			err = b.Execute(open)
		} else {
			err = open()
		}
		if err != nil {
			if ctx.Err() != nil || !r.retryable(err) {
				return backoff.Permanent(err)
			}
			bo.observe(err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return false, err
	}
	defer stream.Close()

	delivered, err := consume(stream)
	if err != nil && !delivered && b != nil && ctx.Err() == nil {
		// The stream opened but died before producing anything usable.
		_ = b.Execute(func() error { return err })
	}
	return delivered, err
}

func (r *Runner) breaker(model string) *breaker.Breaker {
	if r.breakers == nil {
		return nil
	}
	return r.breakers.Get(model)
}

func (r *Runner) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.policy.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, r.policy.AttemptTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) newBackOff() *retryAfterBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.policy.InitialBackoff
	bo.MaxInterval = r.policy.MaxBackoff
	bo.MaxElapsedTime = 0
	return &retryAfterBackOff{
		BackOff: backoff.WithMaxRetries(bo, uint64(r.policy.MaxRetries)),
		limit:   r.policy.MaxBackoff,
	}
}

// retryAfterBackOff waits at least as long as the gateway's last
// Retry-After, capped at limit.
type retryAfterBackOff struct {
	backoff.BackOff
	limit time.Duration
	hint  time.Duration
}

// observe records the Retry-After carried by err, if any.
func (b *retryAfterBackOff) observe(err error) {
	var se *openrouter.StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		b.hint = min(se.RetryAfter, b.limit)
	}
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *retryAfterBackOff) Reset() {
	b.hint = 0
	b.BackOff.Reset()
}

// retryable reports whether the same model should be tried again.
func (r *Runner) retryable(err error) bool {
	var se *openrouter.StatusError
	if errors.As(err, &se) {
		// A Retry-After longer than our backoff cap is better spent on the
		// next model.
		return se.Retryable() && se.RetryAfter <= r.policy.MaxBackoff
	}
	switch {
	case breaker.IsRejected(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, openrouter.ErrEmptyCompletion):
		return false
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func outcomeFor(err error) string {
	var rejected *RejectedError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case breaker.IsRejected(err):
		return metrics.OutcomeSkipped
	case errors.As(err, &rejected):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func skipped(feature, model string) Attempt {
	metrics.RecordLLMAttempt(feature, model, metrics.OutcomeSkipped, 0)
	return Attempt{Model: model, Outcome: metrics.OutcomeSkipped, Err: ErrBreakerOpen}
}
