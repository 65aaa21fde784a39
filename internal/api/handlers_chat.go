// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/soulbloom/internal/companion"
	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/metrics"
	"github.com/tomtom215/soulbloom/internal/openrouter"
	"github.com/tomtom215/soulbloom/internal/sse"
)

// errEmptyStream marks an upstream stream that ended without any content.
var errEmptyStream = errors.New("upstream stream produced no content")

// Chat streams a companion reply as server-sent events:
//
//	data: {"content":"Hi"}
//	data: {"content":" there"}
//	data: [DONE]
//
// Until the first token reaches the client, failures fall back to the next
// model and, when every model fails, produce a normal JSON error response.
// After that, failures end the stream with an error event and [DONE].
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.requireCompanion(w, r) {
		return
	}

	var req companion.ChatRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		NewResponseWriter(w, r).InternalError("Streaming is not supported by this connection")
		return
	}

	ctx := r.Context()
	log := logging.Ctx(ctx)
	stopKeepAlive := sw.KeepAlive(ctx, h.config.KeepAlive)

	var relayed sse.RelayResult
	res, err := h.companion.StreamChat(ctx, req, func(stream *openrouter.Stream) (bool, error) {
		out, relayErr := sse.Relay(ctx, stream.Body, sw)
		relayed = out
		if relayErr == nil && out.Chunks == 0 {
			relayErr = errEmptyStream
		}
		return sw.Started(), relayErr
	})
	stopKeepAlive()

	switch {
	case err == nil:
		if doneErr := sw.Done(); doneErr != nil {
			log.Debug().Err(doneErr).Msg("Client went away before [DONE]")
		}
		metrics.RecordSSEStream(companion.FeatureChat, "completed", relayed.Chunks)
		log.Info().
			Str("model", res.Model).
			Int("fallback_index", res.Index).
			Int("chunks", relayed.Chunks).
			Int("chars", len(relayed.Text)).
			Str("finish_reason", relayed.FinishReason).
			Msg("Chat stream completed")

	case ctx.Err() != nil:
		metrics.RecordSSEStream(companion.FeatureChat, "cancelled", relayed.Chunks)
		log.Debug().Err(err).Msg("Chat stream cancelled by client")

	case !sw.Started():
		metrics.RecordSSEStream(companion.FeatureChat, "failed", 0)
		respondError(w, r, companion.FeatureChat, err)

	default:
		metrics.RecordSSEStream(companion.FeatureChat, "interrupted", relayed.Chunks)
		log.Warn().Err(err).Int("chunks", relayed.Chunks).Msg("Chat stream interrupted after output")
		_ = sw.Error(ErrCodeStreamFailed, "The reply was interrupted, please try again")
		_ = sw.Done()
	}
}
