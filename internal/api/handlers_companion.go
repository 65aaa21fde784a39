// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package api

import (
	"net/http"

	"github.com/tomtom215/soulbloom/internal/companion"
)

// Title generates a short title for a diary entry. When every model fails
// a title is derived from the entry itself and fallback is true.
func (h *Handler) Title(w http.ResponseWriter, r *http.Request) {
	var req companion.TitleRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.Title(r.Context(), req)
	if err != nil {
		respondError(w, r, companion.FeatureTitle, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// Comment writes the companion's reply to an entry.
func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) {
	var req companion.CommentRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.Comment(r.Context(), req)
	if err != nil {
		respondError(w, r, companion.FeatureComment, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// Prompts suggests writing prompts.
func (h *Handler) Prompts(w http.ResponseWriter, r *http.Request) {
	var req companion.PromptsRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.Prompts(r.Context(), req)
	if err != nil {
		respondError(w, r, companion.FeaturePrompts, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// Bubble returns the short greeting shown in the companion's speech bubble.
func (h *Handler) Bubble(w http.ResponseWriter, r *http.Request) {
	var req companion.BubbleRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.Bubble(r.Context(), req)
	if err != nil {
		respondError(w, r, companion.FeatureBubble, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// SplitWish breaks a wish into small steps.
func (h *Handler) SplitWish(w http.ResponseWriter, r *http.Request) {
	var req companion.WishRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.SplitWish(r.Context(), req)
	if err != nil {
		respondError(w, r, companion.FeatureWish, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// WeeklyLetter writes the weekly letter. Entries come from the body or,
// when omitted, from the signed-in user's diary.
func (h *Handler) WeeklyLetter(w http.ResponseWriter, r *http.Request) {
	var req companion.LetterRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	if len(req.Entries) == 0 && h.companion.HasStore() && callerFrom(r).UserID == "" {
		NewResponseWriter(w, r).Unauthorized("Sign in to write a letter from your saved entries, or send the entries")
		return
	}
	res, err := h.companion.WeeklyLetter(r.Context(), callerFrom(r), req)
	if err != nil {
		respondError(w, r, companion.FeatureLetter, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// AnalyzeCharacter turns a picture into a companion character. Stored
// images are read with the caller's own token.
func (h *Handler) AnalyzeCharacter(w http.ResponseWriter, r *http.Request) {
	var req companion.CharacterRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.AnalyzeCharacter(r.Context(), callerFrom(r), req)
	if err != nil {
		respondError(w, r, companion.FeatureCharacter, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}

// Daydream continues an interactive story.
func (h *Handler) Daydream(w http.ResponseWriter, r *http.Request) {
	var req DaydreamRequest
	if !h.requireCompanion(w, r) || !decodeRequest(w, r, &req) {
		return
	}
	res, err := h.companion.Daydream(r.Context(), req.Request, req.Persona)
	if err != nil {
		respondError(w, r, companion.FeatureDaydream, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(res, &APIMeta{Model: res.Model})
}
