// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"

	"github.com/tomtom215/soulbloom/internal/daydream"
	"github.com/tomtom215/soulbloom/internal/metrics"
)

// DaydreamResult is the next scene of a daydream.
type DaydreamResult struct {
	Scene    daydream.Scene    `json:"scene"`
	Strategy daydream.Strategy `json:"strategy"`
	Model    string            `json:"model"`
}

// Daydream continues a daydream story. Output that yields no narration is
// rejected so the next model gets a turn.
func (s *Service) Daydream(ctx context.Context, req daydream.Request, persona string) (*DaydreamResult, error) {
	p := s.personaFor(persona)
	upstream := request(0.9, 500, daydream.BuildMessages(req, p.Name)...)

	res, err := s.runner.Complete(ctx, FeatureDaydream, s.models.Daydream, upstream, daydream.Validate)
	if err != nil {
		return nil, err
	}

	scene, strategy := daydream.Parse(res.Completion.Content)
	metrics.RecordDaydreamParse(string(strategy))
	return &DaydreamResult{Scene: scene, Strategy: strategy, Model: res.Model}, nil
}
