// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/soulbloom/internal/llmtext"
	"github.com/tomtom215/soulbloom/internal/openrouter"
	"github.com/tomtom215/soulbloom/internal/supabase"
)

// MaxImageBytes bounds images downloaded from Storage.
const MaxImageBytes = 5 << 20

// CharacterRequest asks for a character sheet from a drawing or photo.
// Exactly one of Image (data URL or https URL) and Path (Storage object
// path) is needed.
type CharacterRequest struct {
	Image string `json:"image" validate:"required_without=Path,omitempty,imageref"`
	Path  string `json:"path" validate:"omitempty,max=512"`
	Hint  string `json:"hint" validate:"omitempty,max=500"`
}

// Character is the analyzed character.
type Character struct {
	Name        string   `json:"name"`
	Personality string   `json:"personality"`
	Traits      []string `json:"traits"`
	Description string   `json:"description"`
}

// CharacterResult wraps the character.
type CharacterResult struct {
	Character Character `json:"character"`
	Model     string    `json:"model"`
}

const characterPrompt = `Look at the picture and imagine it as a friendly character for a diary companion app.
Reply with ONLY a JSON object:
{"name": "a short, cute name", "personality": "one sentence", "traits": ["3 to 5 one-word traits"], "description": "two sentences describing how they look"}`

var (
	nameKeys        = []string{"name", "character_name", "title"}
	personalityKeys = []string{"personality", "persona", "temperament"}
	descriptionKeys = []string{"description", "appearance", "look", "summary"}
	traitKeys       = []string{"traits", "tags", "keywords", "characteristics"}
)

// ParseCharacter recovers a character from model output.
func ParseCharacter(raw string) (Character, error) {
	var obj map[string]any
	if _, err := llmtext.DecodeLenient(raw, &obj); err != nil {
		return Character{}, err
	}
	if nested, ok := obj["character"].(map[string]any); ok {
		obj = nested
	}

	c := Character{
		Name:        llmtext.TruncateRunes(llmtext.CleanLine(firstString(obj, nameKeys)), 40),
		Personality: strings.TrimSpace(firstString(obj, personalityKeys)),
		Description: strings.TrimSpace(firstString(obj, descriptionKeys)),
	}
	for _, k := range traitKeys {
		switch v := obj[k].(type) {
		case []any:
			for _, t := range v {
				if s, ok := t.(string); ok {
					c.Traits = append(c.Traits, s)
				}
			}
		case string:
			c.Traits = append(c.Traits, strings.FieldsFunc(v, func(r rune) bool {
				return r == ',' || r == '，' || r == '、' || r == ';'
			})...)
		}
		if len(c.Traits) > 0 {
			break
		}
	}
	for i := range c.Traits {
		c.Traits[i] = llmtext.CleanLine(c.Traits[i])
	}
	c.Traits = llmtext.Dedupe(c.Traits)
	if len(c.Traits) > 8 {
		c.Traits = c.Traits[:8]
	}
	if c.Traits == nil {
		c.Traits = []string{}
	}

	if c.Name == "" && c.Description == "" {
		return Character{}, errors.New("no name or description")
	}
	return c, nil
}

// AnalyzeCharacter describes the character in an image. A Storage path is
// read as caller and must sit under the caller's own folder.
func (s *Service) AnalyzeCharacter(ctx context.Context, caller Caller, req CharacterRequest) (*CharacterResult, error) {
	image, err := s.resolveImage(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	prompt := characterPrompt
	if hint := strings.TrimSpace(req.Hint); hint != "" {
		prompt += "\nThe user says: " + hint
	}
	upstream := request(0.4, 400, openrouter.ImageMessage(prompt, image))

	accept := func(content string) error {
		_, err := ParseCharacter(content)
		return err
	}
	res, err := s.runner.Complete(ctx, FeatureCharacter, s.models.Vision, upstream, accept)
	if err != nil {
		return nil, err
	}
	c, err := ParseCharacter(res.Completion.Content)
	if err != nil {
		return nil, err
	}
	return &CharacterResult{Character: c, Model: res.Model}, nil
}

// resolveImage returns a URL the vision model can read. Storage paths are
// downloaded with the caller's token and inlined, since bucket objects are
// private.
func (s *Service) resolveImage(ctx context.Context, caller Caller, req CharacterRequest) (string, error) {
	if req.Image != "" {
		return req.Image, nil
	}
	if req.Path == "" {
		return "", fmt.Errorf("%w: image or path is required", ErrInvalidRequest)
	}
	if s.images == nil || s.bucket == "" {
		return "", ErrUnavailable
	}
	if caller.UserID == "" || caller.Token == "" {
		return "", fmt.Errorf("%w: stored images need a signed-in user", ErrSignInRequired)
	}
	if err := checkOwnedPath(caller.UserID, req.Path); err != nil {
		return "", err
	}

	data, contentType, err := s.images.DownloadAs(ctx, caller.Token, s.bucket, req.Path)
	if errors.Is(err, supabase.ErrInvalidPath) {
		return "", fmt.Errorf("%w: %q is not a valid storage path", ErrInvalidRequest, req.Path)
	}
	if err != nil {
		return "", fmt.Errorf("download character image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", ErrInvalidRequest, MaxImageBytes)
	}
	contentType, _, _ = strings.Cut(contentType, ";")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: stored object is %q, not an image", ErrInvalidRequest, contentType)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// checkOwnedPath requires p to be a plain object path under userID's folder.
func checkOwnedPath(userID, p string) error {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q is not a valid storage path", ErrInvalidRequest, p)
		}
	}
	if len(segments) < 2 || segments[0] != userID {
		return fmt.Errorf("%w: path must be inside your own folder", ErrForbidden)
	}
	return nil
}
