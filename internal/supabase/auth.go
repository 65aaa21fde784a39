// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package supabase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// User is the subset of a GoTrue user the API needs.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	Aud          string         `json:"aud,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName returns the user's chosen name from user metadata, if any.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	for _, k := range []string{"display_name", "name", "full_name", "nickname"} {
		if s, ok := u.UserMetadata[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// GetUser resolves accessToken to its user through GoTrue.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("supabase: access token is required")
	}
	resp, err := c.WithToken(accessToken).do(ctx, "auth:user", http.MethodGet, c.baseURL+"/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(resp.body, &user); err != nil {
		return nil, fmt.Errorf("supabase: decode user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("supabase: user response without id")
	}
	return &user, nil
}
