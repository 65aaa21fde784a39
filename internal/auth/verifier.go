// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/soulbloom/internal/cache"
	"github.com/tomtom215/soulbloom/internal/metrics"
	"github.com/tomtom215/soulbloom/internal/supabase"
)

// Audience is the aud claim Supabase puts on signed-in users' tokens.
const Audience = "authenticated"

var (
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrNoVerifier is returned when neither a JWT secret nor a remote
	// lookup is configured.
	ErrNoVerifier = errors.New("no token verifier configured")
)

// User is an authenticated Supabase user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Claims are the Supabase access token claims the API reads.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserLookup resolves a token remotely. *supabase.Client implements it.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// Verifier checks access tokens.
type Verifier struct {
	secret []byte
	remote UserLookup
	cache  *cache.TTL[*User]
	leeway time.Duration
}

// NewVerifier creates a verifier. A non-empty secret enables local HS256
// verification; remote is used otherwise. At least one is required.
func NewVerifier(secret string, remote UserLookup) (*Verifier, error) {
	if secret == "" && remote == nil {
		return nil, ErrNoVerifier
	}
	v := &Verifier{remote: remote, leeway: 30 * time.Second}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if v.secret == nil {
		v.cache = cache.NewTTL[*User](time.Minute)
	}
	return v, nil
}

// Mode names the verification method in use.
func (v *Verifier) Mode() string {
	if v.secret != nil {
		return "local"
	}
	return "remote"
}

// Close releases the remote result cache.
func (v *Verifier) Close() {
	if v.cache != nil {
		v.cache.Close()
	}
}

// Verify returns the user owning token. Errors wrap ErrInvalidToken when the
// token itself is bad; anything else means verification could not run.
func (v *Verifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if v.secret != nil {
		user, err := v.verifyLocal(token)
		metrics.RecordAuthVerification("local", resultLabel(err))
		return user, err
	}
	return v.verifyRemote(ctx, token)
}

func (v *Verifier) verifyLocal(token string) (*User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
		Name:  metadataName(claims.UserMetadata),
	}, nil
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*User, error) {
	if v.remote == nil {
		return nil, ErrNoVerifier
	}
	key := tokenKey(token)
	if user, ok := v.cache.Get(key); ok {
		metrics.RecordAuthVerification("cache", "valid")
		return user, nil
	}

	su, err := v.remote.GetUser(ctx, token)
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			metrics.RecordAuthVerification("remote", "invalid")
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, apiErr.Message)
		}
		metrics.RecordAuthVerification("remote", "error")
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if su.ID == "" {
		metrics.RecordAuthVerification("remote", "invalid")
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	user := &User{ID: su.ID, Email: su.Email, Role: su.Role, Name: su.DisplayName()}
	v.cache.Set(key, user)
	metrics.RecordAuthVerification("remote", "valid")
	return user, nil
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func metadataName(meta map[string]any) string {
	for _, k := range []string{"display_name", "name", "full_name", "nickname"} {
		if s, ok := meta[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrInvalidToken):
		return "invalid"
	default:
		return "error"
	}
}
