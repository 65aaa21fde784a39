// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package auth

import "context"

type contextKey string

const (
	userContextKey  contextKey = "auth-user"
	tokenContextKey contextKey = "auth-token"
)

// ContextWithUser returns a context carrying user and the token it was
// verified from.
func ContextWithUser(ctx context.Context, user *User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// TokenFromContext returns the verified access token, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}
