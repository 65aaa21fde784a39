// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package auth verifies Supabase access tokens and carries the resulting user
through request contexts.

# Verification

A Verifier checks tokens locally when SUPABASE_JWT_SECRET is configured:

  - the signature must be HS256 with the project secret
  - exp is required and enforced
  - the audience must be "authenticated"
  - sub must be present

Without a secret the token is resolved remotely through GoTrue's
/auth/v1/user endpoint. Remote results are cached briefly by token hash so a
chat session does not call GoTrue on every message.

# Middleware

Authenticate attaches the user when a valid bearer token is present and
rejects requests carrying an invalid one. Requests without a token pass
through anonymously. RequireUser rejects anonymous requests and is mounted
only when REQUIRE_AUTH is set.

	mw := auth.NewMiddleware(verifier)
	r.Use(mw.Authenticate)
	if cfg.Security.RequireAuth {
		r.Use(mw.RequireUser)
	}
*/
package auth
