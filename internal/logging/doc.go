// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package logging provides the zerolog-based logger shared by every package.

The global logger is configured once from main via Init and is safe to use
before that with JSON defaults. Request-scoped logging goes through Ctx,
which attaches the request and correlation IDs placed in the context by the
HTTP middleware:

	logging.Ctx(ctx).Info().Str("feature", "title").Msg("Generated title")

Diary text and model output are user data. Log their length, never their
content, and pass credentials through RedactSecret or RedactBearer before
they reach a log field.

Environment Variables:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json, console (default: json)
  - LOG_CALLER: true/false (default: false)

NewSlogLogger bridges zerolog to log/slog for libraries that only accept
*slog.Logger, such as sutureslog.
*/
package logging
