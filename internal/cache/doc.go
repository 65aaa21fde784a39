// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

/*
Package cache provides the two in-memory caches the companion service needs.

# TTL

TTL is a thread-safe key/value cache with per-entry expiration. Writing
prompt suggestions costs a model call, so they are cached per mood, topics
and day. GetOrLoad collapses concurrent misses for the same key into a
single load through golang.org/x/sync/singleflight:

	prompts := cache.NewTTL[[]string](30 * time.Minute)
	defer prompts.Close()

	list, hit, err := prompts.GetOrLoad(key, func() ([]string, error) {
	    return generate(ctx)
	})

Expired entries are dropped lazily on Get and by a background sweep.

# Dedup

Dedup remembers recently seen keys in a bounded LRU with TTL, backed by
hashicorp/golang-lru/v2. The realtime auto-comment worker uses it to ignore
INSERT events it has already handled when the websocket reconnects:

	seen := cache.NewDedup(10000, time.Hour)
	if seen.Seen(entryID) {
	    return
	}

# Keys

GenerateKey hashes a JSON encoding of its parameters so structured inputs
give short, stable keys.
*/
package cache
