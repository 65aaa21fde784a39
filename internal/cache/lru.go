// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Dedup remembers keys seen within a TTL, keeping at most capacity of them
// and evicting the least recently used first.
type Dedup struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, time.Time]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewDedup creates a Dedup. Non-positive arguments get defaults of 10000
// keys and 5 minutes.
func NewDedup(capacity int, ttl time.Duration) *Dedup {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Dedup{seen: expirable.NewLRU[string, time.Time](capacity, nil, ttl)}
}

// Seen reports whether key was recorded before and still live. If not, it
// records key now. Check and record are atomic.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Get(key); ok {
		d.hits.Add(1)
		return true
	}
	d.seen.Add(key, time.Now())
	d.misses.Add(1)
	return false
}

// Contains reports whether key is live without recording it or touching
// its recency.
func (d *Dedup) Contains(key string) bool {
	return d.seen.Contains(key)
}

// Forget removes key so a later Seen reports it as new. Used when
// processing failed and the event should be retried.
func (d *Dedup) Forget(key string) bool {
	return d.seen.Remove(key)
}

// Len returns the number of remembered keys.
func (d *Dedup) Len() int { return d.seen.Len() }

// Clear forgets every key.
func (d *Dedup) Clear() { d.seen.Purge() }

// Stats returns duplicate and first-seen counts and the current size.
func (d *Dedup) Stats() (duplicates, firstSeen int64, size int) {
	return d.hits.Load(), d.misses.Load(), d.seen.Len()
}
