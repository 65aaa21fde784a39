// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

// Package autocomment leaves a companion comment on every new diary entry.
//
// The worker subscribes to INSERTs on public.diary_entries over Supabase
// Realtime with the service role. Each new entry is queued, commented on
// through the comment model chain and stored in entry_comments. An entry is
// handled at most once per process (LRU dedup) and skipped when a comment
// already exists, so a reconnect that replays events does not double post.
//
// Serve blocks until the context is cancelled or the websocket fails, which
// makes the worker a suture service: a dropped connection is restarted with
// backoff by the supervisor.
package autocomment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/soulbloom/internal/cache"
	"github.com/tomtom215/soulbloom/internal/companion"
	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/metrics"
	"github.com/tomtom215/soulbloom/internal/supabase"
)

// Results recorded in autocomment_generated_total.
const (
	ResultCreated   = "created"
	ResultDuplicate = "duplicate"
	ResultExists    = "exists"
	ResultSkipped   = "skipped"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
)

// Listener streams table changes. *supabase.Realtime implements it.
type Listener interface {
	Listen(ctx context.Context, sub supabase.Subscription, handler supabase.ChangeHandler) error
}

// Commenter writes comments. *companion.Service implements it.
type Commenter interface {
	Comment(ctx context.Context, req companion.CommentRequest) (*companion.CommentResult, error)
}

// Config configures a Worker.
type Config struct {
	Timeout   time.Duration // per entry; default 60s
	Workers   int           // concurrent entries; default 2
	QueueSize int           // buffered entries; default 64
	DedupSize int           // remembered entry IDs; default 4096
	DedupTTL  time.Duration // default 24h
}

// Worker comments on new entries.
type Worker struct {
	listener  Listener
	commenter Commenter
	store     journal.Store
	dedup     *cache.Dedup
	cfg       Config
}

type job struct {
	entry journal.Entry
}

// New creates a worker.
func New(listener Listener, commenter Commenter, store journal.Store, cfg Config) *Worker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = 4096
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	return &Worker{
		listener:  listener,
		commenter: commenter,
		store:     store,
		dedup:     cache.NewDedup(cfg.DedupSize, cfg.DedupTTL),
		cfg:       cfg,
	}
}

// String names the service in supervisor logs.
func (w *Worker) String() string { return "autocomment-worker" }

// Serve listens for new entries until ctx is done or the subscription
// fails. Entries already queued finish (bounded by Timeout) before Serve
// returns.
func (w *Worker) Serve(ctx context.Context) error {
	log := logging.CtxWith(ctx).Str("component", "autocomment").Logger()

	queue := make(chan job, w.cfg.QueueSize)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				w.process(ctx, j.entry)
			}
		}()
	}

	log.Info().Int("workers", w.cfg.Workers).Msg("Auto-comment worker listening for new entries")
	err := w.listener.Listen(ctx, supabase.Subscription{
		Schema: "public",
		Table:  journal.EntriesTable,
		Event:  "INSERT",
	}, func(_ context.Context, change supabase.Change) {
		w.enqueue(ctx, queue, change)
	})

	close(queue)
	wg.Wait()

	if ctx.Err() != nil {
		log.Info().Msg("Auto-comment worker stopped")
		return ctx.Err()
	}
	log.Warn().Err(err).Msg("Auto-comment subscription ended")
	return err
}

// enqueue runs on the realtime read loop and must not block.
func (w *Worker) enqueue(ctx context.Context, queue chan<- job, change supabase.Change) {
	if change.Type != "" && change.Type != "INSERT" {
		return
	}
	entry, err := decodeEntry(change.Record)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Ignoring undecodable diary entry")
		metrics.RecordAutoComment(ResultSkipped)
		return
	}
	if strings.TrimSpace(entry.Content) == "" {
		metrics.RecordAutoComment(ResultSkipped)
		return
	}
	if w.dedup.Seen(entry.ID) {
		metrics.RecordAutoComment(ResultDuplicate)
		return
	}

	select {
	case queue <- job{entry: entry}:
	default:
		// Let a replay after reconnect pick it up.
		w.dedup.Forget(entry.ID)
		metrics.RecordAutoComment(ResultDropped)
		logging.Ctx(ctx).Warn().Str("entry_id", entry.ID).Msg("Auto-comment queue full, dropping entry")
	}
}

func (w *Worker) process(parent context.Context, entry journal.Entry) {
	// Queued entries finish on shutdown; only the timeout bounds them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.cfg.Timeout)
	defer cancel()
	log := logging.CtxWith(ctx).Str("component", "autocomment").Str("entry_id", entry.ID).Logger()

	result, err := w.comment(ctx, entry)
	metrics.RecordAutoComment(result)
	switch {
	case err != nil:
		w.dedup.Forget(entry.ID)
		log.Error().Err(err).Msg("Auto-comment failed")
	case result == ResultCreated:
		log.Info().Msg("Auto-comment created")
	default:
		log.Debug().Str("result", result).Msg("Auto-comment not needed")
	}
}

func (w *Worker) comment(ctx context.Context, entry journal.Entry) (string, error) {
	exists, err := w.store.HasComment(ctx, entry.ID)
	if err != nil {
		return ResultFailed, err
	}
	if exists {
		return ResultExists, nil
	}

	res, err := w.commenter.Comment(ctx, companion.CommentRequest{Content: entry.Content, Mood: entry.Mood})
	if err != nil {
		return ResultFailed, fmt.Errorf("generate comment: %w", err)
	}

	err = w.store.SaveEntryComment(ctx, journal.Comment{
		EntryID: entry.ID,
		UserID:  entry.UserID,
		Content: res.Comment,
		Model:   res.Model,
	})
	if err != nil {
		return ResultFailed, err
	}
	return ResultCreated, nil
}

// decodeEntry reads the fields the worker needs. Other columns, such as
// created_at in whatever format the server sends, are ignored.
func decodeEntry(record []byte) (journal.Entry, error) {
	if len(record) == 0 {
		return journal.Entry{}, errors.New("empty record")
	}
	var row struct {
		ID      json.RawMessage `json:"id"`
		UserID  string          `json:"user_id"`
		Content string          `json:"content"`
		Mood    string          `json:"mood"`
	}
	if err := json.Unmarshal(record, &row); err != nil {
		return journal.Entry{}, err
	}
	id, err := entryID(row.ID)
	if err != nil {
		return journal.Entry{}, err
	}
	if id == "" || row.UserID == "" {
		return journal.Entry{}, errors.New("record missing id or user_id")
	}
	return journal.Entry{
		ID:      id,
		UserID:  row.UserID,
		Content: row.Content,
		Mood:    row.Mood,
	}, nil
}

// entryID renders a uuid or bigint primary key exactly as stored.
func entryID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id is neither a string nor a number: %w", err)
	}
	return n.String(), nil
}
