// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/soulbloom/internal/logging"
	"github.com/tomtom215/soulbloom/internal/metrics"
)

// Phoenix channel events used by Supabase Realtime.
const (
	eventJoin      = "phx_join"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"
	eventSystem    = "system"
)

// ErrJoinRejected is returned when the server refuses the channel join.
var ErrJoinRejected = errors.New("supabase: realtime join rejected")

// Subscription selects the table changes to receive.
type Subscription struct {
	Schema string // default "public"
	Table  string
	Event  string // INSERT, UPDATE, DELETE or * (default)
	Filter string // optional, e.g. "user_id=eq.42"
}

func (s Subscription) withDefaults() Subscription {
	if s.Schema == "" {
		s.Schema = "public"
	}
	if s.Event == "" {
		s.Event = "*"
	}
	return s
}

// Change is one row change.
type Change struct {
	Schema          string          `json:"schema"`
	Table           string          `json:"table"`
	Type            string          `json:"type"`
	CommitTimestamp string          `json:"commit_timestamp"`
	Record          json.RawMessage `json:"record"`
	OldRecord       json.RawMessage `json:"old_record"`
}

// ChangeHandler receives changes in order on the read loop. It should hand
// long work off to another goroutine.
type ChangeHandler func(ctx context.Context, change Change)

// message is a Phoenix protocol frame.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

// Realtime is a Supabase Realtime websocket client.
type Realtime struct {
	url       string
	apiKey    string
	dialer    *websocket.Dialer
	heartbeat time.Duration
	joinWait  time.Duration
	ref       atomic.Uint64
}

// Realtime returns a realtime client authenticated like c.
func (c *Client) Realtime() *Realtime {
	wsURL := c.baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	q := url.Values{"apikey": {c.apiKey()}, "vsn": {"1.0.0"}}

	return &Realtime{
		url:       wsURL + "/realtime/v1/websocket?" + q.Encode(),
		apiKey:    c.bearer(),
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		heartbeat: 25 * time.Second,
		joinWait:  10 * time.Second,
	}
}

// SetHeartbeat changes the heartbeat interval.
func (r *Realtime) SetHeartbeat(d time.Duration) {
	if d > 0 {
		r.heartbeat = d
	}
}

func (r *Realtime) nextRef() string {
	return strconv.FormatUint(r.ref.Add(1), 10)
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Listen connects, joins a channel for sub and calls handler for every
// change until ctx is done or the connection fails. It always returns a
// non-nil error: ctx.Err() after cancellation, otherwise the failure.
func (r *Realtime) Listen(ctx context.Context, sub Subscription, handler ChangeHandler) error {
	sub = sub.withDefaults()
	if sub.Table == "" {
		return fmt.Errorf("supabase: realtime table is required")
	}
	log := logging.CtxWith(ctx).Str("component", "realtime").Str("table", sub.Table).Logger()

	ws, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("supabase: realtime dial: %w", err)
	}
	c := &conn{ws: ws}
	defer ws.Close()

	// Closing the socket unblocks the read loop on cancellation.
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.mu.Unlock()
		_ = ws.Close()
	})
	defer stop()

	topic := "realtime:" + sub.Schema + ":" + sub.Table
	joinRef, err := r.join(c, topic, sub)
	if err != nil {
		return err
	}

	if err := r.awaitJoin(ctx, c, joinRef); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	log.Info().Str("topic", topic).Msg("Realtime subscription joined")
	metrics.SetRealtimeConnected(true)
	defer metrics.SetRealtimeConnected(false)

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	hbErr := make(chan error, 1)
	go r.heartbeatLoop(hbCtx, c, hbErr)

	readTimeout := 3 * r.heartbeat
	for {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case hbErr := <-hbErr:
				return fmt.Errorf("supabase: realtime heartbeat: %w", hbErr)
			default:
			}
			return fmt.Errorf("supabase: realtime read: %w", err)
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("Ignoring undecodable realtime frame")
			continue
		}

		switch msg.Event {
		case eventChanges:
			change, ok := decodeChange(msg.Payload)
			if !ok {
				continue
			}
			metrics.RecordRealtimeEvent(change.Table, change.Type)
			handler(ctx, change)
		case "INSERT", "UPDATE", "DELETE":
			// Older servers send the change type as the event name.
			var change Change
			if err := json.Unmarshal(msg.Payload, &change); err == nil {
				if change.Type == "" {
					change.Type = msg.Event
				}
				metrics.RecordRealtimeEvent(change.Table, change.Type)
				handler(ctx, change)
			}
		case eventError, eventClose:
			if msg.Topic == topic {
				return fmt.Errorf("supabase: realtime channel %s: %s", msg.Event, string(msg.Payload))
			}
		case eventSystem:
			log.Debug().RawJSON("payload", msg.Payload).Msg("Realtime system message")
		}
	}
}

func (r *Realtime) join(c *conn, topic string, sub Subscription) (string, error) {
	change := map[string]string{"event": sub.Event, "schema": sub.Schema, "table": sub.Table}
	if sub.Filter != "" {
		change["filter"] = sub.Filter
	}
	payload, err := json.Marshal(map[string]any{
		"config": map[string]any{
			"broadcast":        map[string]any{"self": false},
			"presence":         map[string]any{"key": ""},
			"postgres_changes": []any{change},
		},
		"access_token": r.apiKey,
	})
	if err != nil {
		return "", err
	}

	ref := r.nextRef()
	if err := c.send(message{Topic: topic, Event: eventJoin, Payload: payload, Ref: &ref, JoinRef: &ref}); err != nil {
		return "", fmt.Errorf("supabase: realtime join: %w", err)
	}
	return ref, nil
}

// awaitJoin reads until the reply to the join arrives.
func (r *Realtime) awaitJoin(ctx context.Context, c *conn, ref string) error {
	deadline := time.Now().Add(r.joinWait)
	for {
		_ = c.ws.SetReadDeadline(deadline)
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("supabase: realtime join reply: %w", err)
		}
		var msg message
		if json.Unmarshal(data, &msg) != nil || msg.Event != eventReply || msg.Ref == nil || *msg.Ref != ref {
			continue
		}

		var reply struct {
			Status   string          `json:"status"`
			Response json.RawMessage `json:"response"`
		}
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("supabase: realtime join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("%w: %s", ErrJoinRejected, string(reply.Response))
		}
		return ctx.Err()
	}
}

func (r *Realtime) heartbeatLoop(ctx context.Context, c *conn, errc chan<- error) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ref := r.nextRef()
			if err := c.send(message{Topic: "phoenix", Event: eventHeartbeat, Payload: json.RawMessage("{}"), Ref: &ref}); err != nil {
				errc <- err
				_ = c.ws.Close()
				return
			}
		}
	}
}

// decodeChange reads {"data": {...}, "ids": [...]} from a postgres_changes
// payload.
func decodeChange(payload json.RawMessage) (Change, bool) {
	var p struct {
		Data Change `json:"data"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Data.Type == "" {
		return Change{}, false
	}
	return p.Data, true
}
