// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package sse

import (
	"errors"
	"io"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	Name string // "message" unless an event: field was sent
	ID   string
	Data string
}

// Decoder assembles lines into events following the text/event-stream
// rules: data lines are joined with "\n", a blank line dispatches, lines
// starting with ':' are comments.
type Decoder struct {
	data    []string
	name    string
	id      string
	hasData bool
}

// Line feeds one line. It returns an event when the line dispatches one.
func (d *Decoder) Line(line string) (Event, bool) {
	if line == "" {
		return d.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		d.data = append(d.data, value)
		d.hasData = true
	case "event":
		d.name = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.id = value
		}
	}
	return Event{}, false
}

// Flush dispatches a pending event at end of input.
func (d *Decoder) Flush() (Event, bool) {
	return d.dispatch()
}

func (d *Decoder) dispatch() (Event, bool) {
	defer func() {
		d.data = d.data[:0]
		d.name = ""
		d.hasData = false
	}()
	if !d.hasData {
		return Event{}, false
	}
	name := d.name
	if name == "" {
		name = "message"
	}
	return Event{Name: name, ID: d.id, Data: strings.Join(d.data, "\n")}, true
}

// Reader reads events from a byte stream.
type Reader struct {
	r       io.Reader
	buf     []byte
	split   LineSplitter
	dec     Decoder
	pending []Event
	err     error
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, 4096)}
}

// Next returns the next event. At the end of input it returns io.EOF after
// dispatching any event left without a trailing blank line.
func (r *Reader) Next() (Event, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return Event{}, r.err
		}

		n, err := r.r.Read(r.buf)
		if n > 0 {
			lines, lerr := r.split.Push(r.buf[:n])
			r.feed(lines)
			if lerr != nil {
				r.err = lerr
				continue
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if tail, ok := r.split.Flush(); ok {
					r.feed([]string{tail})
				}
				if ev, ok := r.dec.Flush(); ok {
					r.pending = append(r.pending, ev)
				}
			}
			r.err = err
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

func (r *Reader) feed(lines []string) {
	for _, line := range lines {
		if ev, ok := r.dec.Line(line); ok {
			r.pending = append(r.pending, ev)
		}
	}
}
