// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package sse

import (
	"bytes"
	"errors"
)

// MaxLineBytes bounds a single line held by a LineSplitter.
const MaxLineBytes = 1 << 20

// ErrLineTooLong is returned when a line exceeds MaxLineBytes.
var ErrLineTooLong = errors.New("sse: line too long")

// LineSplitter turns arbitrary byte chunks into lines. It accepts "\n",
// "\r\n" and a bare "\r" as terminators, including a "\r\n" split across two
// chunks. Bytes after the last terminator are held until the next Push.
type LineSplitter struct {
	buf    []byte
	skipLF bool
}

// Push appends chunk and returns every line it completed, without
// terminators.
func (s *LineSplitter) Push(chunk []byte) ([]string, error) {
	var lines []string
	for len(chunk) > 0 {
		if s.skipLF {
			s.skipLF = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			s.buf = append(s.buf, chunk...)
			break
		}

		s.buf = append(s.buf, chunk[:i]...)
		lines = append(lines, string(s.buf))
		s.buf = s.buf[:0]
		if chunk[i] == '\r' {
			s.skipLF = true
		}
		chunk = chunk[i+1:]
	}

	if len(s.buf) > MaxLineBytes {
		s.buf = s.buf[:0]
		return lines, ErrLineTooLong
	}
	return lines, nil
}

// Flush returns the unterminated tail, if any, and resets the splitter.
func (s *LineSplitter) Flush() (string, bool) {
	s.skipLF = false
	if len(s.buf) == 0 {
		return "", false
	}
	tail := string(s.buf)
	s.buf = s.buf[:0]
	return tail, true
}

// Pending reports how many bytes are waiting for a terminator.
func (s *LineSplitter) Pending() int { return len(s.buf) }
