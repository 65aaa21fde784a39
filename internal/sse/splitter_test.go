// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package sse

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestLineSplitter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []string
		want   []string
		tail   string
	}{
		{
			name:   "lf",
			chunks: []string{"a\nb\n"},
			want:   []string{"a", "b"},
		},
		{
			name:   "crlf",
			chunks: []string{"a\r\nb\r\n"},
			want:   []string{"a", "b"},
		},
		{
			name:   "bare cr",
			chunks: []string{"a\rb\r"},
			want:   []string{"a", "b"},
		},
		{
			name:   "crlf split across chunks",
			chunks: []string{"a\r", "\nb\n"},
			want:   []string{"a", "b"},
		},
		{
			name:   "line split across chunks",
			chunks: []string{"da", "ta: hel", "lo\n"},
			want:   []string{"data: hello"},
		},
		{
			name:   "blank lines kept",
			chunks: []string{"a\n\nb\n\n"},
			want:   []string{"a", "", "b", ""},
		},
		{
			name:   "partial tail",
			chunks: []string{"a\nrest"},
			want:   []string{"a"},
			tail:   "rest",
		},
		{
			name:   "multibyte rune split",
			chunks: []string{"\xe4\xbd", "\xa0\xe5\xa5\xbd\n"},
			want:   []string{"你好"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var s LineSplitter
			var got []string
			for _, c := range tt.chunks {
				lines, err := s.Push([]byte(c))
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got = append(got, lines...)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected lines %q, got %q", tt.want, got)
			}
			tail, ok := s.Flush()
			if ok != (tt.tail != "") || tail != tt.tail {
				t.Errorf("expected tail %q, got %q (ok=%v)", tt.tail, tail, ok)
			}
		})
	}
}

func TestLineSplitter_TooLong(t *testing.T) {
	t.Parallel()

	var s LineSplitter
	_, err := s.Push([]byte(strings.Repeat("x", MaxLineBytes+1)))
	if !errors.Is(err, ErrLineTooLong) {
		t.Errorf("expected ErrLineTooLong, got %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("expected buffer reset, got %d pending bytes", s.Pending())
	}
}
