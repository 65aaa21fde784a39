// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// mockService is a controllable suture.Service.
type mockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failCount  atomic.Int32
	maxFails   int32
	ignoreStop bool
	mu         sync.Mutex
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	m.mu.Lock()
	maxFails := m.maxFails
	ignoreStop := m.ignoreStop
	m.mu.Unlock()

	if maxFails > 0 && m.failCount.Add(1) <= maxFails {
		return errors.New("simulated websocket drop")
	}

	<-ctx.Done()
	if ignoreStop {
		select {}
	}
	return ctx.Err()
}

// setFailCount makes the next n calls to Serve fail.
func (m *mockService) setFailCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxFails = int32(n)
}

// setIgnoreStop makes Serve hang after cancellation.
func (m *mockService) setIgnoreStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignoreStop = true
}

func (m *mockService) StartCount() int32 { return m.startCount.Load() }
func (m *mockService) StopCount() int32  { return m.stopCount.Load() }
func (m *mockService) String() string    { return m.name }
