// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"context"
	"sync"
	"time"
)

// Bus wraps an Engine with a mutex, so the same link can be driven by a
// dedicated Tick-loop goroutine (see cmd/gnbusd) while other goroutines
// call Send, Poll, PollRange or Push concurrently. Engine itself stays
// single-threaded and lock-free; Bus is the concurrency boundary around it.
type Bus struct {
	mu     sync.Mutex
	engine *Engine
}

// NewBus wraps an already-constructed Engine.
func NewBus(e *Engine) *Bus {
	return &Bus{engine: e}
}

// Begin calls Engine.Begin under the lock.
func (b *Bus) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Begin()
}

// Tick calls Engine.Tick under the lock. RunLoop is the usual way to drive
// this repeatedly; callers that already have their own scheduler can call
// Tick directly instead.
func (b *Bus) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine.Tick()
}

// RunLoop calls Tick on interval until ctx is done. It is meant to run in
// its own goroutine for the lifetime of a process, e.g. from cmd/gnbusd.
func (b *Bus) RunLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.Tick()
		}
	}
}

// Send calls Engine.Send under the lock.
func (b *Bus) Send(address, service, subservice byte, payload []byte, pushFlag, commitReceive, retryOnCRFailure bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Send(address, service, subservice, payload, pushFlag, commitReceive, retryOnCRFailure)
}

// Poll calls Engine.Poll under the lock.
func (b *Bus) Poll(address byte, maxMessagesPerSlave byte, commitReceive, retryOnCRFailure bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Poll(address, maxMessagesPerSlave, commitReceive, retryOnCRFailure)
}

// PollRange calls Engine.PollRange under the lock.
func (b *Bus) PollRange(begin, end, maxMessagesPerSlave byte, commitReceive, retryOnCRFailure bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.PollRange(begin, end, maxMessagesPerSlave, commitReceive, retryOnCRFailure)
}

// Push calls Engine.Push under the lock.
func (b *Bus) Push(service, subservice byte, payload []byte, commitReceive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Push(service, subservice, payload, commitReceive)
}

// AttachService calls Engine.AttachService under the lock.
func (b *Bus) AttachService(n byte, handler ServiceHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.AttachService(n, handler)
}

// AttachCatchAll calls Engine.AttachCatchAll under the lock.
func (b *Bus) AttachCatchAll(handler CatchAllHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine.AttachCatchAll(handler)
}

// LastComError calls Engine.LastComError under the lock.
func (b *Bus) LastComError() ComError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.LastComError()
}

// SetBlockingMode calls Engine.SetBlockingMode under the lock.
func (b *Bus) SetBlockingMode(mode BlockingMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine.SetBlockingMode(mode)
}

// SetIgnoreInactiveNodes calls Engine.SetIgnoreInactiveNodes under the lock.
func (b *Bus) SetIgnoreInactiveNodes(ignore bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine.SetIgnoreInactiveNodes(ignore)
}

// IsActive calls Engine.IsActive under the lock.
func (b *Bus) IsActive(address byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.IsActive(address)
}

// IsIgnored calls Engine.IsIgnored under the lock.
func (b *Bus) IsIgnored(address byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.IsIgnored(address)
}
