// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import "time"

// Transport is the byte-stream capability the engine requires of its link.
// A concrete implementation over go.bug.st/serial lives in package
// transport; tests use an in-memory fake.
type Transport interface {
	// Open begins the transport at the given baud rate.
	Open(baud int) error
	// Available reports how many bytes can be read without blocking.
	Available() int
	// ReadByte reads exactly one byte. Only called when Available() > 0.
	ReadByte() (byte, error)
	// Write writes p in full.
	Write(p []byte) error
	// Flush blocks until all written bytes have left the host.
	Flush() error
	// ReadWithTimeout reads up to len(p) bytes, returning however many
	// arrived before timeout elapses. Used for the commit-receive echo.
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
}

// DELine controls the driver-enable line of an RS-485 transceiver. A
// transport that does not need DE control (a point-to-point link, a test
// fake) can implement it as a no-op.
type DELine interface {
	Assert() error
	Release() error
}

// Clock abstracts the host clock so the receive timeout, push-queue aging
// and scavenger interval are deterministic under test.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// systemClock is the production Clock, backed by the runtime.
type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// noopDELine is used when the link has no DE line to drive (point-to-point
// transports, or tests against an in-memory fake).
type noopDELine struct{}

func (noopDELine) Assert() error  { return nil }
func (noopDELine) Release() error { return nil }
