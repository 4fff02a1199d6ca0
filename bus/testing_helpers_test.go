// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import "time"

// fakeClock is a manually-advanced Clock for deterministic tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// fakeTransport is an in-memory Transport double. A caller scripts
// responses via enqueueResponse; each response is delivered into the
// readable inbox immediately after the second Write call of a sendFrame
// invocation (the body write that follows the two start-sentinel bytes),
// mimicking an immediately-replying peer on a half-duplex link.
type fakeTransport struct {
	opened       bool
	baud         int
	inbox        []byte
	responses    [][]byte
	writes       [][]byte
	awaitingBody bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Open(baud int) error {
	f.opened = true
	f.baud = baud
	return nil
}

func (f *fakeTransport) Available() int { return len(f.inbox) }

func (f *fakeTransport) ReadByte() (byte, error) {
	b := f.inbox[0]
	f.inbox = f.inbox[1:]
	return b, nil
}

func (f *fakeTransport) Write(p []byte) error {
	f.writes = append(f.writes, append([]byte(nil), p...))
	if len(p) == 2 && p[0] == frameStart1 && p[1] == frameStart2 {
		f.awaitingBody = true
		return nil
	}
	if f.awaitingBody {
		f.awaitingBody = false
		if len(f.responses) > 0 {
			resp := f.responses[0]
			f.responses = f.responses[1:]
			f.inbox = append(f.inbox, resp...)
		}
	}
	return nil
}

func (f *fakeTransport) Flush() error { return nil }

func (f *fakeTransport) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	n := copy(p, f.inbox)
	f.inbox = f.inbox[n:]
	return n, nil
}

// enqueueResponse schedules wire to be delivered after the next full frame
// transmission completes.
func (f *fakeTransport) enqueueResponse(wire []byte) {
	f.responses = append(f.responses, wire)
}

// deliver makes wire immediately available to read, without waiting for a
// write to occur first. Used to seed inbound traffic a receiver didn't
// itself solicit (e.g. an unsolicited master->slave frame).
func (f *fakeTransport) deliver(wire []byte) {
	f.inbox = append(f.inbox, wire...)
}

var _ Transport = (*fakeTransport)(nil)
