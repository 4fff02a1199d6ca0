// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSlave(t *testing.T, address byte, opts ...Option) (*Engine, *fakeTransport, *fakeClock) {
	t.Helper()
	transport := newFakeTransport()
	clock := newFakeClock()
	cfg := DefaultConfig(RoleSlave)
	cfg.OwnAddress = address
	all := append([]Option{WithClock(clock), WithConfig(cfg)}, opts...)
	e := New(RoleSlave, transport, all...)
	require.NoError(t, e.Begin())
	return e, transport, clock
}

func newTestMaster(t *testing.T, opts ...Option) (*Engine, *fakeTransport, *fakeClock) {
	t.Helper()
	transport := newFakeTransport()
	clock := newFakeClock()
	all := append([]Option{WithClock(clock)}, opts...)
	e := New(RoleMaster, transport, all...)
	require.NoError(t, e.Begin())
	return e, transport, clock
}

// decodeWrittenFrame decodes the frame body of the nth sendFrame call recorded
// in writes (1-indexed: call 1 is writes[0]+writes[1]).
func decodeWrittenFrame(t *testing.T, writes [][]byte, call int) Frame {
	t.Helper()
	body := writes[call*2-1]
	require.GreaterOrEqual(t, len(body), 4)
	logical := body[:len(body)-4]
	return decodeLogical(logical)
}

func TestScenario1_ServiceHandlerInvoked(t *testing.T) {
	slave, transport, _ := newTestSlave(t, 0x05)

	var gotSub byte
	var gotPayload []byte
	var gotSize int
	var gotSource byte
	require.NoError(t, slave.AttachService(0x10, func(subservice byte, payload []byte, size int, source byte) {
		gotSub, gotPayload, gotSize, gotSource = subservice, append([]byte(nil), payload...), size, source
	}))

	f := Frame{Direction: false, ServicePresent: true, Address: 0x05, Service: 0x10, Subservice: 0x01, Payload: []byte{0xDE, 0xAD}}
	transport.deliver(marshalFrame(f))

	slave.Tick()

	assert.Equal(t, byte(0x01), gotSub)
	assert.Equal(t, []byte{0xDE, 0xAD}, gotPayload)
	assert.Equal(t, 2, gotSize)
	assert.Equal(t, MasterPseudoAddress, gotSource)
}

func TestScenario2_CommitReceiveEcho(t *testing.T) {
	slave, transport, _ := newTestSlave(t, 0x05)
	require.NoError(t, slave.AttachService(0x10, func(byte, []byte, int, byte) {}))

	f := Frame{ServicePresent: true, CommitReceive: true, Address: 0x05, Service: 0x10, Subservice: 0x01, Payload: []byte{0xDE, 0xAD}}
	wire := marshalFrame(f)
	logical := wire[2 : len(wire)-4]
	crc := crc16CCITTFalse(logical)
	transport.deliver(wire)

	slave.Tick()

	require.Len(t, transport.writes, 1)
	assert.Equal(t, []byte{byte(crc >> 8), byte(crc)}, transport.writes[0])
}

func TestScenario3_QueryAlive(t *testing.T) {
	slave, transport, _ := newTestSlave(t, 0x03)

	f := Frame{ServicePresent: true, Address: 0x03, Service: SystemService, Subservice: SystemServiceQueryAlive}
	transport.deliver(marshalFrame(f))

	slave.Tick()

	reply := decodeWrittenFrame(t, transport.writes, 1)
	assert.True(t, reply.Direction)
	assert.True(t, reply.ServicePresent)
	assert.Equal(t, SystemService, reply.Service)
	assert.Equal(t, SystemServiceQueryAlive, reply.Subservice)
	assert.Equal(t, byte(0x03), reply.Address)
	assert.Empty(t, reply.Payload)
}

func TestScenario4_PushClearanceDrainsQueue(t *testing.T) {
	master, transport, _ := newTestMaster(t)
	master.SetBlockingMode(Synchronous)

	// The slave has exactly two entries queued: the first reply carries
	// Push=true (more pending), the second Push=false (queue now empty).
	// The second reply both reaches the max-messages count of 2 and tells
	// PollRange nothing more is pending, so no third round trip follows.
	push1 := marshalFrame(Frame{Direction: true, ServicePresent: true, Push: true, Address: 0x05, Service: 0x20, Subservice: 0x00})
	push2 := marshalFrame(Frame{Direction: true, ServicePresent: true, Push: false, Address: 0x05, Service: 0x20, Subservice: 0x01})
	transport.enqueueResponse(push1)
	transport.enqueueResponse(push2)

	ok, err := master.Poll(0x05, 2, false, false)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, transport.writes, 4) // two push-requests, each start+body

	r1 := decodeWrittenFrame(t, transport.writes, 1)
	assert.False(t, r1.ServicePresent)
	assert.True(t, r1.Push)

	assert.False(t, master.additionalPushAvailable)
}

func TestScenario5_CommitReceiveTimeoutMarksIgnored(t *testing.T) {
	master, transport, _ := newTestMaster(t)
	// No scripted response: ReadWithTimeout returns immediately with 0 bytes.

	ok := master.sendFrame(sendFrameArgs{targetAddress: 0x09, service: 0x10, serviceFlag: true, commitReceive: true, retryOnCRFailure: false})
	assert.False(t, ok)

	lastErr := master.LastComError()
	assert.Equal(t, ComErrorCRTimeout, lastErr.Kind)
	assert.Equal(t, byte(0x09), lastErr.Address)
	assert.True(t, master.liveness.isIgnored(0x09))

	writesBefore := len(transport.writes)
	ok2, err := master.Send(0x09, 0x10, 0x00, nil, false, false, false)
	assert.ErrorIs(t, err, ErrIgnoredNode)
	assert.False(t, ok2)
	assert.Equal(t, writesBefore, len(transport.writes))
}

func TestScenario6_PushQueueOverflowUnderFullyAsynchronous(t *testing.T) {
	cfg := DefaultConfig(RoleSlave)
	cfg.OwnAddress = 0x01
	cfg.MaxPushEntries = 2
	cfg.BlockingMode = FullyAsynchronous
	slave, _, _ := newTestSlave(t, 0x01, WithConfig(cfg))

	err1 := slave.Push(0x20, 0x00, []byte{1}, false)
	err2 := slave.Push(0x20, 0x01, []byte{2}, false)
	err3 := slave.Push(0x20, 0x02, []byte{3}, false)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.ErrorIs(t, err3, ErrPushQueueFull)
}

func TestAddressingSlaveIgnoresFramesNotForIt(t *testing.T) {
	slave, transport, _ := newTestSlave(t, 0x05)
	called := false
	require.NoError(t, slave.AttachService(0x10, func(byte, []byte, int, byte) { called = true }))

	f := Frame{ServicePresent: true, Address: 0x06, Service: 0x10}
	transport.deliver(marshalFrame(f))
	slave.Tick()

	assert.False(t, called)
}

func TestAddressingSlaveDropsDuplicateAddressFrame(t *testing.T) {
	slave, transport, _ := newTestSlave(t, 0x05)
	called := false
	require.NoError(t, slave.AttachService(0x10, func(byte, []byte, int, byte) { called = true }))

	f := Frame{Direction: true, ServicePresent: true, Address: 0x05, Service: 0x10}
	transport.deliver(marshalFrame(f))
	slave.Tick()

	assert.False(t, called)
}

func TestLastComErrorReadAndClear(t *testing.T) {
	master, _, _ := newTestMaster(t)
	master.lastError = ComError{Kind: ComErrorCRInvalid, Address: 0x04}

	got := master.LastComError()
	assert.Equal(t, ComErrorCRInvalid, got.Kind)

	again := master.LastComError()
	assert.Equal(t, ComErrorNone, again.Kind)
}

func TestBeginTwiceFails(t *testing.T) {
	master, _, _ := newTestMaster(t)
	assert.ErrorIs(t, master.Begin(), ErrAlreadyInitialized)
}

func TestServiceTableRejectsReservedAndDuplicate(t *testing.T) {
	slave, _, _ := newTestSlave(t, 0x05)
	assert.ErrorIs(t, slave.AttachService(SystemService, func(byte, []byte, int, byte) {}), ErrReservedService)

	require.NoError(t, slave.AttachService(0x01, func(byte, []byte, int, byte) {}))
	assert.ErrorIs(t, slave.AttachService(0x01, func(byte, []byte, int, byte) {}), ErrServiceAlreadyAttached)
}

func TestFrameTimeoutPartialFrameDroppedBetweenTicks(t *testing.T) {
	slave, transport, clock := newTestSlave(t, 0x05)
	transport.deliver([]byte{frameStart1, frameStart2, 0x40, 0x05})
	slave.Tick()

	clock.Advance(slave.config.FrameTimeout() + time.Millisecond)

	f := Frame{ServicePresent: true, Address: 0x05, Service: 0x10, Subservice: 0x01}
	transport.deliver(marshalFrame(f))

	called := false
	require.NoError(t, slave.AttachService(0x10, func(byte, []byte, int, byte) { called = true }))
	slave.Tick()

	assert.True(t, called)
}

// delayedPushClearanceTransport withholds bytes from Available for a fixed
// number of calls before delivering wire, simulating a master that takes a
// few polling rounds to clear a slave's push queue.
type delayedPushClearanceTransport struct {
	*fakeTransport
	remaining int
	wire      []byte
}

func (d *delayedPushClearanceTransport) Available() int {
	if d.remaining > 0 {
		d.remaining--
		if d.remaining == 0 {
			d.inbox = append(d.inbox, d.wire...)
		}
	}
	return len(d.inbox)
}

func TestPushUnderSynchronousBlocksUntilDelivered(t *testing.T) {
	clearance := marshalFrame(Frame{Push: true, Address: 0x05})
	transport := &delayedPushClearanceTransport{fakeTransport: newFakeTransport(), remaining: 5, wire: clearance}

	clock := newFakeClock()
	cfg := DefaultConfig(RoleSlave)
	cfg.OwnAddress = 0x05
	cfg.BlockingMode = Synchronous
	slave := New(RoleSlave, transport, WithClock(clock), WithConfig(cfg))
	require.NoError(t, slave.Begin())

	err := slave.Push(0x20, 0x00, []byte{0x01}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, transport.remaining)
	assert.False(t, slave.pushQueue.entries[0].pending)
}

func TestLoggerReceivesDuplicateAddressWarning(t *testing.T) {
	logger := newMockLogger()
	slave, transport, _ := newTestSlave(t, 0x05, WithLogger(logger))

	f := Frame{Direction: true, ServicePresent: true, Address: 0x05, Service: 0x10}
	transport.deliver(marshalFrame(f))
	slave.Tick()

	logger.AssertCalled(t, "Warn", "duplicate address detected", mock.Anything)
}
