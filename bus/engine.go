// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package bus implements a master/slave serial-bus protocol engine for
// half-duplex links such as RS-485: framing and CRC (C1), a byte-by-byte
// receive state machine (C2), the transmit path with DE-line control and
// commit-receive retry (C3), service dispatch (C4), a slave-side push queue
// (C5), a master-side address-range poller (C6), a liveness tracker (C7),
// and the Engine façade tying all of the above together (C8).
package bus

import "time"

// Engine is the protocol façade: one per serial link, one role. It is not
// safe for concurrent use; wrap it in a Bus, or guard it with a
// caller-supplied mutex, to share it between goroutines.
type Engine struct {
	config Config

	transport Transport
	de        DELine
	clock     Clock
	logger    Logger

	initialized bool

	rx        *rxState
	pushQueue *pushQueue
	liveness  *liveness

	services map[byte]ServiceHandler
	catchAll CatchAllHandler

	pushBlockingDeadline    time.Time
	additionalPushAvailable bool
	lastError               ComError
}

// New constructs an Engine for role, communicating over transport. The
// Engine is not usable until Begin succeeds. Options may override the
// logger, clock, DE-line controller or starting configuration.
func New(role Role, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		config:    DefaultConfig(role),
		transport: transport,
		de:        noopDELine{},
		clock:     systemClock{},
		logger:    NewNopLogger(),
		services:  make(map[byte]ServiceHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin validates the engine's configuration, opens the transport at its
// configured baud rate, and allocates the receive state machine, liveness
// tracker and (for a slave) push queue. It is an error to call Begin twice.
func (e *Engine) Begin() error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if err := e.config.Valid(); err != nil {
		return err
	}
	if err := e.transport.Open(e.config.BaudRate); err != nil {
		return err
	}

	e.rx = newRxState()
	ignore := e.config.Role == RoleMaster && e.config.IgnoreInactiveNodes != nil && *e.config.IgnoreInactiveNodes
	e.liveness = newLiveness(e.config.MaxSlaveAddress, ignore)
	if e.config.Role == RoleSlave {
		e.pushQueue = newPushQueue(e.config.MaxPushEntries, e.config.MaxPayload, e.config.PushQueueTimeout, e.clock)
	}
	e.initialized = true
	e.logger.Info("engine started", "role", e.config.Role.String(), "address", e.config.OwnAddress, "baud", e.config.BaudRate)
	return nil
}

// Tick drives the receive state machine over every byte currently
// available on the transport, validates and dispatches whole frames, and
// on a master runs the liveness scavenger. It must be called frequently
// enough that no partial frame exceeds Config.FrameTimeout, and is also
// the mechanism by which Send, Poll, PollRange and Push spin while
// waiting on a reply.
func (e *Engine) Tick() {
	if !e.initialized {
		return
	}

	now := e.clock.Now()
	e.rx.checkTimeout(now, e.config.FrameTimeout())

	for e.transport.Available() > 0 {
		b, err := e.transport.ReadByte()
		if err != nil {
			e.logger.Error("read byte failed", "err", err)
			break
		}
		result := e.rx.feed(b, e.clock.Now())
		if !result.ready {
			continue
		}
		if crc16CCITTFalse(result.logical) != result.crc {
			e.logger.Debug("frame dropped", "reason", "crc mismatch")
			continue
		}

		f := decodeLogical(result.logical)
		e.liveness.markActive(f.Address)

		if e.config.Role == RoleSlave {
			if f.Address != e.config.OwnAddress {
				e.logger.Debug("frame dropped", "reason", "not for me", "address", f.Address)
				continue
			}
			if f.Direction {
				e.logger.Warn("duplicate address detected", "address", f.Address)
				continue
			}
		}
		e.logger.Debug("frame accepted", "address", f.Address, "service_present", f.ServicePresent)

		if f.CommitReceive {
			e.echoCommitReceive(result.crc)
		}
		e.dispatch(f, result.startTime)
	}

	if e.config.Role == RoleMaster {
		e.runScavenger()
	}
}

// echoCommitReceive answers a frame's commit-receive request by writing
// its CRC back onto the wire, the counterpart to sendFrame's commit-receive
// read.
func (e *Engine) echoCommitReceive(crc uint16) {
	if err := e.de.Assert(); err != nil {
		e.logger.Error("DE assert failed", "err", err)
		return
	}
	if e.config.DEEnableWait > 0 {
		e.clock.Sleep(e.config.DEEnableWait)
	}
	buf := [2]byte{byte(crc >> 8), byte(crc)}
	if err := e.transport.Write(buf[:]); err != nil {
		e.logger.Error("commit-receive echo write failed", "err", err)
	}
	_ = e.transport.Flush()
	if err := e.de.Release(); err != nil {
		e.logger.Error("DE release failed", "err", err)
	}
}

// Push is Component C5's entry point: a slave enqueues an unsolicited
// message to be delivered the next time the master clears it to push.
// Outside FullyAsynchronous mode, a full queue causes Push to spin in Tick
// until a slot frees or PushQueueTimeout elapses. Under Synchronous mode,
// Push additionally spins in Tick after enqueueing until the master has
// actually drained this entry.
func (e *Engine) Push(service, subservice byte, payload []byte, commitReceive bool) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.config.Role != RoleSlave {
		return ErrWrongRole
	}
	if len(payload) > e.config.MaxPayload {
		return ErrInvalidRange
	}

	idx := e.pushQueue.nextFree()
	if idx == -1 && e.config.BlockingMode != FullyAsynchronous {
		deadline := e.clock.Now().Add(e.config.PushQueueTimeout)
		for idx == -1 && e.clock.Now().Before(deadline) {
			e.Tick()
			idx = e.pushQueue.nextFree()
		}
	}
	if idx == -1 {
		return ErrPushQueueFull
	}

	e.pushQueue.enqueue(idx, service, subservice, payload, commitReceive)

	if e.config.BlockingMode == Synchronous {
		for e.pushQueue.entries[idx].pending {
			e.Tick()
		}
	}

	return nil
}

// LastComError returns and clears the most recently recorded
// commit-receive failure.
func (e *Engine) LastComError() ComError {
	err := e.lastError
	e.lastError = ComError{}
	return err
}

// SetBlockingMode changes the blocking mode applied to subsequent Send,
// Poll, PollRange and Push calls.
func (e *Engine) SetBlockingMode(mode BlockingMode) {
	e.config.BlockingMode = mode
}

// SetIgnoreInactiveNodes enables or disables liveness suppression and the
// scavenger. Has no effect on a slave.
func (e *Engine) SetIgnoreInactiveNodes(ignore bool) {
	e.config.IgnoreInactiveNodes = &ignore
	if e.liveness != nil {
		e.liveness.enabled = e.config.Role == RoleMaster && ignore
	}
}

// AttachLogger replaces the engine's log sink.
func (e *Engine) AttachLogger(l Logger) {
	e.logger = l
}

// IsActive reports whether address is currently classified active. Only
// meaningful on a master.
func (e *Engine) IsActive(address byte) bool {
	if e.liveness == nil {
		return false
	}
	return e.liveness.isActive(address)
}

// IsIgnored reports whether address is currently suppressed. Only
// meaningful on a master.
func (e *Engine) IsIgnored(address byte) bool {
	if e.liveness == nil {
		return false
	}
	return e.liveness.isIgnored(address)
}
