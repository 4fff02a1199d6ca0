// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

// sendFrameArgs bundles the parameters of the single emit primitive used by
// every higher-level operation (send, poll, push delivery, system-service
// replies, the scavenger probe).
type sendFrameArgs struct {
	targetAddress    byte
	service          byte
	subservice       byte
	serviceFlag      bool
	pushFlag         bool
	waitForPushAnswer bool
	commitReceive    bool
	retryOnCRFailure bool
	payload          []byte
}

// sendFrame is Component C3: it asserts DE, writes the frame, optionally
// waits for a commit-receive echo (with one retry), and optionally spins in
// Tick until a push answer arrives or its window elapses.
func (e *Engine) sendFrame(args sendFrameArgs) bool {
	if e.config.Role == RoleMaster && e.liveness.isIgnored(args.targetAddress) {
		e.logger.Warn("send skipped: target ignored", "address", args.targetAddress)
		return false
	}

	if err := e.de.Assert(); err != nil {
		e.logger.Error("DE assert failed", "err", err)
		return false
	}
	if e.config.DEEnableWait > 0 {
		e.clock.Sleep(e.config.DEEnableWait)
	}

	frame := Frame{
		Direction:      e.config.Role == RoleSlave,
		ServicePresent: args.serviceFlag,
		Push:           args.pushFlag,
		CommitReceive:  args.commitReceive,
		Address:        args.targetAddress,
		Service:        args.service,
		Subservice:     args.subservice,
		Payload:        args.payload,
	}
	logical := encodeLogical(nil, frame)
	crc := crc16CCITTFalse(logical)

	if err := e.transport.Write([]byte{frameStart1, frameStart2}); err != nil {
		e.logger.Error("write start sentinels failed", "err", err)
		_ = e.de.Release()
		return false
	}

	if e.config.Role == RoleMaster && args.pushFlag {
		e.pushBlockingDeadline = e.clock.Now().Add(e.config.PushTimeout)
	}

	wire := make([]byte, 0, len(logical)+4)
	wire = append(wire, logical...)
	wire = append(wire, byte(crc>>8), byte(crc))
	wire = append(wire, frameStop1, frameStop2)
	if err := e.transport.Write(wire); err != nil {
		e.logger.Error("write frame body failed", "err", err)
		_ = e.de.Release()
		return false
	}
	if err := e.transport.Flush(); err != nil {
		e.logger.Error("flush failed", "err", err)
	}
	if err := e.de.Release(); err != nil {
		e.logger.Error("DE release failed", "err", err)
	}

	if args.commitReceive {
		var crBuf [2]byte
		deadline := e.config.FrameTimeout() * 4 / 10
		n, _ := e.transport.ReadWithTimeout(crBuf[:], deadline)
		if n == 2 {
			if crBuf[0] == byte(crc>>8) && crBuf[1] == byte(crc) {
				e.liveness.markActive(args.targetAddress)
			} else {
				e.lastError = ComError{Kind: ComErrorCRInvalid, Address: args.targetAddress}
				if args.retryOnCRFailure && e.config.Role == RoleMaster {
					e.logger.Debug("commit-receive retry", "address", args.targetAddress, "reason", "crc mismatch")
					retry := args
					retry.retryOnCRFailure = false
					return e.sendFrame(retry)
				}
				return false
			}
		} else {
			e.lastError = ComError{Kind: ComErrorCRTimeout, Address: args.targetAddress}
			if args.retryOnCRFailure && e.config.Role == RoleMaster {
				e.logger.Debug("commit-receive retry", "address", args.targetAddress, "reason", "timeout")
				retry := args
				retry.retryOnCRFailure = false
				return e.sendFrame(retry)
			}
			e.liveness.markIgnore(args.targetAddress)
			return false
		}
	}

	if e.config.Role == RoleMaster && args.pushFlag && args.waitForPushAnswer {
		e.spinWhilePushBlocking()
	}

	return true
}

// pushBlockingActive reports whether a push-clearance window is open.
func (e *Engine) pushBlockingActive() bool {
	return !e.pushBlockingDeadline.IsZero() && e.clock.Now().Before(e.pushBlockingDeadline)
}

// spinWhilePushBlocking calls Tick repeatedly until the push-blocking
// window clears, either by an answer arriving or by elapsing. Only ever
// called after checking the caller is not FullyAsynchronous.
func (e *Engine) spinWhilePushBlocking() {
	for e.pushBlockingActive() {
		e.Tick()
	}
}
