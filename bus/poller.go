// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

// Send is Component C6's single-address entry point: master sends a
// service-bearing frame to address, optionally carrying a push clearance
// (pushFlag) and/or a commit-receive round trip.
func (e *Engine) Send(address, service, subservice byte, payload []byte, pushFlag, commitReceive, retryOnCRFailure bool) (bool, error) {
	if !e.initialized {
		return false, ErrNotInitialized
	}
	if e.config.Role != RoleMaster {
		return false, ErrWrongRole
	}
	if address > e.config.MaxSlaveAddress {
		return false, ErrInvalidAddress
	}
	if e.liveness.isIgnored(address) {
		return false, ErrIgnoredNode
	}
	if e.pushBlockingActive() {
		if e.config.BlockingMode == FullyAsynchronous {
			return false, ErrPushBlockingActive
		}
		e.spinWhilePushBlocking()
	}

	waitForPushAnswer := e.config.BlockingMode == Synchronous
	ok := e.sendFrame(sendFrameArgs{
		targetAddress:    address,
		service:          service,
		subservice:       subservice,
		serviceFlag:      true,
		pushFlag:         pushFlag,
		waitForPushAnswer: waitForPushAnswer,
		commitReceive:    commitReceive,
		retryOnCRFailure: retryOnCRFailure,
		payload:          payload,
	})
	return ok, nil
}

// Poll requests a single address to emit its next pending push entry (or a
// "nothing" reply). Equivalent to PollRange(address, address, ...).
func (e *Engine) Poll(address byte, maxMessagesPerSlave byte, commitReceive, retryOnCRFailure bool) (bool, error) {
	return e.PollRange(address, address, maxMessagesPerSlave, commitReceive, retryOnCRFailure)
}

// PollRange is Component C6: it issues push-request frames across
// [begin, end], up to maxMessagesPerSlave per address, stopping early for
// an address as soon as it signals it has nothing more pending.
func (e *Engine) PollRange(begin, end, maxMessagesPerSlave byte, commitReceive, retryOnCRFailure bool) (bool, error) {
	if !e.initialized {
		return false, ErrNotInitialized
	}
	if e.config.Role != RoleMaster {
		return false, ErrWrongRole
	}
	if end > e.config.MaxSlaveAddress {
		return false, ErrInvalidAddress
	}
	if maxMessagesPerSlave < 1 {
		return false, ErrInvalidRange
	}
	if e.config.BlockingMode == FullyAsynchronous && begin != end {
		return false, ErrFullyAsyncNotAllowed
	}
	if e.pushBlockingActive() {
		if e.config.BlockingMode == FullyAsynchronous {
			return false, ErrPushBlockingActive
		}
		e.spinWhilePushBlocking()
	}

	result := true
	anyIgnored := false
	for addr := int(begin); addr <= int(end); addr++ {
		if e.liveness.isIgnored(byte(addr)) {
			anyIgnored = true
			result = false
			continue
		}
		for remaining := int(maxMessagesPerSlave); remaining > 0; remaining-- {
			var waitForPushAnswer bool
			switch e.config.BlockingMode {
			case FullyAsynchronous:
				waitForPushAnswer = false
			case NearlyAsynchronous:
				waitForPushAnswer = !(addr == int(end) && remaining <= 1)
			default: // Synchronous
				waitForPushAnswer = true
			}

			e.additionalPushAvailable = false
			if !e.sendFrame(sendFrameArgs{
				targetAddress:    byte(addr),
				serviceFlag:      false,
				pushFlag:         true,
				waitForPushAnswer: waitForPushAnswer,
				commitReceive:    commitReceive,
				retryOnCRFailure: retryOnCRFailure,
			}) {
				result = false
			}
			if !e.additionalPushAvailable {
				break
			}
		}
	}
	if !result && anyIgnored {
		return result, ErrIgnoredNode
	}
	return result, nil
}
