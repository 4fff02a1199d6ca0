// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import "time"

// ServiceHandler handles frames addressed to a specific, registered service
// number. payload is only valid for the duration of the call.
type ServiceHandler func(subservice byte, payload []byte, size int, source byte)

// CatchAllHandler handles frames whose service number has no specific
// handler registered.
type CatchAllHandler func(service, subservice byte, payload []byte, size int, source byte)

// AttachService registers handler for service number n. Fails if n is the
// reserved system service, the table is full, or n is already attached.
func (e *Engine) AttachService(n byte, handler ServiceHandler) error {
	if n == SystemService {
		return ErrReservedService
	}
	if _, exists := e.services[n]; exists {
		return ErrServiceAlreadyAttached
	}
	if len(e.services) >= e.config.MaxServices {
		return ErrServiceTableFull
	}
	e.services[n] = handler
	return nil
}

// AttachCatchAll registers handler as the fallback invoked when no specific
// service matches. Replaces any previously attached catch-all.
func (e *Engine) AttachCatchAll(handler CatchAllHandler) {
	e.catchAll = handler
}

// dispatch is Component C4: it routes a validated, service-bearing frame
// to the system service, a registered handler, or the catch-all, then runs
// the role-specific post-dispatch push logic. frameStartTime is the time
// the frame's START2 byte was accepted, used by the slave push-timeout
// check below.
func (e *Engine) dispatch(f Frame, frameStartTime time.Time) {
	pushFlag := f.Push

	// Every frame a slave accepts comes from the master; on a master the
	// frame's address field names the slave that sent it.
	source := f.Address
	if e.config.Role == RoleSlave {
		source = MasterPseudoAddress
	}

	if f.ServicePresent {
		if f.Service == SystemService {
			pushFlag = e.handleSystemService(f, pushFlag)
		} else if handler, ok := e.services[f.Service]; ok {
			payload := append([]byte(nil), f.Payload...)
			handler(f.Subservice, payload, len(payload), source)
		} else if e.catchAll != nil {
			payload := append([]byte(nil), f.Payload...)
			e.catchAll(f.Service, f.Subservice, payload, len(payload), source)
		} else {
			e.logger.Warn("service not attached", "service", f.Service)
		}
	}

	// The frame buffer is conceptually consumed before any handler runs;
	// nothing below reads f.Payload's backing storage again.
	if e.config.Role == RoleMaster {
		e.pushBlockingDeadline = time.Time{}
		e.additionalPushAvailable = pushFlag
		return
	}

	if !pushFlag {
		return
	}
	if e.clock.Now().Sub(frameStartTime) > e.config.PushTimeout {
		e.logger.Warn("push-clearance answer window elapsed, entry stays pending")
		return
	}

	idx := e.pushQueue.nextToSend()
	if idx == -1 {
		e.sendFrame(sendFrameArgs{targetAddress: e.config.OwnAddress, serviceFlag: false, pushFlag: false})
		return
	}
	entry := &e.pushQueue.entries[idx]
	entry.pending = false
	additional := e.pushQueue.hasSendable()
	ok := e.sendFrame(sendFrameArgs{
		targetAddress:    e.config.OwnAddress,
		service:          entry.service,
		subservice:       entry.subservice,
		serviceFlag:      true,
		pushFlag:         additional,
		commitReceive:    entry.commitReceive,
		retryOnCRFailure: false,
		payload:          entry.payload[:entry.payloadSize],
	})
	if !ok && entry.commitReceive {
		entry.pending = true
	}
}

// handleSystemService processes a frame addressed to the reserved system
// service and returns the push flag that should drive post-dispatch logic.
func (e *Engine) handleSystemService(f Frame, pushFlag bool) bool {
	if e.config.Role == RoleMaster {
		switch f.Subservice {
		case SystemServiceIgnore:
			return pushFlag
		default:
			e.logger.Warn("system service not implemented on master", "subservice", f.Subservice)
			return pushFlag
		}
	}

	additional := e.pushQueue.hasSendable()
	switch f.Subservice {
	case SystemServiceQueryAlive:
		e.sendFrame(sendFrameArgs{
			targetAddress: e.config.OwnAddress,
			service:       SystemService,
			subservice:    SystemServiceQueryAlive,
			serviceFlag:   true,
			pushFlag:      additional,
			commitReceive: f.CommitReceive,
		})
		return false
	case SystemServiceIgnore:
		return pushFlag
	default:
		e.logger.Warn("system service not implemented", "subservice", f.Subservice)
		return pushFlag
	}
}
