// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import "time"

type rxPhase int

const (
	rxWaitStart1 rxPhase = iota
	rxWaitStart2
	rxFlag
	rxAddress
	rxPayloadSize
	rxService
	rxSubservice
	rxPayload
	rxCRCHi
	rxCRCLo
	rxStop1
	rxStop2
)

// rxState is the byte-by-byte receive state machine (one per Engine). It
// holds no pointer back to Engine so it can be driven and tested in
// isolation from dispatch.
type rxState struct {
	phase          rxPhase
	logical        []byte
	startTime      time.Time
	servicePresent bool
	payloadSize    int
	payloadRead    int
	crcHi          byte
	crcLo          byte
}

func newRxState() *rxState {
	return &rxState{logical: make([]byte, 0, 16)}
}

// checkTimeout drops a partial frame that has been open too long. Called
// once per Tick before draining any new bytes, matching the reference
// implementation's "check timeout before reading" ordering.
func (rx *rxState) checkTimeout(now time.Time, frameTimeout time.Duration) {
	if rx.phase <= rxWaitStart2 {
		return
	}
	if now.Sub(rx.startTime) > frameTimeout {
		rx.hardReset()
	}
}

func (rx *rxState) hardReset() {
	rx.phase = rxWaitStart1
	rx.logical = rx.logical[:0]
}

// dropOn handles a sentinel mismatch: restart scanning for START2 if the
// offending byte was itself START1, otherwise go fully idle.
func (rx *rxState) dropOn(b byte) {
	if b == frameStart1 {
		rx.phase = rxWaitStart2
		rx.logical = rx.logical[:0]
	} else {
		rx.hardReset()
	}
}

// rxResult is what feed returns for one incoming byte. ready is set exactly
// when STOP2 completes a frame; feed does not check the CRC, so the caller
// compares crc with the CRC of logical before accepting the frame.
type rxResult struct {
	logical   []byte // flag, address, [payload_size, service, subservice, payload...]
	crc       uint16
	ready     bool // a full frame (start..stop) was assembled; still needs CRC check by caller
	startTime time.Time
}

func (rx *rxState) feed(b byte, now time.Time) rxResult {
	switch rx.phase {
	case rxWaitStart1:
		if b == frameStart1 {
			rx.phase = rxWaitStart2
		}
	case rxWaitStart2:
		if b == frameStart2 {
			rx.logical = rx.logical[:0]
			rx.startTime = now
			rx.phase = rxFlag
		} else if b == frameStart1 {
			rx.phase = rxWaitStart2
		} else {
			rx.phase = rxWaitStart1
		}
	case rxFlag:
		_, servicePresent, _, _ := unpackFlag(b)
		rx.servicePresent = servicePresent
		rx.logical = append(rx.logical, b)
		rx.phase = rxAddress
	case rxAddress:
		rx.logical = append(rx.logical, b)
		if rx.servicePresent {
			rx.phase = rxPayloadSize
		} else {
			rx.phase = rxCRCHi
		}
	case rxPayloadSize:
		rx.payloadSize = int(b)
		rx.payloadRead = 0
		rx.logical = append(rx.logical, b)
		rx.phase = rxService
	case rxService:
		rx.logical = append(rx.logical, b)
		rx.phase = rxSubservice
	case rxSubservice:
		rx.logical = append(rx.logical, b)
		if rx.payloadSize == 0 {
			rx.phase = rxCRCHi
		} else {
			rx.phase = rxPayload
		}
	case rxPayload:
		rx.logical = append(rx.logical, b)
		rx.payloadRead++
		if rx.payloadRead >= rx.payloadSize {
			rx.phase = rxCRCHi
		}
	case rxCRCHi:
		rx.crcHi = b
		rx.phase = rxCRCLo
	case rxCRCLo:
		rx.crcLo = b
		rx.phase = rxStop1
	case rxStop1:
		if b != frameStop1 {
			rx.dropOn(b)
			return rxResult{}
		}
		rx.phase = rxStop2
	case rxStop2:
		if b != frameStop2 {
			rx.dropOn(b)
			return rxResult{}
		}
		crc := uint16(rx.crcHi)<<8 | uint16(rx.crcLo)
		result := rxResult{logical: append([]byte(nil), rx.logical...), crc: crc, ready: true, startTime: rx.startTime}
		rx.hardReset()
		return result
	}
	return rxResult{}
}
