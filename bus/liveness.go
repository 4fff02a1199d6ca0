// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import "time"

// liveness tracks per-address active/ignore classification on a master.
// An address absent from both bitmaps is "unknown" and is never suppressed.
type liveness struct {
	maxAddr byte
	active  []byte
	ignore  []byte

	enabled bool
	cursor  byte
	lastRun time.Time
}

func newLiveness(maxAddr byte, enabled bool) *liveness {
	size := (int(maxAddr) + 1 + 7) / 8
	return &liveness{
		maxAddr: maxAddr,
		active:  make([]byte, size),
		ignore:  make([]byte, size),
		enabled: enabled,
	}
}

func (l *liveness) validAddr(addr byte) bool { return addr <= l.maxAddr }

func setBit(bitmap []byte, addr byte)   { bitmap[addr/8] |= 1 << (addr % 8) }
func clearBit(bitmap []byte, addr byte) { bitmap[addr/8] &^= 1 << (addr % 8) }
func getBit(bitmap []byte, addr byte) bool {
	return bitmap[addr/8]&(1<<(addr%8)) != 0
}

// markActive sets the active bit and clears the ignore bit for addr.
func (l *liveness) markActive(addr byte) {
	if !l.validAddr(addr) {
		return
	}
	setBit(l.active, addr)
	clearBit(l.ignore, addr)
}

// markIgnore clears the active bit and sets the ignore bit for addr.
func (l *liveness) markIgnore(addr byte) {
	if !l.validAddr(addr) {
		return
	}
	clearBit(l.active, addr)
	setBit(l.ignore, addr)
}

// reset clears both bits for addr, returning it to "unknown".
func (l *liveness) reset(addr byte) {
	if !l.validAddr(addr) {
		return
	}
	clearBit(l.active, addr)
	clearBit(l.ignore, addr)
}

// isIgnored reports whether addr is currently suppressed. Always false when
// the feature is disabled or addr is out of range.
func (l *liveness) isIgnored(addr byte) bool {
	if !l.enabled || !l.validAddr(addr) {
		return false
	}
	return getBit(l.ignore, addr)
}

func (l *liveness) isActive(addr byte) bool {
	if !l.validAddr(addr) {
		return false
	}
	return getBit(l.active, addr)
}

// runScavenger walks the liveness bitmaps starting at the stored cursor,
// demoting active nodes back to unknown and probing at most one ignored
// node per call, per the engine's scavenger policy. It is invoked from
// Engine.Tick at ScavengingInterval and is a no-op on a slave or when the
// feature is disabled.
func (e *Engine) runScavenger() {
	lv := e.liveness
	if !lv.enabled {
		return
	}
	now := e.clock.Now()
	if !lv.lastRun.IsZero() && now.Sub(lv.lastRun) < e.config.ScavengingInterval {
		return
	}
	lv.lastRun = now

	start := lv.cursor
	addr := start
	for {
		switch {
		case lv.isActive(addr):
			lv.reset(addr)
			addr++
			if addr > lv.maxAddr {
				addr = 0
			}
			if addr == start {
				lv.cursor = addr
				return
			}
			continue
		case lv.isIgnored(addr):
			lv.reset(addr)
			savedErr := e.lastError
			ok := e.sendFrame(sendFrameArgs{
				targetAddress:    addr,
				service:          SystemService,
				subservice:       SystemServiceIgnore,
				serviceFlag:      true,
				pushFlag:         false,
				commitReceive:    true,
				retryOnCRFailure: false,
			})
			e.lastError = savedErr
			e.logger.Debug("scavenger probe", "address", addr, "ok", ok)
			if ok {
				lv.markActive(addr)
			} else {
				lv.markIgnore(addr)
			}
			addr++
			if addr > lv.maxAddr {
				addr = 0
			}
			lv.cursor = addr
			return
		default:
			addr++
			if addr > lv.maxAddr {
				addr = 0
			}
			if addr == start {
				lv.cursor = addr
				return
			}
		}
	}
}

// The original reference scavenger also sketched an alternative policy of
// simply flipping active bits to ignore on each interval instead of
// resetting them to unknown; that alternative is not implemented here.
