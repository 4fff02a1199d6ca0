// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

// Frame is the decoded, in-memory form of a wire frame. Payload is a
// sub-slice of a fixed buffer owned by the caller; callers that need to
// retain it past the current call must copy it.
type Frame struct {
	Direction     bool // false = master->slave, true = slave->master
	ServicePresent bool
	Push          bool
	CommitReceive bool
	Address       byte
	Service       byte
	Subservice    byte
	Payload       []byte
}

// flagByte packs the four control bits of Frame into the wire flag byte.
func flagByte(direction, servicePresent, push, commitReceive bool) byte {
	var f byte
	if direction {
		f |= 1 << flagBitDirection
	}
	if servicePresent {
		f |= 1 << flagBitServicePresent
	}
	if push {
		f |= 1 << flagBitPush
	}
	if commitReceive {
		f |= 1 << flagBitCommitReceive
	}
	return f
}

func unpackFlag(f byte) (direction, servicePresent, push, commitReceive bool) {
	direction = f&(1<<flagBitDirection) != 0
	servicePresent = f&(1<<flagBitServicePresent) != 0
	push = f&(1<<flagBitPush) != 0
	commitReceive = f&(1<<flagBitCommitReceive) != 0
	return
}

// crc16CCITTFalse computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF, no
// reflection, no final XOR) over data.
func crc16CCITTFalse(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// encodeLogical appends the logical bytes of f (flag through payload, no
// sentinels, no CRC) to dst and returns the extended slice.
func encodeLogical(dst []byte, f Frame) []byte {
	dst = append(dst, flagByte(f.Direction, f.ServicePresent, f.Push, f.CommitReceive))
	dst = append(dst, f.Address)
	if f.ServicePresent {
		dst = append(dst, byte(len(f.Payload)))
		dst = append(dst, f.Service, f.Subservice)
		dst = append(dst, f.Payload...)
	}
	return dst
}

// decodeLogical parses the logical byte sequence assembled by the receive
// state machine (flag, address, and if service-present, payload_size,
// service, subservice, payload) into a Frame. Payload is nil when the frame
// carries no payload bytes.
func decodeLogical(logical []byte) Frame {
	direction, servicePresent, push, commitReceive := unpackFlag(logical[0])
	f := Frame{
		Direction:      direction,
		ServicePresent: servicePresent,
		Push:           push,
		CommitReceive:  commitReceive,
		Address:        logical[1],
	}
	if servicePresent {
		f.Service = logical[3]
		f.Subservice = logical[4]
		if len(logical) > 5 {
			f.Payload = logical[5:]
		}
	}
	return f
}

// marshalFrame renders f as the complete wire sequence: start sentinels,
// logical bytes, big-endian CRC, stop sentinels.
func marshalFrame(f Frame) []byte {
	logical := encodeLogical(nil, f)
	crc := crc16CCITTFalse(logical)
	out := make([]byte, 0, 2+len(logical)+2+2)
	out = append(out, frameStart1, frameStart2)
	out = append(out, logical...)
	out = append(out, byte(crc>>8), byte(crc))
	out = append(out, frameStop1, frameStop2)
	return out
}
