// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"time"
)

// Role identifies which side of the bus an Engine plays.
type Role byte

const (
	// RoleMaster polls and addresses slaves; owns the liveness tracker.
	RoleMaster Role = iota
	// RoleSlave answers only when addressed or cleared to push.
	RoleSlave
)

func (r Role) String() string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

// BlockingMode controls how far Send, Poll, PollRange and Push are allowed
// to spin inside Tick while waiting for a reply or a free push slot.
type BlockingMode byte

const (
	// Synchronous waits for every reply before returning.
	Synchronous BlockingMode = iota
	// NearlyAsynchronous waits except for the very last poll of a batch.
	NearlyAsynchronous
	// FullyAsynchronous never waits; most blocking operations are refused.
	FullyAsynchronous
)

// Protocol-wide constants that are not configurable, taken from the wire
// format itself.
const (
	frameStart1 = 0xAA
	frameStart2 = 0x55
	frameStop1  = 0xCC
	frameStop2  = 0x33

	// MasterPseudoAddress is the address a master uses as its own when
	// sourcing a frame.
	MasterPseudoAddress byte = 0xFF
	// SystemService is the reserved service number for liveness queries.
	SystemService byte = 0xFF
	// SystemServiceQueryAlive requests an immediate reply from a slave.
	SystemServiceQueryAlive byte = 0x00
	// SystemServiceIgnore is a diagnostic no-op subservice.
	SystemServiceIgnore byte = 0x01

	flagBitDirection     = 7
	flagBitServicePresent = 6
	flagBitPush          = 5
	flagBitCommitReceive = 4
)

// Config bundles the tunable knobs of an Engine. Zero-value fields are
// replaced by their documented default when the Config is passed through
// Valid, the same defaulting-then-validating idiom a serial-link config
// struct uses elsewhere in this codebase.
type Config struct {
	// Role is required; there is no default.
	Role Role
	// OwnAddress is the engine's own bus address. Must be MasterPseudoAddress
	// for a master, and less than 0xF0 for a slave.
	OwnAddress byte

	// BaudRate is the link speed used to derive FrameTimeout. Defaults to
	// DefaultBaudRate.
	BaudRate int
	// BlockingMode defaults to DefaultBlockingMode.
	BlockingMode BlockingMode

	// MaxPayload bounds a frame's payload section. Defaults to DefaultMaxPayload.
	MaxPayload int
	// FrameLengthTimeoutFactor scales the expected per-frame duration into a
	// conservative receive timeout. Defaults to DefaultFrameLengthTimeoutFactor.
	FrameLengthTimeoutFactor int

	// PushQueueTimeout bounds how long an unsent push entry stays pending.
	// Defaults to DefaultPushQueueTimeout.
	PushQueueTimeout time.Duration
	// MaxPushEntries bounds the push queue depth. Defaults to DefaultMaxPushEntries.
	MaxPushEntries int
	// MaxServices bounds the service handler table. Defaults to DefaultMaxServices.
	MaxServices int
	// PushTimeout bounds how long a master waits for a push reply after a
	// push-request. Defaults to DefaultPushTimeout.
	PushTimeout time.Duration
	// MaxSlaveAddress bounds valid slave addresses and liveness bitmap size.
	// Defaults to DefaultMaxSlaveAddress.
	MaxSlaveAddress byte
	// ScavengingInterval is the period between liveness scavenger runs.
	// Defaults to DefaultScavengingInterval.
	ScavengingInterval time.Duration
	// DEEnableWait is the settle time after asserting the DE line and
	// before writing the first frame byte. Defaults to 0, matching the
	// reference hardware profile this library was modeled on.
	DEEnableWait time.Duration

	// IgnoreInactiveNodes enables the liveness suppression and scavenger on
	// a master. Has no effect on a slave. Defaults to true.
	IgnoreInactiveNodes *bool
}

// Defaults mirror config.h of the reference implementation this engine is
// modeled on.
const (
	DefaultBlockingMode             = NearlyAsynchronous
	DefaultBaudRate                 = 9600
	DefaultMaxPayload               = 8
	DefaultFrameLengthTimeoutFactor = 30
	DefaultPushQueueTimeout         = 20 * time.Second
	DefaultMaxPushEntries           = 10
	DefaultMaxServices              = 10
	DefaultPushTimeout              = 50 * time.Millisecond
	DefaultMaxSlaveAddress          = 0x1F
	DefaultScavengingInterval       = 10 * time.Second
)

// DefaultConfig returns a Config with every tunable at its documented
// default for the given role. OwnAddress still needs to be set by the
// caller for a slave.
func DefaultConfig(role Role) Config {
	ownAddr := byte(0x00)
	if role == RoleMaster {
		ownAddr = MasterPseudoAddress
	}
	return Config{
		Role:                     role,
		OwnAddress:               ownAddr,
		BaudRate:                 DefaultBaudRate,
		BlockingMode:             DefaultBlockingMode,
		MaxPayload:               DefaultMaxPayload,
		FrameLengthTimeoutFactor: DefaultFrameLengthTimeoutFactor,
		PushQueueTimeout:         DefaultPushQueueTimeout,
		MaxPushEntries:           DefaultMaxPushEntries,
		MaxServices:              DefaultMaxServices,
		PushTimeout:              DefaultPushTimeout,
		MaxSlaveAddress:          DefaultMaxSlaveAddress,
		ScavengingInterval:       DefaultScavengingInterval,
	}
}

// Valid defaults zero-value fields in place and then checks ranges,
// returning the first violated invariant.
func (c *Config) Valid() error {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	} else if c.BaudRate < 0 {
		return ErrInvalidAddress
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	if c.MaxPayload < 0 || c.MaxPayload > 0xFF {
		return ErrInvalidRange
	}
	if c.FrameLengthTimeoutFactor == 0 {
		c.FrameLengthTimeoutFactor = DefaultFrameLengthTimeoutFactor
	}
	if c.PushQueueTimeout == 0 {
		c.PushQueueTimeout = DefaultPushQueueTimeout
	}
	if c.MaxPushEntries == 0 {
		c.MaxPushEntries = DefaultMaxPushEntries
	}
	if c.MaxPushEntries < 0 || c.MaxPushEntries > 254 {
		return ErrInvalidRange
	}
	if c.MaxServices == 0 {
		c.MaxServices = DefaultMaxServices
	}
	if c.PushTimeout == 0 {
		c.PushTimeout = DefaultPushTimeout
	}
	if c.MaxSlaveAddress == 0 {
		c.MaxSlaveAddress = DefaultMaxSlaveAddress
	}
	if c.ScavengingInterval == 0 {
		c.ScavengingInterval = DefaultScavengingInterval
	}
	if c.IgnoreInactiveNodes == nil {
		t := true
		c.IgnoreInactiveNodes = &t
	}

	switch c.Role {
	case RoleMaster:
		if c.OwnAddress != MasterPseudoAddress {
			return ErrInvalidAddress
		}
	case RoleSlave:
		if c.OwnAddress >= 0xF0 {
			return ErrInvalidAddress
		}
	default:
		return ErrWrongRole
	}
	return nil
}

// FrameTimeout derives the expected frame duration bound used by the
// receive state machine's partial-frame timeout and (scaled by 0.4) the
// commit-receive read deadline.
//
//	frameTimeoutMs = ceil(((10+MaxPayload) * FrameLengthTimeoutFactor * 1e7 / baud + 501) / 1000)
func (c *Config) FrameTimeout() time.Duration {
	num := int64(10+c.MaxPayload) * int64(c.FrameLengthTimeoutFactor) * 10_000_000
	us := num/int64(c.BaudRate) + 501
	ms := (us + 999) / 1000
	return time.Duration(ms) * time.Millisecond
}
