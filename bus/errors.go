// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import "errors"

// Sentinel errors returned by the public Engine API when it refuses a call
// (not initialized, wrong role, bad address, full queue and so on), so
// callers can errors.Is against a stable set. A transmission that fails
// inside Send or PollRange, such as a commit-receive timeout, makes the call
// return false without a sentinel of its own; ErrCommitReceiveTimeout and
// ErrCommitReceiveInvalid are reached through LastComError().Err().
var (
	ErrNotInitialized         = errors.New("gnbus: engine not initialized")
	ErrAlreadyInitialized     = errors.New("gnbus: engine already initialized")
	ErrWrongRole              = errors.New("gnbus: operation not valid for this role")
	ErrInvalidAddress         = errors.New("gnbus: invalid address for role")
	ErrIgnoredNode            = errors.New("gnbus: target node is marked ignored")
	ErrPushBlockingActive     = errors.New("gnbus: a push clearance window is active")
	ErrCommitReceiveTimeout   = errors.New("gnbus: commit-receive timed out")
	ErrCommitReceiveInvalid   = errors.New("gnbus: commit-receive CRC mismatch")
	ErrPushQueueFull          = errors.New("gnbus: push queue is full")
	ErrServiceTableFull       = errors.New("gnbus: service table is full")
	ErrServiceAlreadyAttached = errors.New("gnbus: service already attached")
	ErrReservedService        = errors.New("gnbus: service number 0xFF is reserved")
	ErrInvalidRange           = errors.New("gnbus: invalid address range or message count")
	ErrFullyAsyncNotAllowed   = errors.New("gnbus: fully-asynchronous mode not allowed for this poll range")
)

// ComErrorKind classifies the last communication error observed by the
// engine, as surfaced by Engine.LastComError.
type ComErrorKind int

const (
	// ComErrorNone indicates no pending error.
	ComErrorNone ComErrorKind = iota
	// ComErrorCRTimeout indicates a commit-receive window elapsed with no reply.
	ComErrorCRTimeout
	// ComErrorCRInvalid indicates a commit-receive reply with mismatched CRC.
	ComErrorCRInvalid
)

func (k ComErrorKind) String() string {
	switch k {
	case ComErrorNone:
		return "none"
	case ComErrorCRTimeout:
		return "cr_timeout"
	case ComErrorCRInvalid:
		return "cr_invalid"
	default:
		return "unknown"
	}
}

// ComError is the last communication error recorded by the engine, read and
// cleared atomically by Engine.LastComError.
type ComError struct {
	Kind    ComErrorKind
	Address byte
}

// Err returns a sentinel error matching Kind, or nil if Kind is ComErrorNone.
func (e ComError) Err() error {
	switch e.Kind {
	case ComErrorCRTimeout:
		return ErrCommitReceiveTimeout
	case ComErrorCRInvalid:
		return ErrCommitReceiveInvalid
	default:
		return nil
	}
}
