// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushFIFOOrder(t *testing.T) {
	clock := newFakeClock()
	q := newPushQueue(4, 8, 20*time.Second, clock)

	i1 := q.nextFree()
	q.enqueue(i1, 0x20, 0x00, []byte{1}, false)
	clock.Advance(time.Millisecond)

	i2 := q.nextFree()
	require.NotEqual(t, i1, i2)
	q.enqueue(i2, 0x20, 0x01, []byte{2}, false)

	first := q.nextToSend()
	require.Equal(t, i1, first)
	q.entries[first].pending = false

	second := q.nextToSend()
	require.Equal(t, i2, second)
}

func TestAgingExpiresEntriesAndFreesSlots(t *testing.T) {
	clock := newFakeClock()
	timeout := 20 * time.Second
	q := newPushQueue(2, 8, timeout, clock)

	idx := q.nextFree()
	q.enqueue(idx, 0x20, 0x00, []byte{1}, false)

	assert.Equal(t, idx, q.nextToSend())

	clock.Advance(timeout + time.Millisecond)
	assert.Equal(t, -1, q.nextToSend())
	assert.Equal(t, idx, q.nextFree())
}

func TestHasSendable(t *testing.T) {
	clock := newFakeClock()
	q := newPushQueue(1, 8, 20*time.Second, clock)
	assert.False(t, q.hasSendable())

	idx := q.nextFree()
	q.enqueue(idx, 0x20, 0x00, nil, false)
	assert.True(t, q.hasSendable())
}
