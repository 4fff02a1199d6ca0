// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport provides a bus.Transport and bus.DELine backed by a
// real serial port via go.bug.st/serial, for use by an Engine talking to
// genuine RS-485 hardware.
package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/nv-iot/gnbus/bus"
)

// rxBufferSize bounds how far the background reader can get ahead of
// Engine.Tick; once the buffer is full the reader blocks until ReadByte
// drains it.
const rxBufferSize = 4096

// SerialPort adapts a go.bug.st/serial port to bus.Transport. Open starts
// a background goroutine that continuously reads from the port into an
// internal byte channel, since the underlying driver exposes no
// non-blocking "how many bytes are waiting" call; Available reports the
// depth of that channel.
type SerialPort struct {
	portName string

	mu   sync.Mutex
	port serial.Port
	rx   chan byte
	done chan struct{}
}

// NewSerialPort returns a SerialPort bound to the given device path (e.g.
// "/dev/ttyUSB0" or "COM3"). Open still needs to be called before use.
func NewSerialPort(portName string) *SerialPort {
	return &SerialPort{portName: portName}
}

// Open implements bus.Transport.
func (s *SerialPort) Open(baud int) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", s.portName, err)
	}

	s.mu.Lock()
	s.port = port
	s.rx = make(chan byte, rxBufferSize)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.readLoop()
	return nil
}

func (s *SerialPort) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case s.rx <- buf[i]:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			select {
			case <-s.done:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

// Available implements bus.Transport.
func (s *SerialPort) Available() int {
	return len(s.rx)
}

// ReadByte implements bus.Transport. Only called by Engine.Tick when
// Available() > 0, so this never actually blocks in practice.
func (s *SerialPort) ReadByte() (byte, error) {
	select {
	case b := <-s.rx:
		return b, nil
	default:
		b, ok := <-s.rx
		if !ok {
			return 0, io.EOF
		}
		return b, nil
	}
}

// ReadWithTimeout implements bus.Transport, used for the commit-receive
// echo read.
func (s *SerialPort) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	deadline := time.After(timeout)
	for n := 0; n < len(p); {
		select {
		case b, ok := <-s.rx:
			if !ok {
				return n, io.EOF
			}
			p[n] = b
			n++
		case <-deadline:
			return n, nil
		}
	}
	return len(p), nil
}

// Write implements bus.Transport.
func (s *SerialPort) Write(p []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	_, err := port.Write(p)
	return err
}

// Flush implements bus.Transport. go.bug.st/serial writes synchronously to
// the OS, so there is nothing to drain here.
func (s *SerialPort) Flush() error {
	return nil
}

// Close releases the background reader and the underlying port.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// RTSDELine controls an RS-485 transceiver's driver-enable input through
// the serial port's RTS line: asserted high while transmitting, released
// low to listen. It reads the underlying serial.Port from sp lazily, so it
// can be constructed and handed to an Engine as a bus.DELine option before
// Engine.Begin has opened the port.
type RTSDELine struct {
	sp *SerialPort
}

// NewRTSDELine returns a DELine driven by the RTS signal of whatever port
// sp is, or later becomes, open on.
func NewRTSDELine(sp *SerialPort) *RTSDELine {
	return &RTSDELine{sp: sp}
}

// Assert implements bus.DELine.
func (d *RTSDELine) Assert() error {
	port := d.sp.Port()
	if port == nil {
		return fmt.Errorf("transport: DE line asserted before port open")
	}
	return port.SetRTS(true)
}

// Release implements bus.DELine.
func (d *RTSDELine) Release() error {
	port := d.sp.Port()
	if port == nil {
		return fmt.Errorf("transport: DE line released before port open")
	}
	return port.SetRTS(false)
}

// Port exposes the underlying serial.Port, or nil before Open. RTSDELine
// uses it to drive RTS on the same port this SerialPort opened.
func (s *SerialPort) Port() serial.Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

var _ bus.Transport = (*SerialPort)(nil)
var _ bus.DELine = (*RTSDELine)(nil)
