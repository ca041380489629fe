// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uart provides the serial transport the bridge serves commands on.
package uart

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
	"github.com/ZaparooProject/go-jtagbridge/internal/syncutil"
	"go.bug.st/serial"
)

// FallbackBaudRate is used when the requested rate is not supported.
const FallbackBaudRate = 9600

// SupportedBaudRates lists the rates the bridge accepts.
var SupportedBaudRates = []int{4800, 9600, 19200, 38400, 115200}

// Config holds serial line settings
type Config struct {
	// BaudRate of the link. Unsupported values fall back to 9600 with a warning.
	BaudRate int
	// ReadTimeout bounds a single ReceiveByte. Zero blocks until a byte arrives.
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings used on the reference board:
// 115200 baud and reads that return after 100ms without data.
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// ResolveBaudRate returns rate if supported. Otherwise it returns
// FallbackBaudRate together with an ErrUnsupportedBaud error the caller
// should report as a warning.
func ResolveBaudRate(rate int) (int, error) {
	if slices.Contains(SupportedBaudRates, rate) {
		return rate, nil
	}
	return FallbackBaudRate, fmt.Errorf("%w: %d, using %d", jtagbridge.ErrUnsupportedBaud, rate, FallbackBaudRate)
}

// Transport implements jtagbridge.Transport on a serial port.
type Transport struct {
	port     serial.Port
	portName string
	mu       syncutil.Mutex // guards closed; never held across a blocking read
	closed   bool
	rx       [1]byte
	tx       [1]byte
}

// New opens portName in raw 8N1 mode with cfg applied and discards any
// bytes already waiting in the input buffer.
func New(portName string, cfg Config) (*Transport, error) {
	baud, err := ResolveBaudRate(cfg.BaudRate)
	if err != nil {
		jtagbridge.Warnf("%v", err)
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &jtagbridge.InitError{
			Stage: "open serial port",
			Err:   &jtagbridge.TransportError{Op: "open", Port: portName, Err: err},
		}
	}

	t, err := NewFromPort(port, portName, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	jtagbridge.Debugf("opened %s at %d baud, read timeout %v", portName, baud, cfg.ReadTimeout)
	return t, nil
}

// NewFromPort wraps an already open port.
func NewFromPort(port serial.Port, portName string, cfg Config) (*Transport, error) {
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = serial.NoTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, &jtagbridge.InitError{
			Stage: "set read timeout",
			Err:   &jtagbridge.TransportError{Op: "set timeout", Port: portName, Err: err},
		}
	}

	t := &Transport{
		port:     port,
		portName: portName,
	}
	if err := t.FlushInput(); err != nil {
		// Stale input is only a nuisance; the client resynchronises.
		jtagbridge.Warnf("%v", err)
	}
	return t, nil
}

// PortName returns the device path the transport was opened on.
func (t *Transport) PortName() string {
	return t.portName
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// ReceiveByte implements jtagbridge.Transport
func (t *Transport) ReceiveByte() (byte, bool, error) {
	if t.isClosed() {
		return 0, false, t.closedError("read")
	}

	n, err := t.port.Read(t.rx[:])
	if err != nil {
		if t.isClosed() || isPortClosed(err) {
			return 0, false, t.closedError("read")
		}
		if isInterruptedSystemCall(err) {
			return 0, false, nil
		}
		return 0, false, &jtagbridge.TransportError{
			Op:   "read",
			Port: t.portName,
			Err:  fmt.Errorf("%w: %w", jtagbridge.ErrTransportRead, err),
		}
	}
	if n != 1 {
		return 0, false, nil
	}
	return t.rx[0], true, nil
}

// SendByte implements jtagbridge.Transport
func (t *Transport) SendByte(b byte) error {
	if t.isClosed() {
		return t.closedError("write")
	}

	t.tx[0] = b
	n, err := t.port.Write(t.tx[:])
	if err != nil {
		if isPortClosed(err) {
			return t.closedError("write")
		}
		return &jtagbridge.TransportError{
			Op:   "write",
			Port: t.portName,
			Err:  fmt.Errorf("%w: %w", jtagbridge.ErrTransportWrite, err),
		}
	}
	if n != 1 {
		return &jtagbridge.TransportError{
			Op:   "write",
			Port: t.portName,
			Err:  fmt.Errorf("%w: wrote %d of 1 bytes", jtagbridge.ErrTransportWrite, n),
		}
	}
	return nil
}

// Sync waits until the response byte has left the UART.
func (t *Transport) Sync() error {
	if t.isClosed() {
		return t.closedError("sync")
	}
	return t.drainWithRetry()
}

// FlushInput discards bytes received but not yet read.
func (t *Transport) FlushInput() error {
	if err := t.port.ResetInputBuffer(); err != nil {
		return &jtagbridge.TransportError{Op: "flush input", Port: t.portName, Err: err}
	}
	return nil
}

// Close closes the port. A ReceiveByte blocked in another goroutine returns
// jtagbridge.ErrTransportClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if err := t.port.Close(); err != nil {
		return &jtagbridge.TransportError{Op: "close", Port: t.portName, Err: err}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() jtagbridge.TransportType {
	return jtagbridge.TransportUART
}

func (t *Transport) closedError(op string) error {
	return &jtagbridge.TransportError{Op: op, Port: t.portName, Err: jtagbridge.ErrTransportClosed}
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = t.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			break
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
		}
	}
	return &jtagbridge.TransportError{Op: "drain", Port: t.portName, Err: err}
}
