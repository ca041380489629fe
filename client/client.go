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

// Package client speaks the bridge's byte protocol from the remote side.
// It is used by the jtagbridge idcode command to check a bridge end to end
// and by tests.
package client

import (
	"errors"
	"fmt"
	"io"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
)

var (
	// ErrNoResponse is returned when the bridge did not answer a command.
	ErrNoResponse = errors.New("no response from bridge")
	// ErrBadResponse is returned for a response byte other than '0' or '1'.
	ErrBadResponse = errors.New("invalid response byte")
)

// resetClocks is enough TMS=1 clocks to reach Test-Logic-Reset from any state.
const resetClocks = 5

// Client drives a remote bridge over rw. Every method performs strict
// request/response exchanges, one byte each way.
type Client struct {
	rw  io.ReadWriter
	buf [1]byte
}

// New creates a client on rw, typically an open serial port.
func New(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

func (c *Client) exchange(cmd byte) (jtagbridge.Level, error) {
	c.buf[0] = cmd
	if _, err := c.rw.Write(c.buf[:]); err != nil {
		return jtagbridge.Low, fmt.Errorf("send 0x%02X: %w", cmd, err)
	}
	n, err := c.rw.Read(c.buf[:])
	if err != nil {
		return jtagbridge.Low, fmt.Errorf("receive for 0x%02X: %w", cmd, err)
	}
	if n != 1 {
		return jtagbridge.Low, fmt.Errorf("receive for 0x%02X: %w", cmd, ErrNoResponse)
	}
	switch jtagbridge.Response(c.buf[0]) {
	case jtagbridge.ResponseHigh:
		return jtagbridge.High, nil
	case jtagbridge.ResponseLow:
		return jtagbridge.Low, nil
	default:
		return jtagbridge.Low, fmt.Errorf("%w: 0x%02X for command 0x%02X", ErrBadResponse, c.buf[0], cmd)
	}
}

// Immediate sets TMS, TDI and TCK as given and returns TDO sampled after
// the TCK write.
func (c *Client) Immediate(tms, tdi, tck jtagbridge.Level) (jtagbridge.Level, error) {
	b, err := jtagbridge.Encode(jtagbridge.FamilyImmediate, tms, tdi, tck)
	if err != nil {
		return jtagbridge.Low, err
	}
	return c.exchange(b)
}

// Clock sets TMS and TDI and pulses TCK once. It returns TDO as it was
// before the pulse.
func (c *Client) Clock(tms, tdi jtagbridge.Level) (jtagbridge.Level, error) {
	b, err := jtagbridge.Encode(jtagbridge.FamilyClocked, tms, tdi, jtagbridge.Low)
	if err != nil {
		return jtagbridge.Low, err
	}
	return c.exchange(b)
}

// ClockManual produces one clock pulse with immediate commands, the slow
// path for clients that need to observe each edge. It returns TDO sampled
// with TCK low before the rising edge.
func (c *Client) ClockManual(tms, tdi jtagbridge.Level) (jtagbridge.Level, error) {
	tdo, err := c.Immediate(tms, tdi, jtagbridge.Low)
	if err != nil {
		return jtagbridge.Low, err
	}
	if _, err := c.Immediate(tms, tdi, jtagbridge.High); err != nil {
		return jtagbridge.Low, err
	}
	if _, err := c.Immediate(tms, tdi, jtagbridge.Low); err != nil {
		return jtagbridge.Low, err
	}
	return tdo, nil
}

// TMS clocks out a sequence of TMS values with TDI held low.
func (c *Client) TMS(seq ...jtagbridge.Level) error {
	for _, tms := range seq {
		if _, err := c.Clock(tms, jtagbridge.Low); err != nil {
			return err
		}
	}
	return nil
}

// ResetTAP forces the target into Test-Logic-Reset and then Run-Test/Idle.
func (c *Client) ResetTAP() error {
	seq := make([]jtagbridge.Level, 0, resetClocks+1)
	for range resetClocks {
		seq = append(seq, jtagbridge.High)
	}
	seq = append(seq, jtagbridge.Low)
	return c.TMS(seq...)
}

// ShiftDR moves from Run-Test/Idle to Shift-DR, shifts n bits of tdi LSB
// first, and returns to Run-Test/Idle. It returns the n bits shifted out.
func (c *Client) ShiftDR(tdi uint64, n int) (uint64, error) {
	if n <= 0 || n > 64 {
		return 0, fmt.Errorf("shift length %d out of range 1..64", n)
	}
	// Select-DR-Scan, Capture-DR, Shift-DR
	if err := c.TMS(jtagbridge.High, jtagbridge.Low, jtagbridge.Low); err != nil {
		return 0, err
	}
	var out uint64
	for i := range n {
		last := i == n-1
		tdo, err := c.Clock(jtagbridge.Level(last), jtagbridge.LevelOf(byte(tdi>>i)&1))
		if err != nil {
			return 0, err
		}
		if tdo {
			out |= 1 << i
		}
	}
	// Update-DR, Run-Test/Idle
	if err := c.TMS(jtagbridge.High, jtagbridge.Low); err != nil {
		return 0, err
	}
	return out, nil
}

// ReadIDCode resets the TAP, which selects IDCODE on compliant parts, and
// shifts out the 32-bit device identifier.
func (c *Client) ReadIDCode() (uint32, error) {
	if err := c.ResetTAP(); err != nil {
		return 0, err
	}
	id, err := c.ShiftDR(0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}
