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

package jtagbridge_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
	"github.com/ZaparooProject/go-jtagbridge/client"
	virt "github.com/ZaparooProject/go-jtagbridge/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeFixture struct {
	bridge    *jtagbridge.Bridge
	board     *virt.VirtualBoard
	transport *virt.ScriptedTransport
	pins      jtagbridge.PinSet
}

func newBridgeFixture(t *testing.T, input []byte, opts ...jtagbridge.BridgeOption) *bridgeFixture {
	t.Helper()
	seq, board, pins := newSequencer(t)
	transport := virt.NewScriptedTransport(input...)
	opts = append([]jtagbridge.BridgeOption{jtagbridge.WithReadErrorBackoff(0)}, opts...)
	return &bridgeFixture{
		bridge:    jtagbridge.NewBridge(transport, seq, opts...),
		board:     board,
		transport: transport,
		pins:      pins,
	}
}

// drain runs the bridge until the scripted input is used up.
func (f *bridgeFixture) drain(t *testing.T) {
	t.Helper()
	err := f.bridge.Run(context.Background())
	require.ErrorIs(t, err, jtagbridge.ErrTransportClosed)
}

func TestBridge_ImmediateEndToEnd(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x45})
	f.board.SetInput(f.pins.TDO, jtagbridge.High)

	f.drain(t)

	assert.Equal(t, []byte{'1'}, f.transport.Sent)
	assert.Equal(t, jtagbridge.High, f.board.Level(f.pins.TDI))
	assert.Equal(t, jtagbridge.Low, f.board.Level(f.pins.TMS))
	assert.Equal(t, jtagbridge.High, f.board.Level(f.pins.TCK))
}

func TestBridge_ClockedEndToEnd(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x62})
	f.board.OnWrite = func(l jtagbridge.Line, level jtagbridge.Level) {
		if l == f.pins.TCK {
			f.board.SetInput(f.pins.TDO, jtagbridge.High)
		}
	}

	f.drain(t)

	assert.Equal(t, []byte{'0'}, f.transport.Sent)
	assert.Equal(t, jtagbridge.High, f.board.Level(f.pins.TDO))
}

func TestBridge_SkipsZeroBytes(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x00, 0x00, 0x41, 0x00})

	f.drain(t)

	assert.Equal(t, []byte{'0'}, f.transport.Sent, "zero bytes get no response")
	assert.Equal(t, 1, f.transport.Syncs)
	stats := f.bridge.Stats()
	assert.Equal(t, uint64(3), stats.Skipped)
	assert.Equal(t, uint64(1), stats.Immediate)
}

func TestBridge_ZeroByteDoesNoPinWork(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x00})

	f.drain(t)

	assert.Empty(t, f.board.Trace)
	assert.Empty(t, f.transport.Sent)
}

func TestBridge_UnknownCommandHasNoResponse(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x10, 0x61, 0xFF})
	f.board.SetInput(f.pins.TDO, jtagbridge.High)

	f.drain(t)

	assert.Equal(t, []byte{'1'}, f.transport.Sent, "only the clocked command is answered")
	assert.Equal(t, uint64(2), f.bridge.Stats().Unknown)
}

func TestBridge_UnknownFirstByteNeverReportsStaleState(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x30})

	f.drain(t)

	assert.Empty(t, f.transport.Sent)
	assert.Empty(t, f.board.Trace)
}

func TestBridge_StrictAlternation(t *testing.T) {
	t.Parallel()
	input := []byte{0x40, 0x00, 0x44, 0x60, 0x10, 0x63, 0x00, 0x47}
	f := newBridgeFixture(t, input)

	f.drain(t)

	// Every answered request is followed immediately by its response
	var answered int
	ex := f.transport.Exchange
	for i, ev := range ex {
		if ev.Kind != virt.EventSent {
			continue
		}
		answered++
		require.Positive(t, i)
		prev := ex[i-1]
		assert.Equal(t, virt.EventReceived, prev.Kind)
		cmd, ok := jtagbridge.Decode(prev.Byte)
		require.True(t, ok)
		assert.NotEqual(t, jtagbridge.FamilyUnknown, cmd.Family)
	}
	assert.Equal(t, 5, answered)
	assert.Len(t, f.transport.Sent, 5)
}

func TestBridge_TimeoutsAreRetried(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, nil)
	f.transport.QueueTimeout()
	f.transport.QueueTimeout()
	f.transport.QueueBytes(0x61)

	f.drain(t)

	assert.Equal(t, []byte{'0'}, f.transport.Sent)
	assert.Zero(t, f.bridge.Stats().ReadAnomalies)
}

func TestBridge_ReadErrorIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, nil)
	f.transport.QueueError(&jtagbridge.TransportError{Op: "read", Err: jtagbridge.ErrTransportRead})
	f.transport.QueueBytes(0x41)

	f.drain(t)

	assert.Equal(t, []byte{'0'}, f.transport.Sent)
	assert.Equal(t, uint64(1), f.bridge.Stats().ReadAnomalies)
}

func TestBridge_WriteFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x41, 0x61})
	f.transport.SendErr = jtagbridge.ErrTransportWrite

	f.drain(t)

	stats := f.bridge.Stats()
	assert.Equal(t, uint64(2), stats.WriteFailures)
	assert.Zero(t, stats.Responses())
	assert.Zero(t, f.transport.Syncs, "no sync without a written response")
}

func TestBridge_SyncFailureIsAdvisory(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x41})
	f.transport.SyncErr = errors.New("drain failed")

	f.drain(t)

	assert.Equal(t, []byte{'0'}, f.transport.Sent)
	assert.Equal(t, uint64(1), f.bridge.Stats().SyncFailures)
}

func TestBridge_HardwareFaultSkipsResponseAndContinues(t *testing.T) {
	t.Parallel()
	f := newBridgeFixture(t, []byte{0x61, 0x41})
	f.board.FailRead(f.pins.TDO, errGPIO)

	step := func() {
		require.NoError(t, f.bridge.Step(context.Background()))
	}
	step()
	assert.Empty(t, f.transport.Sent)

	f.board.FailRead(f.pins.TDO, nil)
	step()
	assert.Equal(t, []byte{'0'}, f.transport.Sent)
	assert.Equal(t, uint64(1), f.bridge.Stats().HardwareFaults)
}

func TestBridge_Trace(t *testing.T) {
	t.Parallel()
	var trace bytes.Buffer
	f := newBridgeFixture(t, []byte{0x45, 0x63, 0x60, 0x20}, jtagbridge.WithTrace(&trace))
	f.board.SetInput(f.pins.TDO, jtagbridge.High)

	f.drain(t)

	assert.Equal(t, "*1MD1md120 ", trace.String())
}

func TestBridge_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	seq, _, _ := newSequencer(t)
	transport, conn := virt.NewPipe()
	t.Cleanup(func() { _ = conn.Close() })
	bridge := jtagbridge.NewBridge(transport, seq)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop after cancel")
	}
}

func TestBridge_ReadsIDCodeThroughClient(t *testing.T) {
	t.Parallel()
	const idcode = 0x0362F093

	seq, board, pins := newSequencer(t)
	target := virt.AttachTarget(board, pins, idcode)
	transport, conn := virt.NewPipe()
	t.Cleanup(func() { _ = conn.Close() })
	bridge := jtagbridge.NewBridge(transport, seq)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	c := client.New(conn)
	// Interleave skip bytes; they must not disturb the exchange
	_, err := conn.Write([]byte{0x00})
	require.NoError(t, err)

	id, err := c.ReadIDCode()
	require.NoError(t, err)
	assert.Equal(t, uint32(idcode), id)
	assert.Equal(t, virt.RunTestIdle, target.State())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	stats := bridge.Stats()
	assert.Equal(t, uint64(1), stats.Skipped)
	// reset (6) + enter shift (3) + 32 bits + exit (2)
	assert.Equal(t, uint64(43), stats.Clocked)
}

func TestBridge_ManualClockingThroughClient(t *testing.T) {
	t.Parallel()
	const idcode = 0x13631093

	seq, board, pins := newSequencer(t)
	virt.AttachTarget(board, pins, idcode)
	transport, conn := virt.NewPipe()
	t.Cleanup(func() { _ = conn.Close() })
	bridge := jtagbridge.NewBridge(transport, seq)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	c := client.New(conn)
	clock := func(tms jtagbridge.Level) jtagbridge.Level {
		tdo, err := c.ClockManual(tms, jtagbridge.Low)
		require.NoError(t, err)
		return tdo
	}

	for range 5 {
		clock(jtagbridge.High)
	}
	for _, tms := range []jtagbridge.Level{jtagbridge.Low, jtagbridge.High, jtagbridge.Low, jtagbridge.Low} {
		clock(tms)
	}
	var id uint32
	for i := range 32 {
		if clock(i == 31) {
			id |= 1 << i
		}
	}
	assert.Equal(t, uint32(idcode), id)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, bridge.Stats().Clocked)
}

// idcodeStream is the raw command sequence a client sends to reset the TAP
// and shift out a 32-bit IDCODE.
func idcodeStream() []byte {
	clocked := func(tms bool) byte {
		if tms {
			return 0x62
		}
		return 0x60
	}
	var out []byte
	for _, tms := range []bool{true, true, true, true, true, false, true, false, false} {
		out = append(out, clocked(tms))
	}
	for i := range 32 {
		out = append(out, clocked(i == 31))
	}
	return append(out, clocked(true), clocked(false))
}

func TestBridge_NoisyLineKeepsResponsesInOrder(t *testing.T) {
	t.Parallel()
	const idcode = 0x4BA00477
	pins := jtagbridge.DefaultPinSet()

	serve := func(transport jtagbridge.Transport) *jtagbridge.Bridge {
		board := virt.NewVirtualBoard()
		virt.AttachTarget(board, pins, idcode)
		driver, err := jtagbridge.NewPinDriver(board, pins)
		require.NoError(t, err)
		require.NoError(t, driver.Configure())
		return jtagbridge.NewBridge(transport, jtagbridge.NewSequencer(driver), jtagbridge.WithReadErrorBackoff(0))
	}

	clean := virt.NewScriptedTransport(idcodeStream()...)
	cleanBridge := serve(clean)
	require.ErrorIs(t, cleanBridge.Run(context.Background()), jtagbridge.ErrTransportClosed)

	noisy := virt.NewScriptedTransport(idcodeStream()...)
	jittery := virt.NewJitteryTransport(noisy, virt.JitterConfig{
		TimeoutPercent: 25,
		ErrorPercent:   10,
		Seed:           2024,
	})
	noisyBridge := serve(jittery)
	require.ErrorIs(t, noisyBridge.Run(context.Background()), jtagbridge.ErrTransportClosed)

	assert.Equal(t, clean.Sent, noisy.Sent)
	assert.Len(t, noisy.Sent, len(idcodeStream()))
	assert.Equal(t, uint64(jittery.Errors), noisyBridge.Stats().ReadAnomalies)

	var got uint32
	for i, resp := range noisy.Sent[9 : 9+32] {
		if resp == '1' {
			got |= 1 << i
		}
	}
	assert.Equal(t, uint32(idcode), got)
}
