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


package testing

import (
	"errors"
	"testing"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualBoard_OutputsReadBack(t *testing.T) {
	t.Parallel()
	b := NewVirtualBoard()
	require.NoError(t, b.Configure(4, jtagbridge.Output))
	require.NoError(t, b.Write(4, jtagbridge.High))

	level, err := b.Read(4)
	require.NoError(t, err)
	assert.Equal(t, jtagbridge.High, level)
	assert.Equal(t, []Op{
		{Kind: OpConfigure, Line: 4, Dir: jtagbridge.Output},
		{Kind: OpWrite, Line: 4, Level: jtagbridge.High},
		{Kind: OpRead, Line: 4, Level: jtagbridge.High},
	}, b.Trace)
	assert.Equal(t, "write 4 High", b.Trace[1].String())
}

func TestVirtualBoard_Strict(t *testing.T) {
	t.Parallel()
	b := NewVirtualBoard()
	b.Strict = true

	require.ErrorIs(t, b.Write(4, jtagbridge.High), ErrLineNotConfigured)
	_, err := b.Read(22)
	require.ErrorIs(t, err, ErrLineNotConfigured)

	require.NoError(t, b.Configure(22, jtagbridge.Input))
	require.ErrorIs(t, b.Write(22, jtagbridge.High), ErrLineNotConfigured, "inputs cannot be driven")
}

func TestVirtualBoard_Faults(t *testing.T) {
	t.Parallel()
	errFault := errors.New("fault")
	b := NewVirtualBoard()
	b.FailWrite(4, errFault)
	b.FailRead(22, errFault)
	b.FailConfigure(17, errFault)

	require.ErrorIs(t, b.Write(4, jtagbridge.High), errFault)
	_, err := b.Read(22)
	require.ErrorIs(t, err, errFault)
	require.ErrorIs(t, b.Configure(17, jtagbridge.Output), errFault)
	assert.Empty(t, b.Trace)

	b.FailWrite(4, nil)
	require.NoError(t, b.Write(4, jtagbridge.High))
}

// clock pulses TCK once with the given TMS and TDI and returns TDO as it
// was before the rising edge.
func clock(t *testing.T, b *VirtualBoard, pins jtagbridge.PinSet, tms, tdi jtagbridge.Level) jtagbridge.Level {
	t.Helper()
	require.NoError(t, b.Write(pins.TMS, tms))
	require.NoError(t, b.Write(pins.TDI, tdi))
	tdo := b.Level(pins.TDO)
	require.NoError(t, b.Write(pins.TCK, jtagbridge.High))
	require.NoError(t, b.Write(pins.TCK, jtagbridge.Low))
	return tdo
}

func TestVirtualTarget_StateWalk(t *testing.T) {
	t.Parallel()
	pins := jtagbridge.DefaultPinSet()
	b := NewVirtualBoard()
	target := AttachTarget(b, pins, 0x0362F093)
	assert.Equal(t, TestLogicReset, target.State())

	walk := []struct {
		want TAPState
		tms  jtagbridge.Level
	}{
		{RunTestIdle, jtagbridge.Low},
		{SelectDRScan, jtagbridge.High},
		{SelectIRScan, jtagbridge.High},
		{CaptureIR, jtagbridge.Low},
		{ShiftIR, jtagbridge.Low},
		{Exit1IR, jtagbridge.High},
		{PauseIR, jtagbridge.Low},
		{Exit2IR, jtagbridge.High},
		{UpdateIR, jtagbridge.High},
		{RunTestIdle, jtagbridge.Low},
	}
	for _, step := range walk {
		clock(t, b, pins, step.tms, jtagbridge.Low)
		assert.Equal(t, step.want, target.State(), "after TMS=%s", step.tms)
	}
	assert.Equal(t, len(walk), target.Edges)

	for range 5 {
		clock(t, b, pins, jtagbridge.High, jtagbridge.Low)
	}
	assert.Equal(t, TestLogicReset, target.State())
	assert.Equal(t, "Test-Logic-Reset", target.State().String())
}

func TestVirtualTarget_BypassAfterLoadingInstruction(t *testing.T) {
	t.Parallel()
	pins := jtagbridge.DefaultPinSet()
	b := NewVirtualBoard()
	target := AttachTarget(b, pins, 0x0362F093)

	// Run-Test/Idle, Select-DR, Select-IR, Capture-IR, Shift-IR
	for _, tms := range []jtagbridge.Level{jtagbridge.Low, jtagbridge.High, jtagbridge.High, jtagbridge.Low, jtagbridge.Low} {
		clock(t, b, pins, tms, jtagbridge.Low)
	}
	// Shift all ones (BYPASS), leaving on the last bit
	for i := range target.IRLength {
		clock(t, b, pins, jtagbridge.Level(i == target.IRLength-1), jtagbridge.High)
	}
	// Update-IR, Run-Test/Idle
	clock(t, b, pins, jtagbridge.High, jtagbridge.Low)
	clock(t, b, pins, jtagbridge.Low, jtagbridge.Low)
	assert.Equal(t, uint32(0x3F), target.IR())

	// Select-DR, Capture-DR, Shift-DR; BYPASS is a single zero bit
	for _, tms := range []jtagbridge.Level{jtagbridge.High, jtagbridge.Low, jtagbridge.Low} {
		clock(t, b, pins, tms, jtagbridge.Low)
	}
	first := clock(t, b, pins, jtagbridge.Low, jtagbridge.High)
	second := clock(t, b, pins, jtagbridge.Low, jtagbridge.Low)
	assert.Equal(t, jtagbridge.Low, first)
	assert.Equal(t, jtagbridge.High, second, "TDI shifts through the one-bit bypass register")
}
