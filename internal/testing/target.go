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
	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
)

// TAPState is a state of the IEEE 1149.1 TAP controller.
type TAPState int

const (
	TestLogicReset TAPState = iota
	RunTestIdle
	SelectDRScan
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIRScan
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR
)

var tapStateNames = [...]string{
	"Test-Logic-Reset", "Run-Test/Idle",
	"Select-DR-Scan", "Capture-DR", "Shift-DR", "Exit1-DR", "Pause-DR", "Exit2-DR", "Update-DR",
	"Select-IR-Scan", "Capture-IR", "Shift-IR", "Exit1-IR", "Pause-IR", "Exit2-IR", "Update-IR",
}

func (s TAPState) String() string {
	if int(s) < len(tapStateNames) {
		return tapStateNames[s]
	}
	return "invalid"
}

// next holds the successor for TMS=0 and TMS=1.
var next = map[TAPState][2]TAPState{
	TestLogicReset: {RunTestIdle, TestLogicReset},
	RunTestIdle:    {RunTestIdle, SelectDRScan},
	SelectDRScan:   {CaptureDR, SelectIRScan},
	CaptureDR:      {ShiftDR, Exit1DR},
	ShiftDR:        {ShiftDR, Exit1DR},
	Exit1DR:        {PauseDR, UpdateDR},
	PauseDR:        {PauseDR, Exit2DR},
	Exit2DR:        {ShiftDR, UpdateDR},
	UpdateDR:       {RunTestIdle, SelectDRScan},
	SelectIRScan:   {CaptureIR, TestLogicReset},
	CaptureIR:      {ShiftIR, Exit1IR},
	ShiftIR:        {ShiftIR, Exit1IR},
	Exit1IR:        {PauseIR, UpdateIR},
	PauseIR:        {PauseIR, Exit2IR},
	Exit2IR:        {ShiftIR, UpdateIR},
	UpdateIR:       {RunTestIdle, SelectDRScan},
}

// VirtualTarget is a single-device JTAG chain living on a VirtualBoard. It
// captures TMS and TDI on the rising edge of TCK and drives TDO on the
// falling edge, like a real FPGA. Only IDCODE and BYPASS are implemented.
type VirtualTarget struct {
	board    *VirtualBoard
	pins     jtagbridge.PinSet
	IDCode   uint32
	IRLength int
	IDCodeIR uint32

	state   TAPState
	ir      uint32
	irShift uint32
	dr      uint64
	drLen   int
	tck     jtagbridge.Level
	Edges   int // rising edges seen
}

// AttachTarget hooks a target with the given IDCODE onto board. The
// instruction register is 6 bits wide with IDCODE at 0x09, as on Xilinx
// 7-series parts.
func AttachTarget(board *VirtualBoard, pins jtagbridge.PinSet, idcode uint32) *VirtualTarget {
	t := &VirtualTarget{
		board:    board,
		pins:     pins,
		IDCode:   idcode,
		IRLength: 6,
		IDCodeIR: 0x09,
	}
	t.reset()
	board.OnWrite = t.onWrite
	return t
}

// State returns the current TAP state.
func (t *VirtualTarget) State() TAPState {
	return t.state
}

// IR returns the active instruction.
func (t *VirtualTarget) IR() uint32 {
	return t.ir
}

func (t *VirtualTarget) reset() {
	t.state = TestLogicReset
	t.ir = t.IDCodeIR
}

func (t *VirtualTarget) onWrite(line jtagbridge.Line, level jtagbridge.Level) {
	if line != t.pins.TCK || level == t.tck {
		return
	}
	t.tck = level
	if level == jtagbridge.High {
		t.rising()
	} else {
		t.falling()
	}
}

func (t *VirtualTarget) rising() {
	t.Edges++
	tms := t.board.Level(t.pins.TMS)
	tdi := t.board.Level(t.pins.TDI)

	switch t.state {
	case CaptureDR:
		if t.ir == t.IDCodeIR {
			t.dr, t.drLen = uint64(t.IDCode), 32
		} else {
			t.dr, t.drLen = 0, 1 // BYPASS
		}
	case ShiftDR:
		t.dr >>= 1
		if tdi {
			t.dr |= 1 << (t.drLen - 1)
		}
	case CaptureIR:
		t.irShift = 0x01
	case ShiftIR:
		t.irShift >>= 1
		if tdi {
			t.irShift |= 1 << (t.IRLength - 1)
		}
	}

	idx := 0
	if tms {
		idx = 1
	}
	t.state = next[t.state][idx]
	if t.state == TestLogicReset {
		t.ir = t.IDCodeIR
	}
}

func (t *VirtualTarget) falling() {
	switch t.state {
	case ShiftDR:
		t.board.SetInput(t.pins.TDO, t.dr&1 == 1)
	case ShiftIR:
		t.board.SetInput(t.pins.TDO, t.irShift&1 == 1)
	case UpdateIR:
		t.ir = t.irShift
	}
}
