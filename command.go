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

package jtagbridge

import "fmt"

// Command byte layout. The high nibble selects the family, the low nibble
// carries the pin bits.
const (
	familyMask     = 0xF0
	immediateClass = 0x40 // '@'
	clockedClass   = 0x60 // '`'

	maskTDI = 0x1
	maskTMS = 0x2
	maskTCK = 0x4

	// SkipByte is discarded without any pin action or response.
	SkipByte = 0x00
)

// Family classifies a command byte.
type Family int

const (
	FamilyUnknown Family = iota
	// FamilyImmediate sets TMS, TDI and TCK directly; the client drives each clock edge
	FamilyImmediate
	// FamilyClocked sets TMS and TDI then pulses TCK once
	FamilyClocked
)

func (f Family) String() string {
	switch f {
	case FamilyImmediate:
		return "immediate"
	case FamilyClocked:
		return "clocked"
	default:
		return "unknown"
	}
}

// Command is one decoded request byte.
type Command struct {
	Family Family
	Raw    byte
	TMS    Level
	TDI    Level
	TCK    Level // only meaningful for FamilyImmediate
}

// Decode classifies c. It returns false for SkipByte, which must be dropped
// without a response.
func Decode(c byte) (Command, bool) {
	if c == SkipByte {
		return Command{Raw: c}, false
	}

	cmd := Command{Raw: c}
	bits := c & 0x0F
	switch c & familyMask {
	case immediateClass:
		cmd.Family = FamilyImmediate
		cmd.TDI = LevelOf(bits & maskTDI)
		cmd.TMS = LevelOf(bits & maskTMS)
		cmd.TCK = LevelOf(bits & maskTCK)
	case clockedClass:
		cmd.Family = FamilyClocked
		cmd.TDI = LevelOf(bits & maskTDI)
		cmd.TMS = LevelOf(bits & maskTMS)
	default:
		cmd.Family = FamilyUnknown
	}
	return cmd, true
}

// Encode builds the wire byte for an immediate or clocked command.
// Clients and tests use it; the bridge itself only decodes.
func Encode(family Family, tms, tdi, tck Level) (byte, error) {
	var bits byte
	if tdi {
		bits |= maskTDI
	}
	if tms {
		bits |= maskTMS
	}
	switch family {
	case FamilyImmediate:
		if tck {
			bits |= maskTCK
		}
		return immediateClass | bits, nil
	case FamilyClocked:
		return clockedClass | bits, nil
	default:
		return 0, fmt.Errorf("%w: cannot encode %s family", ErrUnknownCommand, family)
	}
}

func bit(l Level) int {
	if l {
		return 1
	}
	return 0
}

func (c Command) String() string {
	switch c.Family {
	case FamilyImmediate:
		return fmt.Sprintf("immediate(tms=%d tdi=%d tck=%d)", bit(c.TMS), bit(c.TDI), bit(c.TCK))
	case FamilyClocked:
		return fmt.Sprintf("clocked(tms=%d tdi=%d)", bit(c.TMS), bit(c.TDI))
	default:
		return fmt.Sprintf("unknown(0x%02X)", c.Raw)
	}
}
