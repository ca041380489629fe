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

// Line identifies a physical GPIO line on the host.
type Line int

// NoLine marks an optional line (SEL, RESET) that is not wired.
const NoLine Line = -1

// Role names a logical JTAG signal.
type Role int

const (
	RoleTCK Role = iota
	RoleTDI
	RoleTDO
	RoleTMS
	RoleReset
	RoleSel
)

func (r Role) String() string {
	switch r {
	case RoleTCK:
		return "TCK"
	case RoleTDI:
		return "TDI"
	case RoleTDO:
		return "TDO"
	case RoleTMS:
		return "TMS"
	case RoleReset:
		return "RESET"
	case RoleSel:
		return "SEL"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// PinSet maps the six JTAG roles to physical lines. It is a plain value and
// is never modified once handed to a PinDriver.
type PinSet struct {
	TCK   Line
	TDI   Line
	TDO   Line
	TMS   Line
	Reset Line
	Sel   Line
}

// DefaultPinSet returns the wiring used on the reference Raspberry Pi board.
func DefaultPinSet() PinSet {
	return PinSet{
		TCK:   4,
		TDI:   27,
		TDO:   22,
		TMS:   17,
		Reset: 24,
		Sel:   18,
	}
}

// Line returns the line assigned to role.
func (p PinSet) Line(role Role) (Line, bool) {
	var l Line
	switch role {
	case RoleTCK:
		l = p.TCK
	case RoleTDI:
		l = p.TDI
	case RoleTDO:
		l = p.TDO
	case RoleTMS:
		l = p.TMS
	case RoleReset:
		l = p.Reset
	case RoleSel:
		l = p.Sel
	default:
		return NoLine, false
	}
	return l, l != NoLine
}

// Validate checks that the four JTAG signals are wired and that no two roles
// share a line.
func (p PinSet) Validate() error {
	seen := make(map[Line]Role, 6)
	for _, role := range []Role{RoleTCK, RoleTDI, RoleTDO, RoleTMS, RoleReset, RoleSel} {
		l, ok := p.Line(role)
		if !ok {
			if role == RoleReset || role == RoleSel {
				continue
			}
			return fmt.Errorf("%w: %s is not assigned", ErrInvalidPinSet, role)
		}
		if l < 0 {
			return fmt.Errorf("%w: %s has negative line %d", ErrInvalidPinSet, role, l)
		}
		if other, dup := seen[l]; dup {
			return fmt.Errorf("%w: %s and %s share line %d", ErrInvalidPinSet, other, role, l)
		}
		seen[l] = role
	}
	return nil
}

func (p PinSet) String() string {
	return fmt.Sprintf("TCK=%d TDI=%d TDO=%d TMS=%d RESET=%d SEL=%d",
		p.TCK, p.TDI, p.TDO, p.TMS, p.Reset, p.Sel)
}
