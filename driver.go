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

// PinDriver drives the lines named by a PinSet through a GPIO backend.
// TDO is the only input; every other wired role is an output.
type PinDriver struct {
	gpio GPIO
	pins PinSet
}

// NewPinDriver validates pins and binds them to gpio.
func NewPinDriver(gpio GPIO, pins PinSet) (*PinDriver, error) {
	if gpio == nil {
		return nil, &InitError{Stage: "pin driver", Err: fmt.Errorf("%w: nil GPIO backend", ErrInvalidPinSet)}
	}
	if err := pins.Validate(); err != nil {
		return nil, &InitError{Stage: "pin driver", Err: err}
	}
	return &PinDriver{gpio: gpio, pins: pins}, nil
}

// Pins returns the pin set the driver was built with.
func (d *PinDriver) Pins() PinSet {
	return d.pins
}

// Configure sets line directions and idle levels: TCK, TDI and TMS low, SEL
// high to select the target peripheral. RESET is left untouched.
func (d *PinDriver) Configure() error {
	outputs := []Role{RoleTCK, RoleTDI, RoleTMS}
	if _, ok := d.pins.Line(RoleSel); ok {
		outputs = append(outputs, RoleSel)
	}

	for _, role := range outputs {
		if err := d.configure(role, Output); err != nil {
			return err
		}
	}
	if err := d.configure(RoleTDO, Input); err != nil {
		return err
	}

	idle := []struct {
		role  Role
		level Level
	}{
		{RoleTCK, Low},
		{RoleTDI, Low},
		{RoleTMS, Low},
		{RoleSel, High},
	}
	for _, s := range idle {
		if _, ok := d.pins.Line(s.role); !ok {
			continue
		}
		if err := d.Write(s.role, s.level); err != nil {
			return &InitError{Stage: "idle " + s.role.String(), Err: err}
		}
	}

	Debugf("pins configured: %s", d.pins)
	return nil
}

func (d *PinDriver) configure(role Role, dir Direction) error {
	line, _ := d.pins.Line(role)
	if err := d.gpio.Configure(line, dir); err != nil {
		return &InitError{
			Stage: fmt.Sprintf("configure %s as %s", role, dir),
			Err:   &HardwareFault{Op: "configure", Role: role, Line: line, Err: err},
		}
	}
	return nil
}

// Write drives an output role.
func (d *PinDriver) Write(role Role, level Level) error {
	line, ok := d.pins.Line(role)
	if !ok || role == RoleTDO {
		return &HardwareFault{Op: "write", Role: role, Line: line, Err: ErrInvalidRole}
	}
	if err := d.gpio.Write(line, level); err != nil {
		return &HardwareFault{Op: "write", Role: role, Line: line, Err: err}
	}
	return nil
}

// Read samples a role.
func (d *PinDriver) Read(role Role) (Level, error) {
	line, ok := d.pins.Line(role)
	if !ok {
		return Low, &HardwareFault{Op: "read", Role: role, Line: line, Err: ErrInvalidRole}
	}
	level, err := d.gpio.Read(line)
	if err != nil {
		return Low, &HardwareFault{Op: "read", Role: role, Line: line, Err: err}
	}
	return level, nil
}

// Flush reads TCK back and discards the value. On memory-mapped GPIO this
// forces earlier writes to land before the next edge.
func (d *PinDriver) Flush() error {
	_, err := d.Read(RoleTCK)
	return err
}
