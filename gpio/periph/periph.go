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

// Package periph implements the bridge's GPIO capability on top of
// periph.io, which drives the BCM283x GPIO block of a Raspberry Pi
// through memory-mapped registers.
package periph

import (
	"errors"
	"fmt"
	"strconv"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrUnknownLine is returned when no GPIO pin is registered for a line.
var ErrUnknownLine = errors.New("unknown GPIO line")

// Lookup resolves a GPIO name or number to a pin. gpioreg.ByName is the
// production lookup.
type Lookup func(name string) gpio.PinIO

// GPIO implements jtagbridge.GPIO with periph.io pins. Pins are resolved
// once and cached; the bridge loop is the only user, so no locking is done.
type GPIO struct {
	lookup Lookup
	pins   map[jtagbridge.Line]gpio.PinIO
}

// Open initialises the periph.io host drivers and returns a GPIO backed by
// the global pin registry.
func Open() (*GPIO, error) {
	state, err := host.Init()
	if err != nil {
		return nil, &jtagbridge.InitError{Stage: "initialize periph host", Err: err}
	}
	for _, d := range state.Loaded {
		jtagbridge.Debugf("periph driver loaded: %s", d)
	}
	for _, f := range state.Failed {
		jtagbridge.Debugf("periph driver failed: %s", f)
	}
	return New(gpioreg.ByName), nil
}

// New creates a GPIO that resolves lines through lookup.
func New(lookup Lookup) *GPIO {
	return &GPIO{
		lookup: lookup,
		pins:   make(map[jtagbridge.Line]gpio.PinIO),
	}
}

func (g *GPIO) pin(line jtagbridge.Line) (gpio.PinIO, error) {
	if p, ok := g.pins[line]; ok {
		return p, nil
	}
	p := g.lookup(strconv.Itoa(int(line)))
	if p == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLine, line)
	}
	g.pins[line] = p
	return p, nil
}

// Configure implements jtagbridge.GPIO. Outputs keep their latched level so
// switching direction does not glitch the line.
func (g *GPIO) Configure(line jtagbridge.Line, dir jtagbridge.Direction) error {
	p, err := g.pin(line)
	if err != nil {
		return err
	}
	switch dir {
	case jtagbridge.Output:
		if err := p.Out(p.Read()); err != nil {
			return fmt.Errorf("%s as output: %w", p, err)
		}
	default:
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("%s as input: %w", p, err)
		}
	}
	return nil
}

// Write implements jtagbridge.GPIO
func (g *GPIO) Write(line jtagbridge.Line, level jtagbridge.Level) error {
	p, err := g.pin(line)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("%s out %s: %w", p, level, err)
	}
	return nil
}

// Read implements jtagbridge.GPIO
func (g *GPIO) Read(line jtagbridge.Line) (jtagbridge.Level, error) {
	p, err := g.pin(line)
	if err != nil {
		return jtagbridge.Low, err
	}
	return jtagbridge.Level(p.Read()), nil
}

// Close halts every pin the bridge touched.
func (g *GPIO) Close() error {
	var errs []error
	for line, p := range g.pins {
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt line %d: %w", line, err))
		}
	}
	g.pins = make(map[jtagbridge.Line]gpio.PinIO)
	return errors.Join(errs...)
}
