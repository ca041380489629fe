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

// Package testing provides in-memory doubles for the GPIO and transport
// capabilities used by the bridge: a recording GPIO board, a scripted byte
// transport, a pipe transport and a simulated JTAG target.
package testing

import (
	"errors"
	"fmt"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
)

// ErrLineNotConfigured is returned when a line is used before Configure.
var ErrLineNotConfigured = errors.New("line not configured")

// OpKind identifies a recorded GPIO operation
type OpKind int

const (
	OpConfigure OpKind = iota
	OpWrite
	OpRead
)

func (k OpKind) String() string {
	switch k {
	case OpConfigure:
		return "configure"
	case OpWrite:
		return "write"
	default:
		return "read"
	}
}

// Op is one entry in the board's trace.
type Op struct {
	Kind  OpKind
	Line  jtagbridge.Line
	Level jtagbridge.Level     // written or read level
	Dir   jtagbridge.Direction // only for OpConfigure
}

func (o Op) String() string {
	if o.Kind == OpConfigure {
		return fmt.Sprintf("configure %d %s", o.Line, o.Dir)
	}
	return fmt.Sprintf("%s %d %s", o.Kind, o.Line, o.Level)
}

type lineState struct {
	dir        jtagbridge.Direction
	level      jtagbridge.Level
	configured bool
}

// VirtualBoard is a GPIO backend that records every access. Output lines
// read back the level last written; input lines report the level set with
// SetInput. OnWrite, when set, runs after every successful write so a
// simulated target can react to clock edges.
type VirtualBoard struct {
	lines        map[jtagbridge.Line]*lineState
	writeErrs    map[jtagbridge.Line]error
	readErrs     map[jtagbridge.Line]error
	configureErr map[jtagbridge.Line]error
	OnWrite      func(line jtagbridge.Line, level jtagbridge.Level)
	Trace        []Op
	Strict       bool // reject access to unconfigured lines
}

// NewVirtualBoard creates an empty board.
func NewVirtualBoard() *VirtualBoard {
	return &VirtualBoard{
		lines:        make(map[jtagbridge.Line]*lineState),
		writeErrs:    make(map[jtagbridge.Line]error),
		readErrs:     make(map[jtagbridge.Line]error),
		configureErr: make(map[jtagbridge.Line]error),
	}
}

func (b *VirtualBoard) line(l jtagbridge.Line) *lineState {
	s, ok := b.lines[l]
	if !ok {
		s = &lineState{}
		b.lines[l] = s
	}
	return s
}

// Configure implements jtagbridge.GPIO
func (b *VirtualBoard) Configure(l jtagbridge.Line, dir jtagbridge.Direction) error {
	if err := b.configureErr[l]; err != nil {
		return err
	}
	s := b.line(l)
	s.dir = dir
	s.configured = true
	b.Trace = append(b.Trace, Op{Kind: OpConfigure, Line: l, Dir: dir})
	return nil
}

// Write implements jtagbridge.GPIO
func (b *VirtualBoard) Write(l jtagbridge.Line, level jtagbridge.Level) error {
	if err := b.writeErrs[l]; err != nil {
		return err
	}
	s := b.line(l)
	if b.Strict && (!s.configured || s.dir != jtagbridge.Output) {
		return fmt.Errorf("write line %d: %w", l, ErrLineNotConfigured)
	}
	s.level = level
	b.Trace = append(b.Trace, Op{Kind: OpWrite, Line: l, Level: level})
	if b.OnWrite != nil {
		b.OnWrite(l, level)
	}
	return nil
}

// Read implements jtagbridge.GPIO
func (b *VirtualBoard) Read(l jtagbridge.Line) (jtagbridge.Level, error) {
	if err := b.readErrs[l]; err != nil {
		return jtagbridge.Low, err
	}
	s := b.line(l)
	if b.Strict && !s.configured {
		return jtagbridge.Low, fmt.Errorf("read line %d: %w", l, ErrLineNotConfigured)
	}
	b.Trace = append(b.Trace, Op{Kind: OpRead, Line: l, Level: s.level})
	return s.level, nil
}

// SetInput sets the level an input line reports.
func (b *VirtualBoard) SetInput(l jtagbridge.Line, level jtagbridge.Level) {
	b.line(l).level = level
}

// Level returns the current level of a line.
func (b *VirtualBoard) Level(l jtagbridge.Line) jtagbridge.Level {
	return b.line(l).level
}

// Direction returns the configured direction of a line and whether it was
// configured at all.
func (b *VirtualBoard) Direction(l jtagbridge.Line) (jtagbridge.Direction, bool) {
	s, ok := b.lines[l]
	if !ok {
		return jtagbridge.Input, false
	}
	return s.dir, s.configured
}

// FailWrite makes writes to l return err. A nil err clears the fault.
func (b *VirtualBoard) FailWrite(l jtagbridge.Line, err error) {
	b.writeErrs[l] = err
}

// FailRead makes reads of l return err. A nil err clears the fault.
func (b *VirtualBoard) FailRead(l jtagbridge.Line, err error) {
	b.readErrs[l] = err
}

// FailConfigure makes Configure on l return err.
func (b *VirtualBoard) FailConfigure(l jtagbridge.Line, err error) {
	b.configureErr[l] = err
}

// ResetTrace discards the recorded operations.
func (b *VirtualBoard) ResetTrace() {
	b.Trace = nil
}

// Writes returns the recorded writes in order.
func (b *VirtualBoard) Writes() []Op {
	return b.filter(OpWrite)
}

// Reads returns the recorded reads of line l in order.
func (b *VirtualBoard) Reads(l jtagbridge.Line) []Op {
	var out []Op
	for _, op := range b.filter(OpRead) {
		if op.Line == l {
			out = append(out, op)
		}
	}
	return out
}

func (b *VirtualBoard) filter(kind OpKind) []Op {
	var out []Op
	for _, op := range b.Trace {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}
