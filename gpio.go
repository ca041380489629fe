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

// Level is the logic level of a GPIO line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// LevelOf returns High when bit is non-zero.
func LevelOf(bit byte) Level {
	return bit != 0
}

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Direction is the configured mode of a GPIO line.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "out"
	}
	return "in"
}

// GPIO is the hardware capability the bridge drives. Implementations live in
// gpio/periph for real hosts and internal/testing for tests.
type GPIO interface {
	// Configure sets the direction of a line
	Configure(line Line, dir Direction) error

	// Write drives an output line
	Write(line Line, level Level) error

	// Read samples the current level of a line
	Read(line Line) (Level, error)
}
