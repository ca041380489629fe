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

import (
	"fmt"
	"time"
)

// Response is the single byte returned for every executed command.
type Response byte

const (
	ResponseLow  Response = '0'
	ResponseHigh Response = '1'
)

// ResponseFor maps a sampled TDO level to its wire byte.
func ResponseFor(tdo Level) Response {
	if tdo {
		return ResponseHigh
	}
	return ResponseLow
}

// Level returns the TDO level the response reports.
func (r Response) Level() Level {
	return r == ResponseHigh
}

// SequencerOption configures a Sequencer
type SequencerOption func(*Sequencer)

// WithPause sets the hook called after every flush. The default is a no-op:
// GPIO write and read-back latency on a Raspberry Pi already exceeds the
// target's setup, hold and TCK pulse-width minimums.
func WithPause(pause func()) SequencerOption {
	return func(s *Sequencer) {
		if pause != nil {
			s.pause = pause
		}
	}
}

// PauseFor returns a pause hook that spins for at least d. Sleeping would
// hand the thread back to the scheduler, which is far too coarse at
// nanosecond scales. A non-positive d yields the no-op pause.
func PauseFor(d time.Duration) func() {
	if d <= 0 {
		return noPause
	}
	return func() {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
		}
	}
}

func noPause() {}

// Sequencer turns decoded commands into pin activity.
type Sequencer struct {
	driver *PinDriver
	pause  func()
}

// NewSequencer creates a sequencer on top of driver.
func NewSequencer(driver *PinDriver, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		driver: driver,
		pause:  noPause,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the pin protocol for cmd and returns the TDO response.
// Unknown commands touch no pins and return ErrUnknownCommand. A pin fault
// aborts the sequence; the partial result is never reported.
func (s *Sequencer) Execute(cmd Command) (Response, error) {
	switch cmd.Family {
	case FamilyImmediate:
		return s.immediate(cmd)
	case FamilyClocked:
		return s.clocked(cmd)
	default:
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, cmd.Raw)
	}
}

// immediate sets TMS/TDI, then TCK exactly as requested, and samples TDO
// after the clock write has landed.
func (s *Sequencer) immediate(cmd Command) (Response, error) {
	if err := s.setData(cmd); err != nil {
		return 0, err
	}
	if err := s.settle(); err != nil {
		return 0, err
	}
	if err := s.driver.Write(RoleTCK, cmd.TCK); err != nil {
		return 0, err
	}
	if err := s.settle(); err != nil {
		return 0, err
	}
	return s.sample()
}

// clocked sets TMS/TDI, samples TDO, then pulses TCK high and low. TDO is
// taken before the pulse: in the shift states it already holds the bit
// produced by the previous falling edge. The target captures TDI/TMS on the
// rising edge and updates TDO on the falling edge.
func (s *Sequencer) clocked(cmd Command) (Response, error) {
	if err := s.setData(cmd); err != nil {
		return 0, err
	}
	resp, err := s.sample()
	if err != nil {
		return 0, err
	}

	// 3ns setup / 2ns hold on TDI and TMS to the rising edge
	if err := s.settle(); err != nil {
		return 0, err
	}
	if err := s.driver.Write(RoleTCK, High); err != nil {
		return 0, err
	}
	// 7.5ns minimum TCK high
	if err := s.settle(); err != nil {
		return 0, err
	}
	if err := s.driver.Write(RoleTCK, Low); err != nil {
		return 0, err
	}
	// 7ns falling edge to TDO valid
	if err := s.settle(); err != nil {
		return 0, err
	}
	return resp, nil
}

func (s *Sequencer) setData(cmd Command) error {
	if err := s.driver.Write(RoleTMS, cmd.TMS); err != nil {
		return err
	}
	return s.driver.Write(RoleTDI, cmd.TDI)
}

func (s *Sequencer) settle() error {
	if err := s.driver.Flush(); err != nil {
		return err
	}
	s.pause()
	return nil
}

func (s *Sequencer) sample() (Response, error) {
	tdo, err := s.driver.Read(RoleTDO)
	if err != nil {
		return 0, err
	}
	return ResponseFor(tdo), nil
}
