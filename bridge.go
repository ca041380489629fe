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
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultReadErrorBackoff is how long the loop waits after a failed read
// before trying again, so a persistently broken port does not spin a core.
const DefaultReadErrorBackoff = 10 * time.Millisecond

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithTrace writes a compact per-command trace to w: '*' for immediate
// commands, M/m and D/d for the TMS and TDI bits of clocked commands, the
// response character, and the hex value of unknown bytes.
func WithTrace(w io.Writer) BridgeOption {
	return func(b *Bridge) {
		b.trace = w
	}
}

// WithReadErrorBackoff overrides DefaultReadErrorBackoff.
func WithReadErrorBackoff(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d >= 0 {
			b.readErrorBackoff = d
		}
	}
}

// Bridge reads command bytes from a Transport, executes them on the
// Sequencer and writes back one response byte per executed command.
// It is strictly one command in, one response out.
type Bridge struct {
	transport        Transport
	seq              *Sequencer
	trace            io.Writer
	stats            statsRecorder
	readErrorBackoff time.Duration
}

// NewBridge wires a transport to a sequencer.
func NewBridge(transport Transport, seq *Sequencer, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		transport:        transport,
		seq:              seq,
		readErrorBackoff: DefaultReadErrorBackoff,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats returns a snapshot of the activity counters. Safe to call while Run
// is active.
func (b *Bridge) Stats() Stats {
	return b.stats.snapshot()
}

// Run serves commands until ctx is cancelled or the transport is closed.
// It returns ctx.Err() on cancellation; a transport that closes while ctx
// is still live is reported as an error.
func (b *Bridge) Run(ctx context.Context) error {
	Debugf("bridge loop started on %s transport", b.transport.Type())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Step(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// Step performs one AwaitByte -> Decode -> Execute -> Respond cycle. Only a
// closed transport or a cancelled context is returned as an error; every
// other anomaly is logged, counted and absorbed.
func (b *Bridge) Step(ctx context.Context) error {
	c, ok, err := b.transport.ReceiveByte()
	if err != nil {
		if IsTransportClosed(err) {
			return err
		}
		b.stats.update(func(s *Stats) { s.ReadAnomalies++ })
		Warnf("read failed: %v", err)
		return b.backoff(ctx)
	}
	if !ok {
		// Read timeout with nothing received
		return nil
	}

	cmd, valid := Decode(c)
	if !valid {
		b.stats.update(func(s *Stats) { s.Skipped++ })
		return nil
	}

	resp, err := b.seq.Execute(cmd)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		b.stats.update(func(s *Stats) { s.Unknown++ })
		b.tracef("%02x ", c)
		Debugf("ignoring %s", cmd)
		return nil
	case err != nil:
		b.stats.update(func(s *Stats) { s.HardwareFaults++ })
		Warnf("%s: %v", cmd, err)
		return nil
	}

	b.traceCommand(cmd, resp)
	b.respond(cmd, resp)
	return nil
}

func (b *Bridge) respond(cmd Command, resp Response) {
	if err := b.transport.SendByte(byte(resp)); err != nil {
		b.stats.update(func(s *Stats) { s.WriteFailures++ })
		Warnf("response write failed for %s: %v", cmd, err)
		return
	}
	b.stats.update(func(s *Stats) {
		if cmd.Family == FamilyImmediate {
			s.Immediate++
		} else {
			s.Clocked++
		}
		if resp == ResponseHigh {
			s.ResponsesHigh++
		} else {
			s.ResponsesLow++
		}
	})

	if err := b.transport.Sync(); err != nil {
		b.stats.update(func(s *Stats) { s.SyncFailures++ })
		Debugf("sync after response failed: %v", err)
	}
}

func (b *Bridge) backoff(ctx context.Context) error {
	if b.readErrorBackoff <= 0 {
		return nil
	}
	timer := time.NewTimer(b.readErrorBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Bridge) traceCommand(cmd Command, resp Response) {
	if b.trace == nil {
		return
	}
	switch cmd.Family {
	case FamilyImmediate:
		b.tracef("*%c", resp)
	case FamilyClocked:
		tms, tdi := 'm', 'd'
		if cmd.TMS {
			tms = 'M'
		}
		if cmd.TDI {
			tdi = 'D'
		}
		b.tracef("%c%c%c", tms, tdi, resp)
	}
}

func (b *Bridge) tracef(format string, args ...any) {
	if b.trace == nil {
		return
	}
	_, _ = fmt.Fprintf(b.trace, format, args...)
}
