// go-jtagbridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-jtagbridge.
//
// go-jtagbridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-jtagbridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-jtagbridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.


package testing

import (
	"math/rand/v2"
	"time"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
)

// JitterConfig configures the behavior of JitteryTransport.
type JitterConfig struct {
	// ReadError is returned for injected read failures.
	ReadError error
	// MaxLatency is the upper bound of the random delay before each read.
	MaxLatency time.Duration
	// TimeoutPercent is the chance, 0-100, that a read reports nothing
	// received before the real byte is delivered.
	TimeoutPercent int
	// ErrorPercent is the chance, 0-100, that a read fails with ReadError.
	ErrorPercent int
	Seed         uint64
}

// DefaultJitterConfig returns a sensible default configuration for testing.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatency:     time.Millisecond,
		TimeoutPercent: 30,
	}
}

// JitteryTransport wraps a transport to simulate a noisy serial line: reads
// are delayed, spuriously time out or fail outright before the real byte
// arrives. Injected faults never consume or reorder backend bytes, so the
// command stream the bridge eventually sees is unchanged.
type JitteryTransport struct {
	jtagbridge.Transport
	rng      *rand.Rand
	config   JitterConfig
	Timeouts int
	Errors   int
}

// NewJitteryTransport wraps backend with jitter simulation.
func NewJitteryTransport(backend jtagbridge.Transport, config JitterConfig) *JitteryTransport {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}
	if config.ReadError == nil {
		config.ReadError = jtagbridge.ErrTransportRead
	}

	return &JitteryTransport{
		Transport: backend,
		config:    config,
		rng:       rng,
	}
}

// ReceiveByte implements jtagbridge.Transport
func (j *JitteryTransport) ReceiveByte() (byte, bool, error) {
	if j.config.MaxLatency > 0 {
		if delay := time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)); delay > 0 {
			time.Sleep(delay)
		}
	}

	if j.roll(j.config.ErrorPercent) {
		j.Errors++
		return 0, false, j.config.ReadError
	}
	if j.roll(j.config.TimeoutPercent) {
		j.Timeouts++
		return 0, false, nil
	}
	return j.Transport.ReceiveByte() //nolint:wrapcheck // Pass-through wrapper
}

func (j *JitteryTransport) roll(percent int) bool {
	return percent > 0 && j.rng.IntN(100) < percent
}
