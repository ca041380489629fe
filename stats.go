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

	"github.com/ZaparooProject/go-jtagbridge/internal/syncutil"
)

// Stats is a snapshot of bridge activity counters.
type Stats struct {
	Immediate      uint64 // immediate commands answered
	Clocked        uint64 // clocked commands answered
	Skipped        uint64 // zero bytes dropped
	Unknown        uint64 // unrecognised command bytes
	HardwareFaults uint64
	ReadAnomalies  uint64
	WriteFailures  uint64
	SyncFailures   uint64
	ResponsesHigh  uint64
	ResponsesLow   uint64
}

// Responses returns the total number of response bytes written.
func (s Stats) Responses() uint64 {
	return s.ResponsesHigh + s.ResponsesLow
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"immediate=%d clocked=%d skipped=%d unknown=%d faults=%d read_anomalies=%d write_failures=%d responses=%d",
		s.Immediate, s.Clocked, s.Skipped, s.Unknown, s.HardwareFaults,
		s.ReadAnomalies, s.WriteFailures, s.Responses())
}

// statsRecorder is written by the bridge loop and read by status reporters
// running in other goroutines.
type statsRecorder struct {
	mu    syncutil.Mutex
	stats Stats
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
