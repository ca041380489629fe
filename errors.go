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
	"errors"
	"fmt"
)

// Error categories for the bridge. Only ErrInitFailure is fatal; everything
// else is logged and the loop keeps serving.
var (
	// Initialization errors - fatal, the bridge never enters its loop
	ErrInitFailure     = errors.New("initialization failed")
	ErrInvalidPinSet   = errors.New("invalid pin set")
	ErrUnsupportedBaud = errors.New("unsupported baud rate")

	// Transport errors - non-fatal
	ErrTransportRead   = errors.New("transport read failed")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportClosed = errors.New("transport is closed")

	// Pin errors - non-fatal
	ErrHardwareFault = errors.New("hardware fault")
	ErrInvalidRole   = errors.New("invalid pin role")

	// Protocol errors - absorbed silently by the loop
	ErrUnknownCommand = errors.New("unknown command")
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err  error  // Underlying error
	Op   string // Operation that failed
	Port string // Port or device identifier
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HardwareFault reports a failed GPIO access. A single fault never stops the
// bridge; it is logged and the offending command gets no response.
type HardwareFault struct {
	Err  error
	Op   string
	Role Role
	Line Line
}

func (e *HardwareFault) Error() string {
	return fmt.Sprintf("hardware fault: %s %s (line %d): %v", e.Op, e.Role, e.Line, e.Err)
}

func (e *HardwareFault) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrHardwareFault) match any *HardwareFault.
func (*HardwareFault) Is(target error) bool {
	return target == ErrHardwareFault
}

// InitError reports a failure while bringing up GPIO or the serial port.
type InitError struct {
	Err   error
	Stage string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInitFailure, e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInitFailure) match any *InitError.
func (*InitError) Is(target error) bool {
	return target == ErrInitFailure
}

// IsHardwareFault returns true if err was produced by a failed pin access
func IsHardwareFault(err error) bool {
	return errors.Is(err, ErrHardwareFault)
}

// IsTransportClosed returns true if the transport can no longer be used
func IsTransportClosed(err error) bool {
	return errors.Is(err, ErrTransportClosed)
}
