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

// Transport is the byte link to the remote JTAG client. It is implemented by
// transport/uart for real serial ports.
type Transport interface {
	// ReceiveByte blocks for one byte. ok is false when the read returned
	// nothing, e.g. the port's read timeout expired; that is not an error.
	ReceiveByte() (b byte, ok bool, err error)

	// SendByte writes exactly one byte
	SendByte(b byte) error

	// Sync asks the transport to push out pending output. Advisory only.
	Sync() error

	// Close closes the transport connection. It may be called from another
	// goroutine to unblock a pending ReceiveByte.
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)
