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

package testing

import (
	"errors"
	"io"
	"net"
	"time"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
)

// EventKind tags an entry in a transport's exchange log
type EventKind int

const (
	EventReceived EventKind = iota
	EventSent
)

// Event is one byte crossing the transport.
type Event struct {
	Kind EventKind
	Byte byte
}

type step struct {
	err     error
	b       byte
	timeout bool
}

// ScriptedTransport feeds a fixed sequence of bytes, timeouts and errors to
// the bridge and records what it sends back. Once the script runs out every
// read returns jtagbridge.ErrTransportClosed.
type ScriptedTransport struct {
	SendErr  error
	SyncErr  error
	script   []step
	Sent     []byte
	Exchange []Event
	Syncs    int
	closed   bool
}

// NewScriptedTransport creates a transport that delivers data in order.
func NewScriptedTransport(data ...byte) *ScriptedTransport {
	t := &ScriptedTransport{}
	t.QueueBytes(data...)
	return t
}

// QueueBytes appends bytes to the script.
func (t *ScriptedTransport) QueueBytes(data ...byte) {
	for _, b := range data {
		t.script = append(t.script, step{b: b})
	}
}

// QueueTimeout appends an empty read.
func (t *ScriptedTransport) QueueTimeout() {
	t.script = append(t.script, step{timeout: true})
}

// QueueError appends a failed read.
func (t *ScriptedTransport) QueueError(err error) {
	t.script = append(t.script, step{err: err})
}

// Pending returns the number of scripted reads not yet consumed.
func (t *ScriptedTransport) Pending() int {
	return len(t.script)
}

// ReceiveByte implements jtagbridge.Transport
func (t *ScriptedTransport) ReceiveByte() (byte, bool, error) {
	if t.closed || len(t.script) == 0 {
		return 0, false, jtagbridge.ErrTransportClosed
	}
	s := t.script[0]
	t.script = t.script[1:]
	switch {
	case s.err != nil:
		return 0, false, s.err
	case s.timeout:
		return 0, false, nil
	}
	t.Exchange = append(t.Exchange, Event{Kind: EventReceived, Byte: s.b})
	return s.b, true, nil
}

// SendByte implements jtagbridge.Transport
func (t *ScriptedTransport) SendByte(b byte) error {
	if t.closed {
		return jtagbridge.ErrTransportClosed
	}
	if t.SendErr != nil {
		return t.SendErr
	}
	t.Sent = append(t.Sent, b)
	t.Exchange = append(t.Exchange, Event{Kind: EventSent, Byte: b})
	return nil
}

// Sync implements jtagbridge.Transport
func (t *ScriptedTransport) Sync() error {
	t.Syncs++
	return t.SyncErr
}

// Close implements jtagbridge.Transport
func (t *ScriptedTransport) Close() error {
	t.closed = true
	return nil
}

// Type implements jtagbridge.Transport
func (*ScriptedTransport) Type() jtagbridge.TransportType {
	return jtagbridge.TransportMock
}

// PipeTransport serves the bridge side of an in-memory connection. The
// other end is handed to a client. Reads time out after ReadTimeout so
// the loop observes cancellation promptly.
type PipeTransport struct {
	conn        net.Conn
	ReadTimeout time.Duration
}

// NewPipe returns a bridge-side transport and the client-side connection.
func NewPipe() (*PipeTransport, net.Conn) {
	server, client := net.Pipe()
	return &PipeTransport{conn: server, ReadTimeout: 50 * time.Millisecond}, client
}

// ReceiveByte implements jtagbridge.Transport
func (p *PipeTransport) ReceiveByte() (byte, bool, error) {
	if p.ReadTimeout > 0 {
		_ = p.conn.SetReadDeadline(time.Now().Add(p.ReadTimeout))
	}
	var buf [1]byte
	n, err := p.conn.Read(buf[:])
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, false, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return 0, false, jtagbridge.ErrTransportClosed
		}
		return 0, false, err
	}
	return buf[0], n == 1, nil
}

// SendByte implements jtagbridge.Transport
func (p *PipeTransport) SendByte(b byte) error {
	_, err := p.conn.Write([]byte{b})
	if errors.Is(err, io.ErrClosedPipe) {
		return jtagbridge.ErrTransportClosed
	}
	return err
}

// Sync implements jtagbridge.Transport
func (*PipeTransport) Sync() error {
	return nil
}

// Close implements jtagbridge.Transport
func (p *PipeTransport) Close() error {
	return p.conn.Close()
}

// Type implements jtagbridge.Transport
func (*PipeTransport) Type() jtagbridge.TransportType {
	return jtagbridge.TransportMock
}
