// Copyright 2026 The gVisor Authors.
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

// Package ipc implements the synchronous call/reply protocol between a
// client's channel and a server's endpoint.
//
// A channel carries at most one outstanding call. Issuing a second call
// before the reply to the first has been observed is rejected immediately;
// calls are never queued behind one another on a channel. Distinct channels
// to the same endpoint are queued at the endpoint in arrival order.
package ipc

import (
	"fmt"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Opcode identifies a service method.
type Opcode uint16

// MaxOpcode is the largest opcode a schema may assign.
const MaxOpcode Opcode = 1<<12 - 1

const (
	// InlineCap is the largest inline payload. Larger payloads travel in a
	// shared buffer referenced by Message.Buffer.
	InlineCap = 512

	// MaxCaps is the largest number of capabilities one message can carry.
	MaxCaps = 8
)

// BufferRef points at an out-of-line payload: the first Len bytes of the
// buffer behind Cap.
type BufferRef struct {
	Cap capability.ID
	Len uint64
}

// Valid returns true if r refers to a buffer.
func (r BufferRef) Valid() bool {
	return r.Cap != capability.Invalid
}

// Message is one call or reply as seen by a task. Capability IDs are in the
// holder's own table; the kernel rewrites them in transit.
type Message struct {
	// Opcode is the method called. Unused in replies.
	Opcode Opcode

	// Status is the protocol status of a reply. Zero means the payload
	// holds the method's result. Unused in calls.
	Status syserr.Status

	// Inline holds the marshaled fields.
	Inline []byte

	// Caps are capabilities embedded by the marshaled fields, referenced by
	// index.
	Caps []capability.ID

	// Buffer optionally holds the payload in place of Inline.
	Buffer BufferRef
}

// Validate checks the framing of m.
func (m *Message) Validate() error {
	if m.Opcode > MaxOpcode {
		return syserr.ErrMalformedMessage.Errorf("opcode %d out of range", m.Opcode)
	}
	if len(m.Inline) > InlineCap {
		return syserr.ErrMessageTooLarge.Errorf("%d inline bytes, limit %d", len(m.Inline), InlineCap)
	}
	if len(m.Caps) > MaxCaps {
		return syserr.ErrMessageTooLarge.Errorf("%d capabilities, limit %d", len(m.Caps), MaxCaps)
	}
	for i, id := range m.Caps {
		if id == capability.Invalid {
			return syserr.ErrMalformedMessage.Errorf("capability slot %d is empty", i)
		}
	}
	if !m.Buffer.Valid() && m.Buffer.Len != 0 {
		return syserr.ErrMalformedMessage.Errorf("buffer length %d without a buffer", m.Buffer.Len)
	}
	if m.Buffer.Valid() && len(m.Inline) != 0 {
		return syserr.ErrMalformedMessage.Errorf("inline and buffer payload in one message")
	}
	return nil
}

// Reset clears m for reuse, keeping allocated storage.
func (m *Message) Reset() {
	*m = Message{Inline: m.Inline[:0], Caps: m.Caps[:0]}
}

// String implements fmt.Stringer.String.
func (m *Message) String() string {
	return fmt.Sprintf("{op=%d status=%d inline=%d caps=%v buffer=%+v}", m.Opcode, m.Status, len(m.Inline), m.Caps, m.Buffer)
}

// Packet is a message in transit. Capabilities have been taken out of the
// sender's table and will be minted into the receiver's on delivery.
type Packet struct {
	Opcode Opcode
	Status syserr.Status
	Inline []byte
	Caps   []capability.Capability

	// Buffer, if its Object is set, is the out-of-line payload buffer.
	Buffer    capability.Capability
	BufferLen uint64
}

// HasBuffer returns true if p carries an out-of-line payload.
func (p *Packet) HasBuffer() bool {
	return p.Buffer.Object != nil
}

// ErrorPacket returns a reply packet carrying only a status.
func ErrorPacket(err error) Packet {
	return Packet{Status: syserr.StatusOf(err)}
}
