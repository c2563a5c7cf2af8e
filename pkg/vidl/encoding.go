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

// Package vidl is the runtime for code generated from interface schemas.
//
// Generated types marshal themselves with an Encoder and unmarshal with a
// Decoder. The wire format is little-endian throughout:
//
//	u8, u16, u32, u64   fixed width
//	usize               8 bytes
//	()                  nothing
//	enum                u32 variant index
//	string, [T]         u32 length, then the bytes or elements
//	[T; N]              N elements, no length
//	Cap, Buffer         u32 index into the message's capability slots
//	struct              fields in declaration order, no padding
//	Result              u8 tag (0 for Ok), then the Ok or Err value
package vidl

import (
	"encoding/binary"
	"math"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Cap is a capability handle in a message. Its value is an ID in the
// holder's own table.
type Cap capability.ID

// Buffer is a shared buffer handle in a message.
type Buffer capability.ID

// Unit is the empty type ().
type Unit = struct{}

// Result tags.
const (
	ResultOk  uint8 = 0
	ResultErr uint8 = 1
)

// maxZeroSized bounds the element count of a sequence whose elements
// occupy no bytes.
const maxZeroSized = 1 << 16

// Marshaler is implemented by generated types.
type Marshaler interface {
	MarshalVIDL(e *Encoder)
}

// Unmarshaler is implemented by pointers to generated types.
type Unmarshaler interface {
	UnmarshalVIDL(d *Decoder)
}

// Encoder appends wire-format values to a payload. Errors are sticky: once
// one occurs the remaining writes are ignored and Err reports it.
//
// The zero value is ready to use.
type Encoder struct {
	buf  []byte
	caps []capability.ID
	err  error
}

// Reset clears e for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.caps = e.caps[:0]
	e.err = nil
}

// Err returns the first error encountered.
func (e *Encoder) Err() error {
	return e.err
}

// Payload returns the encoded bytes.
func (e *Encoder) Payload() []byte {
	return e.buf
}

// Caps returns the capability slots referenced by the payload.
func (e *Encoder) Caps() []capability.ID {
	return e.caps
}

// Message returns a call message for opcode op carrying the payload.
func (e *Encoder) Message(op ipc.Opcode) *ipc.Message {
	return &ipc.Message{Opcode: op, Inline: e.buf, Caps: e.caps}
}

// U8 appends v.
func (e *Encoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

// U16 appends v.
func (e *Encoder) U16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

// U32 appends v.
func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// U64 appends v.
func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// Len appends a sequence length.
func (e *Encoder) Len(n int) {
	if n > math.MaxUint32 {
		e.fail(syserr.ErrMessageTooLarge.Errorf("sequence of %d elements", n))
		return
	}
	e.U32(uint32(n))
}

// String appends s with its length.
func (e *Encoder) String(s string) {
	e.Len(len(s))
	e.buf = append(e.buf, s...)
}

// Bytes appends b with its length. It is the encoding of [u8].
func (e *Encoder) Bytes(b []byte) {
	e.Len(len(b))
	e.buf = append(e.buf, b...)
}

// Raw appends b without a length.
func (e *Encoder) Raw(b []byte) {
	e.buf = append(e.buf, b...)
}

// Cap appends a capability slot holding c.
func (e *Encoder) Cap(c Cap) {
	e.slot(capability.ID(c))
}

// Buffer appends a capability slot holding b.
func (e *Encoder) Buffer(b Buffer) {
	e.slot(capability.ID(b))
}

func (e *Encoder) slot(id capability.ID) {
	if id == capability.Invalid {
		e.fail(syserr.ErrMalformedMessage.Errorf("empty capability handle"))
		return
	}
	if len(e.caps) == ipc.MaxCaps {
		e.fail(syserr.ErrMessageTooLarge.Errorf("more than %d capabilities", ipc.MaxCaps))
		return
	}
	e.U32(uint32(len(e.caps)))
	e.caps = append(e.caps, id)
}

// Ok appends the tag of a successful Result.
func (e *Encoder) Ok() {
	e.U8(ResultOk)
}

// Fail appends the tag of a failed Result.
func (e *Encoder) Fail() {
	e.U8(ResultErr)
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Decoder reads wire-format values from a payload. Errors are sticky: after
// the first one every read returns a zero value, and Err and Finish report
// it. Every error is a syserr.ErrMalformedMessage.
type Decoder struct {
	buf  []byte
	off  int
	caps []capability.ID
	err  error
}

// NewDecoder returns a decoder over payload with the given capability
// slots.
func NewDecoder(payload []byte, caps []capability.ID) *Decoder {
	return &Decoder{buf: payload, caps: caps}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of bytes not yet consumed.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Finish returns the first error encountered, or an error if bytes remain.
func (d *Decoder) Finish() error {
	if d.err == nil && d.off != len(d.buf) {
		d.err = syserr.ErrMalformedMessage.Errorf("%d trailing bytes", len(d.buf)-d.off)
	}
	return d.err
}

// Failf records a malformed-input error.
func (d *Decoder) Failf(format string, v ...any) {
	if d.err == nil {
		d.err = syserr.ErrMalformedMessage.Errorf(format, v...)
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf)-d.off {
		d.Failf("read of %d bytes at offset %d overruns %d byte payload", n, d.off, len(d.buf))
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// U8 reads a u8.
func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a u16.
func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a u32.
func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a u64.
func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Len reads a sequence length for elements of at least elemSize bytes. The
// length is rejected if that many elements cannot fit in what remains.
func (d *Decoder) Len(elemSize int) int {
	n := int(d.U32())
	if d.err != nil {
		return 0
	}
	if elemSize == 0 {
		if n > maxZeroSized {
			d.Failf("sequence of %d empty elements", n)
			return 0
		}
		return n
	}
	if n > d.Remaining()/elemSize {
		d.Failf("sequence of %d elements of %d bytes overruns payload", n, elemSize)
		return 0
	}
	return n
}

// String reads a string.
func (d *Decoder) String() string {
	return string(d.take(d.Len(1)))
}

// Bytes reads a [u8]. The result is a copy; an empty sequence is nil.
func (d *Decoder) Bytes() []byte {
	b := d.take(d.Len(1))
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// Raw reads n bytes without a length. The result aliases the payload.
func (d *Decoder) Raw(n int) []byte {
	return d.take(n)
}

// Enum reads a variant index of an enum with n variants.
func (d *Decoder) Enum(n uint32) uint32 {
	v := d.U32()
	if d.err == nil && v >= n {
		d.Failf("variant %d out of range for enum of %d variants", v, n)
		return 0
	}
	return v
}

func (d *Decoder) slot() capability.ID {
	i := d.U32()
	if d.err != nil {
		return capability.Invalid
	}
	if int(i) >= len(d.caps) {
		d.Failf("capability slot %d of %d", i, len(d.caps))
		return capability.Invalid
	}
	return d.caps[i]
}

// Cap reads a capability handle.
func (d *Decoder) Cap() Cap {
	return Cap(d.slot())
}

// Buffer reads a shared buffer handle.
func (d *Decoder) Buffer() Buffer {
	return Buffer(d.slot())
}

// Result reads a Result tag and returns true for Err.
func (d *Decoder) Result() bool {
	switch t := d.U8(); t {
	case ResultOk:
		return false
	case ResultErr:
		return true
	default:
		d.Failf("result tag %d", t)
		return false
	}
}
