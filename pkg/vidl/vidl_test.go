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

package vidl

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/syserr"
)

func TestPrimitives(t *testing.T) {
	var e Encoder
	e.U8(0xab)
	e.U16(0x1234)
	e.U32(0xdeadbeef)
	e.U64(1 << 40)
	e.String("hello")
	e.Bytes([]byte{1, 2, 3})
	e.Bytes(nil)
	e.Cap(Cap(7))
	e.Buffer(Buffer(9))
	e.Fail()
	if err := e.Err(); err != nil {
		t.Fatalf("Encoder: %v", err)
	}

	d := NewDecoder(e.Payload(), e.Caps())
	if got := d.U8(); got != 0xab {
		t.Errorf("U8 = %#x", got)
	}
	if got := d.U16(); got != 0x1234 {
		t.Errorf("U16 = %#x", got)
	}
	if got := d.U32(); got != 0xdeadbeef {
		t.Errorf("U32 = %#x", got)
	}
	if got := d.U64(); got != 1<<40 {
		t.Errorf("U64 = %#x", got)
	}
	if got := d.String(); got != "hello" {
		t.Errorf("String = %q", got)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, d.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
	if got := d.Bytes(); got != nil {
		t.Errorf("empty Bytes = %v, want nil", got)
	}
	if got := d.Cap(); got != 7 {
		t.Errorf("Cap = %d", got)
	}
	if got := d.Buffer(); got != 9 {
		t.Errorf("Buffer = %d", got)
	}
	if !d.Result() {
		t.Errorf("Result tag decoded as Ok")
	}
	if err := d.Finish(); err != nil {
		t.Errorf("Finish: %v", err)
	}
}

func TestLittleEndian(t *testing.T) {
	var e Encoder
	e.U32(0x01020304)
	if diff := cmp.Diff([]byte{4, 3, 2, 1}, e.Payload()); diff != "" {
		t.Errorf("U32 bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformed(t *testing.T) {
	for _, tc := range []struct {
		name    string
		payload []byte
		caps    []capability.ID
		read    func(d *Decoder)
	}{
		{"short integer", []byte{1, 2}, nil, func(d *Decoder) { d.U32() }},
		{"length overrun", []byte{5, 0, 0, 0, 'a'}, nil, func(d *Decoder) { _ = d.String() }},
		{"element overrun", []byte{2, 0, 0, 0, 1, 0, 0, 0}, nil, func(d *Decoder) { d.Len(4) }},
		{"huge zero-sized sequence", []byte{0xff, 0xff, 0xff, 0xff}, nil, func(d *Decoder) { d.Len(0) }},
		{"enum out of range", []byte{3, 0, 0, 0}, nil, func(d *Decoder) { d.Enum(3) }},
		{"missing slot", []byte{1, 0, 0, 0}, []capability.ID{4}, func(d *Decoder) { d.Cap() }},
		{"bad result tag", []byte{2}, nil, func(d *Decoder) { d.Result() }},
		{"trailing bytes", []byte{1, 2}, nil, func(d *Decoder) { d.U8() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(tc.payload, tc.caps)
			tc.read(d)
			if err := d.Finish(); !errors.Is(err, syserr.ErrMalformedMessage) {
				t.Errorf("Finish = %v, want %v", err, syserr.ErrMalformedMessage)
			}
		})
	}
}

func TestStickyDecodeError(t *testing.T) {
	d := NewDecoder([]byte{1}, nil)
	d.U16()
	// The byte that is left must not be consumed after the failure.
	if got := d.U8(); got != 0 {
		t.Errorf("U8 after failure = %d, want 0", got)
	}
	if d.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", d.Remaining())
	}
}

func TestTooManyCaps(t *testing.T) {
	var e Encoder
	for i := 1; i <= ipc.MaxCaps+1; i++ {
		e.Cap(Cap(i))
	}
	if err := e.Err(); !errors.Is(err, syserr.ErrMessageTooLarge) {
		t.Errorf("Err = %v, want %v", err, syserr.ErrMessageTooLarge)
	}
	if len(e.Caps()) != ipc.MaxCaps {
		t.Errorf("%d caps encoded, want %d", len(e.Caps()), ipc.MaxCaps)
	}
}

func TestEmptyCap(t *testing.T) {
	var e Encoder
	e.Cap(0)
	if err := e.Err(); !errors.Is(err, syserr.ErrMalformedMessage) {
		t.Errorf("Err = %v, want %v", err, syserr.ErrMalformedMessage)
	}
}

type pair struct {
	A uint32
	B uint16
	C [2]uint8
}

func TestPacked(t *testing.T) {
	if !Packed {
		t.Skip("big-endian host")
	}
	in := pair{A: 0x01020304, B: 0x0506, C: [2]uint8{7, 8}}
	var e Encoder
	MarshalPacked(&e, &in)
	if diff := cmp.Diff([]byte{4, 3, 2, 1, 6, 5, 7, 8}, e.Payload()); diff != "" {
		t.Errorf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	var out pair
	d := NewDecoder(e.Payload(), nil)
	UnmarshalPacked(d, &out)
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out != in {
		t.Errorf("UnmarshalPacked = %+v, want %+v", out, in)
	}

	short := pair{A: 1}
	d = NewDecoder([]byte{1, 2, 3}, nil)
	UnmarshalPacked(d, &short)
	if d.Err() == nil || short != (pair{}) {
		t.Errorf("short packed read: err=%v value=%+v", d.Err(), short)
	}
}

func echoTable() DispatchTable {
	return DispatchTable{
		0: func(ctx context.Context, d *Decoder, e *Encoder) error {
			s := d.String()
			if err := d.Finish(); err != nil {
				return err
			}
			e.Ok()
			e.String(s)
			return nil
		},
		2: func(ctx context.Context, d *Decoder, e *Encoder) error {
			return errors.New("boom")
		},
	}
}

func TestDispatch(t *testing.T) {
	table := echoTable()
	ctx := context.Background()
	for _, tc := range []struct {
		name string
		op   ipc.Opcode
		want syserr.Status
	}{
		{"unknown opcode", 1, syserr.ErrUnknownOpcode.Status()},
		{"past the end", 9, syserr.ErrUnknownOpcode.Status()},
		{"foreign error", 2, syserr.ErrInternal.Status()},
		{"malformed", 0, syserr.ErrMalformedMessage.Status()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			reply := table.Dispatch(ctx, &ipc.Message{Opcode: tc.op, Inline: []byte{9}})
			if reply.Status != tc.want {
				t.Errorf("Status = %d, want %d", reply.Status, tc.want)
			}
		})
	}
}

func TestInvoke(t *testing.T) {
	c := Direct{Table: echoTable()}
	ctx := context.Background()

	var e Encoder
	e.String("ping")
	d, isErr, err := Invoke(ctx, c, 0, &e)
	if err != nil || isErr {
		t.Fatalf("Invoke = %v, isErr=%t", err, isErr)
	}
	if got := d.String(); got != "ping" {
		t.Errorf("reply = %q, want %q", got, "ping")
	}

	e.Reset()
	if _, _, err := Invoke(ctx, c, 5, &e); !errors.Is(err, syserr.ErrUnknownOpcode) {
		t.Errorf("Invoke(5) = %v, want %v", err, syserr.ErrUnknownOpcode)
	}
}

// queueReceiver serves a fixed list of calls, then reports the endpoint
// closed.
type queueReceiver struct {
	calls   []*ipc.Message
	replies map[uint64]*ipc.Message
}

func (q *queueReceiver) Receive(ctx context.Context) (uint64, *ipc.Message, error) {
	if len(q.calls) == 0 {
		return 0, nil, syserr.ErrEndpointClosed
	}
	m := q.calls[0]
	q.calls = q.calls[1:]
	return uint64(len(q.replies) + 1), m, nil
}

func (q *queueReceiver) Reply(tok uint64, m *ipc.Message) error {
	q.replies[tok] = m
	return nil
}

func TestServe(t *testing.T) {
	var e Encoder
	e.String("a")
	q := &queueReceiver{
		calls:   []*ipc.Message{e.Message(0), {Opcode: 1}},
		replies: make(map[uint64]*ipc.Message),
	}
	if err := Serve(context.Background(), q, echoTable()); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(q.replies) != 2 {
		t.Fatalf("%d replies, want 2", len(q.replies))
	}
	if q.replies[1].Status != syserr.StatusOK {
		t.Errorf("reply 1 status = %d", q.replies[1].Status)
	}
	if q.replies[2].Status != syserr.ErrUnknownOpcode.Status() {
		t.Errorf("reply 2 status = %d", q.replies[2].Status)
	}
}

func TestServeContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &queueReceiver{replies: make(map[uint64]*ipc.Message)}
	if err := Serve(ctx, r, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want %v", err, context.Canceled)
	}
}
