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

	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Caller sends a call and blocks for its reply. A reply carrying a protocol
// status is returned as a message with Status set.
type Caller interface {
	Call(ctx context.Context, m *ipc.Message) (*ipc.Message, error)
}

// Receiver is the server side of a channel: it yields calls and accepts
// their replies.
type Receiver interface {
	Receive(ctx context.Context) (token uint64, m *ipc.Message, err error)
	Reply(token uint64, m *ipc.Message) error
}

// Handler decodes the parameters of one method from d, runs it, and encodes
// its Result into e. A returned error becomes the reply status.
type Handler func(ctx context.Context, d *Decoder, e *Encoder) error

// DispatchTable maps opcodes to handlers. Opcodes without a method are nil.
type DispatchTable []Handler

// Dispatch runs the handler for m and returns the reply.
func (t DispatchTable) Dispatch(ctx context.Context, m *ipc.Message) *ipc.Message {
	if int(m.Opcode) >= len(t) || t[m.Opcode] == nil {
		return &ipc.Message{Status: syserr.ErrUnknownOpcode.Status()}
	}
	var e Encoder
	if err := t[m.Opcode](ctx, NewDecoder(m.Inline, m.Caps), &e); err != nil {
		return &ipc.Message{Status: syserr.StatusOf(err)}
	}
	if err := e.Err(); err != nil {
		return &ipc.Message{Status: syserr.StatusOf(err)}
	}
	return &ipc.Message{Inline: e.Payload(), Caps: e.Caps()}
}

// Serve answers calls from r until ctx is done or the endpoint closes.
func Serve(ctx context.Context, r Receiver, t DispatchTable) error {
	for {
		tok, m, err := r.Receive(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, syserr.ErrEndpointClosed) {
				return nil
			}
			return err
		}
		reply := t.Dispatch(ctx, m)
		if err := r.Reply(tok, reply); err != nil {
			// The caller may be gone; the next call is unaffected.
			log.Debugf("Reply to call %d (opcode %d) failed: %v", tok, m.Opcode, err)
		}
	}
}

// Invoke sends the call in e and returns a decoder over the Result in the
// reply. isErr reports whether the Result holds the Err value. err is set
// for a transport or protocol failure, in which case there is no Result.
func Invoke(ctx context.Context, c Caller, op ipc.Opcode, e *Encoder) (d *Decoder, isErr bool, err error) {
	if err := e.Err(); err != nil {
		return nil, false, err
	}
	reply, err := c.Call(ctx, e.Message(op))
	if err != nil {
		return nil, false, err
	}
	if reply.Status != syserr.StatusOK {
		return nil, false, syserr.FromStatus(reply.Status)
	}
	d = NewDecoder(reply.Inline, reply.Caps)
	isErr = d.Result()
	if err := d.Err(); err != nil {
		return nil, false, err
	}
	return d, isErr, nil
}

// Direct is a Caller that dispatches straight into a table in the same
// address space. Capability handles pass through unchanged.
type Direct struct {
	Table DispatchTable
}

// Call implements Caller.Call.
func (c Direct) Call(ctx context.Context, m *ipc.Message) (*ipc.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Table.Dispatch(ctx, m), nil
}
