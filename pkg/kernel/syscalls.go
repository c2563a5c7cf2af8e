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

package kernel

import (
	"bytes"
	"context"
	"math"

	"gvisor.dev/ukernel/pkg/abi/sysno"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/shm"
	"gvisor.dev/ukernel/pkg/syserr"
)

// maxBufferSize bounds a single shared buffer.
const maxBufferSize = 1 << 30

// syscallFn implements one syscall. It either completes, returning its
// results, or returns a waiter to block.
type syscallFn func(t *Task, args sysno.Args) (sysno.Results, waiter, error)

// syscallTable is indexed by syscall number. Exit is handled by
// Kernel.Syscall directly.
var syscallTable = [...]syscallFn{
	sysno.Call:           sysCall,
	sysno.Recv:           sysRecv,
	sysno.Reply:          sysReply,
	sysno.CapIdentify:    sysCapIdentify,
	sysno.CapDerive:      sysCapDerive,
	sysno.CapRevoke:      sysCapRevoke,
	sysno.EndpointCreate: sysEndpointCreate,
	sysno.BufferCreate:   sysBufferCreate,
	sysno.BufferMap:      sysBufferMap,
	sysno.BufferRelease:  sysBufferRelease,
	sysno.ChannelCreate:  sysChannelCreate,
}

func errTaskDead(t *Task) error {
	return syserr.ErrTaskDead.Errorf("task %d (%s)", t.id, t.name)
}

// require looks up a capability under t.mu.
func (t *Task) require(id uint64, k capability.Kind, r capability.Rights) (capability.Capability, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return capability.Capability{}, errTaskDead(t)
	}
	return t.caps.Require(capability.ID(id), k, r)
}

func sysCall(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	c, err := t.require(args[0], capability.KindChannel, capability.Write)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	s := c.Object.(*ipc.Session)
	p, err := t.pack(&t.ipcBuf)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	call, err := s.Call(p)
	if err != nil {
		t.k.discard(p)
		return sysno.Results{}, nil, err
	}
	t.k.metrics.calls.Increment()
	return sysno.Results{}, func(ctx context.Context) (sysno.Results, error) {
		reply, err := call.Wait(ctx)
		if err != nil {
			return sysno.Results{}, err
		}
		if err := t.deliver(&reply); err != nil {
			t.k.discard(reply)
			return sysno.Results{}, err
		}
		return sysno.Results{}, nil
	}, nil
}

func sysRecv(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	c, err := t.require(args[0], capability.KindEndpoint, capability.Read)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	ep := c.Object.(*ipc.Endpoint)
	for {
		tok, p, ok, err := ep.TryReceive()
		if err != nil {
			return sysno.Results{}, nil, err
		}
		if !ok {
			break
		}
		if t.accept(ep, tok, p) {
			return sysno.Results{uint64(tok)}, nil, nil
		}
	}
	return sysno.Results{}, func(ctx context.Context) (sysno.Results, error) {
		for {
			tok, p, err := ep.Receive(ctx)
			if err != nil {
				return sysno.Results{}, err
			}
			if t.accept(ep, tok, p) {
				return sysno.Results{uint64(tok)}, nil
			}
		}
	}, nil
}

// accept delivers a received call into t's IPC buffer. If the call cannot be
// delivered the caller is answered with the failure and false is returned.
func (t *Task) accept(ep *ipc.Endpoint, tok ipc.Token, p *ipc.Packet) bool {
	err := t.deliver(p)
	if err == nil {
		return true
	}
	t.k.discard(*p)
	_ = ep.Reply(tok, ipc.ErrorPacket(err))
	return false
}

func sysReply(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	c, err := t.require(args[0], capability.KindEndpoint, capability.Write)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	ep := c.Object.(*ipc.Endpoint)
	tok := ipc.Token(args[1])
	p, err := t.pack(&t.ipcBuf)
	if err != nil {
		// The client is still waiting; tell it why no reply is coming.
		_ = ep.Reply(tok, ipc.ErrorPacket(err))
		return sysno.Results{}, nil, err
	}
	if err := ep.Reply(tok, p); err != nil {
		t.k.discard(p)
		return sysno.Results{}, nil, err
	}
	return sysno.Results{}, nil, nil
}

func sysCapIdentify(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.caps.Lookup(capability.ID(args[0]))
	if err != nil {
		return sysno.Results{}, nil, err
	}
	return sysno.Results{uint64(c.Object.CapKind()), uint64(c.Rights)}, nil, nil
}

func sysCapDerive(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	if args[1] > math.MaxUint32 {
		return sysno.Results{}, nil, syserr.ErrRightsEscalation.Errorf("rights %#x", args[1])
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.caps.Derive(capability.ID(args[0]), capability.Rights(args[1]))
	if err != nil {
		return sysno.Results{}, nil, err
	}
	return sysno.Results{uint64(id)}, nil, nil
}

func sysCapRevoke(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.caps.Revoke(capability.ID(args[0]))
	if err != nil {
		return sysno.Results{}, nil, err
	}
	if b, ok := c.Object.(*shm.Buffer); ok {
		t.untrackLocked(b)
	}
	return sysno.Results{}, nil, nil
}

func sysEndpointCreate(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	ep := ipc.NewEndpoint(t)
	ep.SetDiscard(t.k.discard)
	id, err := t.Grant(ep, capability.All)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	return sysno.Results{uint64(id)}, nil, nil
}

func sysChannelCreate(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	c, err := t.require(args[0], capability.KindEndpoint, capability.Grant)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	ep := c.Object.(*ipc.Endpoint)
	if ep.Closed() {
		return sysno.Results{}, nil, syserr.ErrEndpointClosed
	}
	id, err := t.Grant(ipc.NewSession(ep), capability.Write|capability.Grant)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	return sysno.Results{uint64(id)}, nil, nil
}

func sysBufferCreate(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	size := args[0]
	if size == 0 || size > maxBufferSize {
		return sysno.Results{}, nil, syserr.ErrOutOfBounds.Errorf("buffer of %d bytes", size)
	}
	b, err := t.k.buffers.New(t, int(size))
	if err != nil {
		return sysno.Results{}, nil, err
	}
	id, err := t.Grant(b, capability.All)
	if err != nil {
		b.Release()
		return sysno.Results{}, nil, err
	}
	return sysno.Results{uint64(id)}, nil, nil
}

func sysBufferMap(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.caps.Require(capability.ID(args[0]), capability.KindBuffer, 0)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	b := c.Object.(*shm.Buffer)
	m, err := b.Map(t, c.Rights)
	if err != nil {
		return sysno.Results{}, nil, err
	}
	t.trackLocked(b, m)
	return sysno.Results{uint64(b.Len())}, nil, nil
}

func sysBufferRelease(t *Task, args sysno.Args) (sysno.Results, waiter, error) {
	t.mu.Lock()
	c, err := t.caps.Require(capability.ID(args[0]), capability.KindBuffer, 0)
	if err == nil {
		_, err = t.caps.Revoke(c.ID)
	}
	t.mu.Unlock()
	if err != nil {
		return sysno.Results{}, nil, err
	}
	// Release runs hooks that take t.mu.
	c.Object.(*shm.Buffer).Release()
	return sysno.Results{}, nil, nil
}

// pack takes the message in m out of t's address space into a packet. Caps
// named by the message need Grant and are copied; an out-of-line payload
// buffer is moved out of t's table.
func (t *Task) pack(m *ipc.Message) (ipc.Packet, error) {
	if err := m.Validate(); err != nil {
		return ipc.Packet{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return ipc.Packet{}, errTaskDead(t)
	}
	p := ipc.Packet{
		Opcode: m.Opcode,
		Status: m.Status,
		Inline: bytes.Clone(m.Inline),
	}
	for _, id := range m.Caps {
		c, err := t.caps.Lookup(id)
		if err != nil {
			return ipc.Packet{}, err
		}
		if !c.Rights.Contains(capability.Grant) {
			return ipc.Packet{}, syserr.ErrInsufficientRights.Errorf("cap %d has %v, transfer needs grant", id, c.Rights)
		}
		p.Caps = append(p.Caps, c)
	}
	if m.Buffer.Valid() {
		c, err := t.caps.Require(m.Buffer.Cap, capability.KindBuffer, capability.Grant)
		if err != nil {
			return ipc.Packet{}, err
		}
		b := c.Object.(*shm.Buffer)
		if b.Released() {
			return ipc.Packet{}, syserr.ErrStaleCapability.Errorf("buffer %d released", c.ID)
		}
		if m.Buffer.Len > uint64(b.Len()) {
			return ipc.Packet{}, syserr.ErrOutOfBounds.Errorf("payload of %d bytes in buffer of %d", m.Buffer.Len, b.Len())
		}
		// Everything is checked; nothing below fails.
		if _, err := t.caps.Revoke(c.ID); err != nil {
			return ipc.Packet{}, err
		}
		t.untrackLocked(b)
		p.Buffer, p.BufferLen = c, m.Buffer.Len
	}
	return p, nil
}

// deliver places p in t's IPC buffer, minting its caps into t's table and
// mapping its out-of-line payload for reading. On failure nothing is left
// behind in t.
func (t *Task) deliver(p *ipc.Packet) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return errTaskDead(t)
	}
	m := &t.ipcBuf
	m.Reset()
	var minted []capability.ID
	fail := func(err error) error {
		for _, id := range minted {
			if c, err := t.caps.Revoke(id); err == nil {
				if b, ok := c.Object.(*shm.Buffer); ok {
					t.untrackLocked(b)
				}
			}
		}
		m.Reset()
		return err
	}
	for _, c := range p.Caps {
		id, err := capability.Mint(t.caps, c)
		if err != nil {
			return fail(err)
		}
		minted = append(minted, id)
		m.Caps = append(m.Caps, id)
	}
	if p.HasBuffer() {
		id, err := capability.Mint(t.caps, p.Buffer)
		if err != nil {
			return fail(err)
		}
		minted = append(minted, id)
		b := p.Buffer.Object.(*shm.Buffer)
		mp, err := b.Map(t, capability.Read)
		if err != nil {
			return fail(err)
		}
		t.trackLocked(b, mp)
		m.Buffer = ipc.BufferRef{Cap: id, Len: p.BufferLen}
	} else {
		m.Inline = append(m.Inline, p.Inline...)
	}
	m.Opcode = p.Opcode
	m.Status = p.Status
	return nil
}
