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
	"context"
	"errors"
	"fmt"

	"gvisor.dev/ukernel/pkg/abi/sysno"
	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/ring0"
	"gvisor.dev/ukernel/pkg/shm"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Syscall loads no and args into t's registers and executes ecall. If the
// syscall blocks, ctx bounds the wait; cancelling it interrupts the syscall
// and Syscall returns ctx.Err().
//
// The returned results are a1 onwards. A non-zero status in a0 is returned
// as the matching *syserr.Error.
func (t *Task) Syscall(ctx context.Context, no sysno.Sysno, args ...uint64) (sysno.Results, error) {
	if len(args) > sysno.MaxArgs {
		panic(fmt.Sprintf("%v with %d arguments", no, len(args)))
	}
	for i := 0; i < sysno.MaxArgs; i++ {
		var v uint64
		if i < len(args) {
			v = args[i]
		}
		t.regs.SetArg(i, v)
	}
	t.regs.Set(arch.A7, uint64(no))

	out := t.k.trap(t, ring0.Exception{Cause: arch.UserEnvCall, Mode: arch.ModeUser})
	if out == ring0.Blocked {
		out = t.block(ctx)
	}
	switch out {
	case ring0.Killed:
		if no == sysno.Exit {
			return sysno.Results{}, nil
		}
		return sysno.Results{}, errTaskDead(t)
	case ring0.Halted:
		return sysno.Results{}, syserr.ErrHalted.Errorf("%v", t.k.Halted())
	}

	var r sysno.Results
	for i := range r {
		r[i] = t.regs.Arg(i + 1)
	}
	status := syserr.Status(t.regs.Arg(0))
	if status == syserr.StatusOK {
		return r, nil
	}
	if status == syserr.ErrInterrupted.Status() && ctx.Err() != nil {
		return r, ctx.Err()
	}
	return r, syserr.FromStatus(status)
}

// block runs the wait of a blocked syscall off the hart and resumes t with
// its results.
func (t *Task) block(ctx context.Context) ring0.Outcome {
	wait := t.wait
	t.wait = nil
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	r, err := wait(wctx)
	if wctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = syserr.ErrInterrupted.Errorf("%v", err)
	}
	if err != nil {
		t.k.metrics.countError(err)
	}
	return t.k.resume(t, func(frame *arch.Context) {
		frame.SetSyscallReturn(uint64(syserr.StatusOf(err)), r[:]...)
	})
}

// Raise delivers a trap other than a syscall from t, such as a fault or an
// interrupt taken while t runs.
func (t *Task) Raise(cause arch.Cause, tval uint64) ring0.Outcome {
	return t.k.trap(t, ring0.Exception{Cause: cause, Tval: tval, Mode: arch.ModeUser})
}

// Exit terminates t.
func (t *Task) Exit(code uint64) {
	if !t.Dead() {
		t.Syscall(context.Background(), sysno.Exit, code)
	}
}

// Identify returns the kind and rights of cap id.
func (t *Task) Identify(id capability.ID) (capability.Kind, capability.Rights, error) {
	r, err := t.Syscall(context.Background(), sysno.CapIdentify, uint64(id))
	if err != nil {
		return 0, 0, err
	}
	return capability.Kind(r[0]), capability.Rights(r[1]), nil
}

// Derive creates a narrowed copy of cap id.
func (t *Task) Derive(id capability.ID, rights capability.Rights) (capability.ID, error) {
	r, err := t.Syscall(context.Background(), sysno.CapDerive, uint64(id), uint64(rights))
	return capability.ID(r[0]), err
}

// Revoke removes cap id.
func (t *Task) Revoke(id capability.ID) error {
	_, err := t.Syscall(context.Background(), sysno.CapRevoke, uint64(id))
	return err
}

// CreateEndpoint creates an endpoint owned by t and returns a handle for
// serving it.
func (t *Task) CreateEndpoint() (*Endpoint, error) {
	r, err := t.Syscall(context.Background(), sysno.EndpointCreate)
	if err != nil {
		return nil, err
	}
	return &Endpoint{t: t, id: capability.ID(r[0])}, nil
}

// CreateChannel creates a channel to the endpoint behind cap ep.
func (t *Task) CreateChannel(ep capability.ID) (*Channel, error) {
	r, err := t.Syscall(context.Background(), sysno.ChannelCreate, uint64(ep))
	if err != nil {
		return nil, err
	}
	return t.Channel(capability.ID(r[0])), nil
}

// CreateBuffer allocates a shared buffer of size bytes.
func (t *Task) CreateBuffer(size int) (capability.ID, error) {
	r, err := t.Syscall(context.Background(), sysno.BufferCreate, uint64(size))
	return capability.ID(r[0]), err
}

// MapBuffer maps the buffer behind id into t and returns the mapping.
func (t *Task) MapBuffer(id capability.ID) (*shm.Mapping, error) {
	if _, err := t.Syscall(context.Background(), sysno.BufferMap, uint64(id)); err != nil {
		return nil, err
	}
	return t.Mapping(id)
}

// ReleaseBuffer releases the buffer behind id for every party.
func (t *Task) ReleaseBuffer(id capability.ID) error {
	_, err := t.Syscall(context.Background(), sysno.BufferRelease, uint64(id))
	return err
}

// Mapping returns t's mapping of the buffer behind id.
func (t *Task) Mapping(id capability.ID) (*shm.Mapping, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.caps.Require(id, capability.KindBuffer, 0)
	if err != nil {
		return nil, err
	}
	m, ok := t.mappings[c.Object.(*shm.Buffer)]
	if !ok {
		return nil, syserr.ErrStaleCapability.Errorf("buffer %d is not mapped", id)
	}
	return m, nil
}

// stage copies m into the IPC buffer. A payload too large to travel inline
// is written to a fresh shared buffer that the kernel moves to the receiver.
// stage returns that buffer's capability, or 0 if the payload is inline.
func (t *Task) stage(m *ipc.Message) (capability.ID, error) {
	b := &t.ipcBuf
	b.Reset()
	b.Opcode = m.Opcode
	b.Status = m.Status
	b.Caps = append(b.Caps, m.Caps...)
	b.Buffer = m.Buffer
	if len(m.Inline) <= ipc.InlineCap {
		b.Inline = append(b.Inline, m.Inline...)
		return 0, nil
	}
	id, err := t.CreateBuffer(len(m.Inline))
	if err != nil {
		return 0, err
	}
	mp, err := t.MapBuffer(id)
	if err == nil {
		_, err = mp.WriteAt(m.Inline, 0)
	}
	if err != nil {
		t.ReleaseBuffer(id)
		return 0, err
	}
	// BufferCreate and BufferMap leave the IPC buffer alone.
	b.Buffer = ipc.BufferRef{Cap: id, Len: uint64(len(m.Inline))}
	return id, nil
}

// dropSpill releases the spill buffer of a call or reply that failed. If
// the kernel already moved the buffer out of t's table there is nothing to
// do; capability IDs are never reused, so a missing ID means it moved.
func (t *Task) dropSpill(id capability.ID) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	_, err := t.caps.Lookup(id)
	dead := t.dead
	t.mu.Unlock()
	if err != nil || dead {
		return
	}
	if err := t.ReleaseBuffer(id); err != nil && !errors.Is(err, syserr.ErrCapNotFound) {
		t.k.faultLog.For(t.name).Warningf("Releasing spill buffer %d of task %d: %v", id, t.id, err)
	}
}

// unstage copies the IPC buffer out, reading and releasing an out-of-line
// payload.
func (t *Task) unstage() (*ipc.Message, error) {
	b := &t.ipcBuf
	m := &ipc.Message{
		Opcode: b.Opcode,
		Status: b.Status,
		Caps:   append([]capability.ID(nil), b.Caps...),
	}
	if !b.Buffer.Valid() {
		m.Inline = append([]byte(nil), b.Inline...)
		return m, nil
	}
	ref := b.Buffer
	mp, err := t.Mapping(ref.Cap)
	if err == nil {
		m.Inline = make([]byte, ref.Len)
		_, err = mp.ReadAt(m.Inline, 0)
	}
	if rerr := t.ReleaseBuffer(ref.Cap); err == nil {
		err = rerr
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Channel is the user-side handle of a channel capability. It implements
// vidl.Caller.
type Channel struct {
	t  *Task
	id capability.ID
}

// Channel returns a handle for the channel capability id.
func (t *Task) Channel(id capability.ID) *Channel {
	return &Channel{t: t, id: id}
}

// ID returns the channel's capability ID.
func (c *Channel) ID() capability.ID {
	return c.id
}

// Call implements vidl.Caller.Call.
func (c *Channel) Call(ctx context.Context, m *ipc.Message) (*ipc.Message, error) {
	spill, err := c.t.stage(m)
	if err != nil {
		return nil, err
	}
	if _, err := c.t.Syscall(ctx, sysno.Call, uint64(c.id)); err != nil {
		c.t.dropSpill(spill)
		return nil, err
	}
	return c.t.unstage()
}

// Endpoint is the user-side handle of an endpoint capability. It implements
// vidl.Receiver.
type Endpoint struct {
	t  *Task
	id capability.ID
}

// Endpoint returns a handle for the endpoint capability id.
func (t *Task) Endpoint(id capability.ID) *Endpoint {
	return &Endpoint{t: t, id: id}
}

// ID returns the endpoint's capability ID.
func (e *Endpoint) ID() capability.ID {
	return e.id
}

// Receive implements vidl.Receiver.Receive.
func (e *Endpoint) Receive(ctx context.Context) (uint64, *ipc.Message, error) {
	r, err := e.t.Syscall(ctx, sysno.Recv, uint64(e.id))
	if err != nil {
		return 0, nil, err
	}
	m, err := e.t.unstage()
	if err != nil {
		return 0, nil, err
	}
	return r[0], m, nil
}

// Reply implements vidl.Receiver.Reply.
func (e *Endpoint) Reply(token uint64, m *ipc.Message) error {
	spill, err := e.t.stage(m)
	if err != nil {
		return err
	}
	if _, err := e.t.Syscall(context.Background(), sysno.Reply, uint64(e.id), token); err != nil {
		e.t.dropSpill(spill)
		return err
	}
	return nil
}

// Channel creates a channel to e for the owning task.
func (e *Endpoint) Channel() (*Channel, error) {
	return e.t.CreateChannel(e.id)
}
