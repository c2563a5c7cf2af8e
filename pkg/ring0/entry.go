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

package ring0

import (
	"gvisor.dev/ukernel/pkg/abi/layout"
	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/syserr"
)

// contextStride is the space reserved per hart for its context store in the
// thread-local segment.
const contextStride = 512

// MaxCPUs returns how many harts have room for a context store in l's
// thread-local segment.
func MaxCPUs(l *layout.Layout) int {
	tls, ok := l.Segment(layout.TLS)
	if !ok {
		return 0
	}
	return int(tls.Range.Length() / contextStride)
}

func (k *Kernel) storeAddr(id int) uint64 {
	if k.Layout == nil {
		return 0
	}
	tls, ok := k.Layout.Segment(layout.TLS)
	if !ok {
		return 0
	}
	return uint64(tls.Range.Start) + uint64(id*contextStride)
}

// Trap enters the kernel on c on behalf of t, which has just raised e.
//
// The full register file is captured into c's context store before dispatch
// and restored afterwards. A trap that arrives while c is still saving the
// previous one corrupts that context and halts the kernel.
func (c *CPU) Trap(t Thread, e Exception) Outcome {
	k := c.kernel
	if k.Halted() != nil {
		return Halted
	}
	if !c.state.CompareAndSwap(uint32(cpuIdle), uint32(cpuSaving)) {
		return c.nested(t, e)
	}

	c.save(t.Registers(), e)
	if k.Halted() != nil {
		// Something trapped during the save.
		return Halted
	}
	c.state.Store(uint32(cpuHandling))

	out, killErr := c.dispatch(t)
	if k.Halted() != nil {
		return Halted
	}
	switch out {
	case Halted:
		return Halted
	case Killed:
		c.release()
		if killErr != nil {
			k.Hooks.Kill(t, killErr)
		}
		return Killed
	}

	if changed := c.entry.Changed(&c.ctx.Registers, arch.CalleeSaved()); len(changed) > 0 {
		k.Halt(syserr.ErrInternal.Errorf("trap handler on hart %d clobbered callee-saved %v", c.id, changed))
		return Halted
	}

	c.state.Store(uint32(cpuRestoring))
	if c.ctx.Cause == arch.UserEnvCall {
		c.ctx.PC += arch.EnvCallSize
	}
	if out == Blocked {
		*t.Frame() = c.ctx
	} else {
		*t.Registers() = c.ctx.Registers
	}
	c.release()
	return out
}

// Resume restores a thread parked by a Blocked trap onto c.
func (c *CPU) Resume(t Thread) Outcome {
	if c.kernel.Halted() != nil {
		return Halted
	}
	if !c.state.CompareAndSwap(uint32(cpuIdle), uint32(cpuRestoring)) {
		panic("ring0: Resume on a busy hart")
	}
	*t.Registers() = t.Frame().Registers
	c.release()
	return Resumed
}

// save captures live into the context store. The anchor register is stashed
// first and then carries the store address while everything else is saved.
func (c *CPU) save(live *arch.Registers, e Exception) {
	c.ctx.Anchor = live.Get(arch.AnchorReg)
	live.Set(arch.AnchorReg, c.kernel.storeAddr(c.id))
	c.step(SaveStep{Stage: SaveAnchor, Reg: arch.AnchorReg})

	for r := arch.RA; r < arch.AnchorReg; r++ {
		c.ctx.Set(r, live.Get(r))
		c.step(SaveStep{Stage: SaveRegister, Reg: r})
	}
	c.ctx.Set(arch.AnchorReg, c.ctx.Anchor)
	c.step(SaveStep{Stage: SaveRegister, Reg: arch.AnchorReg})

	c.ctx.PC = live.PC
	c.ctx.Cause = e.Cause
	c.ctx.Tval = e.Tval
	c.ctx.Mode = e.Mode
	c.entry = c.ctx.Registers
	c.step(SaveStep{Stage: SaveCSRs})
}

func (c *CPU) step(s SaveStep) {
	if c.kernel.OnSave != nil {
		c.kernel.OnSave(c, s)
	}
}

// dispatch runs the handler for the saved trap, followed by any interrupts
// that arrived meanwhile. A panic in either is a kernel fault.
func (c *CPU) dispatch(t Thread) (out Outcome, killErr error) {
	k := c.kernel
	defer func() {
		if r := recover(); r != nil {
			k.Halt(syserr.ErrKernelFault.Errorf("panic in trap handler on hart %d: %v", c.id, r))
			out, killErr = Halted, nil
		}
	}()
	out, killErr = c.route(t)
	if out == Resumed || out == Blocked {
		c.drainPending()
		if k.Halted() != nil {
			return Halted, nil
		}
	}
	return out, killErr
}

// route picks the handler for the saved trap by cause and mode.
func (c *CPU) route(t Thread) (Outcome, error) {
	k := c.kernel
	ctx := &c.ctx
	switch {
	case ctx.Cause.IsInterrupt() && ctx.Cause.Known():
		k.Hooks.Interrupt(c, ctx.Cause)
		return Resumed, nil

	case ctx.Mode == arch.ModeSupervisor:
		k.Halt(syserr.ErrKernelFault.Errorf("%v at pc %#x tval %#x on hart %d", ctx.Cause, ctx.PC, ctx.Tval, c.id))
		return Halted, nil

	case ctx.Cause == arch.UserEnvCall:
		return k.Hooks.Syscall(c, t), nil

	case ctx.Cause.IsMemoryFault(), ctx.Cause == arch.IllegalInstruction, ctx.Cause == arch.Breakpoint:
		if k.Layout != nil && k.Layout.IsKernel(hostarch.Addr(ctx.PC)) {
			k.Halt(syserr.ErrKernelFault.Errorf("%v with kernel pc %#x on hart %d", ctx.Cause, ctx.PC, c.id))
			return Halted, nil
		}
		return Killed, syserr.ErrUserFault.Errorf("%v at pc %#x tval %#x", ctx.Cause, ctx.PC, ctx.Tval)

	default:
		return Killed, syserr.ErrUnhandledTrap.Errorf("%v at pc %#x", ctx.Cause, ctx.PC)
	}
}

// nested handles a trap that arrives while c is already inside one.
func (c *CPU) nested(t Thread, e Exception) Outcome {
	k := c.kernel
	switch cpuState(c.state.Load()) {
	case cpuIdle:
		return c.Trap(t, e)
	case cpuHandling:
		if e.Cause.IsInterrupt() && e.Cause.Known() {
			c.pending = append(c.pending, e.Cause)
			return Resumed
		}
		k.Halt(syserr.ErrKernelFault.Errorf("%v while handling %v on hart %d", e.Cause, c.ctx.Cause, c.id))
	default:
		k.Halt(syserr.ErrNestedTrap.Errorf("%v interrupted the context save on hart %d", e.Cause, c.id))
	}
	return Halted
}

func (c *CPU) drainPending() {
	for len(c.pending) > 0 {
		cause := c.pending[0]
		c.pending = c.pending[1:]
		c.kernel.Hooks.Interrupt(c, cause)
	}
	c.pending = nil
}

func (c *CPU) release() {
	c.pending = nil
	c.state.Store(uint32(cpuIdle))
}
