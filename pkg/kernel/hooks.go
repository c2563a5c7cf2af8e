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
	"gvisor.dev/ukernel/pkg/abi/sysno"
	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/ring0"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Syscall implements ring0.Hooks.Syscall.
func (k *Kernel) Syscall(c *ring0.CPU, th ring0.Thread) ring0.Outcome {
	t := th.(*Task)
	ctx := c.Context()
	no := sysno.Sysno(ctx.SyscallNumber())
	k.metrics.traps.Increment(trapSyscall)
	k.metrics.syscalls.Increment(sysnoLabel(no))
	if t.Dead() {
		return ring0.Killed
	}

	var args sysno.Args
	for i := range args {
		args[i] = ctx.Arg(i)
	}
	if no == sysno.Exit {
		t.mu.Lock()
		t.exitCode = args[0]
		t.mu.Unlock()
		t.teardown(nil)
		return ring0.Killed
	}

	var fn syscallFn
	if no.Valid() {
		fn = syscallTable[no]
	}
	if fn == nil {
		err := syserr.ErrBadSyscall.Errorf("%v from task %d", no, t.id)
		k.metrics.countError(err)
		ctx.SetSyscallReturn(uint64(syserr.StatusOf(err)))
		return ring0.Resumed
	}

	r, wait, err := fn(t, args)
	if err != nil {
		k.metrics.countError(err)
		log.Debugf("Task %d: %v failed: %v", t.id, no, err)
	}
	if wait != nil {
		t.wait = wait
		return ring0.Blocked
	}
	ctx.SetSyscallReturn(uint64(syserr.StatusOf(err)), r[:]...)
	return ring0.Resumed
}

// Interrupt implements ring0.Hooks.Interrupt.
func (k *Kernel) Interrupt(c *ring0.CPU, cause arch.Cause) {
	k.metrics.traps.Increment(trapInterrupt)
	log.Debugf("Hart %d: %v", c.ID(), cause)
}

// Kill implements ring0.Hooks.Kill.
func (k *Kernel) Kill(th ring0.Thread, err error) {
	t := th.(*Task)
	k.metrics.traps.Increment(trapFault)
	k.faultLog.For(t.name).Warningf("Task %d (%s) faulted: %v", t.id, t.name, err)
	t.teardown(err)
}
