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

// Package ring0 is the trap entry path: it captures a hart's register file
// into that hart's context store, dispatches on the trap cause, and restores
// the context on the way back out.
//
// Each hart is represented by a CPU. A CPU handles at most one trap at a
// time; the save sequence is a short critical section that must not itself
// be interrupted.
package ring0

import (
	"fmt"

	"gvisor.dev/ukernel/pkg/abi/layout"
	"gvisor.dev/ukernel/pkg/arch"
)

// Thread is an execution context that can trap into the kernel.
type Thread interface {
	// Registers returns the live register file: the hardware state that
	// entry saves from and exit restores to.
	Registers() *arch.Registers

	// Frame returns the storage for a parked context. A thread that blocks
	// in a syscall has its saved context moved here so that the hart can
	// run something else.
	Frame() *arch.Context
}

// Hooks are the kernel functions that trap dispatch calls into.
type Hooks interface {
	// Syscall handles an environment call from user mode. The saved context
	// is available through c.Context(). It returns Resumed or Blocked.
	Syscall(c *CPU, t Thread) Outcome

	// Interrupt handles an asynchronous cause.
	Interrupt(c *CPU, cause arch.Cause)

	// Kill terminates the thread's task after a fatal user-mode trap.
	Kill(t Thread, err error)
}

// Outcome is what happened to a trapping thread.
type Outcome uint8

// Trap outcomes.
const (
	// Resumed means the thread's context was restored and execution
	// returned to the interrupted code.
	Resumed Outcome = iota

	// Blocked means the thread's context was parked in its Frame and the
	// hart released. The thread continues once Resume is called.
	Blocked

	// Killed means the thread's task was terminated.
	Killed

	// Halted means the kernel halted. No further traps are accepted.
	Halted
)

// String implements fmt.Stringer.String.
func (o Outcome) String() string {
	switch o {
	case Resumed:
		return "resumed"
	case Blocked:
		return "blocked"
	case Killed:
		return "killed"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Exception is what the hardware reports on trap entry.
type Exception struct {
	Cause arch.Cause
	Tval  uint64
	Mode  arch.Mode
}

// SaveStage identifies a point in the context save sequence.
type SaveStage uint8

// Save stages, in order.
const (
	// SaveAnchor follows the stash of the anchor register.
	SaveAnchor SaveStage = iota

	// SaveRegister follows the store of one general purpose register.
	SaveRegister

	// SaveCSRs follows the store of PC, cause and trap value. The context
	// is complete after this stage.
	SaveCSRs
)

// SaveStep is reported to KernelOpts.OnSave after every save stage.
type SaveStep struct {
	Stage SaveStage
	Reg   arch.Reg
}

// KernelOpts has initialization options for the kernel.
type KernelOpts struct {
	// Hooks are the kernel handlers. Required.
	Hooks Hooks

	// Layout classifies faulting addresses. If nil, only the trap mode
	// decides whether a fault is a kernel fault.
	Layout *layout.Layout

	// OnSave, if set, is called after every step of the save sequence on
	// the trapping CPU. It exists so that interrupted saves can be
	// exercised.
	OnSave func(c *CPU, step SaveStep)
}

// cpuState is the position of a CPU in the trap sequence.
type cpuState uint32

const (
	cpuIdle cpuState = iota
	cpuSaving
	cpuHandling
	cpuRestoring
)
