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
	"sync"
	"sync/atomic"

	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/log"
)

// Kernel is the global kernel state.
type Kernel struct {
	KernelOpts

	cpus []*CPU

	haltOnce sync.Once
	halted   atomic.Bool

	// haltErr is written once, before halted is set.
	haltErr error
}

// Init initializes a new kernel with maxCPUs harts.
func (k *Kernel) Init(opts KernelOpts, maxCPUs int) {
	if opts.Hooks == nil {
		panic("ring0: KernelOpts.Hooks is required")
	}
	k.KernelOpts = opts
	k.cpus = make([]*CPU, maxCPUs)
	for i := range k.cpus {
		k.cpus[i] = &CPU{kernel: k, id: i}
	}
}

// NumCPUs returns the number of harts.
func (k *Kernel) NumCPUs() int {
	return len(k.cpus)
}

// CPU returns hart i.
func (k *Kernel) CPU(i int) *CPU {
	return k.cpus[i]
}

// Halt stops the kernel. Only the first reason is kept.
func (k *Kernel) Halt(err error) {
	k.haltOnce.Do(func() {
		log.Warningf("Kernel halted: %v", err)
		k.haltErr = err
		k.halted.Store(true)
	})
}

// Halted returns the reason the kernel halted, or nil if it is running.
func (k *Kernel) Halted() error {
	if !k.halted.Load() {
		return nil
	}
	return k.haltErr
}

// CPU is one hart. Its Context is the hart's context store.
type CPU struct {
	kernel *Kernel
	id     int

	// state is a cpuState.
	state atomic.Uint32

	// ctx is the context store. It is written only by the save sequence
	// and by handlers through Context, both on the owning hart.
	ctx arch.Context

	// entry is the register file as saved, for checking that handlers leave
	// callee-saved registers alone.
	entry arch.Registers

	// pending holds interrupts taken while handling another trap. They are
	// delivered before the outer trap returns.
	pending []arch.Cause

	// storeAddr stands in for the address of ctx that the anchor register
	// carries during the save.
	storeAddr uint64
}

// ID returns the hart number.
func (c *CPU) ID() int {
	return c.id
}

// Kernel returns the kernel c belongs to.
func (c *CPU) Kernel() *Kernel {
	return c.kernel
}

// Context returns the saved context of the trap being handled. It is only
// valid between entry and exit of a trap on c.
func (c *CPU) Context() *arch.Context {
	return &c.ctx
}

// Busy returns true if the CPU is inside a trap.
func (c *CPU) Busy() bool {
	return cpuState(c.state.Load()) != cpuIdle
}
