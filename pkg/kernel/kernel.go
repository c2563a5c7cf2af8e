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

// Package kernel ties the trap path, capability tables, shared buffers and
// the call/reply protocol together into tasks that talk to each other only
// through syscalls.
//
// A Task stands for a user process running on one thread. Its user-side
// methods (Syscall and the Channel and Endpoint handles) load arguments into
// the task's registers and IPC buffer and trap, exactly like user code would;
// everything on the far side of the trap runs in Kernel's ring0.Hooks.
package kernel

import (
	"fmt"
	"time"

	"gvisor.dev/ukernel/pkg/abi/layout"
	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/metric"
	"gvisor.dev/ukernel/pkg/ring0"
	"gvisor.dev/ukernel/pkg/shm"
)

// Options configure a Kernel.
type Options struct {
	// Harts is the number of hardware threads. Defaults to 1.
	Harts int

	// Layout is the memory layout contract. The zero value selects the
	// sv39 preset. It is validated before the kernel starts.
	Layout layout.Layout

	// BufferLimit bounds the memory held by shared buffers. Zero means no
	// limit.
	BufferLimit int64

	// ConnectTimeout bounds how long Connect waits for a service to be
	// registered. Defaults to 5 seconds.
	ConnectTimeout time.Duration

	// OnSave is passed to the trap path; see ring0.KernelOpts.
	OnSave func(c *ring0.CPU, step ring0.SaveStep)
}

// Kernel is the system state shared by all tasks.
type Kernel struct {
	opts   Options
	layout layout.Layout
	ring0  ring0.Kernel

	// harts holds the idle CPUs. A trap takes one for its duration.
	harts chan *ring0.CPU

	buffers  *shm.Manager
	tasks    TaskSet
	services serviceTable

	metricRegistry metric.Registry
	metrics        kernelMetrics

	// faultLog rate limits fault reports per task name.
	faultLog *log.KeyedRateLimiter[string]
}

// New validates opts and returns a running kernel.
func New(opts Options) (*Kernel, error) {
	if opts.Harts <= 0 {
		opts.Harts = 1
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	l := opts.Layout
	if len(l.Segments) == 0 {
		l = layout.Sv39()
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout probe failed: %w", err)
	}
	if limit := ring0.MaxCPUs(&l); opts.Harts > limit {
		return nil, fmt.Errorf("%d harts requested, thread-local segment holds %d", opts.Harts, limit)
	}
	buffers, err := shm.NewManager(opts.BufferLimit)
	if err != nil {
		return nil, fmt.Errorf("creating shared buffer memory: %w", err)
	}

	k := &Kernel{
		opts:     opts,
		layout:   l,
		harts:    make(chan *ring0.CPU, opts.Harts),
		buffers:  buffers,
		faultLog: log.NewKeyedRateLimiter[string](log.Log(), time.Second),
	}
	k.metrics = newKernelMetrics(&k.metricRegistry)
	k.tasks.init()
	k.ring0.Init(ring0.KernelOpts{
		Hooks:  k,
		Layout: &k.layout,
		OnSave: opts.OnSave,
	}, opts.Harts)
	for i := 0; i < k.ring0.NumCPUs(); i++ {
		k.harts <- k.ring0.CPU(i)
	}
	log.Infof("Kernel started: %d harts, kernel region %v", opts.Harts, l.Kernel)
	return k, nil
}

// Layout returns the validated memory layout.
func (k *Kernel) Layout() layout.Layout {
	return k.layout
}

// Metrics returns the kernel's counters.
func (k *Kernel) Metrics() *metric.Registry {
	return &k.metricRegistry
}

// Buffers returns the shared buffer manager.
func (k *Kernel) Buffers() *shm.Manager {
	return k.buffers
}

// Halted returns the reason the kernel halted, or nil.
func (k *Kernel) Halted() error {
	return k.ring0.Halted()
}

// Shutdown tears down every task and releases all shared memory.
func (k *Kernel) Shutdown() {
	for _, t := range k.tasks.All() {
		t.teardown(nil)
	}
	k.buffers.Destroy()
}

// trap raises e on behalf of t on an idle hart.
func (k *Kernel) trap(t *Task, e ring0.Exception) ring0.Outcome {
	c := <-k.harts
	defer func() { k.harts <- c }()
	return c.Trap(t, e)
}

// resume finishes a blocked syscall: apply writes the syscall's results into
// the parked frame and the frame is restored on an idle hart.
func (k *Kernel) resume(t *Task, apply func(frame *arch.Context)) ring0.Outcome {
	if t.Dead() {
		return ring0.Killed
	}
	c := <-k.harts
	defer func() { k.harts <- c }()
	apply(t.Frame())
	return c.Resume(t)
}

// discard drops a packet that will never be delivered, releasing its
// out-of-line payload.
func (k *Kernel) discard(p ipc.Packet) {
	if p.HasBuffer() {
		if b, ok := p.Buffer.Object.(*shm.Buffer); ok {
			b.Release()
		}
	}
}
