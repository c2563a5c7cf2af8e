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
	"sort"
	"sync"

	"gvisor.dev/ukernel/pkg/abi/sysno"
	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/shm"
)

// Initial user register values.
const (
	userEntry = 0x10000
	userStack = 0x7fff_f000
)

// ThreadID is a task identifier, unique for the life of a kernel.
type ThreadID uint64

// waiter completes a blocked syscall. It runs on the task's own thread after
// the hart has been released.
type waiter func(ctx context.Context) (sysno.Results, error)

// Task is a single-threaded user process.
//
// The user-side methods of a Task and of its Channel and Endpoint handles
// must be called from one goroutine at a time, the task's thread.
type Task struct {
	k    *Kernel
	id   ThreadID
	name string

	// regs is the live register file and frame the parked context of a
	// blocked syscall. Both belong to the task's thread.
	regs  arch.Registers
	frame arch.Context

	// ipcBuf is the IPC buffer: the message the kernel reads on Call and
	// Reply and fills on Recv and on the reply to Call.
	ipcBuf ipc.Message

	// wait is set by a syscall that returned Blocked.
	wait waiter

	// ctx is cancelled at teardown, waking any blocked syscall.
	ctx    context.Context
	cancel context.CancelFunc

	// mu protects the fields below.
	mu       sync.Mutex
	caps     *capability.Table
	mappings map[*shm.Buffer]*shm.Mapping
	dead     bool
	exitCode uint64
	exitErr  error
}

// NewTask creates a task with an empty capability table.
func (k *Kernel) NewTask(name string) *Task {
	t := &Task{
		k:        k,
		name:     name,
		mappings: make(map[*shm.Buffer]*shm.Mapping),
	}
	t.caps = capability.NewTable(t)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.regs.PC = userEntry
	t.regs.Set(arch.SP, userStack)
	k.tasks.add(t)
	log.Debugf("Task %d (%s) created", t.id, name)
	return t
}

// ID returns the task's identifier.
func (t *Task) ID() ThreadID {
	return t.id
}

// Name returns the name the task was created with.
func (t *Task) Name() string {
	return t.name
}

// Kernel returns the kernel running t.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Registers implements ring0.Thread.Registers.
func (t *Task) Registers() *arch.Registers {
	return &t.regs
}

// Frame implements ring0.Thread.Frame.
func (t *Task) Frame() *arch.Context {
	return &t.frame
}

// Dead returns true once t has been torn down.
func (t *Task) Dead() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dead
}

// Done returns a channel that is closed when t is torn down.
func (t *Task) Done() <-chan struct{} {
	return t.ctx.Done()
}

// ExitStatus returns the code passed to Exit, and the fault that killed t if
// it did not exit by itself.
func (t *Task) ExitStatus() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode, t.exitErr
}

// Caps returns a snapshot of t's capability table in ID order.
func (t *Task) Caps() []capability.Capability {
	t.mu.Lock()
	defer t.mu.Unlock()
	var all []capability.Capability
	t.caps.ForEach(func(c capability.Capability) {
		all = append(all, c)
	})
	return all
}

// Grant adds obj to t's table. It is how the kernel hands out boot-time
// resources such as device windows.
func (t *Task) Grant(obj capability.Object, r capability.Rights) (capability.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return capability.Invalid, errTaskDead(t)
	}
	return t.caps.Grant(obj, r), nil
}

// teardown revokes every capability of t, releases the buffers it is party
// to, closes the endpoints it owns and wakes its blocked syscall. reason is
// nil for a voluntary exit.
func (t *Task) teardown(reason error) {
	t.mu.Lock()
	if t.dead {
		t.mu.Unlock()
		return
	}
	t.dead = true
	t.exitErr = reason
	caps := t.caps.Clear()
	mapped := t.mappings
	t.mappings = nil
	t.mu.Unlock()

	for b := range mapped {
		b.Unmap(t)
	}
	for _, c := range caps {
		switch o := c.Object.(type) {
		case *ipc.Endpoint:
			if o.Owner() == t {
				o.Close()
			}
		case *shm.Buffer:
			o.ReleaseParty(t)
		}
	}
	for b := range mapped {
		b.ReleaseParty(t)
	}
	t.k.services.dropOwner(t)
	t.k.tasks.remove(t)
	t.cancel()
	if reason != nil {
		log.Infof("Task %d (%s) killed: %v", t.id, t.name, reason)
	} else {
		log.Debugf("Task %d (%s) exited", t.id, t.name)
	}
}

// trackLocked records m as t's mapping of b.
//
// Preconditions: t.mu is held.
func (t *Task) trackLocked(b *shm.Buffer, m *shm.Mapping) {
	if _, ok := t.mappings[b]; !ok {
		b.OnRelease(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.mappings, b)
		})
	}
	t.mappings[b] = m
}

// untrackLocked unmaps b from t unless another capability in t still refers
// to it.
//
// Preconditions: t.mu is held.
func (t *Task) untrackLocked(b *shm.Buffer) {
	if _, ok := t.mappings[b]; !ok {
		return
	}
	if _, ok := t.caps.Find(func(c capability.Capability) bool { return c.Object == b }); ok {
		return
	}
	delete(t.mappings, b)
	b.Unmap(t)
}

// TaskSet holds the live tasks of a kernel.
type TaskSet struct {
	mu    sync.Mutex
	next  ThreadID
	tasks map[ThreadID]*Task
}

func (ts *TaskSet) init() {
	ts.next = 1
	ts.tasks = make(map[ThreadID]*Task)
}

func (ts *TaskSet) add(t *Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t.id = ts.next
	ts.next++
	ts.tasks[t.id] = t
}

func (ts *TaskSet) remove(t *Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tasks, t.id)
}

// Get returns the live task with the given ID.
func (ts *TaskSet) Get(id ThreadID) (*Task, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tasks[id]
	return t, ok
}

// All returns the live tasks ordered by ID.
func (ts *TaskSet) All() []*Task {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	all := make([]*Task, 0, len(ts.tasks))
	for _, t := range ts.tasks {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })
	return all
}

// Tasks returns the kernel's task set.
func (k *Kernel) Tasks() *TaskSet {
	return &k.tasks
}
