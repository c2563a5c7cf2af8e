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

// Package shm manages shared buffers: capability-backed memory regions mapped
// into the address spaces of both parties of a session for bulk payloads.
//
// The kernel only enforces whether a mapping may be read or written, based
// on the rights of the capability it was mapped through. Concurrent access
// inside a region is coordinated by the service protocol, not here.
package shm

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Manager creates buffers from one shared memory file.
type Manager struct {
	alloc *Allocator

	mu   sync.Mutex
	live map[*Buffer]struct{}
}

// NewManager returns a Manager whose buffers may use at most limit bytes in
// total. A zero limit means no limit.
func NewManager(limit int64) (*Manager, error) {
	a, err := NewAllocator(limit)
	if err != nil {
		return nil, err
	}
	return &Manager{alloc: a, live: make(map[*Buffer]struct{})}, nil
}

// Destroy releases every live buffer and the backing file.
func (m *Manager) Destroy() {
	m.mu.Lock()
	bufs := make([]*Buffer, 0, len(m.live))
	for b := range m.live {
		bufs = append(bufs, b)
	}
	m.mu.Unlock()
	for _, b := range bufs {
		b.Release()
	}
	m.alloc.Destroy()
}

// Live returns the number of buffers not yet released.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// InUse returns the number of bytes held by live buffers.
func (m *Manager) InUse() int64 {
	return m.alloc.InUse()
}

// New creates a buffer of size bytes with owner as its first party.
func (m *Manager) New(owner any, size int) (*Buffer, error) {
	w, err := m.alloc.Allocate(size)
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		mgr:      m,
		window:   w,
		size:     size,
		parties:  map[any]struct{}{owner: {}},
		mappings: make(map[any]*Mapping),
	}
	m.mu.Lock()
	m.live[b] = struct{}{}
	m.mu.Unlock()
	return b, nil
}

// Buffer is a shared memory region. It is the object behind buffer
// capabilities.
type Buffer struct {
	mgr    *Manager
	window Window
	size   int

	// mu protects the fields below. It is held for reading during accesses
	// through mappings, so that Release cannot unmap memory in use.
	mu        sync.RWMutex
	parties   map[any]struct{}
	mappings  map[any]*Mapping
	released  bool
	onRelease []func()
}

// CapKind implements capability.Object.CapKind.
func (b *Buffer) CapKind() capability.Kind {
	return capability.KindBuffer
}

// TransferTo implements capability.Transferable.TransferTo. Every holder of
// a buffer capability becomes a party whose teardown ends the buffer.
func (b *Buffer) TransferTo(owner any) (capability.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, syserr.ErrStaleCapability.Errorf("buffer released")
	}
	b.parties[owner] = struct{}{}
	return b, nil
}

// Len returns the usable size of the buffer.
func (b *Buffer) Len() int {
	return b.size
}

// Window returns the region of the shared memory file backing b.
func (b *Buffer) Window() Window {
	return b.window
}

// Released returns true once b has been released.
func (b *Buffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}

// OnRelease registers fn to run when b is released.
func (b *Buffer) OnRelease(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRelease = append(b.onRelease, fn)
}

// Map maps b into owner's address space with the access r permits. Mapping
// again with the same owner replaces the earlier mapping.
func (b *Buffer) Map(owner any, r capability.Rights) (*Mapping, error) {
	prot := 0
	if r.Contains(capability.Read) {
		prot |= unix.PROT_READ
	}
	if r.Contains(capability.Write) {
		prot |= unix.PROT_READ | unix.PROT_WRITE
	}
	if prot == 0 {
		return nil, syserr.ErrInsufficientRights.Errorf("mapping a buffer needs read or write, have %v", r)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, syserr.ErrStaleCapability.Errorf("buffer released")
	}
	if old, ok := b.mappings[owner]; ok {
		if old.rights == r {
			return old, nil
		}
		old.unmapLocked()
	}
	data, err := unix.Mmap(b.mgr.alloc.FD(), b.window.Offset, b.window.Length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %v", err)
	}
	m := &Mapping{buf: b, owner: owner, data: data[:b.size], full: data, rights: r}
	b.mappings[owner] = m
	b.parties[owner] = struct{}{}
	return m, nil
}

// Unmap removes owner's mapping, if any. The buffer itself stays alive.
func (b *Buffer) Unmap(owner any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.mappings[owner]; ok {
		m.unmapLocked()
	}
}

// ReleaseParty ends b if owner is one of its parties. It is called when a
// party is torn down.
func (b *Buffer) ReleaseParty(owner any) {
	b.mu.RLock()
	_, ok := b.parties[owner]
	b.mu.RUnlock()
	if ok {
		b.Release()
	}
}

// Release unmaps b from every address space and reclaims its memory. It is
// idempotent.
func (b *Buffer) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	for _, m := range b.mappings {
		m.unmapLocked()
	}
	hooks := b.onRelease
	b.onRelease = nil
	b.mu.Unlock()

	if err := b.mgr.alloc.Free(b.window); err != nil {
		log.Warningf("Releasing shared buffer window %+v: %v", b.window, err)
	}
	b.mgr.mu.Lock()
	delete(b.mgr.live, b)
	b.mgr.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
