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

package shm

import (
	"golang.org/x/sys/unix"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Mapping is a buffer mapped into one address space.
type Mapping struct {
	buf    *Buffer
	owner  any
	rights capability.Rights

	// data is full truncated to the buffer length. Both are nil once
	// unmapped.
	data []byte
	full []byte
}

// Rights returns the rights the mapping was made with.
func (m *Mapping) Rights() capability.Rights {
	return m.rights
}

// Len returns the mapped length.
func (m *Mapping) Len() int {
	return m.buf.size
}

// ReadAt implements io.ReaderAt.ReadAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if !m.rights.Contains(capability.Read) {
		return 0, syserr.ErrInsufficientRights.Errorf("mapping is %v", m.rights)
	}
	m.buf.mu.RLock()
	defer m.buf.mu.RUnlock()
	if err := m.checkLocked(off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

// WriteAt implements io.WriterAt.WriteAt.
func (m *Mapping) WriteAt(p []byte, off int64) (int, error) {
	if !m.rights.Contains(capability.Write) {
		return 0, syserr.ErrInsufficientRights.Errorf("mapping is %v", m.rights)
	}
	m.buf.mu.RLock()
	defer m.buf.mu.RUnlock()
	if err := m.checkLocked(off, len(p)); err != nil {
		return 0, err
	}
	return copy(m.data[off:], p), nil
}

// checkLocked validates an access of n bytes at off.
//
// Preconditions: m.buf.mu is held.
func (m *Mapping) checkLocked(off int64, n int) error {
	if m.data == nil {
		return syserr.ErrStaleCapability.Errorf("buffer unmapped")
	}
	if off < 0 || n < 0 || off+int64(n) > int64(len(m.data)) {
		return syserr.ErrOutOfBounds.Errorf("[%d, %d) outside buffer of %d bytes", off, off+int64(n), len(m.data))
	}
	return nil
}

// unmapLocked removes the mapping.
//
// Preconditions: m.buf.mu is held for writing.
func (m *Mapping) unmapLocked() {
	if m.full == nil {
		return
	}
	if err := unix.Munmap(m.full); err != nil {
		log.Warningf("Unmapping shared buffer: %v", err)
	}
	m.data, m.full = nil, nil
	delete(m.buf.mappings, m.owner)
}
