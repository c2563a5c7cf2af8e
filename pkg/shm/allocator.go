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
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Window is a page-aligned range of the shared memory file.
type Window struct {
	// Offset is the offset into the shared memory file at which the window
	// begins.
	Offset int64

	// Length is the size of the window in bytes.
	Length int
}

// end returns the offset just past w.
func (w Window) end() int64 {
	return w.Offset + int64(w.Length)
}

// An Allocator owns a shared memory file, and allocates windows from it.
// Windows released by Free are reused first-fit and their pages are returned
// to the host.
type Allocator struct {
	fd int

	// limit is the maximum file size, or 0 for no limit.
	limit int64

	mu        sync.Mutex
	nextAlloc int64
	fileSize  int64
	inUse     int64

	// free is sorted by offset and coalesced.
	free []Window
}

// NewAllocator returns an Allocator whose file never grows past limit bytes.
// A zero limit means no limit. Destroy must be called once the Allocator is
// no longer in use.
func NewAllocator(limit int64) (*Allocator, error) {
	fd, err := unix.MemfdCreate("ukernel_shared_buffers", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("failed to create memfd: %v", err)
	}
	// Apply F_SEAL_SHRINK so that no mapping can be invalidated by
	// truncation, and F_SEAL_SEAL so that no further seals can be added.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_SEAL); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to apply memfd seals: %v", err)
	}
	return &Allocator{fd: fd, limit: limit}, nil
}

// Destroy releases the shared memory file. Existing mappings stay valid until
// unmapped.
func (a *Allocator) Destroy() {
	unix.Close(a.fd)
}

// FD returns the file descriptor of the shared memory file.
func (a *Allocator) FD() int {
	return a.fd
}

// InUse returns the number of bytes in allocated windows.
func (a *Allocator) InUse() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Allocate returns a window of at least size bytes.
//
// Preconditions: size > 0.
func (a *Allocator) Allocate(size int) (Window, error) {
	if size <= 0 {
		return Window{}, fmt.Errorf("invalid size: %d", size)
	}
	length := int(hostarch.PageRoundUp(uint64(size)))
	if length <= 0 {
		return Window{}, fmt.Errorf("size %d overflows after rounding up to page size", size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, f := range a.free {
		if f.Length < length {
			continue
		}
		w := Window{Offset: f.Offset, Length: length}
		if f.Length == length {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Window{Offset: f.Offset + int64(length), Length: f.Length - length}
		}
		a.inUse += int64(length)
		return w, nil
	}

	end := a.nextAlloc + int64(length) // overflow checked by ensureFileSize
	if err := a.ensureFileSize(end); err != nil {
		return Window{}, err
	}
	w := Window{Offset: a.nextAlloc, Length: length}
	a.nextAlloc = end
	a.inUse += int64(length)
	return w, nil
}

func (a *Allocator) ensureFileSize(min int64) error {
	if min <= 0 {
		return fmt.Errorf("file size would overflow")
	}
	if a.limit > 0 && min > a.limit {
		return syserr.ErrNoMemory.Errorf("need %d bytes, limit is %d", min, a.limit)
	}
	if a.fileSize >= min {
		return nil
	}
	newSize := 2 * a.fileSize
	if newSize == 0 {
		newSize = hostarch.PageSize
	}
	for newSize < min {
		newNewSize := newSize * 2
		if newNewSize <= 0 {
			return fmt.Errorf("file size would overflow")
		}
		newSize = newNewSize
	}
	if a.limit > 0 && newSize > a.limit {
		newSize = a.limit
	}
	if err := unix.Ftruncate(a.fd, newSize); err != nil {
		return fmt.Errorf("ftruncate failed: %v", err)
	}
	a.fileSize = newSize
	return nil
}

// Free returns w to the allocator and discards its contents.
func (a *Allocator) Free(w Window) error {
	if err := unix.Fallocate(a.fd, unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, w.Offset, int64(w.Length)); err != nil {
		return fmt.Errorf("failed to punch hole at [%d, %d): %v", w.Offset, w.end(), err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse -= int64(w.Length)
	i := sort.Search(len(a.free), func(i int) bool {
		return a.free[i].Offset > w.Offset
	})
	a.free = append(a.free, Window{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = w
	a.coalesce(i)
	return nil
}

// coalesce merges free[i] with its neighbours where they touch.
func (a *Allocator) coalesce(i int) {
	if i+1 < len(a.free) && a.free[i].end() == a.free[i+1].Offset {
		a.free[i].Length += a.free[i+1].Length
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].end() == a.free[i].Offset {
		a.free[i-1].Length += a.free[i].Length
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}
