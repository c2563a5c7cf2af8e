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

package filesystem

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/vidl"
)

// openFile is a file open on behalf of a client.
type openFile struct {
	path string
	f    fs.File
	size int64

	// buf is the server's capability for the file's shared buffer.
	buf capability.ID
}

// Server serves a read-only fs.FS as the Filesystem service. It implements
// FilesystemProvider.
type Server struct {
	task *kernel.Task
	fsys fs.FS

	mu      sync.Mutex
	handles map[uint64]*openFile
}

// NewServer returns a server for fsys running as task t.
func NewServer(t *kernel.Task, fsys fs.FS) *Server {
	return &Server{
		task:    t,
		fsys:    fsys,
		handles: make(map[uint64]*openFile),
	}
}

// Serve registers the service and answers calls until ctx is done. Files
// still open when Serve returns are closed.
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeAll()
	ep, err := s.task.CreateEndpoint()
	if err != nil {
		return err
	}
	if err := s.task.Kernel().RegisterService(ServiceName, s.task, ep.ID(), FilesystemSchema); err != nil {
		return err
	}
	log.Infof("Filesystem service ready on endpoint %d", ep.ID())
	return ServeFilesystem(ctx, ep, s)
}

// OpenFiles returns the number of open files.
func (s *Server) OpenFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, of := range s.handles {
		s.dropLocked(id, of)
	}
}

// name converts an absolute path to a name in s.fsys.
func name(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", FsErrorInvalidPath
	}
	n := strings.TrimSuffix(path[1:], "/")
	if n == "" {
		return ".", nil
	}
	if !fs.ValidPath(n) {
		return "", FsErrorInvalidPath
	}
	return n, nil
}

// fsError converts an error from s.fsys to an FsError.
func fsError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return FsErrorFileNotFound
	case errors.Is(err, fs.ErrInvalid):
		return FsErrorInvalidPath
	default:
		log.Warningf("Accessing %q: %v", path, err)
		return FsErrorIoError
	}
}

// Open implements FilesystemProvider.Open. The tree is read-only, so only
// OpenOptionsReadOnly is supported.
//
// Handles are random, so a client can only name files it opened or was
// given a handle to. Reads land in the buffer moved to the opener.
func (s *Server) Open(ctx context.Context, path string, options OpenOptions) (OpenFile, error) {
	n, err := name(path)
	if err != nil {
		return OpenFile{}, err
	}
	if options != OpenOptionsReadOnly {
		return OpenFile{}, FsErrorOperationNotSupported
	}
	f, err := s.fsys.Open(n)
	if err != nil {
		return OpenFile{}, fsError(path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return OpenFile{}, fsError(path, err)
	}
	if info.IsDir() {
		f.Close()
		return OpenFile{}, FsErrorOperationNotSupported
	}
	buf, err := s.task.CreateBuffer(BufferSize)
	if err != nil {
		f.Close()
		return OpenFile{}, err
	}
	if _, err := s.task.MapBuffer(buf); err != nil {
		f.Close()
		s.task.ReleaseBuffer(buf)
		return OpenFile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newHandleLocked()
	s.handles[id] = &openFile{path: path, f: f, size: info.Size(), buf: buf}
	log.Debugf("Opened %q as handle %#x", path, id)
	return OpenFile{
		Handle: FileHandle{ID: id},
		Buffer: vidl.Buffer(buf),
		Size:   uint64(info.Size()),
	}, nil
}

// newHandleLocked returns an unused random handle ID.
//
// Preconditions: s.mu is held.
func (s *Server) newHandleLocked() uint64 {
	var b [8]byte
	for {
		rand.Read(b[:])
		id := binary.LittleEndian.Uint64(b[:])
		if _, ok := s.handles[id]; id != 0 && !ok {
			return id
		}
	}
}

// lookupLocked returns the open file behind h. A file whose buffer was
// released by the client is closed.
//
// Preconditions: s.mu is held.
func (s *Server) lookupLocked(h FileHandle) (*openFile, error) {
	of, ok := s.handles[h.ID]
	if !ok {
		return nil, FsErrorInvalidHandle
	}
	if _, err := s.task.Mapping(of.buf); err != nil {
		log.Debugf("Closing handle %d of %q: %v", h.ID, of.path, err)
		s.dropLocked(h.ID, of)
		return nil, FsErrorInvalidHandle
	}
	return of, nil
}

// dropLocked closes handle id.
//
// Preconditions: s.mu is held.
func (s *Server) dropLocked(id uint64, of *openFile) {
	delete(s.handles, id)
	if err := of.f.Close(); err != nil {
		log.Warningf("Closing %q: %v", of.path, err)
	}
	if err := s.task.ReleaseBuffer(of.buf); err != nil {
		log.Debugf("Releasing buffer of %q: %v", of.path, err)
	}
}

// Close implements FilesystemProvider.Close.
func (s *Server) Close(ctx context.Context, h FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	of, err := s.lookupLocked(h)
	if err != nil {
		return err
	}
	s.dropLocked(h.ID, of)
	return nil
}

// Read implements FilesystemProvider.Read. It reads at most BufferSize
// bytes into the file's buffer.
func (s *Server) Read(ctx context.Context, h FileHandle, offset, n uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	of, err := s.lookupLocked(h)
	if err != nil {
		return 0, err
	}
	if offset >= uint64(of.size) {
		return 0, nil
	}
	n = min(n, BufferSize, uint64(of.size)-offset)
	data := make([]byte, n)
	got, err := readAt(of.f, data, int64(offset))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fsError(of.path, err)
	}
	m, err := s.task.Mapping(of.buf)
	if err != nil {
		return 0, err
	}
	if _, err := m.WriteAt(data[:got], 0); err != nil {
		return 0, err
	}
	return uint64(got), nil
}

// readAt reads from f at off, seeking if f is not an io.ReaderAt.
func readAt(f fs.File, p []byte, off int64) (int, error) {
	if ra, ok := f.(io.ReaderAt); ok {
		return ra.ReadAt(p, off)
	}
	sk, ok := f.(io.Seeker)
	if !ok {
		return 0, FsErrorOperationNotSupported
	}
	if _, err := sk.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(f, p)
}

// List implements FilesystemProvider.List. Entries are sorted by name.
func (s *Server) List(ctx context.Context, path string) ([]DirEntry, error) {
	n, err := name(path)
	if err != nil {
		return nil, err
	}
	info, err := fs.Stat(s.fsys, n)
	if err != nil {
		return nil, fsError(path, err)
	}
	if !info.IsDir() {
		return nil, FsErrorOperationNotSupported
	}
	ents, err := fs.ReadDir(s.fsys, n)
	if err != nil {
		return nil, fsError(path, err)
	}
	out := make([]DirEntry, 0, len(ents))
	for _, ent := range ents {
		e := DirEntry{Name: ent.Name(), Kind: EntryKindFile}
		if ent.IsDir() {
			e.Kind = EntryKindDirectory
		} else if fi, err := ent.Info(); err == nil {
			e.Size = uint64(fi.Size())
		}
		out = append(out, e)
	}
	return out, nil
}
