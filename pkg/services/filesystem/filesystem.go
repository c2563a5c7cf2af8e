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

// Package filesystem provides the Filesystem service, read-only access to
// a file tree.
//
// Paths are absolute and slash-separated. File contents travel through the
// shared buffer created when the file is opened: read fills the buffer and
// returns the number of bytes placed there.
package filesystem

//go:generate go run gvisor.dev/ukernel/tools/vidlc gen filesystem.vidl

import (
	"context"
	"io"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/shm"
)

// ServiceName is the name the server registers under.
const ServiceName = "Filesystem"

// BufferSize is the length of an open file's buffer, and the most a single
// read returns.
const BufferSize = 16 * hostarch.PageSize

// Connect opens a channel from t to the Filesystem service.
func Connect(ctx context.Context, t *kernel.Task) (*FilesystemClient, error) {
	ch, err := t.Kernel().Connect(ctx, t, ServiceName, FilesystemFingerprint())
	if err != nil {
		return nil, err
	}
	return &FilesystemClient{Caller: ch}, nil
}

// File is a file opened by a client.
type File struct {
	client *FilesystemClient
	task   *kernel.Task
	info   OpenFile
	m      *shm.Mapping
}

// Open opens path for reading on behalf of task t.
func Open(ctx context.Context, t *kernel.Task, c *FilesystemClient, path string) (*File, error) {
	info, err := c.Open(ctx, path, OpenOptionsReadOnly)
	if err != nil {
		return nil, err
	}
	m, err := t.MapBuffer(capability.ID(info.Buffer))
	if err != nil {
		c.Close(ctx, info.Handle)
		return nil, err
	}
	return &File{client: c, task: t, info: info, m: m}, nil
}

// Size returns the file size at open.
func (f *File) Size() int64 {
	return int64(f.info.Size)
}

// Read reads len(p) bytes at off, fewer only at the end of the file, where
// it returns io.EOF.
func (f *File) Read(ctx context.Context, p []byte, off int64) (int, error) {
	done := 0
	for done < len(p) {
		want := min(len(p)-done, BufferSize)
		n, err := f.client.Read(ctx, f.info.Handle, uint64(off)+uint64(done), uint64(want))
		if err != nil {
			return done, err
		}
		if n == 0 {
			return done, io.EOF
		}
		if _, err := f.m.ReadAt(p[done:done+int(n)], 0); err != nil {
			return done, err
		}
		done += int(n)
	}
	return done, nil
}

// ReadAt implements io.ReaderAt.ReadAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.Read(context.Background(), p, off)
}

// Close closes the file and drops its buffer.
func (f *File) Close(ctx context.Context) error {
	if err := f.client.Close(ctx, f.info.Handle); err != nil {
		return err
	}
	return f.task.Revoke(capability.ID(f.info.Buffer))
}

// ReadFile returns the contents of the file at path.
func ReadFile(ctx context.Context, t *kernel.Task, c *FilesystemClient, path string) ([]byte, error) {
	f, err := Open(ctx, t, c, path)
	if err != nil {
		return nil, err
	}
	data := make([]byte, f.Size())
	n, err := f.Read(ctx, data, 0)
	if err == io.EOF {
		// The file shrank since it was opened.
		err = nil
	}
	if cerr := f.Close(ctx); err == nil {
		err = cerr
	}
	return data[:n], err
}
