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
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/tools/vidl/compile"
)

// big spans several reads.
var big = bytes.Repeat([]byte("0123456789abcdef"), 3*BufferSize/16+1)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"etc/motd":      {Data: []byte("hello, world\n")},
		"etc/hostname":  {Data: []byte("ukernel\n")},
		"var/big":       {Data: big},
		"var/empty":     {},
		"var/log/.keep": {},
	}
}

func start(t *testing.T, fsys fstest.MapFS) (*kernel.Kernel, *Server, *kernel.Task, *FilesystemClient) {
	t.Helper()
	k, err := kernel.New(kernel.Options{})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	t.Cleanup(k.Shutdown)
	g := k.NewGroup(context.Background())
	srv := make(chan *Server, 1)
	g.Go("fsd", func(ctx context.Context, task *kernel.Task) error {
		s := NewServer(task, fsys)
		srv <- s
		return s.Serve(ctx)
	})
	t.Cleanup(func() {
		if err := g.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	client := k.NewTask("client")
	c, err := Connect(context.Background(), client)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return k, <-srv, client, c
}

func TestSchema(t *testing.T) {
	f, err := compile.File("filesystem.vidl")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if diff := cmp.Diff(FilesystemSchema, f); diff != "" {
		t.Errorf("filesystem.vidl does not match the generated descriptor (-generated +compiled):\n%s", diff)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	_, srv, _, c := start(t, testFS())
	for _, tc := range []struct {
		path string
		opts OpenOptions
		want FsError
	}{
		{"/nonexistent", OpenOptionsReadOnly, FsErrorFileNotFound},
		{"etc/motd", OpenOptionsReadOnly, FsErrorInvalidPath},
		{"/etc/../motd", OpenOptionsReadOnly, FsErrorInvalidPath},
		{"/etc//motd", OpenOptionsReadOnly, FsErrorInvalidPath},
		{"/etc/motd", OpenOptionsAppend, FsErrorOperationNotSupported},
		{"/etc/motd", OpenOptionsOverwrite, FsErrorOperationNotSupported},
		{"/etc", OpenOptionsReadOnly, FsErrorOperationNotSupported},
	} {
		if _, err := c.Open(ctx, tc.path, tc.opts); !errors.Is(err, tc.want) {
			t.Errorf("Open(%q, %v) = %v, want %v", tc.path, tc.opts, err, tc.want)
		}
	}
	if got := srv.OpenFiles(); got != 0 {
		t.Errorf("OpenFiles = %d after failed opens", got)
	}
}

func TestReadAfterClose(t *testing.T) {
	ctx := context.Background()
	_, _, client, c := start(t, testFS())
	of, err := c.Open(ctx, "/etc/motd", OpenOptionsReadOnly)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if of.Size != 13 {
		t.Errorf("Size = %d, want 13", of.Size)
	}
	n, err := c.Read(ctx, of.Handle, 7, 100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	m, err := client.MapBuffer(capability.ID(of.Buffer))
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	got := make([]byte, n)
	if _, err := m.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "world\n" {
		t.Errorf("Read = %q, want %q", got, "world\n")
	}

	if err := c.Close(ctx, of.Handle); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Read(ctx, of.Handle, 0, 1); !errors.Is(err, FsErrorInvalidHandle) {
		t.Errorf("Read after Close = %v, want %v", err, FsErrorInvalidHandle)
	}
	if err := c.Close(ctx, of.Handle); !errors.Is(err, FsErrorInvalidHandle) {
		t.Errorf("second Close = %v, want %v", err, FsErrorInvalidHandle)
	}
	if _, err := c.Read(ctx, FileHandle{ID: 99}, 0, 1); !errors.Is(err, FsErrorInvalidHandle) {
		t.Errorf("Read of an unknown handle = %v, want %v", err, FsErrorInvalidHandle)
	}
}

func TestReadFile(t *testing.T) {
	ctx := context.Background()
	k, _, client, c := start(t, testFS())
	for _, tc := range []struct {
		path string
		want []byte
	}{
		{"/etc/hostname", []byte("ukernel\n")},
		{"/var/big", big},
		{"/var/empty", []byte{}},
	} {
		got, err := ReadFile(ctx, client, c, tc.path)
		if err != nil {
			t.Errorf("ReadFile(%q): %v", tc.path, err)
			continue
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("ReadFile(%q) = %d bytes, want %d", tc.path, len(got), len(tc.want))
		}
	}
	if got := k.Buffers().Live(); got != 0 {
		t.Errorf("live buffers = %d after closing every file", got)
	}
}

func TestReadPastEnd(t *testing.T) {
	ctx := context.Background()
	_, _, client, c := start(t, testFS())
	f, err := Open(ctx, client, c, "/etc/motd")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close(ctx)
	p := make([]byte, 10)
	n, err := f.ReadAt(p, 8)
	if n != 5 || err == nil {
		t.Errorf("ReadAt past the end = %d, %v, want 5, EOF", n, err)
	}
	if n, err := f.ReadAt(p, 100); n != 0 || err == nil {
		t.Errorf("ReadAt beyond the end = %d, %v, want 0, EOF", n, err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	_, _, _, c := start(t, testFS())
	got, err := c.List(ctx, "/var")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []DirEntry{
		{Name: "big", Kind: EntryKindFile, Size: uint64(len(big))},
		{Name: "empty", Kind: EntryKindFile},
		{Name: "log", Kind: EntryKindDirectory},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Compare(&got[i]) >= 0 {
			t.Errorf("entries %v and %v out of order", got[i-1], got[i])
		}
	}
	if _, err := c.List(ctx, "/etc/motd"); !errors.Is(err, FsErrorOperationNotSupported) {
		t.Errorf("List of a file = %v, want %v", err, FsErrorOperationNotSupported)
	}
	if _, err := c.List(ctx, "/missing"); !errors.Is(err, FsErrorFileNotFound) {
		t.Errorf("List of a missing directory = %v, want %v", err, FsErrorFileNotFound)
	}
}

func TestListSpillsIntoBuffer(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{}
	for i := 0; i < 100; i++ {
		fsys[fmt.Sprintf("many/file-%03d", i)] = &fstest.MapFile{Data: []byte{byte(i)}}
	}
	k, _, _, c := start(t, fsys)
	got, err := c.List(ctx, "/many")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("List returned %d entries, want 100", len(got))
	}
	if got[42].Name != "file-042" || got[42].Size != 1 {
		t.Errorf("entry 42 = %+v", got[42])
	}
	if live := k.Buffers().Live(); live != 0 {
		t.Errorf("live buffers = %d, want the reply buffer released", live)
	}
}

func TestClientExitClosesFiles(t *testing.T) {
	ctx := context.Background()
	k, srv, client, c := start(t, testFS())
	of, err := c.Open(ctx, "/etc/motd", OpenOptionsReadOnly)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	client.Exit(0)

	other := k.NewTask("other")
	oc, err := Connect(ctx, other)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// The handle went away with the dead client's buffer.
	if _, err := oc.Read(ctx, of.Handle, 0, 1); !errors.Is(err, FsErrorInvalidHandle) {
		t.Errorf("Read of the dead client's handle = %v, want %v", err, FsErrorInvalidHandle)
	}
	if got := srv.OpenFiles(); got != 0 {
		t.Errorf("OpenFiles = %d, want 0", got)
	}
}

func TestHandlesNotGuessable(t *testing.T) {
	ctx := context.Background()
	k, srv, _, c := start(t, testFS())
	var opened []OpenFile
	for _, p := range []string{"/etc/motd", "/etc/hostname"} {
		of, err := c.Open(ctx, p, OpenOptionsReadOnly)
		if err != nil {
			t.Fatalf("Open(%q): %v", p, err)
		}
		opened = append(opened, of)
	}
	if opened[0].Handle == opened[1].Handle {
		t.Fatalf("two opens returned handle %#x", opened[0].Handle.ID)
	}

	other := k.NewTask("other")
	oc, err := Connect(ctx, other)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for _, of := range opened {
		for _, id := range []uint64{0, 1, 2, 3, of.Handle.ID + 1, of.Handle.ID - 1} {
			if id == opened[0].Handle.ID || id == opened[1].Handle.ID {
				continue
			}
			if err := oc.Close(ctx, FileHandle{ID: id}); !errors.Is(err, FsErrorInvalidHandle) {
				t.Errorf("Close(%#x) from another client = %v, want %v", id, err, FsErrorInvalidHandle)
			}
		}
	}
	if got := srv.OpenFiles(); got != 2 {
		t.Errorf("OpenFiles = %d, want 2", got)
	}
	if _, err := c.Read(ctx, opened[0].Handle, 0, 5); err != nil {
		t.Errorf("Read by the opener: %v", err)
	}
}
