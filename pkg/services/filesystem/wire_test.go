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
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/vidl/vidltest"
)

func TestDirEntryWire(t *testing.T) {
	for _, tc := range []struct {
		entry DirEntry
		want  []byte
	}{
		{
			entry: DirEntry{Name: "motd", Kind: EntryKindFile, Size: 13},
			want: []byte{
				4, 0, 0, 0, 'm', 'o', 't', 'd',
				0, 0, 0, 0,
				13, 0, 0, 0, 0, 0, 0, 0,
			},
		},
		{
			entry: DirEntry{Name: "", Kind: EntryKindDirectory},
			want: []byte{
				0, 0, 0, 0,
				1, 0, 0, 0,
				0, 0, 0, 0, 0, 0, 0, 0,
			},
		},
		{
			entry: DirEntry{Name: "ünïcode", Kind: EntryKindFile, Size: 1 << 40},
		},
	} {
		t.Run(tc.entry.Name, func(t *testing.T) {
			enc := vidltest.RoundTrip(t, tc.entry)
			if tc.want != nil {
				if diff := cmp.Diff(tc.want, enc.Payload); diff != "" {
					t.Errorf("payload mismatch (-want +got):\n%s", diff)
				}
			}
			if len(enc.Caps) != 0 {
				t.Errorf("caps = %v, want none", enc.Caps)
			}
		})
	}
}

func TestOpenFileWire(t *testing.T) {
	for _, of := range []OpenFile{
		{Handle: FileHandle{ID: 1}, Buffer: 2, Size: 0},
		{Handle: FileHandle{ID: 0x8000_0000_0000_0001}, Buffer: 0xffff, Size: 1 << 33},
	} {
		enc := vidltest.RoundTrip(t, of)
		if diff := cmp.Diff([]capability.ID{capability.ID(of.Buffer)}, enc.Caps); diff != "" {
			t.Errorf("cap slots of %+v mismatch (-want +got):\n%s", of, diff)
		}
		if got, want := len(enc.Payload), 8+4+8; got != want {
			t.Errorf("payload of %+v is %d bytes, want %d", of, got, want)
		}
	}
}

func TestFileHandleWire(t *testing.T) {
	enc := vidltest.RoundTrip(t, FileHandle{ID: 0x0102030405060708})
	if diff := cmp.Diff([]byte{8, 7, 6, 5, 4, 3, 2, 1}, enc.Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}
