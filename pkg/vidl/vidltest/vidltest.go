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


// Package vidltest checks generated wire types.
package vidltest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/vidl"
)

// Wire is a generated type T with its marshaling methods.
type Wire[T any] interface {
	*T
	vidl.Marshaler
	vidl.Unmarshaler
}

// Encoded is the wire form of a value.
type Encoded struct {
	Payload []byte
	Caps    []capability.ID
}

// Marshal encodes v, failing t if the encoder reports an error.
func Marshal[T any, P Wire[T]](t testing.TB, v T) Encoded {
	t.Helper()
	var e vidl.Encoder
	P(&v).MarshalVIDL(&e)
	if err := e.Err(); err != nil {
		t.Fatalf("MarshalVIDL(%+v): %v", v, err)
	}
	return Encoded{Payload: e.Payload(), Caps: e.Caps()}
}

// Unmarshal decodes enc, failing t unless it holds exactly one value.
func Unmarshal[T any, P Wire[T]](t testing.TB, enc Encoded) T {
	t.Helper()
	var v T
	d := vidl.NewDecoder(enc.Payload, enc.Caps)
	P(&v).UnmarshalVIDL(d)
	if err := d.Finish(); err != nil {
		t.Fatalf("UnmarshalVIDL(%x): %v", enc.Payload, err)
	}
	return v
}

// RoundTrip checks that in decodes from its own encoding, and that encoding
// the result reproduces the payload and capability slots. Types copied as
// one span are checked both ways against the field by field encoding.
func RoundTrip[T any, P Wire[T]](t *testing.T, in T) Encoded {
	t.Helper()
	packed := vidl.Packed
	t.Cleanup(func() { vidl.Packed = packed })

	vidl.Packed = false
	want := Marshal[T, P](t, in)
	check := func(mode string) {
		t.Helper()
		if got := Marshal[T, P](t, in); !cmp.Equal(want, got, cmpopts.EquateEmpty()) {
			t.Errorf("%s encoding of %+v = %+v, want %+v", mode, in, got, want)
		}
		out := Unmarshal[T, P](t, want)
		if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s decoding mismatch (-want +got):\n%s", mode, diff)
		}
		if got := Marshal[T, P](t, out); !cmp.Equal(want, got, cmpopts.EquateEmpty()) {
			t.Errorf("%s re-encoding = %+v, want %+v", mode, got, want)
		}
	}
	check("field")
	if packed {
		vidl.Packed = true
		check("packed")
	}
	return want
}
