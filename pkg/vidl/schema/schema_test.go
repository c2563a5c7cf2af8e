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

package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testFile() *File {
	addr := TypeDecl{
		Name:   "Addr",
		Kind:   KindStruct,
		Traits: TraitTrivial | TraitComparable,
		Fields: []Field{
			{Name: "octets", Type: Array(Prim(KindU8), 4)},
			{Name: "port", Type: Prim(KindU16)},
		},
	}
	errs := TypeDecl{Name: "Err", Kind: KindEnum, Variants: []string{"Busy", "Gone"}}
	blob := TypeDecl{
		Name: "Blob",
		Kind: KindStruct,
		Fields: []Field{
			{Name: "name", Type: Prim(KindString)},
			{Name: "data", Type: Seq(Prim(KindU8))},
			{Name: "buf", Type: Prim(KindBuffer)},
		},
	}
	return &File{
		Package: "test",
		Types:   []TypeDecl{addr, errs, blob},
		Services: []Service{{
			Name: "Echo",
			Methods: []Method{
				{Name: "ping", Opcode: 0, Params: []Field{{Name: "to", Type: addr.Ref()}}, Ok: Prim(KindUnit), Err: errs.Ref()},
				{Name: "fetch", Opcode: 7, Ok: blob.Ref(), Err: errs.Ref()},
			},
		}},
	}
}

func TestWireSize(t *testing.T) {
	f := testFile()
	for _, tc := range []struct {
		typ  *Type
		size int
		ok   bool
	}{
		{Prim(KindU8), 1, true},
		{Prim(KindUsize), 8, true},
		{Prim(KindUnit), 0, true},
		{Prim(KindCap), 4, true},
		{Named(KindEnum, "Err"), 4, true},
		{Named(KindStruct, "Addr"), 6, true},
		{Array(Named(KindStruct, "Addr"), 3), 18, true},
		{Array(Prim(KindU64), MaxArrayLen), 8 * MaxArrayLen, true},
		{Array(Array(Array(Prim(KindU64), MaxArrayLen), MaxArrayLen), MaxArrayLen), 0, false},
		{Prim(KindString), 0, false},
		{Named(KindStruct, "Blob"), 0, false},
		{Named(KindStruct, "Missing"), 0, false},
	} {
		size, ok := f.WireSize(tc.typ)
		if size != tc.size || ok != tc.ok {
			t.Errorf("WireSize(%v) = %d, %t, want %d, %t", tc.typ, size, ok, tc.size, tc.ok)
		}
	}
}

func TestTraits(t *testing.T) {
	f := testFile()
	addr := Named(KindStruct, "Addr")
	blob := Named(KindStruct, "Blob")
	if !f.Trivial(addr) || f.Trivial(blob) || f.Trivial(Prim(KindCap)) {
		t.Errorf("Trivial: Addr=%t Blob=%t Cap=%t", f.Trivial(addr), f.Trivial(blob), f.Trivial(Prim(KindCap)))
	}
	if !f.Comparable(addr) || f.Comparable(blob) || f.Comparable(Prim(KindBuffer)) {
		t.Errorf("Comparable: Addr=%t Blob=%t Buffer=%t", f.Comparable(addr), f.Comparable(blob), f.Comparable(Prim(KindBuffer)))
	}
	if f.Orderable(addr) {
		t.Errorf("Addr is orderable without the marker")
	}
	if !f.Orderable(Seq(Named(KindEnum, "Err"))) {
		t.Errorf("sequence of enums is not orderable")
	}
	if got, want := (TraitTrivial | TraitOrderable).String(), "trivial, orderable"; got != want {
		t.Errorf("Trait.String = %q, want %q", got, want)
	}
}

func TestTypeString(t *testing.T) {
	for _, tc := range []struct {
		typ  *Type
		want string
	}{
		{Prim(KindUnit), "()"},
		{Seq(Prim(KindString)), "[string]"},
		{Array(Seq(Prim(KindU8)), 2), "[[u8]; 2]"},
		{Named(KindEnum, "Err"), "Err"},
	} {
		if got := tc.typ.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	f := testFile()
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("Decode(Encode(f)) mismatch (-want +got):\n%s", diff)
	}
}

func TestFingerprintStable(t *testing.T) {
	a, err := Fingerprint(testFile())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := Fingerprint(testFile())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a != b {
		t.Errorf("fingerprints of equal descriptors differ: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint %q is not 32 hex-encoded bytes", a)
	}
}

func TestServiceFingerprint(t *testing.T) {
	base := MustServiceFingerprint(testFile(), "Echo")

	// An unreachable declaration does not matter.
	f := testFile()
	f.Types = append(f.Types, TypeDecl{Name: "Unused", Kind: KindEnum, Variants: []string{"A"}})
	if got := MustServiceFingerprint(f, "Echo"); got != base {
		t.Errorf("unrelated declaration changed the fingerprint")
	}

	// A renumbered method does.
	f = testFile()
	f.Services[0].Methods[1].Opcode = 8
	if got := MustServiceFingerprint(f, "Echo"); got == base {
		t.Errorf("opcode change kept the fingerprint")
	}

	// So does a change in a reachable type.
	f = testFile()
	f.Types[0].Fields[1].Type = Prim(KindU32)
	if got := MustServiceFingerprint(f, "Echo"); got == base {
		t.Errorf("field type change kept the fingerprint")
	}

	if _, err := ServiceFingerprint(testFile(), "Nope"); err == nil {
		t.Errorf("ServiceFingerprint of a missing service succeeded")
	}
}

func TestReachable(t *testing.T) {
	f := testFile()
	svc, _ := f.Service("Echo")
	var names []string
	for _, d := range f.Reachable(svc) {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"Addr", "Err", "Blob"}, names); diff != "" {
		t.Errorf("Reachable mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryCopies(t *testing.T) {
	var r Registry
	f := testFile()
	if err := r.Register(f); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Later changes to the caller's value are not observed.
	f.Services[0].Methods[0].Name = "changed"
	got, fp, ok := r.Lookup("Echo")
	if !ok {
		t.Fatalf("Lookup(Echo) failed")
	}
	if diff := cmp.Diff(testFile(), got); diff != "" {
		t.Errorf("registered descriptor changed (-want +got):\n%s", diff)
	}
	if want := MustServiceFingerprint(testFile(), "Echo"); fp != want {
		t.Errorf("fingerprint = %s, want %s", fp, want)
	}

	// Neither are changes to a looked up copy.
	got.Types = nil
	again, _, _ := r.Lookup("Echo")
	if len(again.Types) != 3 {
		t.Errorf("lookup copy aliases the registry")
	}
}

func TestRegistryConflict(t *testing.T) {
	var r Registry
	if err := r.Register(testFile()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(testFile()); err != nil {
		t.Errorf("registering an identical schema again: %v", err)
	}
	f := testFile()
	f.Services[0].Methods[0].Opcode = 3
	if err := r.Register(f); err == nil {
		t.Errorf("registering a conflicting schema succeeded")
	}
	if diff := cmp.Diff([]string{"Echo"}, r.Services()); diff != "" {
		t.Errorf("Services mismatch (-want +got):\n%s", diff)
	}
}
