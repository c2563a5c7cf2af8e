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

package parse

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const sample = `package net;

// Addresses.
#[trivial, comparable]
struct Addr {
	octets: [u8; 4],
	port: u16
}

enum Error { Busy, Gone, }

service Net {
	fn bind(addr: Addr) -> Result<Buffer, Error>;
	fn names() -> Result<[string], Error> = 7;
	fn nop(a: (), b: [[u64]; 2],) -> Result<(), Error>;
}
`

func TestParseSample(t *testing.T) {
	f, err := ParseString("net.vidl", sample)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if f.Package.Name != "net" {
		t.Errorf("package = %q, want net", f.Package.Name)
	}

	type decl struct {
		Name     string
		Kind     DeclKind
		Traits   []string
		Fields   []string
		Variants []string
	}
	var decls []decl
	for _, d := range f.Decls {
		got := decl{Name: d.Name, Kind: d.Kind}
		for _, tr := range d.Traits {
			got.Traits = append(got.Traits, tr.Name)
		}
		for _, fl := range d.Fields {
			got.Fields = append(got.Fields, fl.Name+": "+fl.Type.String())
		}
		for _, v := range d.Variants {
			got.Variants = append(got.Variants, v.Name)
		}
		decls = append(decls, got)
	}
	wantDecls := []decl{
		{Name: "Addr", Kind: Struct, Traits: []string{"trivial", "comparable"}, Fields: []string{"octets: [u8; 4]", "port: u16"}},
		{Name: "Error", Kind: Enum, Variants: []string{"Busy", "Gone"}},
	}
	if diff := cmp.Diff(wantDecls, decls); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}

	type method struct {
		Name   string
		Params []string
		Return string
		Opcode int
	}
	if len(f.Services) != 1 || f.Services[0].Name != "Net" {
		t.Fatalf("services = %+v", f.Services)
	}
	var methods []method
	for _, m := range f.Services[0].Methods {
		got := method{Name: m.Name, Return: m.Return.String(), Opcode: m.Opcode}
		for _, p := range m.Params {
			got.Params = append(got.Params, p.Name+": "+p.Type.String())
		}
		methods = append(methods, got)
	}
	wantMethods := []method{
		{Name: "bind", Params: []string{"addr: Addr"}, Return: "Result<Buffer, Error>", Opcode: -1},
		{Name: "names", Return: "Result<[string], Error>", Opcode: 7},
		{Name: "nop", Params: []string{"a: ()", "b: [[u64]; 2]"}, Return: "Result<(), Error>", Opcode: -1},
	}
	if diff := cmp.Diff(wantMethods, methods, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestPositions(t *testing.T) {
	f, err := ParseString("net.vidl", sample)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	m := f.Services[0].Methods[1]
	if m.Pos.Line != 14 || m.OpcodePos.Line != 14 {
		t.Errorf("names at line %d, opcode at line %d, want 14", m.Pos.Line, m.OpcodePos.Line)
	}
	if got := f.Decls[1].Pos.String(); got != "net.vidl:10:6" {
		t.Errorf("Error declared at %s, want net.vidl:10:6", got)
	}
}

func TestDefaultPackage(t *testing.T) {
	f, err := ParseString("schemas/filesystem.vidl", "enum E { A }")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if f.Package.Name != "filesystem" {
		t.Errorf("package = %q, want filesystem", f.Package.Name)
	}
}

func TestNoReturn(t *testing.T) {
	f, err := ParseString("x.vidl", "service S { fn f(); }")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if f.Services[0].Methods[0].Return != nil {
		t.Errorf("Return = %v, want nil", f.Services[0].Methods[0].Return)
	}
}

func TestSyntaxErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		want string
	}{
		{"payload variant", "enum E { A(u32) }", "x.vidl:1:11: enum variant A cannot carry data"},
		{"marked service", "#[trivial] service S {}", "x.vidl:1:1: trait markers apply only to struct and enum declarations"},
		{"missing colon", "struct S { a u8 }", `x.vidl:1:14: expected ":", found identifier "u8"`},
		{"missing semicolon", "service S { fn f() -> Result<(), E> }", `x.vidl:1:37: expected ";", found "}"`},
		{"bad opcode", "service S { fn f() -> Result<(), E> = x; }", `x.vidl:1:39: expected integer, found identifier "x"`},
		{"stray token", "struct S {} 42", "x.vidl:1:13: expected declaration, found integer 42"},
		{"unknown keyword", "union U {}", `x.vidl:1:1: expected struct, enum or service, found identifier "union"`},
		{"unterminated", "struct S { a: [u8; 4 }", `x.vidl:1:22: expected "]", found "}"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseString("x.vidl", tc.src)
			if err == nil {
				t.Fatalf("ParseString succeeded: %+v", f)
			}
			if f != nil {
				t.Errorf("ParseString returned a partial file")
			}
			if got := strings.SplitN(err.Error(), " (and ", 2)[0]; got != tc.want {
				t.Errorf("error = %q, want %q", got, tc.want)
			}
		})
	}
}
