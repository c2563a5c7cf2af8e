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

// Package schema is the type-descriptor model of a compiled interface
// schema.
//
// A File is what the compiler produces from schema source and what
// generated code embeds as a literal. Both sides of a service derive their
// wire format from the same File, so two binaries built separately agree on
// the format whenever their Files have the same fingerprint.
package schema

import (
	"fmt"
	"strings"
)

// Kind is the kind of a field type.
type Kind uint8

// Field type kinds.
const (
	KindInvalid Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindUsize
	KindUnit
	KindString
	KindSequence
	KindArray
	KindCap
	KindBuffer
	KindStruct
	KindEnum
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindU8:       "u8",
	KindU16:      "u16",
	KindU32:      "u32",
	KindU64:      "u64",
	KindUsize:    "usize",
	KindUnit:     "()",
	KindString:   "string",
	KindSequence: "sequence",
	KindArray:    "array",
	KindCap:      "Cap",
	KindBuffer:   "Buffer",
	KindStruct:   "struct",
	KindEnum:     "enum",
}

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Primitive returns true for the kinds that have no parameters.
func (k Kind) Primitive() bool {
	switch k {
	case KindU8, KindU16, KindU32, KindU64, KindUsize, KindUnit, KindString, KindCap, KindBuffer:
		return true
	}
	return false
}

// Integer returns true for the unsigned integer kinds.
func (k Kind) Integer() bool {
	return k >= KindU8 && k <= KindUsize
}

// Primitives maps schema source names to primitive kinds.
var Primitives = map[string]Kind{
	"u8":     KindU8,
	"u16":    KindU16,
	"u32":    KindU32,
	"u64":    KindU64,
	"usize":  KindUsize,
	"()":     KindUnit,
	"string": KindString,
	"Cap":    KindCap,
	"Buffer": KindBuffer,
}

// Type describes the type of a field, parameter or result.
type Type struct {
	Kind Kind `cbor:"1,keyasint"`

	// Name is the declared type for KindStruct and KindEnum.
	Name string `cbor:"2,keyasint,omitempty"`

	// Elem is the element type for KindSequence and KindArray.
	Elem *Type `cbor:"3,keyasint,omitempty"`

	// Len is the element count for KindArray.
	Len int `cbor:"4,keyasint,omitempty"`
}

// MaxArrayLen is the largest element count of a fixed-size array.
const MaxArrayLen = 1 << 16

// maxFixedSize bounds the size of a fixed-size type. Larger types are
// treated as variable-size.
const maxFixedSize = 1 << 30

// Prim returns a primitive type.
func Prim(k Kind) *Type {
	return &Type{Kind: k}
}

// Named returns a reference to a declared struct or enum.
func Named(k Kind, name string) *Type {
	return &Type{Kind: k, Name: name}
}

// Seq returns a sequence of elem.
func Seq(elem *Type) *Type {
	return &Type{Kind: KindSequence, Elem: elem}
}

// Array returns an array of n elem.
func Array(elem *Type, n int) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n}
}

// String returns t in schema source syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindSequence:
		return "[" + t.Elem.String() + "]"
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Elem, t.Len)
	case KindStruct, KindEnum:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// Equal returns true if t and o describe the same type.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Name != o.Name || t.Len != o.Len {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(o.Elem)
}

// Trait is a set of trait markers on a declared type.
type Trait uint8

// Trait markers.
const (
	// TraitTrivial marks a type whose wire form is a fixed-size byte span.
	TraitTrivial Trait = 1 << iota

	// TraitComparable marks a type with generated equality.
	TraitComparable

	// TraitOrderable marks a type with generated total ordering. It
	// implies TraitComparable.
	TraitOrderable
)

// Traits maps marker names to traits.
var Traits = map[string]Trait{
	"trivial":    TraitTrivial,
	"comparable": TraitComparable,
	"orderable":  TraitOrderable,
}

// Has returns true if every trait in o is set in t.
func (t Trait) Has(o Trait) bool {
	return t&o == o
}

// String returns the markers in source syntax order.
func (t Trait) String() string {
	var names []string
	for _, n := range []string{"trivial", "comparable", "orderable"} {
		if t.Has(Traits[n]) {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

// Field is a named struct field or method parameter.
type Field struct {
	Name string `cbor:"1,keyasint"`
	Type *Type  `cbor:"2,keyasint"`
}

// TypeDecl is a declared struct or enum.
type TypeDecl struct {
	Name   string `cbor:"1,keyasint"`
	Kind   Kind   `cbor:"2,keyasint"`
	Traits Trait  `cbor:"3,keyasint,omitempty"`

	// Fields are set for structs, in declaration order.
	Fields []Field `cbor:"4,keyasint,omitempty"`

	// Variants are set for enums. A variant's wire value is its index.
	Variants []string `cbor:"5,keyasint,omitempty"`
}

// Ref returns a type referring to d.
func (d *TypeDecl) Ref() *Type {
	return Named(d.Kind, d.Name)
}

// Method is one service method.
type Method struct {
	Name   string  `cbor:"1,keyasint"`
	Opcode uint16  `cbor:"2,keyasint"`
	Params []Field `cbor:"3,keyasint,omitempty"`
	Ok     *Type   `cbor:"4,keyasint"`
	Err    *Type   `cbor:"5,keyasint"`
}

// Service is an ordered list of methods.
type Service struct {
	Name    string   `cbor:"1,keyasint"`
	Methods []Method `cbor:"2,keyasint,omitempty"`
}

// Method returns the method named name.
func (s *Service) Method(name string) (*Method, bool) {
	for i := range s.Methods {
		if s.Methods[i].Name == name {
			return &s.Methods[i], true
		}
	}
	return nil, false
}

// ByOpcode returns the method with opcode op.
func (s *Service) ByOpcode(op uint16) (*Method, bool) {
	for i := range s.Methods {
		if s.Methods[i].Opcode == op {
			return &s.Methods[i], true
		}
	}
	return nil, false
}

// MaxOpcode returns the largest opcode in s, or -1 for an empty service.
func (s *Service) MaxOpcode() int {
	max := -1
	for _, m := range s.Methods {
		if int(m.Opcode) > max {
			max = int(m.Opcode)
		}
	}
	return max
}

// File is one compiled schema.
type File struct {
	// Package is the schema's name, used as the Go package of generated
	// code.
	Package  string     `cbor:"1,keyasint"`
	Types    []TypeDecl `cbor:"2,keyasint,omitempty"`
	Services []Service  `cbor:"3,keyasint,omitempty"`
}

// Type returns the declaration named name.
func (f *File) Type(name string) (*TypeDecl, bool) {
	for i := range f.Types {
		if f.Types[i].Name == name {
			return &f.Types[i], true
		}
	}
	return nil, false
}

// Service returns the service named name.
func (f *File) Service(name string) (*Service, bool) {
	for i := range f.Services {
		if f.Services[i].Name == name {
			return &f.Services[i], true
		}
	}
	return nil, false
}

// Decl returns the declaration t refers to, or nil if t is not a struct or
// enum reference.
func (f *File) Decl(t *Type) *TypeDecl {
	if t.Kind != KindStruct && t.Kind != KindEnum {
		return nil
	}
	d, ok := f.Type(t.Name)
	if !ok || d.Kind != t.Kind {
		return nil
	}
	return d
}
