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

// Package parse reads interface schema source into a syntax tree.
//
// The source language:
//
//	package network;
//
//	// Line comments are ignored.
//	#[trivial, comparable]
//	struct IpV4Address { octets: [u8; 4], }
//
//	enum NetworkError { AlreadyBound, NotBound, }
//
//	service Network {
//	    fn bind_udp(socket: IpV4Socket) -> Result<Buffer, NetworkError>;
//	    fn unbind(socket: IpV4Socket) -> Result<(), NetworkError> = 4;
//	}
//
// Trailing commas are optional. The package statement is optional and
// defaults to the file's base name. Type references are resolved by the
// compiler, not here.
package parse

import (
	"go/token"
	"strconv"
)

// TypeExpr is a type as written.
type TypeExpr struct {
	Pos token.Position

	// Name is a primitive or declared type name, "()" for the unit type,
	// or "Result". It is empty for sequences and arrays.
	Name string

	// Elem is the element of a sequence or array.
	Elem *TypeExpr

	// Array is set for [Elem; Len].
	Array bool
	Len   int

	// Args are the parameters of Result<Ok, Err>.
	Args []*TypeExpr
}

// String returns t in source syntax.
func (t *TypeExpr) String() string {
	switch {
	case t.Array:
		return "[" + t.Elem.String() + "; " + strconv.Itoa(t.Len) + "]"
	case t.Elem != nil:
		return "[" + t.Elem.String() + "]"
	case len(t.Args) > 0:
		s := t.Name + "<"
		for i, a := range t.Args {
			if i > 0 {
				s += ", "
			}
			s += a.String()
		}
		return s + ">"
	default:
		return t.Name
	}
}

// Ident is a name and where it was written.
type Ident struct {
	Pos  token.Position
	Name string
}

// Field is a struct field or method parameter.
type Field struct {
	Ident
	Type *TypeExpr
}

// DeclKind distinguishes structs from enums.
type DeclKind int

// Declaration kinds.
const (
	Struct DeclKind = iota
	Enum
)

// Decl is a struct or enum declaration.
type Decl struct {
	Ident
	Kind     DeclKind
	Traits   []Ident
	Fields   []Field
	Variants []Ident
}

// Method is one service method.
type Method struct {
	Ident
	Params []Field

	// Return is nil if the method has no "->" clause.
	Return *TypeExpr

	// Opcode is the explicit "= N" opcode, or -1.
	Opcode    int
	OpcodePos token.Position
}

// Service is a service declaration.
type Service struct {
	Ident
	Methods []Method
}

// File is one parsed source file.
type File struct {
	Filename string
	Package  Ident
	Decls    []Decl
	Services []Service
}
