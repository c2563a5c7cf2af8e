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

package gengo

import (
	"fmt"

	"gvisor.dev/ukernel/pkg/vidl/schema"
)

// goType returns the Go type expression for t.
func goType(t *schema.Type) string {
	switch t.Kind {
	case schema.KindU8:
		return "uint8"
	case schema.KindU16:
		return "uint16"
	case schema.KindU32:
		return "uint32"
	case schema.KindU64, schema.KindUsize:
		return "uint64"
	case schema.KindUnit:
		return "vidl.Unit"
	case schema.KindString:
		return "string"
	case schema.KindSequence:
		return "[]" + goType(t.Elem)
	case schema.KindArray:
		return fmt.Sprintf("[%d]%s", t.Len, goType(t.Elem))
	case schema.KindCap:
		return "vidl.Cap"
	case schema.KindBuffer:
		return "vidl.Buffer"
	case schema.KindStruct, schema.KindEnum:
		return exported(t.Name)
	default:
		panic(fmt.Sprintf("no Go type for %v", t.Kind))
	}
}

// integerMethod returns the Encoder and Decoder method name for an
// integer kind.
func integerMethod(k schema.Kind) string {
	switch k {
	case schema.KindU8:
		return "U8"
	case schema.KindU16:
		return "U16"
	case schema.KindU32:
		return "U32"
	case schema.KindU64, schema.KindUsize:
		return "U64"
	default:
		panic(fmt.Sprintf("%v is not an integer", k))
	}
}

// minSize returns the fewest bytes a value of t encodes to.
func (g *Generator) minSize(t *schema.Type) int {
	if n, ok := g.file.WireSize(t); ok {
		return n
	}
	switch t.Kind {
	case schema.KindString, schema.KindSequence:
		return 4
	case schema.KindArray:
		return t.Len * g.minSize(t.Elem)
	case schema.KindStruct:
		total := 0
		if d := g.file.Decl(t); d != nil {
			for _, f := range d.Fields {
				total += g.minSize(f.Type)
			}
		}
		return total
	}
	return 0
}

// goLayout returns the size and alignment of t in memory on a 64-bit
// host, and false if t is not made solely of unsigned integers.
func (g *Generator) goLayout(t *schema.Type) (size, align int, ok bool) {
	switch t.Kind {
	case schema.KindU8:
		return 1, 1, true
	case schema.KindU16:
		return 2, 2, true
	case schema.KindU32:
		return 4, 4, true
	case schema.KindU64, schema.KindUsize:
		return 8, 8, true
	case schema.KindArray:
		size, align, ok := g.goLayout(t.Elem)
		if !ok || (size > 0 && t.Len > (1<<30)/size) {
			return 0, 0, false
		}
		return size * t.Len, align, true
	case schema.KindStruct:
		d := g.file.Decl(t)
		if d == nil || len(d.Fields) == 0 {
			return 0, 0, false
		}
		off, maxAlign := 0, 1
		for _, f := range d.Fields {
			size, align, ok := g.goLayout(f.Type)
			if !ok {
				return 0, 0, false
			}
			off = (off + align - 1) &^ (align - 1)
			off += size
			if align > maxAlign {
				maxAlign = align
			}
		}
		return (off + maxAlign - 1) &^ (maxAlign - 1), maxAlign, true
	}
	return 0, 0, false
}

// packed returns true if the memory of a d value is its wire form on a
// little-endian host: it is marked trivial, holds only unsigned integers,
// and Go inserts no padding.
func (g *Generator) packed(d *schema.TypeDecl) bool {
	if d.Kind != schema.KindStruct || !d.Traits.Has(schema.TraitTrivial) {
		return false
	}
	size, _, ok := g.goLayout(d.Ref())
	if !ok {
		return false
	}
	wire, ok := g.file.WireSize(d.Ref())
	return ok && wire == size && g.noInnerPadding(d)
}

// noInnerPadding returns true if no field of d or of its nested structs
// is preceded by padding.
func (g *Generator) noInnerPadding(d *schema.TypeDecl) bool {
	off := 0
	for _, f := range d.Fields {
		size, align, _ := g.goLayout(f.Type)
		if off%align != 0 {
			return false
		}
		t := f.Type
		for t.Kind == schema.KindArray {
			t = t.Elem
		}
		if nd := g.file.Decl(t); nd != nil && !g.noInnerPadding(nd) {
			return false
		}
		off += size
	}
	return true
}
