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

// encode emits statements appending x, of type t, to the encoder e.
func (g *Generator) encode(b *sourceBuffer, x string, t *schema.Type, depth int) {
	switch t.Kind {
	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64, schema.KindUsize:
		b.emit("e.%s(%s)\n", integerMethod(t.Kind), x)
	case schema.KindUnit:
		// Nothing on the wire.
	case schema.KindString:
		b.emit("e.String(%s)\n", x)
	case schema.KindCap:
		b.emit("e.Cap(%s)\n", x)
	case schema.KindBuffer:
		b.emit("e.Buffer(%s)\n", x)
	case schema.KindSequence:
		if t.Elem.Kind == schema.KindU8 {
			b.emit("e.Bytes(%s)\n", x)
			return
		}
		b.emit("e.Len(len(%s))\n", x)
		i := loopVar(depth)
		b.block(func() {
			g.encode(b, fmt.Sprintf("%s[%s]", x, i), t.Elem, depth+1)
		}, "for %s := range %s", i, x)
	case schema.KindArray:
		if t.Elem.Kind == schema.KindU8 {
			b.emit("e.Raw(%s[:])\n", x)
			return
		}
		i := loopVar(depth)
		b.block(func() {
			g.encode(b, fmt.Sprintf("%s[%s]", x, i), t.Elem, depth+1)
		}, "for %s := range %s", i, x)
	case schema.KindStruct, schema.KindEnum:
		b.emit("%s.MarshalVIDL(e)\n", x)
	default:
		panic(fmt.Sprintf("cannot encode %v", t))
	}
}

// decode emits statements reading x, of type t, from the decoder d.
func (g *Generator) decode(b *sourceBuffer, x string, t *schema.Type, depth int) {
	switch t.Kind {
	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64, schema.KindUsize:
		b.emit("%s = d.%s()\n", x, integerMethod(t.Kind))
	case schema.KindUnit:
		// Nothing on the wire.
	case schema.KindString:
		b.emit("%s = d.String()\n", x)
	case schema.KindCap:
		b.emit("%s = d.Cap()\n", x)
	case schema.KindBuffer:
		b.emit("%s = d.Buffer()\n", x)
	case schema.KindSequence:
		if t.Elem.Kind == schema.KindU8 {
			b.emit("%s = d.Bytes()\n", x)
			return
		}
		b.emit("%s = vidl.MakeSlice[%s](d.Len(%d))\n", x, goType(t.Elem), g.minSize(t.Elem))
		i := loopVar(depth)
		b.block(func() {
			g.decode(b, fmt.Sprintf("%s[%s]", x, i), t.Elem, depth+1)
		}, "for %s := range %s", i, x)
	case schema.KindArray:
		if t.Elem.Kind == schema.KindU8 {
			b.emit("copy(%s[:], d.Raw(%d))\n", x, t.Len)
			return
		}
		i := loopVar(depth)
		b.block(func() {
			g.decode(b, fmt.Sprintf("%s[%s]", x, i), t.Elem, depth+1)
		}, "for %s := range %s", i, x)
	case schema.KindStruct, schema.KindEnum:
		b.emit("%s.UnmarshalVIDL(d)\n", x)
	default:
		panic(fmt.Sprintf("cannot decode %v", t))
	}
}

// equal returns an expression that is true if a and b, of type t, are
// equal.
func (g *Generator) equal(a, b string, t *schema.Type, depth int) string {
	switch t.Kind {
	case schema.KindUnit:
		return "true"
	case schema.KindStruct:
		return fmt.Sprintf("%s.Equal(&%s)", a, b)
	case schema.KindArray:
		if g.plain(t.Elem) {
			return fmt.Sprintf("%s == %s", a, b)
		}
		return g.equalFunc(a+"[:]", b+"[:]", t.Elem, depth)
	case schema.KindSequence:
		if g.plain(t.Elem) {
			return fmt.Sprintf("slices.Equal(%s, %s)", a, b)
		}
		return g.equalFunc(a, b, t.Elem, depth)
	default:
		return fmt.Sprintf("%s == %s", a, b)
	}
}

func (g *Generator) equalFunc(a, b string, elem *schema.Type, depth int) string {
	x, y := fmt.Sprintf("x%d", depth), fmt.Sprintf("y%d", depth)
	return fmt.Sprintf("slices.EqualFunc(%s, %s, func(%s, %s %s) bool { return %s })", a, b, x, y, goType(elem), g.equal(x, y, elem, depth+1))
}

// compare returns an expression ordering a and b, of type t, as -1, 0 or
// +1.
func (g *Generator) compare(a, b string, t *schema.Type, depth int) string {
	switch t.Kind {
	case schema.KindUnit:
		return "0"
	case schema.KindStruct:
		return fmt.Sprintf("%s.Compare(&%s)", a, b)
	case schema.KindArray:
		return g.compareSlices(a+"[:]", b+"[:]", t.Elem, depth)
	case schema.KindSequence:
		return g.compareSlices(a, b, t.Elem, depth)
	default:
		return fmt.Sprintf("cmp.Compare(%s, %s)", a, b)
	}
}

func (g *Generator) compareSlices(a, b string, elem *schema.Type, depth int) string {
	if g.plain(elem) && elem.Kind != schema.KindUnit {
		return fmt.Sprintf("slices.Compare(%s, %s)", a, b)
	}
	x, y := fmt.Sprintf("x%d", depth), fmt.Sprintf("y%d", depth)
	return fmt.Sprintf("slices.CompareFunc(%s, %s, func(%s, %s %s) int { return %s })", a, b, x, y, goType(elem), g.compare(x, y, elem, depth+1))
}

// plain returns true for types Go compares and orders with its own
// operators.
func (g *Generator) plain(t *schema.Type) bool {
	return t.Kind.Integer() || t.Kind == schema.KindString || t.Kind == schema.KindEnum || t.Kind == schema.KindUnit
}

// typeDecl emits the declaration and methods of d.
func (g *Generator) typeDecl(b *sourceBuffer, d *schema.TypeDecl) {
	name := exported(d.Name)
	if d.Kind == schema.KindEnum {
		g.enumDecl(b, d, name)
		return
	}

	if d.Traits != 0 {
		b.emit("// %s is %s.\n", name, d.Traits)
	}
	b.block(func() {
		for _, f := range d.Fields {
			b.emit("%s %s\n", exported(f.Name), goType(f.Type))
		}
	}, "type %s struct", name)
	b.emit("\n")

	packed := g.packed(d)
	b.emit("// MarshalVIDL implements vidl.Marshaler.MarshalVIDL.\n")
	b.block(func() {
		if packed {
			b.block(func() {
				b.emit("vidl.MarshalPacked(e, v)\n")
				b.emit("return\n")
			}, "if vidl.Packed")
		}
		for _, f := range d.Fields {
			g.encode(b, "v."+exported(f.Name), f.Type, 0)
		}
	}, "func (v *%s) MarshalVIDL(e *vidl.Encoder)", name)
	b.emit("\n")

	b.emit("// UnmarshalVIDL implements vidl.Unmarshaler.UnmarshalVIDL.\n")
	b.block(func() {
		if packed {
			b.block(func() {
				b.emit("vidl.UnmarshalPacked(d, v)\n")
				b.emit("return\n")
			}, "if vidl.Packed")
		}
		for _, f := range d.Fields {
			g.decode(b, "v."+exported(f.Name), f.Type, 0)
		}
	}, "func (v *%s) UnmarshalVIDL(d *vidl.Decoder)", name)
	b.emit("\n")

	if d.Traits.Has(schema.TraitComparable) {
		b.emit("// Equal returns true if v and o hold the same value.\n")
		b.block(func() {
			if len(d.Fields) == 0 {
				b.emit("return true\n")
				return
			}
			for i, f := range d.Fields {
				fn := exported(f.Name)
				cond := g.equal("v."+fn, "o."+fn, f.Type, 0)
				if i == len(d.Fields)-1 {
					b.emit("return %s\n", cond)
				} else {
					b.block(func() { b.emit("return false\n") }, "if !(%s)", cond)
				}
			}
		}, "func (v *%s) Equal(o *%s) bool", name, name)
		b.emit("\n")
	}

	if d.Traits.Has(schema.TraitOrderable) {
		b.emit("// Compare orders v and o field by field, returning -1, 0 or +1.\n")
		b.block(func() {
			for _, f := range d.Fields {
				if f.Type.Kind == schema.KindUnit {
					continue
				}
				fn := exported(f.Name)
				b.block(func() { b.emit("return c\n") }, "if c := %s; c != 0", g.compare("v."+fn, "o."+fn, f.Type, 0))
			}
			b.emit("return 0\n")
		}, "func (v *%s) Compare(o *%s) int", name, name)
		b.emit("\n")
	}
}

func (g *Generator) enumDecl(b *sourceBuffer, d *schema.TypeDecl, name string) {
	b.emit("type %s uint32\n\n", name)
	b.emit("// Variants of %s.\n", name)
	b.block(func() {
		for i, v := range d.Variants {
			if i == 0 {
				b.emit("%s%s %s = iota\n", name, exported(v), name)
			} else {
				b.emit("%s%s\n", name, exported(v))
			}
		}
	}, "const")
	b.emit("\n")

	names := unexported(d.Name) + "Names"
	b.block(func() {
		for _, v := range d.Variants {
			b.emit("%q,\n", v)
		}
	}, "var %s = [...]string", names)
	b.emit("\n")

	b.emit("// String implements fmt.Stringer.String.\n")
	b.block(func() {
		b.block(func() {
			b.emit("return %s[v]\n", names)
		}, "if int(v) < len(%s)", names)
		b.emit("return fmt.Sprintf(\"%s(%%d)\", uint32(v))\n", name)
	}, "func (v %s) String() string", name)
	b.emit("\n")

	b.emit("// Error implements error.Error.\n")
	b.block(func() {
		b.emit("return %q + v.String()\n", g.file.Package+": ")
	}, "func (v %s) Error() string", name)
	b.emit("\n")

	b.emit("// MarshalVIDL implements vidl.Marshaler.MarshalVIDL.\n")
	b.block(func() {
		b.emit("e.U32(uint32(*v))\n")
	}, "func (v *%s) MarshalVIDL(e *vidl.Encoder)", name)
	b.emit("\n")

	b.emit("// UnmarshalVIDL implements vidl.Unmarshaler.UnmarshalVIDL.\n")
	b.block(func() {
		b.emit("*v = %s(d.Enum(%d))\n", name, len(d.Variants))
	}, "func (v *%s) UnmarshalVIDL(d *vidl.Decoder)", name)
	b.emit("\n")
}
