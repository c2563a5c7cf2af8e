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

// Package compile checks a parsed schema and assigns opcodes, producing the
// descriptor that code generation and the runtime consume.
//
// Every error in the file is reported, sorted by position. If there is
// any error no descriptor is produced.
package compile

import (
	"fmt"
	goscanner "go/scanner"
	"go/token"
	"io"
	"os"

	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/vidl/schema"
	"gvisor.dev/ukernel/tools/vidl/parse"
)

type compiler struct {
	src   *parse.File
	out   *schema.File
	errs  goscanner.ErrorList
	decls map[string]*parse.Decl
}

func (c *compiler) errorf(pos token.Position, format string, v ...any) {
	c.errs.Add(pos, fmt.Sprintf(format, v...))
}

// Compile checks f and returns its descriptor. The error, if any, is a
// go/scanner.ErrorList.
func Compile(f *parse.File) (*schema.File, error) {
	c := &compiler{
		src:   f,
		out:   &schema.File{Package: f.Package.Name},
		decls: make(map[string]*parse.Decl),
	}
	c.declare()
	c.types()
	c.checkTraits()
	c.checkRecursion()
	c.services()
	if len(c.errs) > 0 {
		c.errs.Sort()
		return nil, c.errs.Err()
	}
	return c.out, nil
}

// File parses and compiles the schema at path.
func File(path string) (*schema.File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Reader(path, r)
}

// Reader parses and compiles schema source read from r.
func Reader(filename string, r io.Reader) (*schema.File, error) {
	f, err := parse.ParseFile(filename, r)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}

// declare records every declared name, so references may precede
// declarations.
func (c *compiler) declare() {
	if !token.IsIdentifier(c.src.Package.Name) {
		c.errorf(c.src.Package.Pos, "package name %q is not an identifier", c.src.Package.Name)
	}
	for i := range c.src.Decls {
		d := &c.src.Decls[i]
		if _, ok := schema.Primitives[d.Name]; ok || d.Name == "Result" {
			c.errorf(d.Pos, "%s redeclares a builtin type", d.Name)
			continue
		}
		if prev, ok := c.decls[d.Name]; ok {
			c.errorf(d.Pos, "type %s redeclared, previous declaration at %s", d.Name, prev.Pos)
			continue
		}
		c.decls[d.Name] = d
	}
}

func (c *compiler) types() {
	for i := range c.src.Decls {
		d := &c.src.Decls[i]
		if c.decls[d.Name] != d {
			continue
		}
		out := schema.TypeDecl{Name: d.Name, Kind: schema.KindStruct}
		if d.Kind == parse.Enum {
			out.Kind = schema.KindEnum
		}
		for _, tr := range d.Traits {
			t, ok := schema.Traits[tr.Name]
			if !ok {
				c.errorf(tr.Pos, "unknown trait marker %q", tr.Name)
				continue
			}
			out.Traits |= t
		}
		if out.Traits.Has(schema.TraitOrderable) {
			out.Traits |= schema.TraitComparable
		}

		switch d.Kind {
		case parse.Struct:
			out.Fields = c.fields(d.Name, "field", d.Fields)
		case parse.Enum:
			if len(d.Variants) == 0 {
				c.errorf(d.Pos, "enum %s has no variants", d.Name)
			}
			seen := make(map[string]token.Position)
			for _, v := range d.Variants {
				if prev, ok := seen[v.Name]; ok {
					c.errorf(v.Pos, "variant %s.%s redeclared, previous declaration at %s", d.Name, v.Name, prev)
					continue
				}
				seen[v.Name] = v.Pos
				out.Variants = append(out.Variants, v.Name)
			}
		}
		c.out.Types = append(c.out.Types, out)
	}
}

// fields resolves a field or parameter list. what names the list in
// errors.
func (c *compiler) fields(owner, what string, in []parse.Field) []schema.Field {
	var out []schema.Field
	seen := make(map[string]token.Position)
	for _, f := range in {
		if prev, ok := seen[f.Name]; ok {
			c.errorf(f.Pos, "%s %s of %s redeclared, previous declaration at %s", what, f.Name, owner, prev)
			continue
		}
		seen[f.Name] = f.Pos
		t := c.resolve(f.Type)
		if t == nil {
			continue
		}
		out = append(out, schema.Field{Name: f.Name, Type: t})
	}
	return out
}

// resolve converts a written type to a descriptor, or reports why it
// cannot and returns nil.
func (c *compiler) resolve(t *parse.TypeExpr) *schema.Type {
	switch {
	case t.Array:
		if t.Len == 0 {
			c.errorf(t.Pos, "array length must be positive")
			return nil
		}
		if t.Len > schema.MaxArrayLen {
			c.errorf(t.Pos, "array length %d exceeds %d", t.Len, schema.MaxArrayLen)
			return nil
		}
		elem := c.resolve(t.Elem)
		if elem == nil {
			return nil
		}
		return schema.Array(elem, t.Len)
	case t.Elem != nil:
		elem := c.resolve(t.Elem)
		if elem == nil {
			return nil
		}
		return schema.Seq(elem)
	case t.Name == "Result":
		c.errorf(t.Pos, "Result is only valid as a method return type")
		return nil
	case len(t.Args) > 0:
		c.errorf(t.Pos, "type %s takes no parameters", t.Name)
		return nil
	}
	if k, ok := schema.Primitives[t.Name]; ok {
		return schema.Prim(k)
	}
	d, ok := c.decls[t.Name]
	if !ok {
		c.errorf(t.Pos, "undeclared type %s", t.Name)
		return nil
	}
	if d.Kind == parse.Enum {
		return schema.Named(schema.KindEnum, d.Name)
	}
	return schema.Named(schema.KindStruct, d.Name)
}

// checkTraits verifies that every marked type can carry its markers.
func (c *compiler) checkTraits() {
	for _, d := range c.out.Types {
		if d.Kind != schema.KindStruct {
			continue
		}
		pos := c.decls[d.Name].Pos
		for _, f := range d.Fields {
			if d.Traits.Has(schema.TraitTrivial) && !c.out.Trivial(f.Type) {
				c.errorf(pos, "trivial type %s has non-trivial field %s of type %s", d.Name, f.Name, f.Type)
			}
			if d.Traits.Has(schema.TraitOrderable) {
				if !c.out.Orderable(f.Type) {
					c.errorf(pos, "orderable type %s has unorderable field %s of type %s", d.Name, f.Name, f.Type)
				}
			} else if d.Traits.Has(schema.TraitComparable) && !c.out.Comparable(f.Type) {
				c.errorf(pos, "comparable type %s has incomparable field %s of type %s", d.Name, f.Name, f.Type)
			}
		}
	}
}

// checkRecursion rejects structs that contain themselves by value. A
// sequence breaks the cycle, an array does not.
func (c *compiler) checkRecursion() {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var visit func(name string, path []string)
	byValue := func(t *schema.Type) string {
		for t.Kind == schema.KindArray {
			t = t.Elem
		}
		if t.Kind == schema.KindStruct {
			return t.Name
		}
		return ""
	}
	visit = func(name string, path []string) {
		switch state[name] {
		case visiting:
			c.errorf(c.decls[name].Pos, "struct %s contains itself by value (%v)", name, append(path, name))
			return
		case done:
			return
		}
		state[name] = visiting
		d, ok := c.out.Type(name)
		if ok {
			for _, f := range d.Fields {
				if next := byValue(f.Type); next != "" {
					visit(next, append(path, name))
				}
			}
		}
		state[name] = done
	}
	for _, d := range c.out.Types {
		if d.Kind == schema.KindStruct {
			visit(d.Name, nil)
		}
	}
}

func (c *compiler) services() {
	seen := make(map[string]token.Position)
	for _, s := range c.src.Services {
		if prev, ok := seen[s.Name]; ok {
			c.errorf(s.Pos, "service %s redeclared, previous declaration at %s", s.Name, prev)
			continue
		}
		if _, ok := c.decls[s.Name]; ok {
			c.errorf(s.Pos, "service %s has the name of a type", s.Name)
		}
		seen[s.Name] = s.Pos
		c.out.Services = append(c.out.Services, c.service(&s))
	}
}

// service assigns opcodes in declaration order: an explicit "= N" sets the
// opcode, otherwise a method takes the previous method's opcode plus one,
// starting at zero.
func (c *compiler) service(s *parse.Service) schema.Service {
	out := schema.Service{Name: s.Name}
	names := make(map[string]token.Position)
	opcodes := make(map[int]*parse.Method)
	next := 0
	for i := range s.Methods {
		m := &s.Methods[i]
		if prev, ok := names[m.Name]; ok {
			c.errorf(m.Pos, "method %s.%s redeclared, previous declaration at %s", s.Name, m.Name, prev)
			continue
		}
		names[m.Name] = m.Pos

		op, opPos := next, m.Pos
		if m.Opcode >= 0 {
			op, opPos = m.Opcode, m.OpcodePos
		}
		next = op + 1
		if op > int(ipc.MaxOpcode) {
			c.errorf(opPos, "opcode %d of %s.%s exceeds %d", op, s.Name, m.Name, ipc.MaxOpcode)
			continue
		}
		if prev, ok := opcodes[op]; ok {
			c.errorf(opPos, "opcode %d of %s.%s collides with %s.%s", op, s.Name, m.Name, s.Name, prev.Name)
			continue
		}
		opcodes[op] = m

		params := c.fields(s.Name+"."+m.Name, "parameter", m.Params)
		ok, fail := c.result(s, m)
		if ok == nil || fail == nil || len(params) != len(m.Params) {
			continue
		}
		out.Methods = append(out.Methods, schema.Method{
			Name:   m.Name,
			Opcode: uint16(op),
			Params: params,
			Ok:     ok,
			Err:    fail,
		})
	}
	return out
}

func (c *compiler) result(s *parse.Service, m *parse.Method) (ok, fail *schema.Type) {
	r := m.Return
	if r == nil {
		c.errorf(m.Pos, "method %s.%s does not return a Result", s.Name, m.Name)
		return nil, nil
	}
	if r.Name != "Result" || r.Array || r.Elem != nil {
		c.errorf(r.Pos, "method %s.%s returns %s, not a Result", s.Name, m.Name, r)
		return nil, nil
	}
	if len(r.Args) != 2 {
		c.errorf(r.Pos, "Result takes an Ok and an Err type, found %d types", len(r.Args))
		return nil, nil
	}
	ok = c.resolve(r.Args[0])
	fail = c.resolve(r.Args[1])
	if fail != nil && fail.Kind != schema.KindEnum {
		c.errorf(r.Args[1].Pos, "error type %s of %s.%s is not an enum", fail, s.Name, m.Name)
		fail = nil
	}
	return ok, fail
}
