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

// Package gengo generates Go source from a compiled interface schema.
//
// For every declared type the output holds the Go type and its
// MarshalVIDL and UnmarshalVIDL methods, plus Equal and Compare for
// comparable and orderable types. For every service it holds the opcode
// constants, a Provider interface for servers, a Client with one blocking
// stub per method, the dispatch table, and a Serve function. The schema's
// descriptor is embedded as a literal so peers can compare fingerprints at
// runtime.
package gengo

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"
	"gvisor.dev/ukernel/pkg/vidl/schema"
)

// Runtime import paths referenced by generated code.
const (
	ipcImport    = "gvisor.dev/ukernel/pkg/ipc"
	vidlImport   = "gvisor.dev/ukernel/pkg/vidl"
	schemaImport = "gvisor.dev/ukernel/pkg/vidl/schema"
)

// Generator emits the Go source of one schema file.
type Generator struct {
	file *schema.File

	// source names the schema file in the generated header.
	source string
}

// NewGenerator returns a generator for f, compiled from the schema file at
// source.
func NewGenerator(f *schema.File, source string) *Generator {
	return &Generator{file: f, source: filepath.Base(source)}
}

// Filename returns the conventional output name for the generated source.
func (g *Generator) Filename() string {
	return g.file.Package + "_vidl_autogen.go"
}

func (g *Generator) schemaVar() string {
	return exported(g.file.Package) + "Schema"
}

func (g *Generator) writeHeader(b *sourceBuffer) {
	b.emit("// Code generated by vidlc from %s. DO NOT EDIT.\n\n", g.source)
	b.emit("package %s\n\n", g.file.Package)
	// Unused imports are pruned when the output is formatted.
	b.emit("import (\n")
	b.inIndent(func() {
		for _, p := range []string{"cmp", "context", "errors", "fmt", "slices", "", ipcImport, vidlImport, schemaImport} {
			if p == "" {
				b.emit("\n")
				continue
			}
			b.emit("%q\n", p)
		}
	})
	b.emit(")\n\n")
}

// Generate returns the formatted Go source.
func (g *Generator) Generate() ([]byte, error) {
	var b sourceBuffer
	g.writeHeader(&b)
	for i := range g.file.Types {
		g.typeDecl(&b, &g.file.Types[i])
	}
	for i := range g.file.Services {
		g.service(&b, &g.file.Services[i])
	}
	g.descriptor(&b)

	out, err := imports.Process(g.Filename(), b.bytes(), nil)
	if err != nil {
		// The generator produced invalid Go; show it for debugging.
		return nil, fmt.Errorf("formatting generated source: %w\n%s", err, numbered(b.bytes()))
	}
	return out, nil
}

func numbered(src []byte) string {
	var sb strings.Builder
	for i, line := range strings.Split(string(src), "\n") {
		fmt.Fprintf(&sb, "%4d  %s\n", i+1, line)
	}
	return sb.String()
}

// typeLiteral returns a Go expression constructing t.
func typeLiteral(t *schema.Type) string {
	switch t.Kind {
	case schema.KindSequence:
		return fmt.Sprintf("schema.Seq(%s)", typeLiteral(t.Elem))
	case schema.KindArray:
		return fmt.Sprintf("schema.Array(%s, %d)", typeLiteral(t.Elem), t.Len)
	case schema.KindStruct:
		return fmt.Sprintf("schema.Named(schema.KindStruct, %q)", t.Name)
	case schema.KindEnum:
		return fmt.Sprintf("schema.Named(schema.KindEnum, %q)", t.Name)
	default:
		return fmt.Sprintf("schema.Prim(schema.%s)", kindConst(t.Kind))
	}
}

func kindConst(k schema.Kind) string {
	switch k {
	case schema.KindU8:
		return "KindU8"
	case schema.KindU16:
		return "KindU16"
	case schema.KindU32:
		return "KindU32"
	case schema.KindU64:
		return "KindU64"
	case schema.KindUsize:
		return "KindUsize"
	case schema.KindUnit:
		return "KindUnit"
	case schema.KindString:
		return "KindString"
	case schema.KindCap:
		return "KindCap"
	case schema.KindBuffer:
		return "KindBuffer"
	case schema.KindStruct:
		return "KindStruct"
	case schema.KindEnum:
		return "KindEnum"
	default:
		panic(fmt.Sprintf("no constant for %v", k))
	}
}

func traitLiteral(t schema.Trait) string {
	var parts []string
	if t.Has(schema.TraitTrivial) {
		parts = append(parts, "schema.TraitTrivial")
	}
	if t.Has(schema.TraitComparable) {
		parts = append(parts, "schema.TraitComparable")
	}
	if t.Has(schema.TraitOrderable) {
		parts = append(parts, "schema.TraitOrderable")
	}
	return strings.Join(parts, " | ")
}

func fieldsLiteral(b *sourceBuffer, fields []schema.Field, label string) {
	if len(fields) == 0 {
		return
	}
	b.item(func() {
		for _, f := range fields {
			b.emit("{Name: %q, Type: %s},\n", f.Name, typeLiteral(f.Type))
		}
	}, "%s: []schema.Field", label)
}

// descriptor emits the schema literal.
func (g *Generator) descriptor(b *sourceBuffer) {
	f := g.file
	b.emit("// %s is the descriptor %s compiles to.\n", g.schemaVar(), g.source)
	b.block(func() {
		b.emit("Package: %q,\n", f.Package)
		if len(f.Types) > 0 {
			b.item(func() {
				for _, d := range f.Types {
					b.item(func() {
						b.emit("Name: %q,\n", d.Name)
						b.emit("Kind: schema.%s,\n", kindConst(d.Kind))
						if d.Traits != 0 {
							b.emit("Traits: %s,\n", traitLiteral(d.Traits))
						}
						fieldsLiteral(b, d.Fields, "Fields")
						if len(d.Variants) > 0 {
							var vs []string
							for _, v := range d.Variants {
								vs = append(vs, fmt.Sprintf("%q", v))
							}
							b.emit("Variants: []string{%s},\n", strings.Join(vs, ", "))
						}
					}, "")
				}
			}, "Types: []schema.TypeDecl")
		}
		if len(f.Services) > 0 {
			b.item(func() {
				for _, s := range f.Services {
					b.item(func() {
						b.emit("Name: %q,\n", s.Name)
						b.item(func() {
							for _, m := range s.Methods {
								b.item(func() {
									b.emit("Name: %q,\n", m.Name)
									b.emit("Opcode: %d,\n", m.Opcode)
									fieldsLiteral(b, m.Params, "Params")
									b.emit("Ok: %s,\n", typeLiteral(m.Ok))
									b.emit("Err: %s,\n", typeLiteral(m.Err))
								}, "")
							}
						}, "Methods: []schema.Method")
					}, "")
				}
			}, "Services: []schema.Service")
		}
	}, "var %s = &schema.File", g.schemaVar())
}
