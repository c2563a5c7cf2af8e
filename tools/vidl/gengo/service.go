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
	"strings"

	"gvisor.dev/ukernel/pkg/vidl/schema"
)

type param struct {
	name string
	src  string
	typ  *schema.Type
}

func params(m *schema.Method) []param {
	var out []param
	for _, p := range m.Params {
		out = append(out, param{name: paramName(p.Name), src: p.Name, typ: p.Type})
	}
	return out
}

// signature returns the parameter list and results of a Go method for m.
// A unit Ok value is elided.
func signature(m *schema.Method) (string, string) {
	var in []string
	in = append(in, "ctx context.Context")
	for _, p := range params(m) {
		in = append(in, p.name+" "+goType(p.typ))
	}
	out := "error"
	if m.Ok.Kind != schema.KindUnit {
		out = fmt.Sprintf("(%s, error)", goType(m.Ok))
	}
	return strings.Join(in, ", "), out
}

func opcodeName(svc *schema.Service, m *schema.Method) string {
	return exported(svc.Name) + exported(m.Name)
}

func (g *Generator) service(b *sourceBuffer, svc *schema.Service) {
	name := exported(svc.Name)

	b.emit("// Opcodes of %s.\n", name)
	b.block(func() {
		for i := range svc.Methods {
			m := &svc.Methods[i]
			b.emit("%s ipc.Opcode = %d\n", opcodeName(svc, m), m.Opcode)
		}
	}, "const")
	b.emit("\n")

	errTypes := make(map[string]bool)
	var errNames []string
	for _, m := range svc.Methods {
		if n := goType(m.Err); !errTypes[n] {
			errTypes[n] = true
			errNames = append(errNames, n)
		}
	}
	b.emit("// %sProvider is implemented by %s servers. A method's error is\n", name, name)
	b.emit("// either its Result's Err type (%s), which is returned to the caller, or\n", strings.Join(errNames, ", "))
	b.emit("// any other error, which fails the call with its status.\n")
	b.block(func() {
		for i := range svc.Methods {
			m := &svc.Methods[i]
			in, out := signature(m)
			b.emit("%s(%s) %s\n", exported(m.Name), in, out)
		}
	}, "type %sProvider interface", name)
	b.emit("\n")

	b.emit("// %sClient calls %s methods. Each method blocks until the reply\n", name, name)
	b.emit("// arrives.\n")
	b.block(func() {
		b.emit("Caller vidl.Caller\n")
	}, "type %sClient struct", name)
	b.emit("\n")

	for i := range svc.Methods {
		g.clientMethod(b, svc, &svc.Methods[i])
	}
	for i := range svc.Methods {
		g.handler(b, svc, &svc.Methods[i])
	}

	b.emit("// %sDispatchTable returns the handlers of p indexed by opcode.\n", name)
	b.block(func() {
		b.emit("t := make(vidl.DispatchTable, %d)\n", svc.MaxOpcode()+1)
		for i := range svc.Methods {
			m := &svc.Methods[i]
			b.emit("t[%s] = handle%s(p)\n", opcodeName(svc, m), opcodeName(svc, m))
		}
		b.emit("return t\n")
	}, "func %sDispatchTable(p %sProvider) vidl.DispatchTable", name, name)
	b.emit("\n")

	b.emit("// Serve%s answers calls from r with p until ctx is done or the\n", name)
	b.emit("// endpoint closes.\n")
	b.block(func() {
		b.emit("return vidl.Serve(ctx, r, %sDispatchTable(p))\n", name)
	}, "func Serve%s(ctx context.Context, r vidl.Receiver, p %sProvider) error", name, name)
	b.emit("\n")

	b.emit("// %sFingerprint returns the fingerprint of the %s service.\n", name, svc.Name)
	b.block(func() {
		b.emit("return schema.MustServiceFingerprint(%s, %q)\n", g.schemaVar(), svc.Name)
	}, "func %sFingerprint() string", name)
	b.emit("\n")
}

func (g *Generator) clientMethod(b *sourceBuffer, svc *schema.Service, m *schema.Method) {
	in, out := signature(m)
	unit := m.Ok.Kind == schema.KindUnit
	ret := func(v string) string {
		if unit {
			return v
		}
		return "ok, " + v
	}

	b.emit("// %s calls %s.%s.\n", exported(m.Name), svc.Name, m.Name)
	b.block(func() {
		b.emit("e := new(vidl.Encoder)\n")
		for _, p := range params(m) {
			g.encode(b, p.name, p.typ, 0)
		}
		if !unit {
			b.emit("var ok %s\n", goType(m.Ok))
		}
		b.emit("d, isErr, err := vidl.Invoke(ctx, c.Caller, %s, e)\n", opcodeName(svc, m))
		b.block(func() {
			b.emit("return %s\n", ret("err"))
		}, "if err != nil")
		b.block(func() {
			b.emit("var fail %s\n", goType(m.Err))
			b.emit("fail.UnmarshalVIDL(d)\n")
			b.block(func() {
				b.emit("return %s\n", ret("err"))
			}, "if err := d.Finish(); err != nil")
			b.emit("return %s\n", ret("fail"))
		}, "if isErr")
		if !unit {
			g.decode(b, "ok", m.Ok, 0)
		}
		b.emit("return %s\n", ret("d.Finish()"))
	}, "func (c *%sClient) %s(%s) %s", exported(svc.Name), exported(m.Name), in, out)
	b.emit("\n")
}

func (g *Generator) handler(b *sourceBuffer, svc *schema.Service, m *schema.Method) {
	unit := m.Ok.Kind == schema.KindUnit
	ps := params(m)

	b.block(func() {
		b.block(func() {
			var args []string
			args = append(args, "ctx")
			for _, p := range ps {
				b.emit("var %s %s\n", p.name, goType(p.typ))
				g.decode(b, p.name, p.typ, 0)
				args = append(args, p.name)
			}
			b.block(func() {
				b.emit("return err\n")
			}, "if err := d.Finish(); err != nil")
			call := fmt.Sprintf("p.%s(%s)", exported(m.Name), strings.Join(args, ", "))
			if unit {
				b.emit("err := %s\n", call)
			} else {
				b.emit("ok, err := %s\n", call)
			}
			b.block(func() {
				b.emit("var fail %s\n", goType(m.Err))
				b.block(func() {
					b.emit("return err\n")
				}, "if !errors.As(err, &fail)")
				b.emit("e.Fail()\n")
				b.emit("fail.MarshalVIDL(e)\n")
				b.emit("return nil\n")
			}, "if err != nil")
			b.emit("e.Ok()\n")
			if !unit {
				g.encode(b, "ok", m.Ok, 0)
			}
			b.emit("return nil\n")
		}, "return func(ctx context.Context, d *vidl.Decoder, e *vidl.Encoder) error")
	}, "func handle%s(p %sProvider) vidl.Handler", opcodeName(svc, m), exported(svc.Name))
	b.emit("\n")
}
