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
	"bytes"
	"fmt"
	"go/token"
	"strings"
)

// emit writes one line fragment to out at the given indent.
//
// emit("text") copies the string. emit(format, args...) formats like
// Printf. A single argument that is not a string panics, since the intent
// is ambiguous.
func emit(out *bytes.Buffer, indent int, a ...any) {
	if len(a) < 1 {
		panic("emit() called with no arguments")
	}
	first, ok := a[0].(string)
	if !ok {
		panic(fmt.Sprintf("First argument to emit() is not a string: %+v", a[0]))
	}
	out.WriteString(strings.Repeat("\t", indent))
	if len(a) == 1 {
		out.WriteString(first)
		return
	}
	fmt.Fprintf(out, first, a[1:]...)
}

// sourceBuffer accumulates generated source. The zero value is ready to
// use. Not thread-safe.
type sourceBuffer struct {
	indent int
	b      bytes.Buffer
}

func (b *sourceBuffer) incIndent() {
	b.indent++
}

func (b *sourceBuffer) decIndent() {
	if b.indent <= 0 {
		panic("decIndent() without matching incIndent()")
	}
	b.indent--
}

func (b *sourceBuffer) emit(a ...any) {
	emit(&b.b, b.indent, a...)
}

func (b *sourceBuffer) inIndent(body func()) {
	b.incIndent()
	body()
	b.decIndent()
}

// block emits "header {", the body one level in, and the closing brace.
func (b *sourceBuffer) block(body func(), format string, a ...any) {
	b.emit(append([]any{format + " {\n"}, a...)...)
	b.inIndent(body)
	b.emit("}\n")
}

// item is block for an element of a composite literal: it closes with
// "},". An empty header opens an unnamed element.
func (b *sourceBuffer) item(body func(), format string, a ...any) {
	if format == "" {
		b.emit("{\n")
	} else {
		b.emit(append([]any{format + " {\n"}, a...)...)
	}
	b.inIndent(body)
	b.emit("},\n")
}

func (b *sourceBuffer) bytes() []byte {
	return b.b.Bytes()
}

// initialisms are written in upper case in Go names.
var initialisms = map[string]bool{
	"api":  true,
	"fs":   true,
	"id":   true,
	"io":   true,
	"ip":   true,
	"mmio": true,
	"tcp":  true,
	"udp":  true,
	"url":  true,
}

// exported converts a schema name (snake_case or CamelCase) to an exported
// Go name.
func exported(name string) string {
	var sb strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		if initialisms[strings.ToLower(part)] && strings.ToLower(part) == part {
			sb.WriteString(strings.ToUpper(part))
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}

// unexported converts a schema name to an unexported Go name.
func unexported(name string) string {
	e := exported(name)
	if e == "" {
		return e
	}
	// A leading initialism is lowered as a whole.
	i := 0
	for i < len(e) && e[i] >= 'A' && e[i] <= 'Z' {
		i++
	}
	switch {
	case i == len(e):
		return strings.ToLower(e)
	case i > 1:
		i--
	}
	if i == 0 {
		i = 1
	}
	return strings.ToLower(e[:i]) + e[i:]
}

// reserved are identifiers generated code uses in method bodies.
var reserved = map[string]bool{
	"c": true, "ctx": true, "d": true, "e": true, "p": true, "r": true, "t": true,
	"o": true, "v": true, "ok": true, "err": true, "fail": true, "isErr": true,
	"len": true, "make": true, "copy": true, "nil": true, "cmp": true,
	"errors": true, "slices": true, "vidl": true, "ipc": true, "schema": true,
	"context": true, "fmt": true,
}

// paramName returns the Go identifier for a parameter.
func paramName(name string) string {
	n := unexported(name)
	if reserved[n] || token.IsKeyword(n) {
		return n + "Arg"
	}
	return n
}

// loopVar returns the index variable for a loop nested depth deep.
func loopVar(depth int) string {
	const names = "ijklmn"
	if depth < len(names) {
		return names[depth : depth+1]
	}
	return fmt.Sprintf("i%d", depth)
}
