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
	"fmt"
	goscanner "go/scanner"
	"go/token"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/scanner"
)

// bailout unwinds the parser after the first syntax error.
type bailout struct{}

type parser struct {
	s    scanner.Scanner
	errs goscanner.ErrorList

	tok rune
	lit string
	pos token.Position
}

func position(p scanner.Position) token.Position {
	return token.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

func (p *parser) init(filename string, src io.Reader) {
	p.s.Init(src)
	p.s.Filename = filename
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanComments | scanner.SkipComments
	p.s.Error = func(s *scanner.Scanner, msg string) {
		p.errs.Add(position(s.Position), msg)
	}
	p.next()
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.lit = p.s.TokenText()
	p.pos = position(p.s.Position)
}

func (p *parser) errorf(pos token.Position, format string, v ...any) {
	p.errs.Add(pos, fmt.Sprintf(format, v...))
	panic(bailout{})
}

func describe(tok rune, lit string) string {
	switch tok {
	case scanner.EOF:
		return "end of file"
	case scanner.Ident:
		return fmt.Sprintf("identifier %q", lit)
	case scanner.Int:
		return fmt.Sprintf("integer %s", lit)
	default:
		return fmt.Sprintf("%q", lit)
	}
}

func (p *parser) expect(tok rune) token.Position {
	pos := p.pos
	if p.tok != tok {
		p.errorf(pos, "expected %q, found %s", string(tok), describe(p.tok, p.lit))
	}
	p.next()
	return pos
}

func (p *parser) ident() Ident {
	if p.tok != scanner.Ident {
		p.errorf(p.pos, "expected identifier, found %s", describe(p.tok, p.lit))
	}
	id := Ident{Pos: p.pos, Name: p.lit}
	p.next()
	return id
}

func (p *parser) keyword(word string) {
	if p.tok != scanner.Ident || p.lit != word {
		p.errorf(p.pos, "expected %q, found %s", word, describe(p.tok, p.lit))
	}
	p.next()
}

func (p *parser) integer() (int, token.Position) {
	pos := p.pos
	if p.tok != scanner.Int {
		p.errorf(pos, "expected integer, found %s", describe(p.tok, p.lit))
	}
	n, err := strconv.ParseInt(p.lit, 0, 32)
	if err != nil || n < 0 {
		p.errorf(pos, "invalid integer %s", p.lit)
	}
	p.next()
	return int(n), pos
}

// got consumes tok if it is next.
func (p *parser) got(tok rune) bool {
	if p.tok == tok {
		p.next()
		return true
	}
	return false
}

func (p *parser) file(filename string) *File {
	f := &File{Filename: filename}
	if p.tok == scanner.Ident && p.lit == "package" {
		p.next()
		f.Package = p.ident()
		p.expect(';')
	} else {
		base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		f.Package = Ident{Pos: p.pos, Name: base}
	}

	for p.tok != scanner.EOF {
		var traits []Ident
		attrPos := p.pos
		if p.tok == '#' {
			traits = p.attributes()
		}
		if p.tok != scanner.Ident {
			p.errorf(p.pos, "expected declaration, found %s", describe(p.tok, p.lit))
		}
		switch p.lit {
		case "struct":
			d := p.structDecl()
			d.Traits = traits
			f.Decls = append(f.Decls, d)
		case "enum":
			d := p.enumDecl()
			d.Traits = traits
			f.Decls = append(f.Decls, d)
		case "service":
			if traits != nil {
				p.errorf(attrPos, "trait markers apply only to struct and enum declarations")
			}
			f.Services = append(f.Services, p.service())
		default:
			p.errorf(p.pos, "expected struct, enum or service, found %s", describe(p.tok, p.lit))
		}
	}
	return f
}

func (p *parser) attributes() []Ident {
	p.expect('#')
	p.expect('[')
	var traits []Ident
	for p.tok != ']' {
		traits = append(traits, p.ident())
		if !p.got(',') {
			break
		}
	}
	p.expect(']')
	if len(traits) == 0 {
		// Keep the marker list non-nil so a bare #[] still counts as
		// attributes on a service.
		traits = []Ident{}
	}
	return traits
}

func (p *parser) structDecl() Decl {
	p.keyword("struct")
	d := Decl{Ident: p.ident(), Kind: Struct}
	p.expect('{')
	for p.tok != '}' && p.tok != scanner.EOF {
		name := p.ident()
		p.expect(':')
		d.Fields = append(d.Fields, Field{Ident: name, Type: p.typeExpr()})
		if !p.got(',') {
			break
		}
	}
	p.expect('}')
	return d
}

func (p *parser) enumDecl() Decl {
	p.keyword("enum")
	d := Decl{Ident: p.ident(), Kind: Enum}
	p.expect('{')
	for p.tok != '}' && p.tok != scanner.EOF {
		v := p.ident()
		if p.tok == '(' || p.tok == '{' {
			p.errorf(p.pos, "enum variant %s cannot carry data", v.Name)
		}
		d.Variants = append(d.Variants, v)
		if !p.got(',') {
			break
		}
	}
	p.expect('}')
	return d
}

func (p *parser) service() Service {
	p.keyword("service")
	s := Service{Ident: p.ident()}
	p.expect('{')
	for p.tok != '}' && p.tok != scanner.EOF {
		s.Methods = append(s.Methods, p.method())
	}
	p.expect('}')
	return s
}

func (p *parser) method() Method {
	p.keyword("fn")
	m := Method{Ident: p.ident(), Opcode: -1}
	p.expect('(')
	for p.tok != ')' && p.tok != scanner.EOF {
		name := p.ident()
		p.expect(':')
		m.Params = append(m.Params, Field{Ident: name, Type: p.typeExpr()})
		if !p.got(',') {
			break
		}
	}
	p.expect(')')
	if p.tok == '-' {
		p.next()
		p.expect('>')
		m.Return = p.typeExpr()
	}
	if p.got('=') {
		m.Opcode, m.OpcodePos = p.integer()
	}
	p.expect(';')
	return m
}

func (p *parser) typeExpr() *TypeExpr {
	t := &TypeExpr{Pos: p.pos}
	switch p.tok {
	case '(':
		p.next()
		p.expect(')')
		t.Name = "()"
	case '[':
		p.next()
		t.Elem = p.typeExpr()
		if p.got(';') {
			t.Array = true
			t.Len, _ = p.integer()
		}
		p.expect(']')
	case scanner.Ident:
		t.Name = p.lit
		p.next()
		if p.got('<') {
			for {
				t.Args = append(t.Args, p.typeExpr())
				if !p.got(',') {
					break
				}
			}
			p.expect('>')
		}
	default:
		p.errorf(p.pos, "expected type, found %s", describe(p.tok, p.lit))
	}
	return t
}

// ParseFile parses one schema source file. The error, if any, is a
// go/scanner.ErrorList.
func ParseFile(filename string, src io.Reader) (f *File, err error) {
	var p parser
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
		if len(p.errs) > 0 {
			f = nil
			err = p.errs.Err()
		}
	}()
	p.init(filename, src)
	f = p.file(filename)
	return f, nil
}

// ParseString is ParseFile over a string.
func ParseString(filename, src string) (*File, error) {
	return ParseFile(filename, strings.NewReader(src))
}
