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

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
	"gvisor.dev/ukernel/pkg/vidl/schema"
	"gvisor.dev/ukernel/tools/vidl/compile"
)

// Describe implements subcommands.Command for the "describe" command.
type Describe struct {
	format string
}

// Name implements subcommands.Command.Name.
func (*Describe) Name() string {
	return "describe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Describe) Synopsis() string {
	return "print a compiled schema and its fingerprints"
}

// Usage implements subcommands.Command.Usage.
func (*Describe) Usage() string {
	return `describe [-format=yaml|cbor] <file.vidl> - prints the descriptor.
The cbor format is the hex canonical encoding the fingerprints are computed over.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Describe) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.format, "format", "yaml", "output format: yaml (default) or cbor.")
}

// Execute implements subcommands.Command.Execute.
func (d *Describe) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sf, err := compile.File(f.Arg(0))
	if err != nil {
		return fatalf("%v", err)
	}
	switch d.format {
	case "yaml":
		v, err := describe(sf)
		if err != nil {
			return fatalf("%v", err)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fatalf("%v", err)
		}
		if err := enc.Close(); err != nil {
			return fatalf("%v", err)
		}
	case "cbor":
		b, err := schema.Encode(sf)
		if err != nil {
			return fatalf("%v", err)
		}
		fmt.Println(hex.EncodeToString(b))
	default:
		return fatalf("invalid format %q, must be 'yaml' or 'cbor'", d.format)
	}
	return subcommands.ExitSuccess
}

type typeView struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Traits   string   `yaml:"traits,omitempty"`
	WireSize int      `yaml:"wire_size,omitempty"`
	Fields   []string `yaml:"fields,omitempty"`
	Variants []string `yaml:"variants,omitempty"`
}

type methodView struct {
	Opcode    uint16 `yaml:"opcode"`
	Signature string `yaml:"signature"`
}

type serviceView struct {
	Name        string       `yaml:"name"`
	Fingerprint string       `yaml:"fingerprint"`
	Methods     []methodView `yaml:"methods"`
}

type fileView struct {
	Package     string        `yaml:"package"`
	Fingerprint string        `yaml:"fingerprint"`
	Types       []typeView    `yaml:"types,omitempty"`
	Services    []serviceView `yaml:"services,omitempty"`
}

// describe returns the printable form of f.
func describe(f *schema.File) (*fileView, error) {
	fp, err := schema.Fingerprint(f)
	if err != nil {
		return nil, err
	}
	v := &fileView{Package: f.Package, Fingerprint: fp}
	for _, d := range f.Types {
		tv := typeView{Name: d.Name, Kind: d.Kind.String(), Traits: d.Traits.String(), Variants: d.Variants}
		if n, ok := f.WireSize(d.Ref()); ok {
			tv.WireSize = n
		}
		for _, fl := range d.Fields {
			tv.Fields = append(tv.Fields, fl.Name+": "+fl.Type.String())
		}
		v.Types = append(v.Types, tv)
	}
	for _, s := range f.Services {
		sfp, err := schema.ServiceFingerprint(f, s.Name)
		if err != nil {
			return nil, err
		}
		sv := serviceView{Name: s.Name, Fingerprint: sfp}
		for _, m := range s.Methods {
			sv.Methods = append(sv.Methods, methodView{Opcode: m.Opcode, Signature: signature(&m)})
		}
		v.Services = append(v.Services, sv)
	}
	return v, nil
}
