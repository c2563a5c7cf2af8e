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
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/ukernel/pkg/vidl/schema"
	"gvisor.dev/ukernel/tools/vidl/compile"
)

// Opcodes implements subcommands.Command for the "opcodes" command.
type Opcodes struct{}

// Name implements subcommands.Command.Name.
func (*Opcodes) Name() string {
	return "opcodes"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Opcodes) Synopsis() string {
	return "print the opcode of every method"
}

// Usage implements subcommands.Command.Usage.
func (*Opcodes) Usage() string {
	return "opcodes <file.vidl>... - prints service, opcode and method signature.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Opcodes) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Opcodes) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	for _, path := range f.Args() {
		sf, err := compile.File(path)
		if err != nil {
			return fatalf("%v", err)
		}
		if err := writeOpcodes(os.Stdout, sf); err != nil {
			return fatalf("%v", err)
		}
	}
	return subcommands.ExitSuccess
}

func writeOpcodes(w io.Writer, f *schema.File) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, s := range f.Services {
		for _, m := range s.Methods {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, m.Opcode, signature(&m))
		}
	}
	return tw.Flush()
}

// signature returns m in schema source syntax.
func signature(m *schema.Method) string {
	s := m.Name + "("
	for i, p := range m.Params {
		if i > 0 {
			s += ", "
		}
		s += p.Name + ": " + p.Type.String()
	}
	return s + ") -> Result<" + m.Ok.String() + ", " + m.Err.String() + ">"
}
