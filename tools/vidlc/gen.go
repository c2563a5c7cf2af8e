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
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/tools/vidl/compile"
	"gvisor.dev/ukernel/tools/vidl/gengo"
)

// Gen implements subcommands.Command for the "gen" command.
type Gen struct {
	out string
}

// Name implements subcommands.Command.Name.
func (*Gen) Name() string {
	return "gen"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Gen) Synopsis() string {
	return "generate Go marshaling, stubs and dispatch tables"
}

// Usage implements subcommands.Command.Usage.
func (*Gen) Usage() string {
	return `gen [-out=<dir>] <file.vidl>... - writes <package>_vidl_autogen.go for each schema.
Nothing is written for a schema with errors.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (g *Gen) SetFlags(f *flag.FlagSet) {
	f.StringVar(&g.out, "out", "", "output directory; defaults to the directory of each schema.")
}

// Execute implements subcommands.Command.Execute.
func (g *Gen) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	for _, path := range f.Args() {
		dest, err := g.generate(path)
		if err != nil {
			return fatalf("%v", err)
		}
		log.Infof("Generated %s from %s", dest, path)
	}
	return subcommands.ExitSuccess
}

// generate compiles one schema and writes its Go source, returning the
// path written.
func (g *Gen) generate(path string) (string, error) {
	f, err := compile.File(path)
	if err != nil {
		return "", err
	}
	gen := gengo.NewGenerator(f, path)
	src, err := gen.Generate()
	if err != nil {
		return "", err
	}
	dir := g.out
	if dir == "" {
		dir = filepath.Dir(path)
	}
	dest := filepath.Join(dir, gen.Filename())
	if err := os.WriteFile(dest, src, 0644); err != nil {
		return "", err
	}
	return dest, nil
}
