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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/ukernel/pkg/services/devicemgr"
	"gvisor.dev/ukernel/pkg/services/filesystem"
	"gvisor.dev/ukernel/pkg/services/network"
	"gvisor.dev/ukernel/pkg/vidl/schema"
)

// builtin are the schemas of the services started by boot.
var builtin = []*schema.File{
	network.NetworkSchema,
	filesystem.FilesystemSchema,
	devicemgr.DevicemgrSchema,
}

// Services implements subcommands.Command for the "services" command.
type Services struct {
	methods bool
}

// Name implements subcommands.Command.Name.
func (*Services) Name() string {
	return "services"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Services) Synopsis() string {
	return "list the built-in services and their schema fingerprints"
}

// Usage implements subcommands.Command.Usage.
func (*Services) Usage() string {
	return `services [-methods] - prints every built-in service with the fingerprint clients must present.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Services) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.methods, "methods", false, "also print each method and its opcode.")
}

// Execute implements subcommands.Command.Execute.
func (s *Services) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if err := writeServices(os.Stdout, builtin, s.methods); err != nil {
		return fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func writeServices(w io.Writer, files []*schema.File, methods bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, f := range files {
		for _, svc := range f.Services {
			fp, err := schema.ServiceFingerprint(f, svc.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", svc.Name, f.Package, fp)
			if !methods {
				continue
			}
			for _, m := range svc.Methods {
				fmt.Fprintf(tw, "  %d\t%s\t\n", m.Opcode, m.Name)
			}
		}
	}
	return tw.Flush()
}
