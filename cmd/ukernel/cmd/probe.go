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
	"gvisor.dev/ukernel/cmd/ukernel/config"
	"gvisor.dev/ukernel/pkg/abi/layout"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct{}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "validate and print the memory layout"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return `probe - runs the boot-time layout checks for --layout and prints the layout.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Probe) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Probe) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	l, err := layout.ByName(conf.Layout)
	if err != nil {
		return fatalf("%v", err)
	}
	if err := writeLayout(os.Stdout, &l); err != nil {
		return fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// writeLayout validates l and prints it.
func writeLayout(w io.Writer, l *layout.Layout) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("layout probe failed: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "direct map\t%v\tphys offset %#x\n", l.DirectMap, uint64(l.PhysOffset))
	fmt.Fprintf(tw, "kernel\t%v\t\n", l.Kernel)
	for _, s := range l.Segments {
		fmt.Fprintf(tw, "  %v\t%v\taligned %#x\n", s.Kind, s.Range, s.Align)
	}
	return tw.Flush()
}
