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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"gvisor.dev/ukernel/cmd/ukernel/config"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/services/devicemgr"
	"gvisor.dev/ukernel/pkg/services/filesystem"
	"gvisor.dev/ukernel/pkg/services/network"
)

// echoPort is the loopback port the echo check binds.
const echoPort = 7

// Script is the work an init client does once the services are up.
type Script struct {
	// Echo is sent to a loopback socket and read back. Empty skips the
	// network check.
	Echo string

	// List are directories to list.
	List []string

	// Read are files whose contents are copied to the output.
	Read []string

	// Compatible are the compatible strings to request devices for. Empty
	// skips the request.
	Compatible []string
}

// Run performs the script as task t, writing results to w.
func (s *Script) Run(ctx context.Context, t *kernel.Task, w io.Writer) error {
	if s.Echo != "" {
		if err := s.echo(ctx, t, w); err != nil {
			return fmt.Errorf("network: %w", err)
		}
	}
	if len(s.List) > 0 || len(s.Read) > 0 {
		c, err := filesystem.Connect(ctx, t)
		if err != nil {
			return fmt.Errorf("filesystem: %w", err)
		}
		for _, p := range s.List {
			if err := list(ctx, c, p, w); err != nil {
				return fmt.Errorf("filesystem: list %s: %w", p, err)
			}
		}
		for _, p := range s.Read {
			data, err := filesystem.ReadFile(ctx, t, c, p)
			if err != nil {
				return fmt.Errorf("filesystem: read %s: %w", p, err)
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
	}
	if len(s.Compatible) > 0 {
		if err := s.request(ctx, t, w); err != nil {
			return fmt.Errorf("devicemgr: %w", err)
		}
	}
	return nil
}

func (s *Script) echo(ctx context.Context, t *kernel.Task, w io.Writer) error {
	c, err := network.Connect(ctx, t)
	if err != nil {
		return err
	}
	sock, err := network.Bind(ctx, t, c, network.IpV4Socket{Address: network.Loopback, Port: echoPort})
	if err != nil {
		return err
	}
	defer sock.Close(ctx)
	if err := sock.SendTo(ctx, sock.Local(), []byte(s.Echo)); err != nil {
		return err
	}
	p := make([]byte, network.MaxDatagram)
	n, from, err := sock.RecvFrom(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "echo from %v: %q\n", from, p[:n])
	return nil
}

func list(ctx context.Context, c *filesystem.FilesystemClient, path string, w io.Writer) error {
	entries, err := c.List(ctx, path)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%v\t%d\n", e.Name, e.Kind, e.Size)
	}
	return tw.Flush()
}

func (s *Script) request(ctx context.Context, t *kernel.Task, w io.Writer) error {
	c, err := devicemgr.Connect(ctx, t)
	if err != nil {
		return err
	}
	devs, err := c.Request(ctx, s.Compatible)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tBASE\tSIZE\tINTERRUPTS\tCAP\n")
	for _, d := range devs {
		fmt.Fprintf(tw, "%s\t%#x\t%#x\t%v\t%d\n", d.Name, d.Region.Base, d.Region.Len, d.Interrupts, d.MMIO)
	}
	return tw.Flush()
}

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	script Script
	list   string
	read   string
	compat string
	serve  bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot a kernel with its services and run an init client"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] - boots the kernel, starts the network, filesystem and device manager services, then runs an init client.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.script.Echo, "echo", "", "message to send through a loopback socket.")
	f.StringVar(&b.list, "ls", "", "comma-separated directories to list.")
	f.StringVar(&b.read, "cat", "", "comma-separated files to print.")
	f.StringVar(&b.compat, "request", "", "comma-separated compatible strings to request devices for.")
	f.BoolVar(&b.serve, "serve", false, "keep serving after the init client until interrupted.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	b.script.List = splitList(b.list)
	b.script.Read = splitList(b.read)
	b.script.Compatible = splitList(b.compat)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()
	if err := run(ctx, conf, &b.script, b.serve, os.Stdout); err != nil {
		return fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// run boots a system, runs script in an init task, and stops the system
// unless serve is set, in which case it waits for ctx.
func run(ctx context.Context, conf *config.Config, script *Script, serve bool, w io.Writer) error {
	sys, err := StartSystem(ctx, conf)
	if err != nil {
		return err
	}
	t := sys.Kernel.NewTask("init")
	err = script.Run(ctx, t, w)
	t.Exit(0)
	if err == nil && serve {
		log.Infof("Init done, serving until interrupted")
		if err = sys.Wait(); errors.Is(err, context.Canceled) && ctx.Err() != nil {
			err = nil
		}
	}
	if serr := sys.Stop(); err == nil {
		err = serr
	}
	return err
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
