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

// Binary vidlc compiles interface schemas.
//
//	vidlc gen [-out=<dir>] <file.vidl>...       writes <package>_vidl_autogen.go
//	vidlc opcodes <file.vidl>...                prints the opcode table
//	vidlc describe [-format=yaml|cbor] <file>   prints the descriptor
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/ukernel/pkg/log"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(Gen), "")
	subcommands.Register(new(Opcodes), "")
	subcommands.Register(new(Describe), "")

	debug := flag.Bool("debug", false, "enable debug logging.")
	flag.Parse()
	if *debug {
		log.SetLevel(log.Debug)
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}

// fatalf prints an error and returns the failure status.
func fatalf(format string, v ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "vidlc: "+format+"\n", v...)
	return subcommands.ExitFailure
}
