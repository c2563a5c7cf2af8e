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

package arch

// EnvCallSize is the length of the ecall instruction. The saved PC is moved
// past it when a syscall completes.
const EnvCallSize = 4

// Context is one hart's trap frame: everything needed to resume the
// interrupted execution exactly.
//
// A Context is owned by a single hart and is overwritten on every trap. It is
// never shared with another hart.
type Context struct {
	Registers

	// Anchor holds the anchor register's original value. Entry swaps the
	// anchor register with the scratch CSR before anything else, so the
	// value reaches GPR only once the rest of the frame is saved.
	Anchor uint64

	// Cause and Tval are the trap cause and trap value CSRs.
	Cause Cause
	Tval  uint64

	// Mode is the privilege mode the trap came from.
	Mode Mode
}

// Reset clears c.
func (c *Context) Reset() {
	*c = Context{}
}

// SyscallNumber returns the syscall number, passed in a7.
func (c *Context) SyscallNumber() uint64 {
	return c.Get(A7)
}

// SetSyscallReturn stores the status word in a0 and the results in a1
// onwards.
func (c *Context) SetSyscallReturn(status uint64, results ...uint64) {
	c.SetArg(0, status)
	for i, v := range results {
		c.SetArg(1+i, v)
	}
}
