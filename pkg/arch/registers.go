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

// Package arch describes the RISC-V machine state that the kernel saves and
// restores on every trap.
package arch

import (
	"fmt"
	"strings"
)

// Reg is a general purpose register number, x1 through x31. x0 is hardwired
// to zero and never saved.
type Reg uint8

// General purpose registers by ABI name.
const (
	RA Reg = iota + 1
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

// NumGPRs is the number of saved general purpose registers.
const NumGPRs = 31

// AnchorReg is the register the trap entry path frees first, by exchanging
// it with the scratch CSR, so that it can address the context store.
const AnchorReg = T6

var regNames = [...]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2", "s0", "s1",
	"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
	"s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
	"t3", "t4", "t5", "t6",
}

// String implements fmt.Stringer.String.
func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("x%d", uint8(r))
}

// Valid returns true if r names a saved register.
func (r Reg) Valid() bool {
	return r >= RA && r <= T6
}

// Class is the calling convention role of a register.
type Class uint8

// Register classes.
const (
	ClassReturnAddress Class = iota
	ClassStackPointer
	ClassGlobalPointer
	ClassThreadPointer
	ClassTemporary
	ClassSaved
	ClassArgument
)

// Class returns the calling convention role of r.
func (r Reg) Class() Class {
	switch {
	case r == RA:
		return ClassReturnAddress
	case r == SP:
		return ClassStackPointer
	case r == GP:
		return ClassGlobalPointer
	case r == TP:
		return ClassThreadPointer
	case r >= T0 && r <= T2, r >= T3 && r <= T6:
		return ClassTemporary
	case r == S0, r == S1, r >= S2 && r <= S11:
		return ClassSaved
	case r >= A0 && r <= A7:
		return ClassArgument
	default:
		panic(fmt.Sprintf("invalid register %d", uint8(r)))
	}
}

// CalleeSaved returns true if a function call must leave r unchanged. gp and
// tp are never allocated by compiled code, so they are treated as preserved
// as well.
func (r Reg) CalleeSaved() bool {
	switch r.Class() {
	case ClassStackPointer, ClassGlobalPointer, ClassThreadPointer, ClassSaved:
		return true
	default:
		return false
	}
}

var calleeSaved, callerSaved []Reg

func init() {
	for r := RA; r <= T6; r++ {
		if r.CalleeSaved() {
			calleeSaved = append(calleeSaved, r)
		} else {
			callerSaved = append(callerSaved, r)
		}
	}
}

// CalleeSaved returns the registers the handler side must preserve. The
// returned slice must not be modified.
func CalleeSaved() []Reg {
	return calleeSaved
}

// CallerSaved returns the registers the calling convention lets a callee
// clobber. The returned slice must not be modified.
func CallerSaved() []Reg {
	return callerSaved
}

// Registers is a snapshot of the general purpose register file plus PC.
type Registers struct {
	// GPR holds x1..x31; GPR[0] is ra.
	GPR [NumGPRs]uint64
	PC  uint64
}

// Get returns the value of r.
func (r *Registers) Get(reg Reg) uint64 {
	return r.GPR[reg-1]
}

// Set sets the value of r.
func (r *Registers) Set(reg Reg, v uint64) {
	r.GPR[reg-1] = v
}

// Arg returns syscall argument i, which lives in a<i>.
func (r *Registers) Arg(i int) uint64 {
	return r.Get(A0 + Reg(i))
}

// SetArg sets a<i>.
func (r *Registers) SetArg(i int, v uint64) {
	r.Set(A0+Reg(i), v)
}

// Changed returns the registers among regs whose values differ between r
// and other.
func (r *Registers) Changed(other *Registers, regs []Reg) []Reg {
	var diff []Reg
	for _, reg := range regs {
		if r.Get(reg) != other.Get(reg) {
			diff = append(diff, reg)
		}
	}
	return diff
}

// String implements fmt.Stringer.String.
func (r *Registers) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pc=%#x", r.PC)
	for reg := RA; reg <= T6; reg++ {
		if v := r.Get(reg); v != 0 {
			fmt.Fprintf(&b, " %s=%#x", reg, v)
		}
	}
	return b.String()
}
