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

import "fmt"

// Cause is the raw value of the scause CSR.
type Cause uint64

// InterruptBit marks asynchronous causes.
const InterruptBit Cause = 1 << 63

// Interrupt causes.
const (
	UserSoftwareInterrupt       = InterruptBit | 0
	SupervisorSoftwareInterrupt = InterruptBit | 1
	UserTimerInterrupt          = InterruptBit | 4
	SupervisorTimerInterrupt    = InterruptBit | 5
	UserExternalInterrupt       = InterruptBit | 8
	SupervisorExternalInterrupt = InterruptBit | 9
)

// Exception causes.
const (
	InstructionMisaligned  Cause = 0
	InstructionAccessFault Cause = 1
	IllegalInstruction     Cause = 2
	Breakpoint             Cause = 3
	LoadMisaligned         Cause = 4
	LoadAccessFault        Cause = 5
	StoreMisaligned        Cause = 6
	StoreAccessFault       Cause = 7
	UserEnvCall            Cause = 8
	SupervisorEnvCall      Cause = 9
	InstructionPageFault   Cause = 12
	LoadPageFault          Cause = 13
	StorePageFault         Cause = 15
)

var causeNames = map[Cause]string{
	UserSoftwareInterrupt:       "user software interrupt",
	SupervisorSoftwareInterrupt: "supervisor software interrupt",
	UserTimerInterrupt:          "user timer interrupt",
	SupervisorTimerInterrupt:    "supervisor timer interrupt",
	UserExternalInterrupt:       "user external interrupt",
	SupervisorExternalInterrupt: "supervisor external interrupt",
	InstructionMisaligned:       "instruction address misaligned",
	InstructionAccessFault:      "instruction access fault",
	IllegalInstruction:          "illegal instruction",
	Breakpoint:                  "breakpoint",
	LoadMisaligned:              "load address misaligned",
	LoadAccessFault:             "load access fault",
	StoreMisaligned:             "store address misaligned",
	StoreAccessFault:            "store access fault",
	UserEnvCall:                 "user environment call",
	SupervisorEnvCall:           "supervisor environment call",
	InstructionPageFault:        "instruction page fault",
	LoadPageFault:               "load page fault",
	StorePageFault:              "store page fault",
}

// IsInterrupt returns true for asynchronous causes.
func (c Cause) IsInterrupt() bool {
	return c&InterruptBit != 0
}

// Code returns the cause with the interrupt bit cleared.
func (c Cause) Code() uint64 {
	return uint64(c &^ InterruptBit)
}

// Known returns true if c is a cause the machine defines.
func (c Cause) Known() bool {
	_, ok := causeNames[c]
	return ok
}

// IsMemoryFault returns true for access, page and misalignment faults.
func (c Cause) IsMemoryFault() bool {
	switch c {
	case InstructionMisaligned, InstructionAccessFault, LoadMisaligned, LoadAccessFault,
		StoreMisaligned, StoreAccessFault, InstructionPageFault, LoadPageFault, StorePageFault:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.String.
func (c Cause) String() string {
	if n, ok := causeNames[c]; ok {
		return n
	}
	if c.IsInterrupt() {
		return fmt.Sprintf("interrupt %d", c.Code())
	}
	return fmt.Sprintf("exception %d", c.Code())
}

// Mode is the privilege mode a trap was taken from.
type Mode uint8

// Privilege modes.
const (
	ModeUser Mode = iota
	ModeSupervisor
)

// String implements fmt.Stringer.String.
func (m Mode) String() string {
	if m == ModeUser {
		return "user"
	}
	return "supervisor"
}
