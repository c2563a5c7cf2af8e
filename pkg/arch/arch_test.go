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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegisterNames(t *testing.T) {
	for _, tc := range []struct {
		reg  Reg
		want string
	}{
		{RA, "ra"},
		{SP, "sp"},
		{A0, "a0"},
		{A7, "a7"},
		{S2, "s2"},
		{S11, "s11"},
		{T6, "t6"},
	} {
		if got := tc.reg.String(); got != tc.want {
			t.Errorf("Reg(%d).String() = %q, want %q", uint8(tc.reg), got, tc.want)
		}
	}
	if T6 != NumGPRs {
		t.Errorf("T6 = x%d, want x%d", uint8(T6), NumGPRs)
	}
}

func TestCalleeSaved(t *testing.T) {
	want := []Reg{SP, GP, TP, S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11}
	if diff := cmp.Diff(want, CalleeSaved()); diff != "" {
		t.Errorf("CalleeSaved() mismatch (-want +got):\n%s", diff)
	}
	if got := len(CalleeSaved()) + len(CallerSaved()); got != NumGPRs {
		t.Errorf("classification covers %d registers, want %d", got, NumGPRs)
	}
	for _, r := range CallerSaved() {
		if r.CalleeSaved() {
			t.Errorf("%v is in both classes", r)
		}
	}
}

func TestArgs(t *testing.T) {
	var c Context
	for i := 0; i < 8; i++ {
		c.SetArg(i, uint64(100+i))
	}
	if got := c.Get(A3); got != 103 {
		t.Errorf("a3 = %d, want 103", got)
	}
	if got := c.SyscallNumber(); got != 107 {
		t.Errorf("SyscallNumber() = %d, want 107", got)
	}
	c.SetSyscallReturn(0, 7, 8)
	if c.Arg(0) != 0 || c.Arg(1) != 7 || c.Arg(2) != 8 || c.Arg(3) != 103 {
		t.Errorf("SetSyscallReturn left %v", &c.Registers)
	}
}

func TestChanged(t *testing.T) {
	var a, b Registers
	a.Set(S3, 1)
	b.Set(S3, 2)
	b.Set(T0, 9)
	if diff := cmp.Diff([]Reg{S3}, a.Changed(&b, CalleeSaved())); diff != "" {
		t.Errorf("Changed mismatch (-want +got):\n%s", diff)
	}
}

func TestCauses(t *testing.T) {
	if !SupervisorTimerInterrupt.IsInterrupt() || SupervisorTimerInterrupt.Code() != 5 {
		t.Errorf("timer interrupt decoded as %v/%d", SupervisorTimerInterrupt.IsInterrupt(), SupervisorTimerInterrupt.Code())
	}
	if UserEnvCall.IsInterrupt() || !UserEnvCall.Known() {
		t.Errorf("ecall decoded wrong")
	}
	for _, c := range []Cause{10, 14, 24, InterruptBit | 2} {
		if c.Known() {
			t.Errorf("%#x reported as known", uint64(c))
		}
	}
	if !StorePageFault.IsMemoryFault() || IllegalInstruction.IsMemoryFault() {
		t.Errorf("IsMemoryFault wrong")
	}
	if got, want := Cause(14).String(), "exception 14"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
