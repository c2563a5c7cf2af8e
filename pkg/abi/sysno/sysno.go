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

// Package sysno defines the syscall numbers and the register convention used
// to pass arguments across the trap boundary.
//
// The syscall number is passed in a7 and arguments in a0 through a5. On
// return a0 holds a syserr.Status and a1 onwards hold results.
package sysno

import "fmt"

// Sysno is a syscall number.
type Sysno uint64

// Syscall numbers.
const (
	// Exit tears down the calling task.
	Exit Sysno = 0

	// Call sends the task's IPC buffer on the channel in a0 and blocks for
	// the reply, which replaces the IPC buffer.
	Call Sysno = 1

	// Recv blocks on the endpoint in a0 for the next call. The call is
	// placed in the IPC buffer and a1 returns the reply token.
	Recv Sysno = 2

	// Reply answers the call identified by the token in a1 on the endpoint
	// in a0 with the IPC buffer.
	Reply Sysno = 3

	// CapIdentify returns the object kind and rights of the cap in a0.
	CapIdentify Sysno = 4

	// CapDerive creates a new cap for the object behind a0 with the rights
	// in a1, which must be a subset.
	CapDerive Sysno = 5

	// CapRevoke removes the cap in a0.
	CapRevoke Sysno = 6

	// EndpointCreate creates an endpoint owned by the caller.
	EndpointCreate Sysno = 7

	// BufferCreate allocates a shared buffer of a0 bytes.
	BufferCreate Sysno = 8

	// BufferMap maps the buffer behind a0 into the caller.
	BufferMap Sysno = 9

	// BufferRelease releases the buffer behind a0 for every party.
	BufferRelease Sysno = 10

	// ChannelCreate creates a client channel cap for the endpoint in a0.
	ChannelCreate Sysno = 11

	numSyscalls = 12
)

var names = [...]string{
	Exit:           "exit",
	Call:           "call",
	Recv:           "recv",
	Reply:          "reply",
	CapIdentify:    "cap_identify",
	CapDerive:      "cap_derive",
	CapRevoke:      "cap_revoke",
	EndpointCreate: "endpoint_create",
	BufferCreate:   "buffer_create",
	BufferMap:      "buffer_map",
	BufferRelease:  "buffer_release",
	ChannelCreate:  "channel_create",
}

// Valid returns true if s is a defined syscall.
func (s Sysno) Valid() bool {
	return s < numSyscalls
}

// String implements fmt.Stringer.String.
func (s Sysno) String() string {
	if s.Valid() {
		return names[s]
	}
	return fmt.Sprintf("sysno(%d)", uint64(s))
}

// MaxArgs is the number of argument registers.
const MaxArgs = 6

// Args are the syscall argument registers a0..a5.
type Args [MaxArgs]uint64

// Results are the syscall result registers a1..a5.
type Results [MaxArgs - 1]uint64
