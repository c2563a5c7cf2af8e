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

package syserr

// Capability errors.
var (
	ErrCapNotFound        = New("capability not found", KindCapability, 1)
	ErrInsufficientRights = New("insufficient rights", KindCapability, 2)
	ErrRightsEscalation   = New("derived rights exceed parent rights", KindCapability, 3)
	ErrWrongObject        = New("capability refers to the wrong kind of object", KindCapability, 4)
	ErrStaleCapability    = New("capability refers to a destroyed object", KindCapability, 5)
)

// Call/reply protocol errors.
var (
	ErrCallPending      = New("call already pending on channel", KindProtocol, 16)
	ErrMalformedMessage = New("malformed message", KindProtocol, 17)
	ErrUnknownOpcode    = New("unknown opcode", KindProtocol, 18)
	ErrEndpointClosed   = New("endpoint closed", KindProtocol, 19)
	ErrNoPendingCall    = New("no pending call for reply", KindProtocol, 20)
	ErrMessageTooLarge  = New("message too large", KindProtocol, 21)
	ErrOutOfBounds      = New("access outside buffer bounds", KindProtocol, 22)
	ErrBadSyscall       = New("unknown syscall", KindProtocol, 23)
	ErrSchemaMismatch   = New("schema fingerprint mismatch", KindProtocol, 24)
	ErrUnknownService   = New("unknown service", KindProtocol, 25)
	ErrServiceExists    = New("service already registered", KindProtocol, 26)
	ErrInterrupted      = New("blocking syscall interrupted", KindProtocol, 27)
)

// Trap faults.
var (
	ErrUnhandledTrap = New("unhandled trap cause", KindTrapFault, 32)
	ErrKernelFault   = New("fault in kernel mode", KindTrapFault, 33)
	ErrNestedTrap    = New("trap during context save", KindTrapFault, 34)
	ErrUserFault     = New("fault in user mode", KindTrapFault, 35)
)

// Internal errors.
var (
	ErrInternal      = New("internal error", KindInternal, 48)
	ErrHalted        = New("kernel halted", KindInternal, 49)
	ErrTaskDead      = New("task is dead", KindInternal, 50)
	ErrNoMemory      = New("out of buffer memory", KindInternal, 51)
	ErrUnknownStatus = New("unknown status", KindInternal, 52)
)
