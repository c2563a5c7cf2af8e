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

// Package syserr contains kernel-internal errors and their translation to
// the status words returned to tasks in a0.
//
// Every error that can cross the trap boundary is declared here with New, so
// that the status word alone is enough for the user side to reconstruct the
// same *Error value. Domain failures carried inside a service Result are not
// syserr values.
package syserr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by how the kernel propagates it.
type Kind uint8

const (
	// KindInternal is a kernel-internal failure or invariant violation.
	KindInternal Kind = iota

	// KindTrapFault is an unrecognized or unhandled trap. It is fatal to the
	// faulting task, or to the whole kernel for supervisor-mode traps.
	KindTrapFault

	// KindCapability is a missing, revoked, or insufficient capability. It is
	// returned synchronously to the caller.
	KindCapability

	// KindProtocol is a call/reply protocol violation or a malformed
	// message. The call never reaches the server.
	KindProtocol
)

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindTrapFault:
		return "TrapFault"
	case KindCapability:
		return "CapabilityError"
	case KindProtocol:
		return "ProtocolViolation"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Fatal returns true if errors of this kind terminate execution rather than
// being returned to the caller.
func (k Kind) Fatal() bool {
	return k == KindTrapFault
}

// Status is the word a syscall leaves in a0. Zero means success.
type Status uint64

// StatusOK is the status of a successful syscall.
const StatusOK Status = 0

// maxStatus bounds the translation table.
const maxStatus = 64

// Error represents an internal error.
type Error struct {
	// message is the human readable form of this Error.
	message string

	// kind is the propagation class of this Error.
	kind Kind

	// status is the word this Error is translated to at the trap boundary.
	status Status
}

// translations maps a status word back to the Error that produced it.
var translations [maxStatus]*Error

// New creates a new Error and adds a translation for it.
//
// New must only be called at init.
func New(message string, kind Kind, status Status) *Error {
	if status == StatusOK || status >= maxStatus {
		panic(fmt.Sprint("invalid status: ", status))
	}
	if prev := translations[status]; prev != nil {
		panic(fmt.Sprintf("status %d already used by %q", status, prev.message))
	}
	err := &Error{message: message, kind: kind, status: status}
	translations[status] = err
	return err
}

// Error implements error.Error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.message
}

// Kind returns the propagation class of e.
func (e *Error) Kind() Kind {
	return e.kind
}

// Status returns the status word for e.
func (e *Error) Status() Status {
	if e == nil {
		return StatusOK
	}
	return e.status
}

// Errorf returns an error carrying additional detail that still matches e
// with errors.Is and translates to e's status.
func (e *Error) Errorf(format string, v ...any) error {
	return &detailed{base: e, detail: fmt.Sprintf(format, v...)}
}

type detailed struct {
	base   *Error
	detail string
}

func (d *detailed) Error() string {
	return d.base.message + ": " + d.detail
}

func (d *detailed) Unwrap() error {
	return d.base
}

// FromStatus translates a status word back into an Error. It returns nil for
// StatusOK and ErrUnknownStatus for words that were never registered.
func FromStatus(s Status) *Error {
	if s == StatusOK {
		return nil
	}
	if s >= maxStatus || translations[s] == nil {
		return ErrUnknownStatus
	}
	return translations[s]
}

// Convert finds the *Error underlying err. Errors that did not originate in
// this package are reported as ErrInternal.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// StatusOf returns the status word err translates to.
func StatusOf(err error) Status {
	return Convert(err).Status()
}

// KindOf returns the propagation class of err.
func KindOf(err error) Kind {
	if e := Convert(err); e != nil {
		return e.kind
	}
	return KindInternal
}
