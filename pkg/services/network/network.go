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

// Package network provides the Network service: UDP over IPv4 with loopback
// delivery between sockets bound on the same server.
//
// Payloads never travel in messages. Each bound socket has a shared buffer
// split in two halves: the client stages outgoing datagrams in the first
// and the server places received datagrams in the second.
package network

//go:generate go run gvisor.dev/ukernel/tools/vidlc gen network.vidl

import (
	"context"
	"fmt"

	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/kernel"
)

// ServiceName is the name the server registers under.
const ServiceName = "Network"

// Shared buffer layout of a bound socket.
const (
	// MaxDatagram is the largest payload a socket sends or receives.
	MaxDatagram = hostarch.PageSize

	// SendOffset is where the client writes outgoing payloads.
	SendOffset = 0

	// RecvOffset is where the server writes a received payload.
	RecvOffset = SendOffset + MaxDatagram

	// BufferSize is the length of a socket's buffer.
	BufferSize = RecvOffset + MaxDatagram
)

// Loopback is 127.0.0.1.
var Loopback = IpV4Address{Address: [4]uint8{127, 0, 0, 1}}

// String implements fmt.Stringer.String.
func (a IpV4Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a.Address[0], a.Address[1], a.Address[2], a.Address[3])
}

// String implements fmt.Stringer.String.
func (s IpV4Socket) String() string {
	return fmt.Sprintf("%v:%d", s.Address, s.Port)
}

// Connect opens a channel from t to the Network service.
func Connect(ctx context.Context, t *kernel.Task) (*NetworkClient, error) {
	ch, err := t.Kernel().Connect(ctx, t, ServiceName, NetworkFingerprint())
	if err != nil {
		return nil, err
	}
	return &NetworkClient{Caller: ch}, nil
}
