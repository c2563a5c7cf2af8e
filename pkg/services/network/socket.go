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

package network

import (
	"context"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/shm"
)

// Socket is a client's bound UDP socket.
type Socket struct {
	client *NetworkClient
	task   *kernel.Task
	local  IpV4Socket
	buf    capability.ID
	m      *shm.Mapping
}

// Bind binds local for task t through c and maps the socket's buffer.
func Bind(ctx context.Context, t *kernel.Task, c *NetworkClient, local IpV4Socket) (*Socket, error) {
	buf, err := c.BindUDP(ctx, local)
	if err != nil {
		return nil, err
	}
	m, err := t.MapBuffer(capability.ID(buf))
	if err != nil {
		c.Unbind(ctx, local)
		return nil, err
	}
	return &Socket{
		client: c,
		task:   t,
		local:  local,
		buf:    capability.ID(buf),
		m:      m,
	}, nil
}

// Local returns the bound address.
func (s *Socket) Local() IpV4Socket {
	return s.local
}

// SendTo sends p to the socket to.
func (s *Socket) SendTo(ctx context.Context, to IpV4Socket, p []byte) error {
	if len(p) > MaxDatagram {
		return NetworkErrorTooLarge
	}
	if _, err := s.m.WriteAt(p, SendOffset); err != nil {
		return err
	}
	return s.client.Send(ctx, s.local, to, uint64(len(p)))
}

// RecvFrom reads the next datagram into p and returns its length and
// sender. A datagram longer than p is truncated.
func (s *Socket) RecvFrom(ctx context.Context, p []byte) (int, IpV4Socket, error) {
	dg, err := s.client.Recv(ctx, s.local)
	if err != nil {
		return 0, IpV4Socket{}, err
	}
	n := min(int(dg.Len), len(p))
	if _, err := s.m.ReadAt(p[:n], RecvOffset); err != nil {
		return 0, IpV4Socket{}, err
	}
	return n, dg.From, nil
}

// Close unbinds the socket. The server releases the buffer, leaving a stale
// capability that Close revokes.
func (s *Socket) Close(ctx context.Context) error {
	if err := s.client.Unbind(ctx, s.local); err != nil {
		return err
	}
	return s.task.Revoke(s.buf)
}
