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
	"errors"
	"sync"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/syserr"
	"gvisor.dev/ukernel/pkg/vidl"
)

// queueLimit is the number of datagrams a socket holds before new arrivals
// are dropped.
const queueLimit = 64

type datagram struct {
	from IpV4Socket
	data []byte
}

// binding is one bound socket.
type binding struct {
	// buf is the server's capability for the shared buffer.
	buf   capability.ID
	queue []datagram
}

// Server is the loopback Network server. It implements NetworkProvider.
type Server struct {
	task *kernel.Task

	mu       sync.Mutex
	bindings map[IpV4Socket]*binding
}

// NewServer returns a server running as task t.
func NewServer(t *kernel.Task) *Server {
	return &Server{
		task:     t,
		bindings: make(map[IpV4Socket]*binding),
	}
}

// Serve registers the service and answers calls until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ep, err := s.task.CreateEndpoint()
	if err != nil {
		return err
	}
	if err := s.task.Kernel().RegisterService(ServiceName, s.task, ep.ID(), NetworkSchema); err != nil {
		return err
	}
	log.Infof("Network service ready on endpoint %d", ep.ID())
	return ServeNetwork(ctx, ep, s)
}

// lookupLocked returns the binding of socket. A binding whose buffer was
// released by a client teardown is dropped.
//
// Preconditions: s.mu is held.
func (s *Server) lookupLocked(socket IpV4Socket) (*binding, error) {
	b, ok := s.bindings[socket]
	if !ok {
		return nil, NetworkErrorNotBound
	}
	if _, err := s.task.Mapping(b.buf); err != nil {
		log.Debugf("Dropping %v: %v", socket, err)
		s.unbindLocked(socket, b)
		return nil, NetworkErrorNotBound
	}
	return b, nil
}

// unbindLocked removes the binding of socket and releases its buffer.
//
// Preconditions: s.mu is held.
func (s *Server) unbindLocked(socket IpV4Socket, b *binding) {
	delete(s.bindings, socket)
	if err := s.task.ReleaseBuffer(b.buf); err != nil && !errors.Is(err, syserr.ErrCapNotFound) {
		log.Warningf("Releasing buffer of %v: %v", socket, err)
	}
}

// BindUDP implements NetworkProvider.BindUDP.
func (s *Server) BindUDP(ctx context.Context, socket IpV4Socket) (vidl.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupLocked(socket); err == nil {
		return 0, NetworkErrorAlreadyBound
	}
	id, err := s.task.CreateBuffer(BufferSize)
	if err != nil {
		return 0, err
	}
	if _, err := s.task.MapBuffer(id); err != nil {
		s.task.ReleaseBuffer(id)
		return 0, err
	}
	s.bindings[socket] = &binding{buf: id}
	log.Debugf("Bound %v to buffer %d", socket, id)
	return vidl.Buffer(id), nil
}

// Unbind implements NetworkProvider.Unbind.
func (s *Server) Unbind(ctx context.Context, socket IpV4Socket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookupLocked(socket)
	if err != nil {
		return err
	}
	s.unbindLocked(socket, b)
	return nil
}

// Send implements NetworkProvider.Send. A datagram to a socket that is not
// bound, or whose queue is full, is dropped.
func (s *Server) Send(ctx context.Context, from, to IpV4Socket, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, err := s.lookupLocked(from)
	if err != nil {
		return err
	}
	if n > MaxDatagram {
		return NetworkErrorTooLarge
	}
	m, err := s.task.Mapping(src.buf)
	if err != nil {
		return err
	}
	data := make([]byte, n)
	if _, err := m.ReadAt(data, SendOffset); err != nil {
		return err
	}
	dst, err := s.lookupLocked(to)
	if err != nil {
		log.Debugf("Dropping datagram from %v: %v is not bound", from, to)
		return nil
	}
	if len(dst.queue) >= queueLimit {
		log.Debugf("Dropping datagram from %v: queue of %v is full", from, to)
		return nil
	}
	dst.queue = append(dst.queue, datagram{from: from, data: data})
	return nil
}

// Recv implements NetworkProvider.Recv. It returns WouldBlock if nothing
// has arrived for socket.
func (s *Server) Recv(ctx context.Context, socket IpV4Socket) (Datagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookupLocked(socket)
	if err != nil {
		return Datagram{}, err
	}
	if len(b.queue) == 0 {
		return Datagram{}, NetworkErrorWouldBlock
	}
	m, err := s.task.Mapping(b.buf)
	if err != nil {
		return Datagram{}, err
	}
	dg := b.queue[0]
	if _, err := m.WriteAt(dg.data, RecvOffset); err != nil {
		return Datagram{}, err
	}
	b.queue[0] = datagram{}
	b.queue = b.queue[1:]
	return Datagram{From: dg.from, Len: uint64(len(dg.data))}, nil
}

// Bound returns the number of bound sockets.
func (s *Server) Bound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bindings)
}
