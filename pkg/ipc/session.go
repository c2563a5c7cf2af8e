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

package ipc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/syserr"
)

// State is the protocol state of a channel.
//
// Valid transitions:
//
//	Idle -> CallPending    (Session.Call)
//	CallPending -> Idle    (reply observed, or reply to an abandoned call arrives)
type State uint32

const (
	// Idle means no call is outstanding on the channel.
	Idle State = iota

	// CallPending means a call was sent and its reply not yet observed.
	CallPending
)

// String implements fmt.Stringer.String.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case CallPending:
		return "CallPending"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// Session is one holder's channel to an endpoint. It is the object behind
// channel capabilities; every holder gets its own Session, so the single
// outstanding call rule applies per holder.
type Session struct {
	ep    *Endpoint
	state atomic.Uint32
}

// NewSession returns an idle channel to ep.
func NewSession(ep *Endpoint) *Session {
	return &Session{ep: ep}
}

// CapKind implements capability.Object.CapKind.
func (s *Session) CapKind() capability.Kind {
	return capability.KindChannel
}

// TransferTo implements capability.Transferable.TransferTo.
func (s *Session) TransferTo(any) (capability.Object, error) {
	if s.ep.Closed() {
		return nil, syserr.ErrEndpointClosed
	}
	return NewSession(s.ep), nil
}

// Endpoint returns the endpoint s is bound to.
func (s *Session) Endpoint() *Endpoint {
	return s.ep
}

// State returns the current protocol state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Call sends request to the endpoint. It fails with ErrCallPending if a call
// is already outstanding on s, in which case the endpoint never sees the
// request.
func (s *Session) Call(request Packet) (*Call, error) {
	if !s.state.CompareAndSwap(uint32(Idle), uint32(CallPending)) {
		return nil, syserr.ErrCallPending
	}
	c := &Call{session: s, request: request, done: make(chan struct{})}
	if err := s.ep.enqueue(c); err != nil {
		s.finish()
		return nil, err
	}
	return c, nil
}

func (s *Session) finish() {
	s.state.Store(uint32(Idle))
}

// Call is one outstanding call.
type Call struct {
	session *Session
	request Packet
	done    chan struct{}

	mu        sync.Mutex
	reply     Packet
	abandoned bool
}

// deliver hands reply to the waiting client, or discards it if the client
// has gone away.
func (c *Call) deliver(reply Packet) {
	c.mu.Lock()
	c.reply = reply
	close(c.done)
	abandoned := c.abandoned
	c.mu.Unlock()
	if abandoned {
		c.session.finish()
		c.session.ep.drop(reply)
	}
}

// Wait blocks until the reply arrives and returns it, moving the channel
// back to Idle. If ctx is cancelled first the call is abandoned: the channel
// stays CallPending until the server replies, and that reply is discarded.
func (c *Call) Wait(ctx context.Context) (Packet, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		c.mu.Lock()
		select {
		case <-c.done:
			c.mu.Unlock()
		default:
			c.abandoned = true
			c.mu.Unlock()
			return Packet{}, ctx.Err()
		}
	}
	c.session.finish()
	return c.reply, nil
}

// Done returns a channel that is closed when the reply arrives.
func (c *Call) Done() <-chan struct{} {
	return c.done
}
