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
	"sync"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Token identifies a received call until it is replied to.
type Token uint64

// Endpoint is the server side of a service. Calls from every channel bound
// to it wait in its pending-receive queue in arrival order.
type Endpoint struct {
	owner any

	// discard, if set, is called with replies nobody will observe.
	discard func(Packet)

	// signal has room for one wakeup. Receivers re-signal when they leave
	// calls behind, so no wakeup is lost with several receivers.
	signal chan struct{}

	mu        sync.Mutex
	queue     []*Call
	inflight  map[Token]*Call
	nextToken Token
	closed    bool
}

// NewEndpoint returns an open endpoint owned by owner.
func NewEndpoint(owner any) *Endpoint {
	return &Endpoint{
		owner:     owner,
		signal:    make(chan struct{}, 1),
		inflight:  make(map[Token]*Call),
		nextToken: 1,
	}
}

// SetDiscard sets the function called with replies to abandoned calls, and
// with requests that never reached the server. It must be called before the
// endpoint is used.
func (e *Endpoint) SetDiscard(fn func(Packet)) {
	e.discard = fn
}

// CapKind implements capability.Object.CapKind.
func (e *Endpoint) CapKind() capability.Kind {
	return capability.KindEndpoint
}

// Owner returns the task that owns e.
func (e *Endpoint) Owner() any {
	return e.owner
}

// Closed returns true once Close has been called.
func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Pending returns the number of calls waiting to be received.
func (e *Endpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Endpoint) enqueue(c *Call) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return syserr.ErrEndpointClosed
	}
	e.queue = append(e.queue, c)
	e.wake()
	return nil
}

func (e *Endpoint) wake() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Receive blocks until a call arrives, ctx is cancelled, or e is closed. The
// returned call must be answered with Reply.
func (e *Endpoint) Receive(ctx context.Context) (Token, *Packet, error) {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return 0, nil, syserr.ErrEndpointClosed
		}
		if len(e.queue) > 0 {
			c := e.queue[0]
			e.queue[0] = nil
			e.queue = e.queue[1:]
			tok := e.nextToken
			e.nextToken++
			e.inflight[tok] = c
			if len(e.queue) > 0 {
				e.wake()
			}
			e.mu.Unlock()
			return tok, &c.request, nil
		}
		e.mu.Unlock()

		select {
		case <-e.signal:
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
}

// TryReceive is the non-blocking form of Receive. ok is false if no call is
// waiting.
func (e *Endpoint) TryReceive() (tok Token, p *Packet, ok bool, err error) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tok, p, err = e.Receive(ctx)
	if err == context.Canceled {
		return 0, nil, false, nil
	}
	return tok, p, err == nil, err
}

// Reply delivers the reply to the call identified by tok. Whether the client
// ever observes it is not reported.
func (e *Endpoint) Reply(tok Token, reply Packet) error {
	e.mu.Lock()
	c, ok := e.inflight[tok]
	delete(e.inflight, tok)
	e.mu.Unlock()
	if !ok {
		return syserr.ErrNoPendingCall.Errorf("token %d", tok)
	}
	c.deliver(reply)
	return nil
}

// Close shuts e down. Queued and received calls are answered with
// ErrEndpointClosed, and later calls fail immediately.
func (e *Endpoint) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	queued := e.queue
	inflight := e.inflight
	e.queue = nil
	e.inflight = make(map[Token]*Call)
	e.mu.Unlock()

	// Wake every blocked receiver.
	close(e.signal)

	closedReply := ErrorPacket(syserr.ErrEndpointClosed)
	for _, c := range queued {
		e.drop(c.request)
		c.deliver(closedReply)
	}
	for _, c := range inflight {
		c.deliver(closedReply)
	}
}

func (e *Endpoint) drop(p Packet) {
	if e.discard != nil {
		e.discard(p)
	}
}
