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
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/syserr"
	"gvisor.dev/ukernel/tools/vidl/compile"
)

func loopback(port uint16) IpV4Socket {
	return IpV4Socket{Address: Loopback, Port: port}
}

// start boots a kernel running a network server and returns a client task
// connected to it.
func start(t *testing.T) (*kernel.Kernel, *Server, *kernel.Task, *NetworkClient) {
	t.Helper()
	k, err := kernel.New(kernel.Options{})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	t.Cleanup(k.Shutdown)
	g := k.NewGroup(context.Background())
	srv := make(chan *Server, 1)
	g.Go("netd", func(ctx context.Context, task *kernel.Task) error {
		s := NewServer(task)
		srv <- s
		return s.Serve(ctx)
	})
	t.Cleanup(func() {
		if err := g.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	client, c := connect(t, k, "client")
	return k, <-srv, client, c
}

func connect(t *testing.T, k *kernel.Kernel, name string) (*kernel.Task, *NetworkClient) {
	t.Helper()
	task := k.NewTask(name)
	c, err := Connect(context.Background(), task)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return task, c
}

func TestSchema(t *testing.T) {
	f, err := compile.File("network.vidl")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if diff := cmp.Diff(NetworkSchema, f); diff != "" {
		t.Errorf("network.vidl does not match the generated descriptor (-generated +compiled):\n%s", diff)
	}
}

func TestBindUDP(t *testing.T) {
	ctx := context.Background()
	_, srv, client, c := start(t)
	addr := loopback(8080)

	buf, err := c.BindUDP(ctx, addr)
	if err != nil {
		t.Fatalf("BindUDP: %v", err)
	}
	kind, _, err := client.Identify(capability.ID(buf))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if kind != capability.KindBuffer {
		t.Errorf("BindUDP returned a %v capability, want a buffer", kind)
	}
	if _, err := c.BindUDP(ctx, addr); !errors.Is(err, NetworkErrorAlreadyBound) {
		t.Errorf("second BindUDP = %v, want %v", err, NetworkErrorAlreadyBound)
	}
	if err := c.Unbind(ctx, addr); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if err := c.Unbind(ctx, addr); !errors.Is(err, NetworkErrorNotBound) {
		t.Errorf("second Unbind = %v, want %v", err, NetworkErrorNotBound)
	}
	if _, err := c.BindUDP(ctx, addr); err != nil {
		t.Errorf("BindUDP after Unbind: %v", err)
	}
	if got := srv.Bound(); got != 1 {
		t.Errorf("Bound = %d, want 1", got)
	}
}

func TestLoopback(t *testing.T) {
	ctx := context.Background()
	k, _, alice, ac := start(t)
	bob, bc := connect(t, k, "bob")

	a, err := Bind(ctx, alice, ac, loopback(1000))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	b, err := Bind(ctx, bob, bc, loopback(2000))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	for _, msg := range []string{"hello", "world"} {
		if err := a.SendTo(ctx, b.Local(), []byte(msg)); err != nil {
			t.Fatalf("SendTo: %v", err)
		}
	}
	p := make([]byte, MaxDatagram)
	for _, want := range []string{"hello", "world"} {
		n, from, err := b.RecvFrom(ctx, p)
		if err != nil {
			t.Fatalf("RecvFrom: %v", err)
		}
		if got := string(p[:n]); got != want {
			t.Errorf("RecvFrom = %q, want %q", got, want)
		}
		if from != a.Local() {
			t.Errorf("RecvFrom sender = %v, want %v", from, a.Local())
		}
	}
	if _, _, err := b.RecvFrom(ctx, p); !errors.Is(err, NetworkErrorWouldBlock) {
		t.Errorf("RecvFrom on an empty queue = %v, want %v", err, NetworkErrorWouldBlock)
	}

	// Datagrams to an unbound socket vanish.
	if err := a.SendTo(ctx, loopback(3000), []byte("lost")); err != nil {
		t.Errorf("SendTo unbound socket: %v", err)
	}
	if err := bc.Send(ctx, loopback(3000), b.Local(), 1); !errors.Is(err, NetworkErrorNotBound) {
		t.Errorf("Send from unbound socket = %v, want %v", err, NetworkErrorNotBound)
	}
	if err := bc.Send(ctx, b.Local(), a.Local(), MaxDatagram+1); !errors.Is(err, NetworkErrorTooLarge) {
		t.Errorf("oversized Send = %v, want %v", err, NetworkErrorTooLarge)
	}
}

func TestTruncatedRecv(t *testing.T) {
	ctx := context.Background()
	_, _, client, c := start(t)
	s, err := Bind(ctx, client, c, loopback(53))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.SendTo(ctx, s.Local(), []byte("abcdef")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	p := make([]byte, 3)
	n, _, err := s.RecvFrom(ctx, p)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if got := string(p[:n]); got != "abc" {
		t.Errorf("RecvFrom = %q, want %q", got, "abc")
	}
}

func TestCloseReleasesBuffer(t *testing.T) {
	ctx := context.Background()
	k, _, client, c := start(t)
	s, err := Bind(ctx, client, c, loopback(7))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	m := s.m
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.WriteAt([]byte("x"), 0); !errors.Is(err, syserr.ErrStaleCapability) {
		t.Errorf("WriteAt after Close = %v, want %v", err, syserr.ErrStaleCapability)
	}
	if got := k.Buffers().Live(); got != 0 {
		t.Errorf("live buffers = %d, want 0", got)
	}
}

func TestClientExitUnbinds(t *testing.T) {
	ctx := context.Background()
	k, srv, client, c := start(t)
	if _, err := Bind(ctx, client, c, loopback(9)); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	client.Exit(0)

	// The socket can be bound again by another client.
	_, other := connect(t, k, "other")
	if _, err := other.BindUDP(ctx, loopback(9)); err != nil {
		t.Errorf("BindUDP after the owner exited: %v", err)
	}
	if got := srv.Bound(); got != 1 {
		t.Errorf("Bound = %d, want 1", got)
	}
}

func TestSocketString(t *testing.T) {
	if got, want := loopback(8080).String(), "127.0.0.1:8080"; got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}
