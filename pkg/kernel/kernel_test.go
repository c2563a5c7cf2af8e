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

package kernel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/abi/layout"
	"gvisor.dev/ukernel/pkg/abi/sysno"
	"gvisor.dev/ukernel/pkg/arch"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/ring0"
	"gvisor.dev/ukernel/pkg/syserr"
	"gvisor.dev/ukernel/pkg/vidl"
	"gvisor.dev/ukernel/pkg/vidl/schema"
)

func newKernel(t *testing.T, opts Options) *Kernel {
	t.Helper()
	k, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(k.Shutdown)
	return k
}

// echoSchema describes a service that returns its string argument, and
// reports the size of a buffer passed to it.
var echoSchema = &schema.File{
	Package: "echo",
	Types: []schema.TypeDecl{
		{Name: "EchoError", Kind: schema.KindEnum, Variants: []string{"Empty"}},
	},
	Services: []schema.Service{{
		Name: "Echo",
		Methods: []schema.Method{
			{Name: "echo", Opcode: 0, Params: []schema.Field{{Name: "s", Type: schema.Prim(schema.KindString)}}, Ok: schema.Prim(schema.KindString), Err: schema.Named(schema.KindEnum, "EchoError")},
			{Name: "peek", Opcode: 1, Params: []schema.Field{{Name: "b", Type: schema.Prim(schema.KindBuffer)}}, Ok: schema.Prim(schema.KindU8), Err: schema.Named(schema.KindEnum, "EchoError")},
		},
	}},
}

const (
	opEcho ipc.Opcode = 0
	opPeek ipc.Opcode = 1
)

// echoTable serves echoSchema for server task srv.
func echoTable(srv *Task) vidl.DispatchTable {
	return vidl.DispatchTable{
		opEcho: func(ctx context.Context, d *vidl.Decoder, e *vidl.Encoder) error {
			s := d.String()
			if err := d.Finish(); err != nil {
				return err
			}
			if s == "" {
				e.Fail()
				e.U32(0)
				return nil
			}
			e.Ok()
			e.String(s)
			return nil
		},
		opPeek: func(ctx context.Context, d *vidl.Decoder, e *vidl.Encoder) error {
			b := d.Buffer()
			if err := d.Finish(); err != nil {
				return err
			}
			m, err := srv.MapBuffer(capability.ID(b))
			if err != nil {
				return err
			}
			var first [1]byte
			if _, err := m.ReadAt(first[:], 0); err != nil {
				return err
			}
			e.Ok()
			e.U8(first[0])
			return nil
		},
	}
}

// startEcho runs an echo server in g and returns once it is registered.
func startEcho(t *testing.T, k *Kernel, g *Group) *Task {
	t.Helper()
	ready := make(chan error, 1)
	srv := g.Go("echo-server", func(ctx context.Context, task *Task) error {
		ep, err := task.CreateEndpoint()
		if err != nil {
			ready <- err
			return err
		}
		if err := k.RegisterService("Echo", task, ep.ID(), echoSchema); err != nil {
			ready <- err
			return err
		}
		ready <- nil
		return vidl.Serve(ctx, ep, echoTable(task))
	})
	if err := <-ready; err != nil {
		t.Fatalf("starting echo server: %v", err)
	}
	return srv
}

func connectEcho(t *testing.T, k *Kernel, client *Task) *Channel {
	t.Helper()
	ch, err := k.Connect(context.Background(), client, "Echo", schema.MustServiceFingerprint(echoSchema, "Echo"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return ch
}

func echo(ctx context.Context, c vidl.Caller, s string) (string, bool, error) {
	e := new(vidl.Encoder)
	e.String(s)
	d, isErr, err := vidl.Invoke(ctx, c, opEcho, e)
	if err != nil {
		return "", false, err
	}
	if isErr {
		d.Enum(1)
		return "", true, d.Finish()
	}
	out := d.String()
	return out, false, d.Finish()
}

func TestNewRejectsBadLayout(t *testing.T) {
	l := layout.Sv39()
	l.Kernel.Start += 0x1000
	if _, err := New(Options{Layout: l}); err == nil {
		t.Errorf("New accepted a misaligned kernel region")
	}
}

func TestNewHartLimit(t *testing.T) {
	l := layout.Sv39()
	limit := ring0.MaxCPUs(&l)
	if limit != 128 {
		t.Fatalf("MaxCPUs = %d, want 128", limit)
	}
	if _, err := New(Options{Harts: limit + 1}); err == nil {
		t.Errorf("New accepted %d harts", limit+1)
	}
	k := newKernel(t, Options{Harts: limit})
	if got := k.ring0.NumCPUs(); got != limit {
		t.Errorf("NumCPUs = %d, want %d", got, limit)
	}
}

func TestCapabilitySyscalls(t *testing.T) {
	k := newKernel(t, Options{})
	task := k.NewTask("caps")

	ep, err := task.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	kind, rights, err := task.Identify(ep.ID())
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if kind != capability.KindEndpoint || rights != capability.All {
		t.Errorf("Identify = %v %v, want endpoint %v", kind, rights, capability.All)
	}

	ro, err := task.Derive(ep.ID(), capability.Read)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if ro == ep.ID() {
		t.Errorf("Derive reused id %d", ro)
	}
	if _, err := task.Derive(ro, capability.Read|capability.Write); !errors.Is(err, syserr.ErrRightsEscalation) {
		t.Errorf("Derive escalating rights = %v, want %v", err, syserr.ErrRightsEscalation)
	}
	if _, err := task.CreateChannel(ro); !errors.Is(err, syserr.ErrInsufficientRights) {
		t.Errorf("CreateChannel without grant = %v, want %v", err, syserr.ErrInsufficientRights)
	}
	if err := task.Revoke(ro); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := task.Identify(ro); !errors.Is(err, syserr.ErrCapNotFound) {
		t.Errorf("Identify after revoke = %v, want %v", err, syserr.ErrCapNotFound)
	}
	if err := task.Revoke(ro); !errors.Is(err, syserr.ErrCapNotFound) {
		t.Errorf("double Revoke = %v, want %v", err, syserr.ErrCapNotFound)
	}
	if got := k.metrics.capErrors.Value(); got != 4 {
		t.Errorf("capability errors = %d, want 4", got)
	}
}

func TestBadSyscall(t *testing.T) {
	k := newKernel(t, Options{})
	task := k.NewTask("bad")
	if _, err := task.Syscall(context.Background(), sysno.Sysno(99)); !errors.Is(err, syserr.ErrBadSyscall) {
		t.Errorf("Syscall(99) = %v, want %v", err, syserr.ErrBadSyscall)
	}
	if got := k.metrics.violations.Value(); got != 1 {
		t.Errorf("protocol violations = %d, want 1", got)
	}
	if got := k.metrics.syscalls.Value(invalidSysno); got != 1 {
		t.Errorf("invalid syscalls = %d, want 1", got)
	}
}

func TestSyscallRegisters(t *testing.T) {
	k := newKernel(t, Options{Harts: 2})
	task := k.NewTask("regs")
	regs := task.Registers()
	regs.Set(arch.S0, 42)
	regs.Set(arch.S11, 7)
	pc := regs.PC
	for i := 0; i < 3; i++ {
		if _, err := task.CreateEndpoint(); err != nil {
			t.Fatalf("CreateEndpoint: %v", err)
		}
	}
	if got, want := regs.PC, pc+3*arch.EnvCallSize; got != want {
		t.Errorf("pc = %#x, want %#x", got, want)
	}
	if regs.Get(arch.S0) != 42 || regs.Get(arch.S11) != 7 {
		t.Errorf("callee-saved registers changed: %v", regs)
	}
	if got := regs.Get(arch.A1); got != 3 {
		t.Errorf("a1 = %d, want the third cap id", got)
	}
}

func TestCallReply(t *testing.T) {
	k := newKernel(t, Options{})
	g := k.NewGroup(context.Background())
	startEcho(t, k, g)
	client := k.NewTask("client")
	ch := connectEcho(t, k, client)

	ctx := context.Background()
	for _, s := range []string{"hello", strings.Repeat("x", 3*ipc.InlineCap)} {
		got, isErr, err := echo(ctx, ch, s)
		if err != nil || isErr {
			t.Fatalf("echo(%d bytes) = %v, %v", len(s), isErr, err)
		}
		if got != s {
			t.Errorf("echo(%d bytes) returned %d bytes", len(s), len(got))
		}
	}
	if _, isErr, err := echo(ctx, ch, ""); err != nil || !isErr {
		t.Errorf("echo(\"\") = %v, %v, want the service error", isErr, err)
	}
	if n := k.Buffers().Live(); n != 0 {
		t.Errorf("%d transient buffers left behind", n)
	}
	if got := k.metrics.calls.Value(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}

	// Unknown opcodes are answered by the dispatcher.
	reply, err := ch.Call(ctx, &ipc.Message{Opcode: 9})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply.Status != syserr.ErrUnknownOpcode.Status() {
		t.Errorf("status = %d, want %d", reply.Status, syserr.ErrUnknownOpcode.Status())
	}
	if err := g.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestCapTransfer(t *testing.T) {
	k := newKernel(t, Options{})
	g := k.NewGroup(context.Background())
	startEcho(t, k, g)
	client := k.NewTask("client")
	ch := connectEcho(t, k, client)

	id, err := client.CreateBuffer(64)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	m, err := client.MapBuffer(id)
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	if _, err := m.WriteAt([]byte{0x5a}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	peek := func(b capability.ID) (uint8, error) {
		e := new(vidl.Encoder)
		e.Buffer(vidl.Buffer(b))
		d, _, err := vidl.Invoke(context.Background(), ch, opPeek, e)
		if err != nil {
			return 0, err
		}
		v := d.U8()
		return v, d.Finish()
	}
	got, err := peek(id)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if got != 0x5a {
		t.Errorf("server read %#x, want 0x5a", got)
	}
	// The client keeps its capability; the server received its own.
	if _, _, err := client.Identify(id); err != nil {
		t.Errorf("client lost its buffer: %v", err)
	}

	noGrant, err := client.Derive(id, capability.Read|capability.Write)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if _, err := peek(noGrant); !errors.Is(err, syserr.ErrInsufficientRights) {
		t.Errorf("transfer without grant = %v, want %v", err, syserr.ErrInsufficientRights)
	}
	if err := g.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestAbandonedCall(t *testing.T) {
	k := newKernel(t, Options{})
	srv := k.NewTask("server")
	ep, err := srv.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if err := k.RegisterService("Echo", srv, ep.ID(), echoSchema); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	client := k.NewTask("client")
	ch := connectEcho(t, k, client)

	received := make(chan uint64)
	release := make(chan struct{})
	replied := make(chan error)
	go func() {
		tok, _, err := ep.Receive(context.Background())
		if err != nil {
			close(received)
			return
		}
		received <- tok
		<-release
		replied <- ep.Reply(tok, &ipc.Message{Inline: []byte{vidl.ResultOk}})
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := ch.Call(ctx, &ipc.Message{Opcode: opEcho})
		done <- err
	}()
	if _, ok := <-received; !ok {
		t.Fatalf("server did not receive the call")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned Call = %v, want %v", err, context.Canceled)
	}

	// The channel stays busy until the server answers.
	if _, err := ch.Call(context.Background(), &ipc.Message{Opcode: opEcho}); !errors.Is(err, syserr.ErrCallPending) {
		t.Errorf("Call while pending = %v, want %v", err, syserr.ErrCallPending)
	}
	close(release)
	if err := <-replied; err != nil {
		t.Fatalf("Reply: %v", err)
	}

	go func() {
		tok, _, err := ep.Receive(context.Background())
		if err == nil {
			err = ep.Reply(tok, &ipc.Message{Inline: []byte{vidl.ResultOk, 7}})
		}
		replied <- err
	}()
	reply, err := ch.Call(context.Background(), &ipc.Message{Opcode: opEcho})
	if err != nil {
		t.Fatalf("Call after reply: %v", err)
	}
	if diff := cmp.Diff([]byte{vidl.ResultOk, 7}, reply.Inline); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	if err := <-replied; err != nil {
		t.Errorf("Reply: %v", err)
	}
}

func TestFailedCallReleasesSpill(t *testing.T) {
	k := newKernel(t, Options{})
	srv := k.NewTask("server")
	ep, err := srv.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if err := k.RegisterService("Echo", srv, ep.ID(), echoSchema); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	client := k.NewTask("client")
	ch := connectEcho(t, k, client)
	ep2, err := client.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	noGrant, err := client.Derive(ep2.ID(), capability.Read)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	base := k.Buffers().Live()
	large := make([]byte, 2000)

	for _, tc := range []struct {
		name string
		send func() error
		want error
	}{
		{
			name: "cap without grant",
			send: func() error {
				_, err := ch.Call(context.Background(), &ipc.Message{Opcode: opEcho, Inline: large, Caps: []capability.ID{noGrant}})
				return err
			},
			want: syserr.ErrInsufficientRights,
		},
		{
			name: "reply to unknown token",
			send: func() error {
				return ep.Reply(42, &ipc.Message{Inline: large})
			},
			want: syserr.ErrNoPendingCall,
		},
		{
			name: "revoked channel",
			send: func() error {
				if err := client.Revoke(ch.ID()); err != nil && !errors.Is(err, syserr.ErrCapNotFound) {
					return err
				}
				_, err := ch.Call(context.Background(), &ipc.Message{Opcode: opEcho, Inline: large})
				return err
			},
			want: syserr.ErrCapNotFound,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if err := tc.send(); !errors.Is(err, tc.want) {
					t.Fatalf("send %d = %v, want %v", i, err, tc.want)
				}
			}
			if n := k.Buffers().Live(); n != base {
				t.Errorf("%d buffers live, want %d", n, base)
			}
			for _, task := range []*Task{client, srv} {
				for _, c := range task.Caps() {
					if c.Object.CapKind() == capability.KindBuffer {
						t.Errorf("%s still holds buffer cap %d", task.Name(), c.ID)
					}
				}
			}
		})
	}
}

func TestServerExitClosesEndpoint(t *testing.T) {
	k := newKernel(t, Options{})
	srv := k.NewTask("server")
	ep, err := srv.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if err := k.RegisterService("Echo", srv, ep.ID(), echoSchema); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	client := k.NewTask("client")
	ch := connectEcho(t, k, client)

	go func() {
		if _, _, err := ep.Receive(context.Background()); err == nil {
			srv.Exit(3)
		}
	}()
	reply, err := ch.Call(context.Background(), &ipc.Message{Opcode: opEcho})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply.Status != syserr.ErrEndpointClosed.Status() {
		t.Errorf("status = %d, want %d", reply.Status, syserr.ErrEndpointClosed.Status())
	}
	<-srv.Done()
	if code, err := srv.ExitStatus(); code != 3 || err != nil {
		t.Errorf("ExitStatus = %d, %v, want 3, nil", code, err)
	}
	if got := k.Services(); len(got) != 0 {
		t.Errorf("services after exit = %v", got)
	}
	if _, err := ch.Call(context.Background(), &ipc.Message{Opcode: opEcho}); !errors.Is(err, syserr.ErrEndpointClosed) {
		t.Errorf("Call on closed endpoint = %v, want %v", err, syserr.ErrEndpointClosed)
	}
}

func TestBlockedRecvInterrupted(t *testing.T) {
	k := newKernel(t, Options{})
	srv := k.NewTask("server")
	ep, err := srv.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := ep.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive = %v, want %v", err, context.DeadlineExceeded)
	}
	// The task is usable afterwards.
	if _, err := srv.CreateEndpoint(); err != nil {
		t.Errorf("CreateEndpoint after interrupted Recv: %v", err)
	}
}

func TestTeardownReleasesBuffers(t *testing.T) {
	k := newKernel(t, Options{})
	task := k.NewTask("buffers")
	id, err := task.CreateBuffer(4096)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	m, err := task.MapBuffer(id)
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	if _, err := task.CreateBuffer(0); !errors.Is(err, syserr.ErrOutOfBounds) {
		t.Errorf("CreateBuffer(0) = %v, want %v", err, syserr.ErrOutOfBounds)
	}
	task.Exit(0)
	if n := k.Buffers().Live(); n != 0 {
		t.Errorf("%d buffers live after exit", n)
	}
	if _, err := m.ReadAt(make([]byte, 1), 0); !errors.Is(err, syserr.ErrStaleCapability) {
		t.Errorf("ReadAt after exit = %v, want %v", err, syserr.ErrStaleCapability)
	}
	if _, err := task.CreateEndpoint(); !errors.Is(err, syserr.ErrTaskDead) {
		t.Errorf("syscall after exit = %v, want %v", err, syserr.ErrTaskDead)
	}
}

func TestUserFaultKillsTask(t *testing.T) {
	k := newKernel(t, Options{})
	task := k.NewTask("faulty")
	if _, err := task.CreateEndpoint(); err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if out := task.Raise(arch.LoadPageFault, 0xdead); out != ring0.Killed {
		t.Fatalf("Raise = %v, want %v", out, ring0.Killed)
	}
	if !task.Dead() {
		t.Errorf("task survived a fault")
	}
	if _, err := task.ExitStatus(); !errors.Is(err, syserr.ErrUserFault) {
		t.Errorf("exit error = %v, want %v", err, syserr.ErrUserFault)
	}
	if len(task.Caps()) != 0 {
		t.Errorf("caps left after kill: %v", task.Caps())
	}
	if k.Halted() != nil {
		t.Errorf("user fault halted the kernel: %v", k.Halted())
	}
	if got := k.metrics.traps.Value(trapFault); got != 1 {
		t.Errorf("fault traps = %d, want 1", got)
	}
}

func TestKernelFaultHalts(t *testing.T) {
	k := newKernel(t, Options{})
	task := k.NewTask("wild")
	task.Registers().PC = uint64(k.Layout().Kernel.Start)
	if out := task.Raise(arch.IllegalInstruction, 0); out != ring0.Halted {
		t.Fatalf("Raise = %v, want %v", out, ring0.Halted)
	}
	if err := k.Halted(); !errors.Is(err, syserr.ErrKernelFault) {
		t.Errorf("Halted = %v, want %v", err, syserr.ErrKernelFault)
	}
	other := k.NewTask("other")
	if _, err := other.CreateEndpoint(); !errors.Is(err, syserr.ErrHalted) {
		t.Errorf("syscall on halted kernel = %v, want %v", err, syserr.ErrHalted)
	}
}

func TestInterrupt(t *testing.T) {
	k := newKernel(t, Options{})
	task := k.NewTask("ticks")
	pc := task.Registers().PC
	if out := task.Raise(arch.SupervisorTimerInterrupt, 0); out != ring0.Resumed {
		t.Fatalf("Raise = %v, want %v", out, ring0.Resumed)
	}
	if task.Registers().PC != pc {
		t.Errorf("interrupt moved pc from %#x to %#x", pc, task.Registers().PC)
	}
	if got := k.metrics.traps.Value(trapInterrupt); got != 1 {
		t.Errorf("interrupt traps = %d, want 1", got)
	}
}
