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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
	"gvisor.dev/ukernel/pkg/syserr"
	"gvisor.dev/ukernel/pkg/vidl/schema"
)

func TestConnectErrors(t *testing.T) {
	k := newKernel(t, Options{ConnectTimeout: 20 * time.Millisecond})
	srv := k.NewTask("server")
	ep, err := srv.CreateEndpoint()
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if err := k.RegisterService("Echo", srv, ep.ID(), echoSchema); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	client := k.NewTask("client")

	if err := k.RegisterService("Echo", srv, ep.ID(), echoSchema); !errors.Is(err, syserr.ErrServiceExists) {
		t.Errorf("second RegisterService = %v, want %v", err, syserr.ErrServiceExists)
	}
	if err := k.RegisterService("Other", srv, ep.ID(), echoSchema); !errors.Is(err, syserr.ErrUnknownService) {
		t.Errorf("RegisterService of undefined service = %v, want %v", err, syserr.ErrUnknownService)
	}
	if err := k.RegisterService("Echo", client, ep.ID(), echoSchema); err == nil {
		t.Errorf("RegisterService with another task's cap succeeded")
	}
	if _, err := k.Connect(context.Background(), client, "Echo", "0000"); !errors.Is(err, syserr.ErrSchemaMismatch) {
		t.Errorf("Connect with a stale fingerprint = %v, want %v", err, syserr.ErrSchemaMismatch)
	}
	if _, err := k.Connect(context.Background(), client, "Missing", "0000"); !errors.Is(err, syserr.ErrUnknownService) {
		t.Errorf("Connect to missing service = %v, want %v", err, syserr.ErrUnknownService)
	}
	if diff := cmp.Diff([]string{"Echo"}, k.Services()); diff != "" {
		t.Errorf("Services mismatch (-want +got):\n%s", diff)
	}
	f, fp, ok := k.Schema("Echo")
	if !ok || fp != schema.MustServiceFingerprint(echoSchema, "Echo") {
		t.Errorf("Schema(Echo) = %v, %q", ok, fp)
	}
	if diff := cmp.Diff(echoSchema, f); diff != "" {
		t.Errorf("registered schema mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectWaitsForRegistration(t *testing.T) {
	k := newKernel(t, Options{})
	g := k.NewGroup(context.Background())
	client := k.NewTask("client")

	connected := make(chan error, 1)
	go func() {
		ch, err := k.Connect(context.Background(), client, "Echo", schema.MustServiceFingerprint(echoSchema, "Echo"))
		if err == nil {
			_, _, err = echo(context.Background(), ch, "late")
		}
		connected <- err
	}()
	time.Sleep(20 * time.Millisecond)
	startEcho(t, k, g)
	if err := <-connected; err != nil {
		t.Errorf("Connect before registration: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestGroupError(t *testing.T) {
	k := newKernel(t, Options{})
	g := k.NewGroup(context.Background())
	want := errors.New("boom")
	g.Go("failing", func(ctx context.Context, task *Task) error { return want })
	blocked := g.Go("blocked", func(ctx context.Context, task *Task) error {
		ep, err := task.CreateEndpoint()
		if err != nil {
			return err
		}
		_, _, err = ep.Receive(ctx)
		return err
	})
	if err := g.Wait(); !errors.Is(err, want) {
		t.Errorf("Wait = %v, want %v", err, want)
	}
	if !blocked.Dead() {
		t.Errorf("blocked program's task did not exit")
	}
}

func TestMetricsExport(t *testing.T) {
	k := newKernel(t, Options{})
	g := k.NewGroup(context.Background())
	startEcho(t, k, g)
	client := k.NewTask("client")
	ch := connectEcho(t, k, client)
	if _, _, err := echo(context.Background(), ch, "ping"); err != nil {
		t.Fatalf("echo: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var b bytes.Buffer
	if err := k.Metrics().Write(&b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fams, err := (&expfmt.TextParser{}).TextToMetricFamilies(&b)
	if err != nil {
		t.Fatalf("TextToMetricFamilies: %v", err)
	}
	calls, ok := fams["ukernel_calls_total"]
	if !ok {
		t.Fatalf("no call counter in %v", fams)
	}
	if got := calls.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("calls = %v, want 1", got)
	}
	if _, ok := fams["ukernel_syscalls_total"]; !ok {
		t.Errorf("no syscall counter exported")
	}
}
