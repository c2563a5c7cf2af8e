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

package devicemgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/tools/vidl/compile"
)

const manifest = `
devices:
  - name: serial@10000000
    compatible: [ns16550a]
    reg: {base: 0x10000000, size: 0x100}
    interrupts: [10]
  - name: serial@10001000
    compatible: ["sifive,uart0", uart]
    reg: {base: 0x10001000, size: 0x100}
    interrupts: [11]
  - name: serial@10002000
    compatible: [ns16550a, uart]
    reg: {base: 0x10002000, size: 0x100}
  - name: plic@c000000
    compatible: ["sifive,plic-1.0.0", "riscv,plic0"]
    reg: {base: 0xc000000, size: 0x4000000}
`

// virtioManifest has more virtio devices than one reply can carry.
func virtioManifest() string {
	var sb strings.Builder
	sb.WriteString(manifest)
	for i := 0; i < 9; i++ {
		fmt.Fprintf(&sb, "  - name: virtio_mmio@%x\n    compatible: [\"virtio,mmio\"]\n    reg: {base: %#x, size: 0x1000}\n", 0x10008000+i*0x1000, 0x10008000+i*0x1000)
	}
	return sb.String()
}

func parse(t *testing.T, src string) *Manifest {
	t.Helper()
	m, err := ParseManifest(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	return m
}

func start(t *testing.T, m *Manifest) (*kernel.Kernel, *kernel.Task) {
	t.Helper()
	k, err := kernel.New(kernel.Options{})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	t.Cleanup(k.Shutdown)
	g := k.NewGroup(context.Background())
	srv := make(chan *kernel.Task, 1)
	g.Go("devicemgr", func(ctx context.Context, task *kernel.Task) error {
		srv <- task
		s, err := NewServer(task, m)
		if err != nil {
			return err
		}
		return s.Serve(ctx)
	})
	t.Cleanup(func() {
		if err := g.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return k, <-srv
}

func connect(t *testing.T, k *kernel.Kernel, name string) (*kernel.Task, *DeviceManagerClient) {
	t.Helper()
	task := k.NewTask(name)
	c, err := Connect(context.Background(), task)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return task, c
}

func names(devs []Device) []string {
	var out []string
	for _, d := range devs {
		out = append(out, d.Name)
	}
	return out
}

func TestSchema(t *testing.T) {
	f, err := compile.File("devicemgr.vidl")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if diff := cmp.Diff(DevicemgrSchema, f); diff != "" {
		t.Errorf("devicemgr.vidl does not match the generated descriptor (-generated +compiled):\n%s", diff)
	}
}

// table describes the capabilities of t.
func table(t *kernel.Task) []string {
	var out []string
	for _, c := range t.Caps() {
		out = append(out, fmt.Sprintf("%d %v %v", c.ID, c.Object.CapKind(), c.Rights))
	}
	return out
}

func TestRequestOrder(t *testing.T) {
	ctx := context.Background()
	k, srv := start(t, parse(t, manifest))
	client, c := connect(t, k, "client")
	bystander, _ := connect(t, k, "bystander")
	srvBefore, bystanderBefore := table(srv), table(bystander)

	devs, err := c.Request(ctx, []string{"uart", "ns16550a"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	want := []string{"serial@10001000", "serial@10002000", "serial@10000000"}
	if diff := cmp.Diff(want, names(devs)); diff != "" {
		t.Errorf("Request order mismatch (-want +got):\n%s", diff)
	}
	if got, want := devs[0].Region, (MmioRegion{Base: 0x10001000, Len: 0x100}); !got.Equal(&want) {
		t.Errorf("Region = %+v, want %+v", got, want)
	}
	if diff := cmp.Diff([]uint32{11}, devs[0].Interrupts); diff != "" {
		t.Errorf("Interrupts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ns16550a", "uart"}, devs[1].Compatible); diff != "" {
		t.Errorf("Compatible mismatch (-want +got):\n%s", diff)
	}

	ids := make(map[capability.ID]bool)
	for _, d := range devs {
		id := capability.ID(d.MMIO)
		if ids[id] {
			t.Errorf("capability %d handed out twice", id)
		}
		ids[id] = true
		kind, rights, err := client.Identify(id)
		if err != nil {
			t.Fatalf("Identify(%s): %v", d.Name, err)
		}
		if kind != capability.KindMMIO || rights != mmioRights {
			t.Errorf("%s capability is %v %v, want %v %v", d.Name, kind, rights, capability.KindMMIO, mmioRights)
		}
	}

	// Nobody else's table changed.
	if diff := cmp.Diff(srvBefore, table(srv)); diff != "" {
		t.Errorf("server table changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(bystanderBefore, table(bystander)); diff != "" {
		t.Errorf("bystander table changed (-before +after):\n%s", diff)
	}
}

func TestRequestRegionObject(t *testing.T) {
	ctx := context.Background()
	k, _ := start(t, parse(t, manifest))
	client, c := connect(t, k, "client")
	devs, err := c.Request(ctx, []string{"riscv,plic0"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("Request returned %d devices, want 1", len(devs))
	}
	var region *Region
	for _, cp := range client.Caps() {
		if cp.ID == capability.ID(devs[0].MMIO) {
			region, _ = cp.Object.(*Region)
		}
	}
	want := &Region{Device: "plic@c000000", Base: 0xc000000, Size: 0x4000000}
	if diff := cmp.Diff(want, region); diff != "" {
		t.Errorf("MMIO object mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestEdgeCases(t *testing.T) {
	ctx := context.Background()
	k, _ := start(t, parse(t, virtioManifest()))
	client, c := connect(t, k, "client")
	before := table(client)

	for _, req := range [][]string{nil, {"acme,nothing"}} {
		devs, err := c.Request(ctx, req)
		if err != nil {
			t.Errorf("Request(%q): %v", req, err)
		}
		if len(devs) != 0 {
			t.Errorf("Request(%q) = %v, want no devices", req, names(devs))
		}
	}
	if _, err := c.Request(ctx, []string{"uart", ""}); !errors.Is(err, DeviceErrorInvalidName) {
		t.Errorf("Request with an empty name = %v, want %v", err, DeviceErrorInvalidName)
	}
	if _, err := c.Request(ctx, []string{"virtio,mmio"}); !errors.Is(err, DeviceErrorTooManyDevices) {
		t.Errorf("Request of 9 devices = %v, want %v", err, DeviceErrorTooManyDevices)
	}
	if diff := cmp.Diff(before, table(client)); diff != "" {
		t.Errorf("failed requests changed the client table (-before +after):\n%s", diff)
	}

	// Asking again hands out fresh capabilities.
	first, err := c.Request(ctx, []string{"ns16550a"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	second, err := c.Request(ctx, []string{"ns16550a"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if first[0].MMIO == second[0].MMIO {
		t.Errorf("repeated Request reused capability %d", first[0].MMIO)
	}
}

func TestMatch(t *testing.T) {
	s := &Server{byCompatible: map[string][]int{
		"a": {0, 2},
		"b": {1, 2},
	}}
	for _, tc := range []struct {
		in   []string
		want []int
	}{
		{[]string{"a"}, []int{0, 2}},
		{[]string{"b", "a"}, []int{1, 2, 0}},
		{[]string{"a", "b", "a"}, []int{0, 2, 1}},
		{[]string{"c"}, nil},
	} {
		if diff := cmp.Diff(tc.want, s.Match(tc.in)); diff != "" {
			t.Errorf("Match(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestParseManifest(t *testing.T) {
	m := parse(t, manifest)
	want := DeviceSpec{
		Name:       "serial@10000000",
		Compatible: []string{"ns16550a"},
		Reg:        RegSpec{Base: 0x10000000, Size: 0x100},
		Interrupts: []uint32{10},
	}
	if diff := cmp.Diff(want, m.Devices[0]); diff != "" {
		t.Errorf("first device mismatch (-want +got):\n%s", diff)
	}
	if empty := parse(t, ""); len(empty.Devices) != 0 {
		t.Errorf("empty manifest has %d devices", len(empty.Devices))
	}
}

func TestParseManifestErrors(t *testing.T) {
	for _, tc := range []struct {
		name, src, want string
	}{
		{
			name: "unknown key",
			src:  "devices:\n  - name: a\n    compatible: [x]\n    reg: {base: 0, size: 1}\n    speed: 9600\n",
			want: "field speed not found",
		},
		{
			name: "no name",
			src:  "devices:\n  - compatible: [x]\n    reg: {base: 0, size: 1}\n",
			want: "device 0 has no name",
		},
		{
			name: "duplicate name",
			src:  "devices:\n  - {name: a, compatible: [x], reg: {base: 0, size: 1}}\n  - {name: a, compatible: [x], reg: {base: 8, size: 1}}\n",
			want: `devices 0 and 1 are both named "a"`,
		},
		{
			name: "no compatible",
			src:  "devices:\n  - {name: a, reg: {base: 0, size: 1}}\n",
			want: `device "a" has no compatible strings`,
		},
		{
			name: "bad compatible",
			src:  "devices:\n  - {name: a, compatible: [\"x y\"], reg: {base: 0, size: 1}}\n",
			want: `invalid compatible string "x y"`,
		},
		{
			name: "empty window",
			src:  "devices:\n  - {name: a, compatible: [x], reg: {base: 0x1000, size: 0}}\n",
			want: `device "a" has invalid register window 0x1000+0x0`,
		},
		{
			name: "overlap",
			src:  "devices:\n  - {name: a, compatible: [x], reg: {base: 0x1000, size: 0x100}}\n  - {name: b, compatible: [x], reg: {base: 0x10f0, size: 0x100}}\n",
			want: `register windows of "a" and "b" overlap`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest(strings.NewReader(tc.src))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("ParseManifest = %v, want an error containing %q", err, tc.want)
			}
		})
	}
}
