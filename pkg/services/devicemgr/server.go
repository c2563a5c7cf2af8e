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
	"slices"

	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/vidl"
)

// Region is the object behind an MMIO capability: the register window of
// one device.
type Region struct {
	// Device is the device name.
	Device string

	Base uint64
	Size uint64
}

// CapKind implements capability.Object.CapKind.
func (*Region) CapKind() capability.Kind {
	return capability.KindMMIO
}

// mmioRights are the rights of the server's MMIO capabilities, and so of
// the copies it hands out.
const mmioRights = capability.Read | capability.Write | capability.Grant

type device struct {
	spec DeviceSpec

	// mmio is the server's capability for the device's region.
	mmio capability.ID
}

// Server brokers the devices of a manifest. It implements
// DeviceManagerProvider.
type Server struct {
	task    *kernel.Task
	devices []device

	// byCompatible maps a compatible string to the indices of the devices
	// that declare it, in manifest order.
	byCompatible map[string][]int
}

// NewServer returns a server for the devices of m running as task t. The
// server's task holds an MMIO capability for every device.
func NewServer(t *kernel.Task, m *Manifest) (*Server, error) {
	s := &Server{
		task:         t,
		byCompatible: make(map[string][]int),
	}
	for i, spec := range m.Devices {
		id, err := t.Grant(&Region{Device: spec.Name, Base: spec.Reg.Base, Size: spec.Reg.Size}, mmioRights)
		if err != nil {
			return nil, err
		}
		s.devices = append(s.devices, device{spec: spec, mmio: id})
		for _, c := range spec.Compatible {
			if idx := s.byCompatible[c]; len(idx) == 0 || idx[len(idx)-1] != i {
				s.byCompatible[c] = append(idx, i)
			}
		}
	}
	return s, nil
}

// Serve registers the service and answers calls until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ep, err := s.task.CreateEndpoint()
	if err != nil {
		return err
	}
	if err := s.task.Kernel().RegisterService(ServiceName, s.task, ep.ID(), DevicemgrSchema); err != nil {
		return err
	}
	log.Infof("DeviceManager ready with %d devices on endpoint %d", len(s.devices), ep.ID())
	return ServeDeviceManager(ctx, ep, s)
}

// Match returns the indices of the devices matching compatible. Devices
// matching an earlier string come first, ties keep manifest order, and no
// device appears twice.
func (s *Server) Match(compatible []string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, c := range compatible {
		for _, i := range s.byCompatible[c] {
			if seen[i] {
				continue
			}
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

// Request implements DeviceManagerProvider.Request. An answer names every
// device with a capability, so it holds at most ipc.MaxCaps devices.
func (s *Server) Request(ctx context.Context, compatible []string) ([]Device, error) {
	for _, c := range compatible {
		if !validName(c) {
			return nil, DeviceErrorInvalidName
		}
	}
	match := s.Match(compatible)
	if len(match) > ipc.MaxCaps {
		return nil, DeviceErrorTooManyDevices
	}
	out := make([]Device, 0, len(match))
	for _, i := range match {
		d := &s.devices[i]
		out = append(out, Device{
			Name:       d.spec.Name,
			Compatible: slices.Clone(d.spec.Compatible),
			Region:     MmioRegion{Base: d.spec.Reg.Base, Len: d.spec.Reg.Size},
			Interrupts: slices.Clone(d.spec.Interrupts),
			MMIO:       vidl.Cap(d.mmio),
		})
	}
	log.Debugf("Request %q matched %d devices", compatible, len(out))
	return out, nil
}
