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

// Package devicemgr provides the DeviceManager service, which hands out
// the platform's devices by compatible string.
//
// The devices come from a manifest. Each device answered to a request
// carries a fresh MMIO capability in the requester's table; nothing else
// is granted to anyone.
package devicemgr

//go:generate go run gvisor.dev/ukernel/tools/vidlc gen devicemgr.vidl

import (
	"context"

	"gvisor.dev/ukernel/pkg/kernel"
)

// ServiceName is the name the server registers under.
const ServiceName = "DeviceManager"

// Connect opens a channel from t to the DeviceManager service.
func Connect(ctx context.Context, t *kernel.Task) (*DeviceManagerClient, error) {
	ch, err := t.Kernel().Connect(ctx, t, ServiceName, DeviceManagerFingerprint())
	if err != nil {
		return nil, err
	}
	return &DeviceManagerClient{Caller: ch}, nil
}
