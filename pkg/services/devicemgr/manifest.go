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
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest lists the devices of a platform, in the order the platform
// describes them.
//
// A manifest looks like:
//
//	devices:
//	  - name: uart@10000000
//	    compatible: [ns16550a]
//	    reg: {base: 0x10000000, size: 0x100}
//	    interrupts: [10]
type Manifest struct {
	Devices []DeviceSpec `yaml:"devices"`
}

// DeviceSpec is one device in a manifest.
type DeviceSpec struct {
	Name       string   `yaml:"name"`
	Compatible []string `yaml:"compatible"`
	Reg        RegSpec  `yaml:"reg"`
	Interrupts []uint32 `yaml:"interrupts,omitempty"`
}

// RegSpec is the MMIO register window of a device.
type RegSpec struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

func (r RegSpec) end() uint64 {
	return r.Base + r.Size
}

// ParseManifest decodes and validates a YAML manifest. Unknown keys are
// errors.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding device manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadManifest reads the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks that every device is named uniquely, has a compatible
// string, and owns a register window that overlaps no other device's.
func (m *Manifest) Validate() error {
	names := make(map[string]int)
	for i, d := range m.Devices {
		if d.Name == "" {
			return fmt.Errorf("device %d has no name", i)
		}
		if j, ok := names[d.Name]; ok {
			return fmt.Errorf("devices %d and %d are both named %q", j, i, d.Name)
		}
		names[d.Name] = i
		if len(d.Compatible) == 0 {
			return fmt.Errorf("device %q has no compatible strings", d.Name)
		}
		for _, c := range d.Compatible {
			if !validName(c) {
				return fmt.Errorf("device %q has invalid compatible string %q", d.Name, c)
			}
		}
		if d.Reg.Size == 0 || d.Reg.end() < d.Reg.Base {
			return fmt.Errorf("device %q has invalid register window %#x+%#x", d.Name, d.Reg.Base, d.Reg.Size)
		}
		for _, o := range m.Devices[:i] {
			if d.Reg.Base < o.Reg.end() && o.Reg.Base < d.Reg.end() {
				return fmt.Errorf("register windows of %q and %q overlap", o.Name, d.Name)
			}
		}
	}
	return nil
}

// validName returns true if s is a usable compatible string: non-empty
// printable ASCII without spaces.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}
