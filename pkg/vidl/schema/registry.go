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

package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mohae/deepcopy"
)

// Registry stores descriptors by service name. Stored descriptors are
// private copies: callers can neither change a registered descriptor nor
// observe later changes to the one they passed in.
type Registry struct {
	mu       sync.RWMutex
	services map[string]entry
}

type entry struct {
	file        *File
	fingerprint string
}

// Register adds every service in f. Registering the same service again
// with an identical fingerprint is a no-op; a different one is an error.
func (r *Registry) Register(f *File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.services == nil {
		r.services = make(map[string]entry)
	}

	c := deepcopy.Copy(f).(*File)
	added := make(map[string]entry, len(c.Services))
	for _, svc := range c.Services {
		fp, err := ServiceFingerprint(c, svc.Name)
		if err != nil {
			return err
		}
		if old, ok := r.services[svc.Name]; ok && old.fingerprint != fp {
			return fmt.Errorf("service %q already registered from schema %q with fingerprint %s", svc.Name, old.file.Package, old.fingerprint)
		}
		added[svc.Name] = entry{file: c, fingerprint: fp}
	}
	for name, e := range added {
		if _, ok := r.services[name]; !ok {
			r.services[name] = e
		}
	}
	return nil
}

// Lookup returns a copy of the schema defining service name and the
// service's fingerprint.
func (r *Registry) Lookup(name string) (*File, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	if !ok {
		return nil, "", false
	}
	return deepcopy.Copy(e.file).(*File), e.fingerprint, true
}

// Fingerprint returns the fingerprint of service name.
func (r *Registry) Fingerprint(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	return e.fingerprint, ok
}

// Services returns the registered service names in sorted order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
