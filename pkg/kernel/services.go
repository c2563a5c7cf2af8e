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
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"gvisor.dev/ukernel/pkg/capability"
	"gvisor.dev/ukernel/pkg/ipc"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/syserr"
	"gvisor.dev/ukernel/pkg/vidl/schema"
)

// service is a registered endpoint that clients can connect to by name.
type service struct {
	name        string
	owner       *Task
	ep          *ipc.Endpoint
	fingerprint string
}

// serviceTable is the kernel's service manager.
type serviceTable struct {
	mu     sync.Mutex
	byName map[string]service

	// schemas holds the descriptors services were registered with.
	schemas schema.Registry
}

func (st *serviceTable) lookup(name string) (service, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byName[name]
	return s, ok
}

// dropOwner unregisters every service served by t.
func (st *serviceTable) dropOwner(t *Task) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for name, s := range st.byName {
		if s.owner == t {
			delete(st.byName, name)
			log.Infof("Service %q unregistered", name)
		}
	}
}

// RegisterService publishes the endpoint behind cap ep of t as service name,
// described by f. Clients must connect with the fingerprint of that service
// in f.
func (k *Kernel) RegisterService(name string, t *Task, ep capability.ID, f *schema.File) error {
	if _, ok := f.Service(name); !ok {
		return syserr.ErrUnknownService.Errorf("schema %q does not define service %q", f.Package, name)
	}
	fp, err := schema.ServiceFingerprint(f, name)
	if err != nil {
		return err
	}
	c, err := t.require(uint64(ep), capability.KindEndpoint, capability.Read|capability.Write)
	if err != nil {
		return err
	}
	e := c.Object.(*ipc.Endpoint)
	if e.Owner() != t {
		return syserr.ErrWrongObject.Errorf("endpoint %d is not owned by task %d", ep, t.id)
	}
	if err := k.services.schemas.Register(f); err != nil {
		return syserr.ErrSchemaMismatch.Errorf("%v", err)
	}

	k.services.mu.Lock()
	defer k.services.mu.Unlock()
	if k.services.byName == nil {
		k.services.byName = make(map[string]service)
	}
	if old, ok := k.services.byName[name]; ok {
		return syserr.ErrServiceExists.Errorf("%q is served by task %d", name, old.owner.id)
	}
	k.services.byName[name] = service{name: name, owner: t, ep: e, fingerprint: fp}
	log.Infof("Service %q registered by task %d (%s), fingerprint %s", name, t.id, t.name, fp)
	return nil
}

// Connect waits for service name to be registered and grants t a channel to
// it. The service must have been registered with fingerprint.
func (k *Kernel) Connect(ctx context.Context, t *Task, name, fingerprint string) (*Channel, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = k.opts.ConnectTimeout

	var svc service
	op := func() error {
		s, ok := k.services.lookup(name)
		if !ok {
			return syserr.ErrUnknownService.Errorf("%q", name)
		}
		if s.fingerprint != fingerprint {
			return backoff.Permanent(syserr.ErrSchemaMismatch.Errorf("service %q has fingerprint %s, client has %s", name, s.fingerprint, fingerprint))
		}
		svc = s
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	if svc.ep.Closed() {
		return nil, syserr.ErrEndpointClosed
	}
	id, err := t.Grant(ipc.NewSession(svc.ep), capability.Write)
	if err != nil {
		return nil, err
	}
	log.Debugf("Task %d connected to %q as cap %d", t.id, name, id)
	return t.Channel(id), nil
}

// Services returns the names of the registered services in sorted order.
func (k *Kernel) Services() []string {
	k.services.mu.Lock()
	defer k.services.mu.Unlock()
	names := make([]string, 0, len(k.services.byName))
	for name := range k.services.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the descriptor service name was registered with and its
// fingerprint.
func (k *Kernel) Schema(name string) (*schema.File, string, bool) {
	return k.services.schemas.Lookup(name)
}
