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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"gvisor.dev/ukernel/cmd/ukernel/config"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/services/devicemgr"
	"gvisor.dev/ukernel/pkg/services/filesystem"
	"gvisor.dev/ukernel/pkg/services/network"
)

// System is a booted kernel running the network, filesystem and device
// manager services, each in its own task.
type System struct {
	Kernel *kernel.Kernel

	conf  *config.Config
	group *kernel.Group
}

// StartSystem starts a kernel configured by conf and its services. The services
// stop when ctx is done or Stop is called.
func StartSystem(ctx context.Context, conf *config.Config) (*System, error) {
	opts, err := conf.KernelOptions()
	if err != nil {
		return nil, err
	}
	m := &devicemgr.Manifest{}
	if conf.Manifest != "" {
		if m, err = devicemgr.ReadManifest(conf.Manifest); err != nil {
			return nil, err
		}
	}
	if fi, err := os.Stat(conf.FSRoot); err != nil {
		return nil, fmt.Errorf("filesystem root: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("filesystem root %s is not a directory", conf.FSRoot)
	}
	fsys := os.DirFS(conf.FSRoot)

	k, err := kernel.New(opts)
	if err != nil {
		return nil, err
	}
	g := k.NewGroup(ctx)
	g.Go("netd", func(ctx context.Context, t *kernel.Task) error {
		return network.NewServer(t).Serve(ctx)
	})
	g.Go("fsd", func(ctx context.Context, t *kernel.Task) error {
		return filesystem.NewServer(t, fsys).Serve(ctx)
	})
	g.Go("devmgr", func(ctx context.Context, t *kernel.Task) error {
		s, err := devicemgr.NewServer(t, m)
		if err != nil {
			return err
		}
		return s.Serve(ctx)
	})
	log.Infof("Booted %d services from %s", len(k.Tasks().All()), conf.FSRoot)
	return &System{Kernel: k, conf: conf, group: g}, nil
}

// Wait blocks until a service fails or the boot context is done.
func (s *System) Wait() error {
	return s.group.Wait()
}

// Stop stops the services, writes the metrics if configured, and tears the
// kernel down.
func (s *System) Stop() error {
	err := s.group.Stop()
	if merr := s.writeMetrics(); err == nil {
		err = merr
	}
	s.Kernel.Shutdown()
	return err
}

func (s *System) writeMetrics() error {
	var w io.Writer
	switch s.conf.Metrics {
	case "":
		return nil
	case "-":
		w = os.Stdout
	default:
		f, err := os.Create(s.conf.Metrics)
		if err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		defer f.Close()
		w = f
	}
	return s.Kernel.Metrics().Write(w)
}
