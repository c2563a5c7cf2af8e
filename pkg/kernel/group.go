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
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Group runs programs, each in its own task. The first program to fail
// cancels the others.
type Group struct {
	k       *Kernel
	ctx     context.Context
	cancel  context.CancelFunc
	eg      *errgroup.Group
	stopped atomic.Bool
}

// NewGroup returns an empty group bound to ctx.
func (k *Kernel) NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{k: k, ctx: ctx, cancel: cancel, eg: eg}
}

// Go creates a task named name and runs main on its thread. The task exits
// when main returns.
func (g *Group) Go(name string, main func(ctx context.Context, t *Task) error) *Task {
	t := g.k.NewTask(name)
	g.eg.Go(func() error {
		defer t.Exit(0)
		return main(g.ctx, t)
	})
	return t
}

// Wait waits for every program and returns the first error. Cancellation
// caused by Stop is not an error.
func (g *Group) Wait() error {
	err := g.eg.Wait()
	g.cancel()
	if g.stopped.Load() && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop cancels every program and waits for them.
func (g *Group) Stop() error {
	g.stopped.Store(true)
	g.cancel()
	return g.Wait()
}
