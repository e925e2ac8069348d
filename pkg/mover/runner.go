// Copyright 2025 walteh LLC
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

package mover

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// Factory creates the StoreMover used by one worker slot
type Factory func() (*StoreMover, error)

// 🏃 Runner moves a batch of items with bounded concurrency
type Runner struct {
	factory  Factory
	parallel int
	onResult func(Result)

	mu      sync.Mutex
	movers  []*StoreMover
	stopped bool
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithResultHandler registers a callback invoked after every item, from the worker
// goroutine that handled it
func WithResultHandler(fn func(Result)) RunnerOption {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// 🏗️ NewRunner creates a runner with parallel worker slots, each owning one mover
func NewRunner(factory Factory, parallel int, opts ...RunnerOption) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	r := &Runner{factory: factory, parallel: parallel}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// 🏃 Run moves items and returns one Result per item in input order. Items not
// attempted because the runner was stopped or ctx was cancelled are reported as
// COPY_FAILED with Stage "skipped".
func (r *Runner) Run(ctx context.Context, items []store.Item) ([]Result, error) {
	return r.run(ctx, items, (*StoreMover).MoveItem)
}

// RetryDeletion repeats the deletion stage for items
func (r *Runner) RetryDeletion(ctx context.Context, items []store.Item) ([]Result, error) {
	return r.run(ctx, items, (*StoreMover).RetryDeletion)
}

func (r *Runner) run(ctx context.Context, items []store.Item, fn func(*StoreMover, context.Context, store.Item) Result) ([]Result, error) {
	logger := zerolog.Ctx(ctx)

	slots := min(r.parallel, max(len(items), 1))
	pool := make(chan *StoreMover, slots)
	for i := 0; i < slots; i++ {
		m, err := r.factory()
		if err != nil {
			return nil, errors.Errorf("creating mover: %w", err)
		}
		r.mu.Lock()
		if r.stopped {
			m.Stop()
		}
		r.movers = append(r.movers, m)
		r.mu.Unlock()
		pool <- m
	}

	results := make([]Result, len(items))
	g := new(errgroup.Group)
	g.SetLimit(slots)

	for i, item := range items {
		if ctx.Err() != nil || r.IsStopped() {
			results[i] = skipped(item)
			continue
		}

		i, item := i, item
		g.Go(func() error {
			m := <-pool
			defer func() { pool <- m }()

			if ctx.Err() != nil || m.IsStopped() {
				results[i] = skipped(item)
			} else {
				results[i] = fn(m, ctx, item)
			}

			if r.onResult != nil {
				r.onResult(results[i])
			}
			return nil
		})
	}

	_ = g.Wait()

	logger.Debug().Int("items", len(items)).Int("workers", slots).Msg("batch finished")

	if err := ctx.Err(); err != nil {
		return results, errors.Errorf("batch interrupted: %w", err)
	}
	return results, nil
}

// StageSkipped marks items a stopped or cancelled Runner did not attempt
const StageSkipped = "skipped"

func skipped(item store.Item) Result {
	return Result{Item: item, Status: store.CopyFailed, Stage: StageSkipped}
}

// 🛑 Stop stops every mover handed out so far
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for _, m := range r.movers {
		m.Stop()
	}
}

// IsStopped reports whether the runner or any of its movers was stopped
func (r *Runner) IsStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return true
	}
	for _, m := range r.movers {
		if m.IsStopped() {
			return true
		}
	}
	return false
}
