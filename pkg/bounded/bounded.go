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

// Package bounded runs operations that may block indefinitely, such as stat or
// statfs calls against a stalled network mount, without blocking the caller
// past a deadline.
//
// A timeout only stops the caller from waiting. The blocking call itself is not
// cancelled: its worker goroutine is abandoned and may finish later (the result
// is discarded) or stay stuck for good. Each abandoned worker is replaced by a
// fresh one for the next call. Under sustained hangs abandoned workers pile up;
// Options.MaxAbandoned caps that growth by failing new calls fast instead.
package bounded

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrTimeout is reported when the operation did not finish within the timeout
	ErrTimeout = errors.New("operation timed out")
	// ErrTooManyAbandoned is reported when too many timed-out workers are still stuck
	ErrTooManyAbandoned = errors.New("too many abandoned workers")
	// ErrPanic is reported when the operation panicked
	ErrPanic = errors.New("operation panicked")
)

// 📦 Result is the outcome of a bounded call.
//
// TimedOut implies that no value is present. A missing value never proves that
// the operation failed: after a timeout it may still be running.
type Result[T any] struct {
	Value      T
	HasValue   bool
	TimedOut   bool
	Err        error
	Diagnostic string
}

// OK reports whether the operation completed and returned a value
func (r Result[T]) OK() bool {
	return r.HasValue
}

// Get returns the value or the error that prevented it
func (r Result[T]) Get() (T, error) {
	if r.HasValue {
		return r.Value, nil
	}
	return r.Value, r.Err
}

// Options configures an Executor
type Options struct {
	// Name identifies the executor in log messages
	Name string
	// MaxAbandoned limits how many timed-out workers may still be stuck before new
	// calls fail fast with ErrTooManyAbandoned. Zero means no limit.
	MaxAbandoned int
}

// ⏱️ Executor runs operations of type T on a dedicated worker goroutine
type Executor[T any] struct {
	name         string
	maxAbandoned int

	mu     sync.Mutex
	worker *worker[T]

	abandoned atomic.Int64
}

type job[T any] struct {
	ctx    context.Context
	op     func(ctx context.Context) (T, error)
	result chan Result[T]
}

type worker[T any] struct {
	jobs chan job[T]
	quit chan struct{}
}

// 🏭 New creates an Executor. Its worker starts with the first call.
func New[T any](opts Options) *Executor[T] {
	name := opts.Name
	if name == "" {
		name = "bounded"
	}
	return &Executor[T]{
		name:         name,
		maxAbandoned: opts.MaxAbandoned,
	}
}

// Abandoned returns how many abandoned workers are still running an operation
func (e *Executor[T]) Abandoned() int {
	return int(e.abandoned.Load())
}

// 🏃 Run executes op and waits at most timeout for its result.
//
// On timeout the result has TimedOut set and Err wrapping ErrTimeout. When ctx is
// done first, Err wraps the context error instead. An error or panic from op is
// reported with a diagnostic, distinct from a timeout.
func (e *Executor[T]) Run(ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) Result[T] {
	logger := zerolog.Ctx(ctx)

	if e.maxAbandoned > 0 && e.Abandoned() >= e.maxAbandoned {
		return Result[T]{
			Err:        errors.Errorf("%s: %w", e.name, ErrTooManyAbandoned),
			Diagnostic: fmt.Sprintf("%d workers are still stuck", e.Abandoned()),
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	w := e.current()
	j := job[T]{ctx: ctx, op: op, result: make(chan Result[T], 1)}

	select {
	case w.jobs <- j:
	case <-timer.C:
		return e.timedOut(ctx, timeout)
	case <-ctx.Done():
		return Result[T]{Err: errors.Errorf("%s: waiting for worker: %w", e.name, ctx.Err())}
	}

	select {
	case r := <-j.result:
		return r
	case <-timer.C:
		e.abandon(ctx, w)
		return e.timedOut(ctx, timeout)
	case <-ctx.Done():
		e.abandon(ctx, w)
		logger.Debug().Str("executor", e.name).Msg("caller gave up waiting")
		return Result[T]{Err: errors.Errorf("%s: %w", e.name, ctx.Err())}
	}
}

func (e *Executor[T]) timedOut(ctx context.Context, timeout time.Duration) Result[T] {
	zerolog.Ctx(ctx).Warn().
		Str("executor", e.name).
		Dur("timeout", timeout).
		Msg("operation timed out, worker abandoned")
	return Result[T]{
		TimedOut:   true,
		Err:        errors.Errorf("%s: %w after %s", e.name, ErrTimeout, timeout),
		Diagnostic: fmt.Sprintf("no result within %s", timeout),
	}
}

func (e *Executor[T]) current() *worker[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.worker == nil {
		e.worker = &worker[T]{
			jobs: make(chan job[T]),
			quit: make(chan struct{}),
		}
		go e.loop(e.worker)
	}
	return e.worker
}

// abandon detaches w so the next call starts a fresh worker. w exits once its
// current operation returns.
func (e *Executor[T]) abandon(ctx context.Context, w *worker[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.worker != w {
		return
	}
	e.worker = nil
	close(w.quit)
	e.abandoned.Add(1)
}

// loop serves jobs until w is abandoned. Only abandon closes quit, and it counts
// the worker as abandoned, so the count drops again when the loop exits.
func (e *Executor[T]) loop(w *worker[T]) {
	defer e.abandoned.Add(-1)

	for {
		select {
		case <-w.quit:
			return
		case j := <-w.jobs:
			j.result <- e.execute(j)
		}
	}
}

func (e *Executor[T]) execute(j job[T]) (r Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			r = Result[T]{
				Err:        errors.Errorf("%s: %w: %v", e.name, ErrPanic, p),
				Diagnostic: string(debug.Stack()),
			}
		}
	}()

	v, err := j.op(j.ctx)
	if err != nil {
		return Result[T]{Err: err, Diagnostic: err.Error()}
	}
	return Result[T]{Value: v, HasValue: true}
}
