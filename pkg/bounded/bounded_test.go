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

package bounded_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datamover/pkg/bounded"
	"gitlab.com/tozd/go/errors"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestRunReturnsValue(t *testing.T) {
	ctx := testContext(t)
	e := bounded.New[int](bounded.Options{Name: "test"})

	r := e.Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.True(t, r.OK())
	assert.False(t, r.TimedOut)
	v, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunTimesOutWithinBound(t *testing.T) {
	ctx := testContext(t)
	e := bounded.New[int](bounded.Options{Name: "hang"})
	release := make(chan struct{})
	defer close(release)

	timeout := 50 * time.Millisecond
	start := time.Now()
	r := e.Run(ctx, timeout, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	elapsed := time.Since(start)

	assert.True(t, r.TimedOut, "should time out")
	assert.False(t, r.OK(), "timed out result has no value")
	assert.ErrorIs(t, r.Err, bounded.ErrTimeout)
	assert.NotEmpty(t, r.Diagnostic)
	assert.Less(t, elapsed, timeout+500*time.Millisecond, "caller must not block past the timeout")
}

func TestRunOperationError(t *testing.T) {
	ctx := testContext(t)
	e := bounded.New[string](bounded.Options{})
	boom := errors.New("stat failed")

	r := e.Run(ctx, time.Second, func(ctx context.Context) (string, error) {
		return "", boom
	})

	assert.False(t, r.TimedOut, "an error is not a timeout")
	assert.False(t, r.OK())
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, "stat failed", r.Diagnostic)
}

func TestRunOperationPanic(t *testing.T) {
	ctx := testContext(t)
	e := bounded.New[int](bounded.Options{})

	r := e.Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		panic("kaputt")
	})

	assert.False(t, r.TimedOut)
	assert.ErrorIs(t, r.Err, bounded.ErrPanic)
	assert.Contains(t, r.Err.Error(), "kaputt")

	r = e.Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	assert.True(t, r.OK(), "worker survives a panicking operation")
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	e := bounded.New[int](bounded.Options{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	r := e.Run(ctx, 10*time.Second, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	assert.False(t, r.TimedOut, "cancellation is not a timeout")
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func TestLateResultIsDiscarded(t *testing.T) {
	ctx := testContext(t)
	e := bounded.New[int](bounded.Options{})
	release := make(chan struct{})

	r := e.Run(ctx, 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.True(t, r.TimedOut)

	close(release)

	r = e.Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 2, nil
	})
	require.True(t, r.OK())
	assert.Equal(t, 2, r.Value, "a fresh worker serves the next call")
}

func TestMaxAbandoned(t *testing.T) {
	ctx := testContext(t)
	e := bounded.New[int](bounded.Options{Name: "statfs", MaxAbandoned: 1})
	release := make(chan struct{})

	r := e.Run(ctx, 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.True(t, r.TimedOut)
	assert.Equal(t, 1, e.Abandoned())

	r = e.Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 2, nil
	})
	assert.ErrorIs(t, r.Err, bounded.ErrTooManyAbandoned, "should fail fast while the worker is stuck")
	assert.False(t, r.TimedOut)

	close(release)
	assert.Eventually(t, func() bool { return e.Abandoned() == 0 }, time.Second, 5*time.Millisecond)

	r = e.Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 3, nil
	})
	require.True(t, r.OK())
	assert.Equal(t, 3, r.Value)
}
