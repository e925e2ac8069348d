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

package fsops

import (
	"context"
	"time"

	"github.com/walteh/datamover/pkg/bounded"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// 💾 FreeSpace returns the bytes available to unprivileged users on the filesystem of path.
// Over a stalled network mount this call can block forever; use Monitored to bound it.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, errors.Errorf("statfs %s: %w", path, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

// ⏱️ Monitored runs filesystem queries whose latency the OS does not bound
// through bounded executors, one per kind of query.
type Monitored struct {
	timeout   time.Duration
	freeSpace *bounded.Executor[uint64]
	exists    *bounded.Executor[bool]
}

// NewMonitored creates a Monitored with the given per-call timeout.
// maxAbandoned is passed to the executors; zero means no limit.
func NewMonitored(timeout time.Duration, maxAbandoned int) *Monitored {
	return &Monitored{
		timeout:   timeout,
		freeSpace: bounded.New[uint64](bounded.Options{Name: "free-space", MaxAbandoned: maxAbandoned}),
		exists:    bounded.New[bool](bounded.Options{Name: "exists", MaxAbandoned: maxAbandoned}),
	}
}

// FreeSpace is FreeSpace bounded by the configured timeout
func (m *Monitored) FreeSpace(ctx context.Context, path string) bounded.Result[uint64] {
	return m.freeSpace.Run(ctx, m.timeout, func(ctx context.Context) (uint64, error) {
		return FreeSpace(path)
	})
}

// Exists is Exists bounded by the configured timeout
func (m *Monitored) Exists(ctx context.Context, path string) bounded.Result[bool] {
	return m.exists.Run(ctx, m.timeout, func(ctx context.Context) (bool, error) {
		return Exists(path)
	})
}
