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

// Package copier defines how store items are copied between locations.
//
// Implementations live in subpackages: hardlink duplicates a tree on the same
// filesystem with hard links, rsync drives an external rsync process.
package copier

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/status"
)

// 📋 PathCopier copies a path into a destination directory
type PathCopier interface {
	// Copy copies sourcePath (file or directory) into destinationDirectory
	Copy(ctx context.Context, sourcePath, destinationDirectory string) status.Status
}

// 🛑 Terminable is implemented by copiers whose in-flight copy can be killed from
// another goroutine
type Terminable interface {
	// Terminate kills a running copy and reports whether one was signaled
	Terminate() bool
}

// PathCopierFunc adapts a function to the PathCopier interface
type PathCopierFunc func(ctx context.Context, sourcePath, destinationDirectory string) status.Status

// Copy calls f(ctx, sourcePath, destinationDirectory)
func (f PathCopierFunc) Copy(ctx context.Context, sourcePath, destinationDirectory string) status.Status {
	return f(ctx, sourcePath, destinationDirectory)
}

// 🔀 WithFallback returns a PathCopier that tries primary first and runs fallback
// when primary fails. A terminated primary is not retried.
func WithFallback(primary, fallback PathCopier) PathCopier {
	return &fallbackCopier{primary: primary, fallback: fallback}
}

type fallbackCopier struct {
	primary  PathCopier
	fallback PathCopier
}

func (c *fallbackCopier) Copy(ctx context.Context, sourcePath, destinationDirectory string) status.Status {
	st := c.primary.Copy(ctx, sourcePath, destinationDirectory)
	if st.IsOK() || st.IsTerminated() {
		return st
	}

	zerolog.Ctx(ctx).Info().
		Str("source", sourcePath).
		Object("status", st).
		Msg("primary copier failed, falling back")

	return c.fallback.Copy(ctx, sourcePath, destinationDirectory)
}

// Terminate terminates both copiers; it reports whether either one was signaled
func (c *fallbackCopier) Terminate() bool {
	terminated := false
	for _, pc := range []PathCopier{c.primary, c.fallback} {
		if t, ok := pc.(Terminable); ok && t.Terminate() {
			terminated = true
		}
	}
	return terminated
}
