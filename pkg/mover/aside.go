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
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/fsops"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// NeedsIntervention reports whether a result is a copy failure that retrying
// unchanged cannot fix
func NeedsIntervention(res Result) bool {
	return res.Status == store.CopyFailed && res.Stage == StageCopy && res.Copy.Flag == status.FatalError
}

// 🚧 SetAside renames item out of sourceRoot into dir, creating dir when missing, so
// later scans of the source skip it. Both must be on the same filesystem; on failure
// the item stays in the source.
func SetAside(ctx context.Context, sourceRoot, dir string, item store.Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}

	target, err := fsops.EnsureDirectoryExists(ctx, filepath.Dir(dir), filepath.Base(dir))
	if err != nil {
		return "", errors.Errorf("preparing %s: %w", dir, err)
	}

	moved, err := fsops.TryMoveLocal(ctx, item.PathIn(sourceRoot), target)
	if err != nil {
		return "", errors.Errorf("setting aside %s: %w", item, err)
	}

	zerolog.Ctx(ctx).Warn().
		Str("item", item.Name()).
		Str("path", moved).
		Msg("item set aside for manual intervention")
	return moved, nil
}
