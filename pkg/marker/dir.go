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

package marker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// 📁 Dir manages marker files inside a local store root
type Dir struct {
	root string
}

// 🏭 NewDir creates a Dir for the given store root
func NewDir(root string) *Dir {
	return &Dir{root: filepath.Clean(root)}
}

// Root returns the store root
func (d *Dir) Root() string {
	return d.root
}

// CopyFinishedPath returns the absolute path of the "copy finished" marker of item
func (d *Dir) CopyFinishedPath(item store.Item) string {
	return filepath.Join(d.root, CopyFinishedName(item.Name()))
}

// DeletionInProgressPath returns the absolute path of the "deletion in progress" marker of item
func (d *Dir) DeletionInProgressPath(item store.Item) string {
	return filepath.Join(d.root, DeletionInProgressName(item.Name()))
}

// MarkCopyFinished creates the "copy finished" marker of item. The item data must
// already be complete; the marker is synced to disk before this returns.
func (d *Dir) MarkCopyFinished(ctx context.Context, item store.Item) error {
	return d.create(ctx, d.CopyFinishedPath(item))
}

// IsCopyFinished reports whether the "copy finished" marker of item exists
func (d *Dir) IsCopyFinished(ctx context.Context, item store.Item) (bool, error) {
	return exists(d.CopyFinishedPath(item))
}

// ClearCopyFinished removes the "copy finished" marker of item, if present
func (d *Dir) ClearCopyFinished(ctx context.Context, item store.Item) error {
	return d.remove(ctx, d.CopyFinishedPath(item))
}

// MarkDeletionInProgress creates the "deletion in progress" marker of item
func (d *Dir) MarkDeletionInProgress(ctx context.Context, item store.Item) error {
	return d.create(ctx, d.DeletionInProgressPath(item))
}

// IsDeletionInProgress reports whether the "deletion in progress" marker of item exists
func (d *Dir) IsDeletionInProgress(ctx context.Context, item store.Item) (bool, error) {
	return exists(d.DeletionInProgressPath(item))
}

// ClearDeletionInProgress removes the "deletion in progress" marker of item, if present
func (d *Dir) ClearDeletionInProgress(ctx context.Context, item store.Item) error {
	return d.remove(ctx, d.DeletionInProgressPath(item))
}

// RequiresDeletionBeforeCreation reports whether the store root carries the sentinel
// that asks for existing entries to be removed before new ones are created
func (d *Dir) RequiresDeletionBeforeCreation(ctx context.Context) (bool, error) {
	return exists(RequiresDeletionBeforeCreation().PathIn(d.root))
}

// 🧹 RemoveOrphans removes markers in the store root whose item no longer exists
// and returns the names of the removed markers.
func (d *Dir) RemoveOrphans(ctx context.Context) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, errors.Errorf("reading store root %s: %w", d.root, err)
	}

	var removed []string
	for _, entry := range entries {
		var original string
		switch name := entry.Name(); {
		case IsCopyFinished(name):
			original = OriginalFromCopyFinished(name)
		case IsDeletionInProgress(name):
			original = OriginalFromDeletionInProgress(name)
		default:
			continue
		}

		ok, err := exists(filepath.Join(d.root, original))
		if err != nil {
			logger.Warn().Err(err).Str("item", original).Msg("cannot stat marked item")
			continue
		}
		if ok {
			continue
		}

		if err := d.remove(ctx, filepath.Join(d.root, entry.Name())); err != nil {
			return removed, err
		}
		removed = append(removed, entry.Name())
	}

	return removed, nil
}

func (d *Dir) create(ctx context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Errorf("creating marker %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Errorf("syncing marker %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("closing marker %s: %w", path, err)
	}
	if err := syncDir(filepath.Dir(path)); err != nil {
		return errors.Errorf("syncing marker directory: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("marker", path).Msg("marker created")
	return nil
}

func (d *Dir) remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing marker %s: %w", path, err)
	}
	zerolog.Ctx(ctx).Debug().Str("marker", path).Msg("marker removed")
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Errorf("checking marker existence: %w", err)
}
