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

package commands

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/config"
	"github.com/walteh/datamover/pkg/fsops"
	"github.com/walteh/datamover/pkg/log"
	"github.com/walteh/datamover/pkg/marker"
	"github.com/walteh/datamover/pkg/mover"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// ListItems returns the items named in args, or every item in the source root that
// is neither a marker nor matched by an ignore pattern. Scanned items with a
// deletion-in-progress marker are half deleted and left to retry-deletion.
func ListItems(ctx context.Context, cfg *config.Config, args []string) ([]store.Item, error) {
	if len(args) > 0 {
		return parseItems(args)
	}

	scan, err := scanSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	items := make([]store.Item, 0, len(scan.items))
	for _, item := range scan.items {
		if _, ok := scan.deleting[item]; ok {
			logger.Info().Str("item", item.Name()).Msg("skipping half-deleted item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ListPendingDeletions returns the items named in args, or every item of the source
// root that carries a deletion-in-progress marker
func ListPendingDeletions(ctx context.Context, cfg *config.Config, args []string) ([]store.Item, error) {
	if len(args) > 0 {
		return parseItems(args)
	}

	scan, err := scanSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	items := make([]store.Item, 0, len(scan.deleting))
	for item := range scan.deleting {
		items = append(items, item)
	}
	slices.SortFunc(items, store.Item.Compare)
	return items, nil
}

func parseItems(args []string) ([]store.Item, error) {
	items := make([]store.Item, 0, len(args))
	for _, arg := range args {
		item, err := store.ParseItem(arg)
		if err != nil {
			return nil, err
		}
		if marker.IsMarker(item.Name()) {
			return nil, errors.Errorf("%w: %q is a marker file", store.ErrInvalidName, arg)
		}
		items = append(items, item)
	}
	return items, nil
}

type sourceScan struct {
	items    []store.Item
	deleting map[store.Item]struct{}
}

func scanSource(ctx context.Context, cfg *config.Config) (*sourceScan, error) {
	ignored := fsops.GlobFilter(cfg.IgnorePatterns...)
	scan := &sourceScan{deleting: map[store.Item]struct{}{}}

	paths, err := fsops.ListFiles(cfg.Source, func(entry os.DirEntry) bool {
		name := entry.Name()
		if marker.IsDeletionInProgress(name) {
			scan.deleting[store.NewItem(marker.OriginalFromDeletionInProgress(name))] = struct{}{}
			return false
		}
		return !marker.IsMarker(name) && !ignored(entry)
	}, fsops.LogErrors(ctx))
	if err != nil {
		return nil, errors.Errorf("listing source: %w", err)
	}

	for _, p := range paths {
		scan.items = append(scan.items, store.NewItem(filepath.Base(p)))
	}
	return scan, nil
}

// ToMoveOperation converts a mover result for console reporting
func ToMoveOperation(res mover.Result) log.MoveOperation {
	return log.MoveOperation{
		Item:     res.Item.Name(),
		Stage:    res.Stage,
		Status:   res.Status,
		Copy:     res.Copy,
		Err:      res.Err,
		Duration: res.Duration,
	}
}
