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

// Package mover moves store items from a source store to a destination store.
//
// A move is copy, then mark, then delete, in that order:
//
//	copy item ──► mark destination finished ──► mark source deleting ──► remove item ──► clear mark
//	    │                   │                            │                    │
//	 COPY_FAILED        COPY_FAILED            COPY_OK_DELETION_FAILED   (marker stays)
//
// Once the destination carries a finished marker and the source carries a deletion
// marker, the item is never copied again; a later Move or RetryDeletion only repeats
// the deletion stage. A finished marker without a source deletion marker belongs to
// an earlier completed move of the same name and is replaced.
package mover

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/copier"
	"github.com/walteh/datamover/pkg/fsops"
	"github.com/walteh/datamover/pkg/marker"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// ErrCopyNotFinished means deletion was requested for an item whose destination copy
// is not marked finished
var ErrCopyNotFinished = errors.New("destination copy is not marked finished")

// 🗑️ Remover removes a path and everything below it
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// RemoverFunc adapts a function to the Remover interface
type RemoverFunc func(ctx context.Context, path string) error

// Remove calls f(ctx, path)
func (f RemoverFunc) Remove(ctx context.Context, path string) error {
	return f(ctx, path)
}

// 🔧 Options configures a StoreMover
type Options struct {
	// SourceRoot is the local directory items are moved out of
	SourceRoot string
	// DestinationRoot is the directory items are copied into
	DestinationRoot string
	// Copier copies one item into DestinationRoot
	Copier copier.PathCopier
	// Markers maintains finished markers in DestinationRoot and deletion markers
	// in SourceRoot. DestinationRoot must be local when enabled.
	Markers bool
	// Remover deletes source items. Defaults to fsops.RemoveRecursively.
	Remover Remover
}

// Result describes one Move or RetryDeletion call
type Result struct {
	Item     store.Item
	Status   store.MoveStatus
	Stage    string
	Copy     status.Status
	Err      error
	Duration time.Duration
}

// stages reported in Result.Stage
const (
	StageCopy   = "copy"
	StageMark   = "mark"
	StageDelete = "delete"
	StageDone   = "done"
)

// 🚚 StoreMover moves single items and implements store.Mover
type StoreMover struct {
	source      string
	destination string
	copier      copier.PathCopier
	remover     Remover

	finished *marker.Dir
	deleting *marker.Dir

	stopped atomic.Bool
}

var _ store.Mover = (*StoreMover)(nil)

// 🏭 New creates a StoreMover
func New(opts Options) (*StoreMover, error) {
	if opts.SourceRoot == "" {
		return nil, errors.Errorf("source root is required")
	}
	if opts.DestinationRoot == "" {
		return nil, errors.Errorf("destination root is required")
	}
	if opts.Copier == nil {
		return nil, errors.Errorf("copier is required")
	}

	m := &StoreMover{
		source:      opts.SourceRoot,
		destination: opts.DestinationRoot,
		copier:      opts.Copier,
		remover:     opts.Remover,
	}
	if m.remover == nil {
		m.remover = RemoverFunc(fsops.RemoveRecursively)
	}
	if opts.Markers {
		m.finished = marker.NewDir(opts.DestinationRoot)
		m.deleting = marker.NewDir(opts.SourceRoot)
	}
	return m, nil
}

// Move moves item and returns only the MoveStatus
func (m *StoreMover) Move(ctx context.Context, item store.Item) store.MoveStatus {
	return m.MoveItem(ctx, item).Status
}

// 📦 MoveItem copies item to the destination, marks it finished and removes it from
// the source.
func (m *StoreMover) MoveItem(ctx context.Context, item store.Item) Result {
	logger := zerolog.Ctx(ctx).With().Str("item", item.Name()).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()

	res := Result{Item: item}

	if err := item.Validate(); err != nil {
		logger.Error().Err(err).Msg("refusing item")
		return m.fail(&res, store.CopyFailed, StageCopy, err, start)
	}

	pending, err := m.deletionPending(ctx, item)
	if err != nil {
		logger.Error().Err(err).Msg("cannot read markers")
		return m.fail(&res, store.CopyFailed, StageMark, err, start)
	}

	if pending {
		logger.Info().Msg("destination already finished and source deletion pending, skipping copy")
	} else {
		if err := m.clearStaleFinished(ctx, item); err != nil {
			logger.Error().Err(err).Msg("cannot clear stale finished marker")
			return m.fail(&res, store.CopyFailed, StageMark, err, start)
		}

		res.Copy = m.copier.Copy(ctx, item.PathIn(m.source), m.destination)
		if !res.Copy.IsOK() {
			logger.Warn().Object("status", res.Copy).Msg("copy failed, source left untouched")
			return m.fail(&res, store.CopyFailed, StageCopy, nil, start)
		}

		if m.finished != nil {
			if err := m.finished.MarkCopyFinished(ctx, item); err != nil {
				logger.Error().Err(err).Msg("cannot mark copy finished")
				return m.fail(&res, store.CopyFailed, StageMark, err, start)
			}
		}
	}

	if err := m.deleteSource(ctx, item); err != nil {
		logger.Warn().Err(err).Msg("copy finished but source deletion failed")
		return m.fail(&res, store.CopyOKDeletionFailed, StageDelete, err, start)
	}

	logger.Info().Msg("item moved")
	res.Status = store.MoveOK
	res.Stage = StageDone
	res.Duration = time.Since(start)
	return res
}

// 🔁 RetryDeletion repeats only the deletion stage for an item previously reported
// as COPY_OK_DELETION_FAILED. With markers enabled it refuses to delete a source
// whose copy is not marked finished and reports COPY_FAILED.
func (m *StoreMover) RetryDeletion(ctx context.Context, item store.Item) Result {
	logger := zerolog.Ctx(ctx).With().Str("item", item.Name()).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()

	res := Result{Item: item}

	if err := item.Validate(); err != nil {
		logger.Error().Err(err).Msg("refusing item")
		return m.fail(&res, store.CopyFailed, StageCopy, err, start)
	}

	if m.finished != nil {
		finished, err := m.isCopyFinished(ctx, item)
		if err != nil {
			return m.fail(&res, store.CopyFailed, StageMark, err, start)
		}
		if !finished {
			logger.Warn().Msg("refusing to delete source without finished copy")
			return m.fail(&res, store.CopyFailed, StageMark, errors.Errorf("%s: %w", item, ErrCopyNotFinished), start)
		}
	}

	if err := m.deleteSource(ctx, item); err != nil {
		logger.Warn().Err(err).Msg("source deletion failed again")
		return m.fail(&res, store.CopyOKDeletionFailed, StageDelete, err, start)
	}

	logger.Info().Msg("source deleted")
	res.Status = store.MoveOK
	res.Stage = StageDone
	res.Duration = time.Since(start)
	return res
}

func (m *StoreMover) fail(res *Result, st store.MoveStatus, stage string, err error, start time.Time) Result {
	res.Status = st
	res.Stage = stage
	res.Err = err
	res.Duration = time.Since(start)
	return *res
}

func (m *StoreMover) isCopyFinished(ctx context.Context, item store.Item) (bool, error) {
	if m.finished == nil {
		return false, nil
	}
	return m.finished.IsCopyFinished(ctx, item)
}

// deletionPending reports whether an earlier move of item finished its copy and
// then failed while deleting the source. Only then is the finished marker known to
// belong to this source item.
func (m *StoreMover) deletionPending(ctx context.Context, item store.Item) (bool, error) {
	finished, err := m.isCopyFinished(ctx, item)
	if err != nil || !finished {
		return false, err
	}
	return m.deleting.IsDeletionInProgress(ctx, item)
}

// clearStaleFinished removes a finished marker left by an earlier, completed move of
// an item with the same name, so consumers do not take the new copy while it is written
func (m *StoreMover) clearStaleFinished(ctx context.Context, item store.Item) error {
	finished, err := m.isCopyFinished(ctx, item)
	if err != nil || !finished {
		return err
	}
	zerolog.Ctx(ctx).Info().Msg("clearing finished marker of an earlier move with the same name")
	return m.finished.ClearCopyFinished(ctx, item)
}

func (m *StoreMover) deleteSource(ctx context.Context, item store.Item) error {
	if m.deleting != nil {
		if err := m.deleting.MarkDeletionInProgress(ctx, item); err != nil {
			return errors.Errorf("marking deletion in progress: %w", err)
		}
	}

	if err := m.remover.Remove(ctx, item.PathIn(m.source)); err != nil {
		return errors.Errorf("removing source: %w", err)
	}

	if m.deleting != nil {
		if err := m.deleting.ClearDeletionInProgress(ctx, item); err != nil {
			return errors.Errorf("clearing deletion marker: %w", err)
		}
	}
	return nil
}

// 🛑 Stop asks callers to stop handing out items and kills an in-flight copy when
// the copier supports it
func (m *StoreMover) Stop() {
	m.stopped.Store(true)
	if t, ok := m.copier.(copier.Terminable); ok {
		t.Terminate()
	}
}

// IsStopped reports whether Stop was called
func (m *StoreMover) IsStopped() bool {
	return m.stopped.Load()
}
