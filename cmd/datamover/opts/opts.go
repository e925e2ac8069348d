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

package opts

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/config"
	"github.com/walteh/datamover/pkg/copier"
	"github.com/walteh/datamover/pkg/copier/hardlink"
	"github.com/walteh/datamover/pkg/copier/rsync"
	"github.com/walteh/datamover/pkg/fsops"
	"github.com/walteh/datamover/pkg/log"
	"github.com/walteh/datamover/pkg/marker"
	"github.com/walteh/datamover/pkg/mover"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config  *config.Config
	Console *log.Logger
	// Parallel overrides Config.Parallel when positive
	Parallel int
	// SkipCheck skips the rsync version check
	SkipCheck bool
}

// 🔄 NewRsync creates the rsync copier described by the config
func (o *RootOpts) NewRsync(ctx context.Context) (*rsync.Copier, error) {
	cfg := o.Config

	requiresDeletion := false
	if dest := cfg.DestinationLocation(); !dest.IsRemote() {
		ok, err := marker.NewDir(dest.Path).RequiresDeletionBeforeCreation(ctx)
		if err != nil {
			return nil, errors.Errorf("checking destination sentinel: %w", err)
		}
		requiresDeletion = ok
	}

	c, err := rsync.New(rsync.Options{
		Executable:       cfg.Rsync.Executable,
		SSHExecutable:    cfg.Rsync.SSHExecutable,
		RemoteExecutable: cfg.Rsync.RemoteExecutable,
		Flags:            cfg.Rsync.Flags,
		AdditionalFlags:  cfg.Rsync.AdditionalFlags,
		Overwrite:        cfg.Rsync.Overwrite,
		Timeout:          cfg.RsyncTimeout(),
		Module:           cfg.Rsync.Module,
		PasswordFile:     cfg.Rsync.PasswordFile,

		DestinationRequiresDeletionBeforeCreation: requiresDeletion,
	})
	if err != nil {
		return nil, errors.Errorf("creating rsync copier: %w", err)
	}

	if o.SkipCheck {
		return c, nil
	}
	if err := c.Check(ctx); err != nil {
		return nil, errors.Errorf("checking rsync: %w", err)
	}
	if dest := cfg.DestinationLocation(); dest.IsRemote() && cfg.Rsync.SSHExecutable != "" && cfg.Rsync.Module == "" {
		if err := c.CheckRemote(ctx, dest.Host); err != nil {
			return nil, errors.Errorf("checking remote rsync: %w", err)
		}
	}
	return c, nil
}

// 📋 NewCopier creates the copier for one worker: rsync, or hard links with an
// rsync fallback when hard linking is enabled
func (o *RootOpts) NewCopier(ctx context.Context) (copier.PathCopier, error) {
	rs, err := o.NewRsync(ctx)
	if err != nil {
		return nil, err
	}

	var pc copier.PathCopier = rs
	if dest := o.Config.DestinationLocation(); dest.IsRemote() {
		pc = rs.ToRemote(dest.Host)
	}

	if !o.Config.HardLink.Enabled {
		return pc, nil
	}

	ln, err := hardlink.New(o.Config.HardLink.Executable)
	if err != nil {
		return nil, errors.Errorf("creating hard link copier: %w", err)
	}
	return copier.WithFallback(ln.PathCopier(), pc), nil
}

// 📁 PrepareDestination creates a local destination root when it is missing. The
// error wraps fsops.ErrDirectoryNotCreated when that fails.
func (o *RootOpts) PrepareDestination(ctx context.Context) error {
	dest := o.Config.DestinationLocation()
	if dest.IsRemote() {
		return nil
	}
	if _, err := fsops.EnsureDirectoryExists(ctx, filepath.Dir(dest.Path), filepath.Base(dest.Path)); err != nil {
		return errors.Errorf("preparing destination: %w", err)
	}
	return nil
}

// 🏭 MoverFactory returns a mover.Factory creating one StoreMover per worker
func (o *RootOpts) MoverFactory(ctx context.Context) mover.Factory {
	return func() (*mover.StoreMover, error) {
		if err := o.PrepareDestination(ctx); err != nil {
			return nil, err
		}
		pc, err := o.NewCopier(ctx)
		if err != nil {
			return nil, err
		}
		return mover.New(mover.Options{
			SourceRoot:      o.Config.Source,
			DestinationRoot: o.Config.DestinationLocation().Path,
			Copier:          pc,
			Markers:         o.Config.MarkersEnabled(),
		})
	}
}

// ParallelWorkers returns the number of concurrent movers
func (o *RootOpts) ParallelWorkers() int {
	if o.Parallel > 0 {
		return o.Parallel
	}
	return o.Config.Parallel
}

// 💾 NewMonitored creates bounded filesystem queries using the configured timeout
func (o *RootOpts) NewMonitored() *fsops.Monitored {
	return fsops.NewMonitored(o.Config.FilesystemQueryTimeout(), 0)
}

// WithCommand adds the command name to the context logger
func WithCommand(ctx context.Context, name string) context.Context {
	return zerolog.Ctx(ctx).With().Str("command", name).Logger().WithContext(ctx)
}
