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

// Package hardlink duplicates files and directory trees on the same filesystem
// with hard links instead of copying bytes.
//
// Directories are recreated at the destination and every file is linked with an
// external ln executable, so source and destination share storage until either
// one is modified. A failure aborts the copy; entries created before the failure
// are left in place. Callers decide whether to fall back to a byte copy.
package hardlink

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/copier"
	"github.com/walteh/datamover/pkg/status"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrSameDirectory rejects copying a path into its own parent directory
	ErrSameDirectory = errors.New("destination is the parent directory of the source")
	// ErrVanished means a path disappeared while the tree was processed
	ErrVanished = errors.New("path vanished during processing")
	// ErrNotDirectory means a non-directory is in the way of a directory to create
	ErrNotDirectory = errors.New("destination exists and is not a directory")
	// ErrUnsupportedType means a path is neither a file nor a directory
	ErrUnsupportedType = errors.New("path is neither file nor directory")
	// ErrLinkFailed means the ln executable reported a failure
	ErrLinkFailed = errors.New("hard link failed")
)

// 🔗 Copier creates hard-linked copies using an ln executable
type Copier struct {
	ln string
}

// 🏭 New creates a Copier calling the given ln executable, resolved via PATH
func New(lnExecutable string) (*Copier, error) {
	path, err := exec.LookPath(lnExecutable)
	if err != nil {
		return nil, errors.Errorf("looking up hard link executable %q: %w", lnExecutable, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Errorf("resolving hard link executable: %w", err)
	}
	return &Copier{ln: abs}, nil
}

// Executable returns the absolute path of the ln executable in use
func (c *Copier) Executable() string {
	return c.ln
}

// 📋 Copy links path (file or directory tree) into destinationDirectory and returns
// the path of the copy.
func (c *Copier) Copy(ctx context.Context, path, destinationDirectory string) (string, error) {
	source, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("resolving source: %w", err)
	}
	destDir, err := filepath.Abs(destinationDirectory)
	if err != nil {
		return "", errors.Errorf("resolving destination: %w", err)
	}
	if filepath.Dir(source) == destDir {
		return "", errors.Errorf("copying %s into %s: %w", source, destDir, ErrSameDirectory)
	}

	info, err := os.Lstat(source)
	if err != nil {
		return "", c.statError(ctx, source, err)
	}

	target := filepath.Join(destDir, filepath.Base(source))
	if err := c.copyPath(ctx, source, target, info); err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Debug().Str("source", source).Str("target", target).Msg("hard link copy created")
	return target, nil
}

func (c *Copier) copyPath(ctx context.Context, source, target string, info os.FileInfo) error {
	switch mode := info.Mode(); {
	case mode.IsDir():
		return c.copyDirectory(ctx, source, target)
	case mode.IsRegular(), mode&os.ModeSymlink != 0:
		return c.link(ctx, source, target)
	default:
		zerolog.Ctx(ctx).Error().Str("path", source).Str("mode", mode.String()).Msg("path is neither file nor directory")
		return errors.Errorf("%s: %w", source, ErrUnsupportedType)
	}
}

func (c *Copier) copyDirectory(ctx context.Context, source, target string) error {
	if err := ensureDirectory(target); err != nil {
		return err
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return c.statError(ctx, source, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("copying %s: %w", source, err)
		}

		child := filepath.Join(source, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return c.statError(ctx, child, err)
		}
		if err := c.copyPath(ctx, child, filepath.Join(target, entry.Name()), info); err != nil {
			return err
		}
	}
	return nil
}

func (c *Copier) link(ctx context.Context, source, target string) error {
	cmd := exec.CommandContext(ctx, c.ln, source, target)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if _, statErr := os.Lstat(source); statErr != nil && os.IsNotExist(statErr) {
		return c.statError(ctx, source, statErr)
	}

	zerolog.Ctx(ctx).Warn().
		Err(err).
		Str("source", source).
		Str("target", target).
		Str("output", strings.TrimSpace(string(out))).
		Msg("hard link failed")
	return errors.Errorf("%w: %s -> %s: %s", ErrLinkFailed, source, target, strings.TrimSpace(string(out)))
}

func (c *Copier) statError(ctx context.Context, path string, err error) error {
	if os.IsNotExist(err) {
		zerolog.Ctx(ctx).Warn().Str("path", path).Msg("path vanished during processing")
		return errors.Errorf("%s: %w", path, ErrVanished)
	}
	return errors.Errorf("reading %s: %w", path, err)
}

func ensureDirectory(dir string) error {
	err := os.Mkdir(dir, 0o755)
	if err == nil {
		return nil
	}
	if info, statErr := os.Lstat(dir); statErr == nil {
		if info.IsDir() {
			return nil
		}
		return errors.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	return errors.Errorf("creating directory %s: %w", dir, err)
}

// PathCopier exposes the Copier through the status-returning copier.PathCopier
// interface. Vanished paths are retriable; every other failure is fatal.
func (c *Copier) PathCopier() copier.PathCopier {
	return copier.PathCopierFunc(func(ctx context.Context, sourcePath, destinationDirectory string) status.Status {
		_, err := c.Copy(ctx, sourcePath, destinationDirectory)
		switch {
		case err == nil:
			return status.Success
		case errors.Is(err, ErrVanished):
			return status.NewRetriableError("%s", err.Error())
		default:
			return status.NewFatalError("%s", err.Error())
		}
	})
}
