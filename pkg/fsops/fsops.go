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

// Package fsops holds the small filesystem helpers used by the copiers and the mover.
package fsops

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrDirectoryNotCreated means a directory could not be created and still does not
	// exist. It usually points at permissions or a full disk and is not retriable.
	ErrDirectoryNotCreated = errors.New("directory could not be created")
	// ErrMoveFailed means a local rename failed; the source is left intact
	ErrMoveFailed = errors.New("local move failed")
)

// 🔍 Filter selects directory entries by name
type Filter func(entry os.DirEntry) bool

// AcceptAll is a Filter that accepts every entry
func AcceptAll(os.DirEntry) bool { return true }

// GlobFilter accepts entries whose name matches any of the doublestar patterns.
// Invalid patterns never match.
func GlobFilter(patterns ...string) Filter {
	return func(entry os.DirEntry) bool {
		for _, pattern := range patterns {
			if ok, err := doublestar.Match(pattern, entry.Name()); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// Not inverts a Filter
func Not(f Filter) Filter {
	return func(entry os.DirEntry) bool { return !f(entry) }
}

// ErrorLogger is told about entries the OS could not read
type ErrorLogger func(path string, err error)

// LogErrors returns an ErrorLogger writing to the context logger
func LogErrors(ctx context.Context) ErrorLogger {
	logger := zerolog.Ctx(ctx)
	return func(path string, err error) {
		logger.Warn().Err(err).Str("path", path).Msg("cannot read directory entry")
	}
}

// 📁 EnsureDirectoryExists returns parent/name, creating it if needed. The error wraps
// ErrDirectoryNotCreated when the directory does not exist afterwards.
func EnsureDirectoryExists(ctx context.Context, parent, name string) (string, error) {
	dir := filepath.Join(parent, name)

	mkErr := os.Mkdir(dir, 0o755)
	if mkErr == nil {
		zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("directory created")
		return dir, nil
	}

	// someone else may have created it in the meantime
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, nil
	}

	return "", errors.Errorf("%w: %s: %v", ErrDirectoryNotCreated, dir, mkErr)
}

// 📋 ListFiles returns the paths of the entries of directory accepted by filter,
// sorted by name. Entries the OS cannot read are passed to onError and skipped;
// only a failure to open directory itself is returned.
func ListFiles(directory string, filter Filter, onError ErrorLogger) ([]string, error) {
	if filter == nil {
		filter = AcceptAll
	}

	entries, err := os.ReadDir(directory)
	if err != nil && len(entries) == 0 {
		return nil, errors.Errorf("listing %s: %w", directory, err)
	}
	if err != nil && onError != nil {
		onError(directory, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(directory, entry.Name())
		if _, err := entry.Info(); err != nil {
			if onError != nil {
				onError(path, err)
			}
			continue
		}
		if filter(entry) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	return paths, nil
}

// 🚚 TryMoveLocal renames sourceFile into destinationDir on the same filesystem and
// returns the new path. On failure the source is left where it was.
func TryMoveLocal(ctx context.Context, sourceFile, destinationDir string) (string, error) {
	dest := filepath.Join(destinationDir, filepath.Base(sourceFile))
	if err := os.Rename(sourceFile, dest); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("source", sourceFile).
			Str("destination", destinationDir).
			Msg("local move failed")
		return "", errors.Errorf("%w: %v", ErrMoveFailed, err)
	}
	return dest, nil
}

// RemoveRecursively removes path and everything below it. A missing path is not an error.
func RemoveRecursively(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Errorf("removing %s: %w", path, err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("removed")
	return nil
}

// Exists reports whether path exists without following a final symlink
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Errorf("checking existence of %s: %w", path, err)
}
