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

package hardlink_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datamover/pkg/copier/hardlink"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/testutils"
)

func newCopier(t *testing.T) *hardlink.Copier {
	t.Helper()
	if _, err := exec.LookPath("ln"); err != nil {
		t.Skip("ln not available")
	}
	c, err := hardlink.New("ln")
	require.NoError(t, err)
	return c
}

func linkCount(t *testing.T, path string) uint64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	st, ok := info.Sys().(*syscall.Stat_t)
	require.True(t, ok, "need a unix stat")
	return uint64(st.Nlink)
}

func TestCopyTree(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)

	src := filepath.Join(t.TempDir(), "sample")
	testutils.WriteTree(t, src, map[string]string{
		"a.txt":        "a",
		"b.txt":        "b",
		"subdir/c.txt": "c",
	})
	dst := t.TempDir()

	target, err := c.Copy(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "sample"), target)

	for _, name := range []string{"a.txt", "b.txt", "subdir/c.txt"} {
		copied := filepath.Join(target, name)
		require.FileExists(t, copied)
		assert.GreaterOrEqual(t, linkCount(t, copied), uint64(2), "%s should share storage", name)

		srcInfo, err := os.Stat(filepath.Join(src, name))
		require.NoError(t, err)
		dstInfo, err := os.Stat(copied)
		require.NoError(t, err)
		assert.True(t, os.SameFile(srcInfo, dstInfo), "%s should be the same inode", name)
	}
	assert.DirExists(t, filepath.Join(target, "subdir"))
}

func TestCopySingleFile(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)

	srcDir := t.TempDir()
	testutils.WriteTree(t, srcDir, map[string]string{"data.bin": "payload"})
	dst := t.TempDir()

	target, err := c.Copy(ctx, filepath.Join(srcDir, "data.bin"), dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "data.bin"), target)
	assert.Equal(t, uint64(2), linkCount(t, target))
}

func TestCopyIntoOwnParentIsRejected(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)

	parent := t.TempDir()
	testutils.WriteTree(t, parent, map[string]string{"sample/a.txt": "a"})

	before, err := os.ReadDir(parent)
	require.NoError(t, err)

	_, err = c.Copy(ctx, filepath.Join(parent, "sample"), parent)
	require.ErrorIs(t, err, hardlink.ErrSameDirectory)

	after, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after), "no filesystem mutation")
	assert.Equal(t, uint64(1), linkCount(t, filepath.Join(parent, "sample", "a.txt")))
}

func TestCopyReusesExistingDirectory(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)

	src := filepath.Join(t.TempDir(), "sample")
	testutils.WriteTree(t, src, map[string]string{"sub/a.txt": "a"})
	dst := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "sample", "sub"), 0o755))

	_, err := c.Copy(ctx, src, dst)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dst, "sample", "sub", "a.txt"))
}

func TestCopyFileInTheWayOfDirectory(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)

	src := filepath.Join(t.TempDir(), "sample")
	testutils.WriteTree(t, src, map[string]string{"sub/a.txt": "a"})
	dst := t.TempDir()
	testutils.WriteTree(t, dst, map[string]string{"sample/sub": "not a directory"})

	_, err := c.Copy(ctx, src, dst)
	require.ErrorIs(t, err, hardlink.ErrNotDirectory)
}

func TestCopyMissingSource(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)

	_, err := c.Copy(ctx, filepath.Join(t.TempDir(), "missing"), t.TempDir())
	require.ErrorIs(t, err, hardlink.ErrVanished)
}

func TestCopyLinkToolFailureLeavesPartialTree(t *testing.T) {
	ctx := testutils.Context(t)

	bin := t.TempDir()
	failing := filepath.Join(bin, "ln")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\necho 'ln: refused' >&2\nexit 1\n"), 0o755))
	c, err := hardlink.New(failing)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "sample")
	testutils.WriteTree(t, src, map[string]string{"sub/a.txt": "a"})
	dst := t.TempDir()

	_, err = c.Copy(ctx, src, dst)
	require.ErrorIs(t, err, hardlink.ErrLinkFailed)
	assert.Contains(t, err.Error(), "ln: refused")
	assert.DirExists(t, filepath.Join(dst, "sample", "sub"), "created directories are not rolled back")
	assert.NoFileExists(t, filepath.Join(dst, "sample", "sub", "a.txt"))
}

func TestNewUnknownExecutable(t *testing.T) {
	_, err := hardlink.New(filepath.Join(t.TempDir(), "no-such-ln"))
	require.Error(t, err)
}

func TestPathCopier(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t)
	pc := c.PathCopier()

	src := filepath.Join(t.TempDir(), "sample")
	testutils.WriteTree(t, src, map[string]string{"a.txt": "a"})

	st := pc.Copy(ctx, src, t.TempDir())
	assert.Equal(t, status.Success, st)

	st = pc.Copy(ctx, filepath.Join(t.TempDir(), "missing"), t.TempDir())
	assert.Equal(t, status.RetriableError, st.Flag)

	st = pc.Copy(ctx, src, filepath.Dir(src))
	assert.Equal(t, status.FatalError, st.Flag)
}
