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

package main

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datamover/pkg/testutils"
)

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestReadBuildInfo(t *testing.T) {
	info := readBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Module)
	assert.Equal(t, runtime.Version(), info.Go)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.LessOrEqual(t, len(info.Commit), 12)
}

func TestVersionCommand(t *testing.T) {
	out := runVersion(t)
	assert.True(t, strings.HasPrefix(out, "datamover "), "unexpected output %q", out)
	assert.Contains(t, out, "go:       "+runtime.Version())
	assert.NotContains(t, out, "rsync:")
}

func TestVersionCommandJSONWithRsync(t *testing.T) {
	rsyncPath := testutils.StubExecutable(t, "rsync", "echo 'rsync  version 3.2.7  protocol version 31'")

	out := runVersion(t, "--json", "--rsync", rsyncPath)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "3.2.7", info.Rsync)
	assert.Equal(t, runtime.Version(), info.Go)
}

func TestVersionCommandMissingRsync(t *testing.T) {
	cmd := newVersionCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--rsync", "/nonexistent/rsync"})
	require.Error(t, cmd.Execute())
}
