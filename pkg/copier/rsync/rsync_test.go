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

package rsync_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datamover/pkg/copier"
	"github.com/walteh/datamover/pkg/copier/rsync"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/store"
	"github.com/walteh/datamover/pkg/testutils"
)

// stub writes an executable shell script standing in for rsync or ssh
func stub(t *testing.T, name, body string) string {
	return testutils.StubExecutable(t, name, body)
}

func newCopier(t *testing.T, opts rsync.Options) *rsync.Copier {
	t.Helper()
	c, err := rsync.New(opts)
	require.NoError(t, err)
	return c
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		flag    status.Flag
		message string
	}{
		{name: "success", code: 0, flag: status.OK, message: "Success"},
		{name: "usage_error", code: 1, flag: status.FatalError, message: "Syntax or usage error"},
		{name: "protocol_start", code: 5, flag: status.RetriableError, message: "Error starting client-server protocol"},
		{name: "socket_io", code: 10, flag: status.RetriableError, message: "Error in socket I/O"},
		{name: "file_io", code: 11, flag: status.RetriableError, message: "Error in file I/O"},
		{name: "partial_transfer", code: 23, flag: status.RetriableError, message: "Partial transfer due to error"},
		{name: "vanished_source", code: 24, flag: status.RetriableError, message: "Partial transfer due to vanished source files"},
		{name: "max_delete", code: 25, flag: status.FatalError, message: "The --max-delete limit stopped deletions"},
		{name: "daemon_timeout", code: 35, flag: status.RetriableError, message: "Timeout waiting for daemon connection"},
		{name: "unknown", code: 99, flag: status.FatalError, message: "Unknown rsync exit code 99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.flag, rsync.Translate(tt.code))
			assert.Equal(t, tt.message, rsync.Message(tt.code))

			st := rsync.StatusFor(tt.code)
			assert.Equal(t, tt.flag, st.Flag)
			if tt.code != 0 {
				assert.Equal(t, tt.message, st.Message)
			}
		})
	}
}

func TestParseVersionLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		ok         bool
		expected   string
		preRelease bool
		append     bool
	}{
		{name: "modern", line: "rsync  version 3.2.7  protocol version 31", ok: true, expected: "3.2.7", append: true},
		{name: "v_prefix", line: "rsync  version v3.4.1  protocol version 32", ok: true, expected: "3.4.1", append: true},
		{name: "pre_release", line: "rsync  version 3.0.0pre8  protocol version 30", ok: true, expected: "3.0.0pre8", preRelease: true, append: true},
		{name: "no_append", line: "rsync  version 2.6.6  protocol version 29", ok: true, expected: "2.6.6"},
		{name: "garbage", line: "command not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := rsync.ParseVersionLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.expected, v.String())
			assert.Equal(t, tt.preRelease, v.IsPreRelease())
			assert.Equal(t, tt.append, v.SupportsAppend())
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	v := rsync.Version{Major: 2, Minor: 6, Patch: 7}
	assert.True(t, v.AtLeast(2, 6, 0))
	assert.True(t, v.AtLeast(2, 6, 7))
	assert.False(t, v.AtLeast(2, 6, 8))
	assert.False(t, v.AtLeast(3, 0, 0))
	assert.True(t, v.AtLeast(1, 9, 9))
}

func TestCopyExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected status.Status
	}{
		{name: "ok", code: "0", expected: status.Success},
		{name: "retriable", code: "11", expected: status.NewRetriableError("Error in file I/O")},
		{name: "fatal", code: "1", expected: status.NewFatalError("Syntax or usage error")},
		{name: "unknown", code: "77", expected: status.NewFatalError("Unknown rsync exit code 77")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "echo transferring; echo oops >&2; exit "+tt.code)})

			st := c.Copy(ctx, t.TempDir(), t.TempDir())
			assert.Equal(t, tt.expected, st)
			assert.False(t, c.IsRunning())
		})
	}
}

func TestCopyPassesArguments(t *testing.T) {
	ctx := testutils.Context(t)
	out := filepath.Join(t.TempDir(), "argv")
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", `printf '%s\n' "$@" > `+out)})

	st := c.Copy(ctx, "/data/in/sample", "/data/out")
	require.Equal(t, status.Success, st)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--archive", "--delete-before", "--inplace", "--append",
		"/data/in/sample", "/data/out/",
	}, strings.Split(strings.TrimSpace(string(raw)), "\n"))
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(passwordFile, []byte("pw"), 0o600))

	tests := []struct {
		name        string
		opts        rsync.Options
		source      store.Location
		destination store.Location
		content     bool
		expected    []string
	}{
		{
			name:        "local_append",
			source:      store.Local("/in/a"),
			destination: store.Local("/out"),
			expected:    []string{"--archive", "--delete-before", "--inplace", "--append", "/in/a", "/out/"},
		},
		{
			name:        "overwrite",
			opts:        rsync.Options{Overwrite: true},
			source:      store.Local("/in/a"),
			destination: store.Local("/out/"),
			expected:    []string{"--archive", "--delete-before", "--inplace", "--whole-file", "/in/a", "/out/"},
		},
		{
			name:        "requires_deletion_forces_overwrite",
			opts:        rsync.Options{DestinationRequiresDeletionBeforeCreation: true},
			source:      store.Local("/in/a"),
			destination: store.Local("/out"),
			expected:    []string{"--archive", "--delete-before", "--inplace", "--whole-file", "/in/a", "/out/"},
		},
		{
			name:        "custom_and_additional_flags",
			opts:        rsync.Options{Flags: []string{"-rt"}, AdditionalFlags: []string{"--chmod=ug+w"}},
			source:      store.Local("/in/a"),
			destination: store.Local("/out"),
			expected:    []string{"-rt", "--chmod=ug+w", "/in/a", "/out/"},
		},
		{
			name:        "content",
			source:      store.Local("/in/a"),
			destination: store.Local("/out"),
			content:     true,
			expected:    []string{"--archive", "--delete-before", "--inplace", "--append", "/in/a/", "/out/"},
		},
		{
			name:        "module_with_password_file",
			opts:        rsync.Options{Module: "store", PasswordFile: passwordFile},
			source:      store.Local("/in/a"),
			destination: store.Remote("archive", ""),
			expected:    []string{"--archive", "--delete-before", "--inplace", "--append", "--password-file", passwordFile, "/in/a", "archive::store/"},
		},
		{
			name:        "module_missing_password_file",
			opts:        rsync.Options{Module: "store", PasswordFile: filepath.Join(dir, "missing")},
			source:      store.Local("/in/a"),
			destination: store.Remote("archive", "sub"),
			expected:    []string{"--archive", "--delete-before", "--inplace", "--append", "/in/a", "archive::store/sub/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Executable = stub(t, "rsync", "exit 0")
			c := newCopier(t, tt.opts)

			argv := c.Command(tt.source, tt.destination, tt.content)
			require.NotEmpty(t, argv)
			assert.Equal(t, c.Executable(), argv[0])
			assert.Equal(t, tt.expected, argv[1:])
		})
	}
}

func TestCommandOverSSH(t *testing.T) {
	ssh := stub(t, "ssh", "exit 0")
	c := newCopier(t, rsync.Options{
		Executable:       stub(t, "rsync", "exit 0"),
		SSHExecutable:    ssh,
		RemoteExecutable: "/opt/bin/rsync",
	})

	argv := c.Command(store.Remote("archive", "/data/a"), store.Local("/out"), false)
	assert.Equal(t, []string{
		"--archive", "--delete-before", "--inplace", "--append",
		"--rsh", ssh + " -oBatchMode=yes",
		"--rsync-path", "/opt/bin/rsync",
		"archive:/data/a", "/out/",
	}, argv[1:])
}

func TestTransferBetweenRemotesFails(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 0")})

	st := c.Transfer(ctx, store.Remote("a", "/x"), store.Remote("b", "/y"), false)
	assert.Equal(t, status.FatalError, st.Flag)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		mode   string
	}{
		{name: "modern", output: "rsync  version 3.2.7  protocol version 31", mode: "append"},
		{name: "pre_release", output: "rsync  version 3.0.0pre8  protocol version 30", mode: "append"},
		{name: "without_append", output: "rsync  version 2.6.5  protocol version 29", mode: "overwrite"},
		{name: "too_old", output: "rsync  version 2.5.7  protocol version 26", err: rsync.ErrVersionTooOld},
		{name: "unparseable", output: "hello", err: rsync.ErrVersionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "echo '"+tt.output+"'")})

			err := c.Check(ctx)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				_, ok := c.Version()
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			_, ok := c.Version()
			assert.True(t, ok)
			assert.Equal(t, tt.mode, c.Mode(""))
		})
	}
}

func TestCheckFailingExecutable(t *testing.T) {
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 3")})
	require.Error(t, c.Check(testutils.Context(t)))
}

func TestCheckRemote(t *testing.T) {
	ctx := testutils.Context(t)

	t.Run("without_ssh", func(t *testing.T) {
		c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 0")})
		require.ErrorIs(t, c.CheckRemote(ctx, "archive"), rsync.ErrNoSSH)
	})

	t.Run("old_remote_forces_overwrite", func(t *testing.T) {
		c := newCopier(t, rsync.Options{
			Executable:    stub(t, "rsync", "exit 0"),
			SSHExecutable: stub(t, "ssh", "echo 'rsync  version 2.6.3  protocol version 28'"),
		})
		require.NoError(t, c.CheckRemote(ctx, "archive"))

		assert.Equal(t, "overwrite", c.Mode("archive"))
		assert.Equal(t, "append", c.Mode(""))

		argv := c.Command(store.Local("/in/a"), store.Remote("archive", "/data"), false)
		assert.Contains(t, argv, "--whole-file")
		assert.Contains(t, argv, "--rsync-path")
		assert.Equal(t, "archive:/data/", argv[len(argv)-1])
	})
}

func TestTerminate(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exec sleep 30")})

	assert.False(t, c.Terminate(), "nothing is running yet")

	done := make(chan status.Status, 1)
	go func() {
		done <- c.Copy(ctx, t.TempDir(), t.TempDir())
	}()

	assert.Eventually(t, c.Terminate, 5*time.Second, 10*time.Millisecond)

	select {
	case st := <-done:
		assert.Equal(t, status.TerminatedStatus, st)
		assert.True(t, st.IsTerminated())
	case <-time.After(10 * time.Second):
		t.Fatal("copy did not return after terminate")
	}

	assert.False(t, c.Terminate(), "process already finished")
}

func TestTerminateAfterCompletion(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 0")})

	require.Equal(t, status.Success, c.Copy(ctx, t.TempDir(), t.TempDir()))
	assert.False(t, c.Terminate())
}

func TestCopyInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(testutils.Context(t))
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exec sleep 30")})

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	st := c.Copy(ctx, t.TempDir(), t.TempDir())
	assert.Equal(t, status.RetriableError, st.Flag)
	assert.Contains(t, st.Message, "interrupted")
}

// cancelledOnly reports cancellation without ever closing Done, so the process is
// not killed and the context only looks cancelled once rsync has exited
type cancelledOnly struct {
	context.Context
}

func (cancelledOnly) Err() error { return context.Canceled }

func TestCopySucceedsWhenCancelledAfterExit(t *testing.T) {
	ctx := cancelledOnly{Context: testutils.Context(t)}
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 0")})

	assert.Equal(t, status.Success, c.Copy(ctx, t.TempDir(), t.TempDir()))
}

func TestCopyFailsWhenCancelledAfterExit(t *testing.T) {
	ctx := cancelledOnly{Context: testutils.Context(t)}
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 23")})

	st := c.Copy(ctx, t.TempDir(), t.TempDir())
	assert.Equal(t, status.RetriableError, st.Flag)
	assert.Contains(t, st.Message, "interrupted")
}

func TestCopyAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testutils.Context(t))
	cancel()
	c := newCopier(t, rsync.Options{Executable: stub(t, "rsync", "exit 0")})

	st := c.Copy(ctx, t.TempDir(), t.TempDir())
	assert.Equal(t, status.RetriableError, st.Flag)
	assert.Contains(t, st.Message, "interrupted")
	assert.False(t, c.IsRunning())
}

func TestCopyTimedOut(t *testing.T) {
	ctx := testutils.Context(t)
	c := newCopier(t, rsync.Options{
		Executable: stub(t, "rsync", "exec sleep 30"),
		Timeout:    100 * time.Millisecond,
	})

	start := time.Now()
	st := c.Copy(ctx, t.TempDir(), t.TempDir())
	assert.Equal(t, status.RetriableError, st.Flag)
	assert.Contains(t, st.Message, "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewMissingExecutable(t *testing.T) {
	_, err := rsync.New(rsync.Options{Executable: filepath.Join(t.TempDir(), "no-rsync")})
	require.ErrorIs(t, err, rsync.ErrExecutableMissing)
}

func TestToRemote(t *testing.T) {
	ctx := testutils.Context(t)
	out := filepath.Join(t.TempDir(), "argv")
	c := newCopier(t, rsync.Options{
		Executable:    stub(t, "rsync", `printf '%s\n' "$@" > `+out),
		SSHExecutable: stub(t, "ssh", "exit 0"),
	})

	var pc copier.PathCopier = c.ToRemote("archive")
	require.Equal(t, status.Success, pc.Copy(ctx, "/in/a", "/data"))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "archive:/data/", lines[len(lines)-1])
	assert.Equal(t, "/in/a", lines[len(lines)-2])

	_, ok := pc.(copier.Terminable)
	assert.True(t, ok)
}
