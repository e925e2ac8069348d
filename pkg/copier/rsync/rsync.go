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

// Package rsync copies store items by driving an external rsync process.
//
// A Copier runs at most one rsync process at a time. The process can be killed
// from another goroutine with Terminate, in which case the copy reports a
// TERMINATED status instead of translating rsync's exit code.
package rsync

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrExecutableMissing means the rsync or ssh executable could not be found
	ErrExecutableMissing = errors.New("executable not found")
	// ErrVersionTooOld means the rsync executable is older than 2.6.0
	ErrVersionTooOld = errors.New("rsync version too old")
	// ErrVersionUnknown means `rsync --version` could not be parsed
	ErrVersionUnknown = errors.New("rsync version could not be determined")
	// ErrNoSSH means a remote check was requested without an ssh executable
	ErrNoSSH = errors.New("no ssh executable configured")
)

const waitDelay = 5 * time.Second

// ⚙️ Options configures a Copier
type Options struct {
	// Executable is the local rsync, resolved via PATH. Defaults to "rsync".
	Executable string
	// SSHExecutable is used as remote shell for host:path locations
	SSHExecutable string
	// RemoteExecutable is passed as --rsync-path for ssh transfers
	RemoteExecutable string
	// Flags replaces the default flags when non-nil
	Flags []string
	// AdditionalFlags are appended after the default or custom flags
	AdditionalFlags []string
	// Overwrite forces --whole-file instead of --append
	Overwrite bool
	// DestinationRequiresDeletionBeforeCreation forces overwrite mode
	DestinationRequiresDeletionBeforeCreation bool
	// Timeout bounds a single rsync run; zero means no limit
	Timeout time.Duration
	// Module addresses remote hosts through an rsync daemon (host::module)
	Module string
	// PasswordFile is passed to the rsync daemon when it exists
	PasswordFile string
}

type process struct {
	cmd        *exec.Cmd
	exited     bool
	terminated bool
}

type remoteRsync struct {
	executable string
	version    Version
}

// 🔄 Copier copies paths with rsync
type Copier struct {
	opts       Options
	executable string
	ssh        string

	mu      sync.Mutex
	version *Version
	remotes map[string]remoteRsync
	current *process
}

// 🏭 New creates a Copier. The rsync and ssh executables must exist; the rsync
// version is only inspected by Check.
func New(opts Options) (*Copier, error) {
	if opts.Executable == "" {
		opts.Executable = "rsync"
	}
	executable, err := resolve(opts.Executable)
	if err != nil {
		return nil, errors.Errorf("%w: rsync %q: %v", ErrExecutableMissing, opts.Executable, err)
	}

	c := &Copier{
		opts:       opts,
		executable: executable,
		remotes:    map[string]remoteRsync{},
	}
	if opts.SSHExecutable != "" {
		if c.ssh, err = resolve(opts.SSHExecutable); err != nil {
			return nil, errors.Errorf("%w: ssh %q: %v", ErrExecutableMissing, opts.SSHExecutable, err)
		}
	}
	return c, nil
}

func resolve(executable string) (string, error) {
	p, err := exec.LookPath(executable)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// Executable returns the absolute path of the rsync executable
func (c *Copier) Executable() string {
	return c.executable
}

// 🔍 Check verifies the local rsync can be executed and is at least 2.6.0
func (c *Copier) Check(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	v, err := c.queryVersion(ctx, exec.CommandContext(ctx, c.executable, "--version"))
	if err != nil {
		return err
	}
	if !v.AtLeast(2, 6, 0) {
		return errors.Errorf("%s is version %s: %w", c.executable, v, ErrVersionTooOld)
	}

	c.mu.Lock()
	c.version = &v
	c.mu.Unlock()

	logger.Info().
		Str("executable", c.executable).
		Str("version", v.String()).
		Str("mode", c.Mode("")).
		Msg("using rsync")
	if v.IsPreRelease() {
		logger.Warn().
			Str("executable", c.executable).
			Str("version", v.String()).
			Msg("rsync is a pre-release version, not recommended in production")
	}
	return nil
}

// 🔍 CheckRemote verifies the rsync on host over ssh and remembers its version
func (c *Copier) CheckRemote(ctx context.Context, host string) error {
	if c.ssh == "" {
		return errors.Errorf("checking rsync on %s: %w", host, ErrNoSSH)
	}
	remote := c.opts.RemoteExecutable
	if remote == "" {
		remote = "rsync"
	}

	cmd := exec.CommandContext(ctx, c.ssh, "-oBatchMode=yes", host, remote, "--version")
	v, err := c.queryVersion(ctx, cmd)
	if err != nil {
		return errors.Errorf("checking rsync on %s: %w", host, err)
	}
	if !v.AtLeast(2, 6, 0) {
		return errors.Errorf("%s:%s is version %s: %w", host, remote, v, ErrVersionTooOld)
	}

	c.mu.Lock()
	c.remotes[host] = remoteRsync{executable: remote, version: v}
	c.mu.Unlock()

	zerolog.Ctx(ctx).Info().Str("host", host).Str("version", v.String()).Msg("using remote rsync")
	return nil
}

func (c *Copier) queryVersion(ctx context.Context, cmd *exec.Cmd) (Version, error) {
	out, err := cmd.Output()
	if err != nil {
		return Version{}, errors.Errorf("running %s --version: %w", cmd.Path, err)
	}
	line := firstLine(out)
	v, ok := ParseVersionLine(line)
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("output", line).Msg("unparseable rsync version")
		return Version{}, errors.Errorf("%q: %w", line, ErrVersionUnknown)
	}
	return v, nil
}

// Version returns the version found by Check
func (c *Copier) Version() (Version, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == nil {
		return Version{}, false
	}
	return *c.version, true
}

// Mode returns "overwrite" or "append" for transfers involving host ("" for local)
func (c *Copier) Mode(host string) string {
	if c.overwriteMode(host) {
		return "overwrite"
	}
	return "append"
}

func (c *Copier) overwriteMode(host string) bool {
	if c.opts.Overwrite || c.opts.DestinationRequiresDeletionBeforeCreation {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != nil && !c.version.SupportsAppend() {
		return true
	}
	if r, ok := c.remotes[host]; ok && !r.version.SupportsAppend() {
		return true
	}
	return false
}

// 📋 Copy copies sourcePath into the local destinationDirectory
func (c *Copier) Copy(ctx context.Context, sourcePath, destinationDirectory string) status.Status {
	return c.Transfer(ctx, store.Local(sourcePath), store.Local(destinationDirectory), false)
}

// CopyContent copies the content of sourceDirectory into destinationDirectory
func (c *Copier) CopyContent(ctx context.Context, sourceDirectory, destinationDirectory string) status.Status {
	return c.Transfer(ctx, store.Local(sourceDirectory), store.Local(destinationDirectory), true)
}

// CopyToRemote copies sourcePath into destinationDirectory on host
func (c *Copier) CopyToRemote(ctx context.Context, sourcePath, host, destinationDirectory string) status.Status {
	return c.Transfer(ctx, store.Local(sourcePath), store.Remote(host, destinationDirectory), false)
}

// CopyFromRemote copies sourcePath on host into the local destinationDirectory
func (c *Copier) CopyFromRemote(ctx context.Context, host, sourcePath, destinationDirectory string) status.Status {
	return c.Transfer(ctx, store.Remote(host, sourcePath), store.Local(destinationDirectory), false)
}

// ToRemote returns a PathCopier that copies into destination directories on host
func (c *Copier) ToRemote(host string) *RemoteCopier {
	return &RemoteCopier{copier: c, host: host}
}

// RemoteCopier adapts CopyToRemote to the copier.PathCopier interface
type RemoteCopier struct {
	copier *Copier
	host   string
}

// Copy copies sourcePath into destinationDirectory on the remote host
func (r *RemoteCopier) Copy(ctx context.Context, sourcePath, destinationDirectory string) status.Status {
	return r.copier.CopyToRemote(ctx, sourcePath, r.host, destinationDirectory)
}

// Terminate kills the running rsync process
func (r *RemoteCopier) Terminate() bool {
	return r.copier.Terminate()
}

// 🚚 Transfer runs rsync from source into the destination directory. At most one
// side may be remote.
func (c *Copier) Transfer(ctx context.Context, source, destination store.Location, content bool) status.Status {
	if source.IsRemote() && destination.IsRemote() {
		return status.NewFatalError("cannot copy between two remote locations (%s -> %s)", source, destination)
	}
	return c.run(ctx, c.Command(source, destination, content))
}

// Command returns the rsync argv (executable first) for a transfer
func (c *Copier) Command(source, destination store.Location, content bool) []string {
	host := source.Host
	if host == "" {
		host = destination.Host
	}

	argv := []string{c.executable}
	if c.opts.Flags != nil {
		argv = append(argv, c.opts.Flags...)
	} else {
		argv = append(argv, "--archive", "--delete-before", "--inplace")
		if c.overwriteMode(host) {
			argv = append(argv, "--whole-file")
		} else {
			argv = append(argv, "--append")
		}
	}

	if c.ssh != "" && host != "" && c.opts.Module == "" {
		argv = append(argv, "--rsh", c.ssh+" -oBatchMode=yes")
		if rsyncPath := c.remoteExecutable(host); rsyncPath != "" {
			argv = append(argv, "--rsync-path", rsyncPath)
		}
	}

	if c.opts.Module != "" && c.opts.PasswordFile != "" {
		if _, err := os.Stat(c.opts.PasswordFile); err == nil {
			argv = append(argv, "--password-file", c.opts.PasswordFile)
		}
	}

	argv = append(argv, c.opts.AdditionalFlags...)
	return append(argv, c.serverPath(source, content), c.serverPath(destination, true))
}

func (c *Copier) remoteExecutable(host string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.remotes[host]; ok {
		return r.executable
	}
	return c.opts.RemoteExecutable
}

func (c *Copier) serverPath(loc store.Location, appendSlash bool) string {
	if !loc.IsRemote() {
		p := loc.Path
		if appendSlash && !strings.HasSuffix(p, "/") {
			p += "/"
		}
		return p
	}

	sep, p := ":", loc.Path
	if c.opts.Module != "" {
		sep, p = "::", c.opts.Module
		if loc.Path != "" && loc.Path != "/" {
			p = path.Join(c.opts.Module, loc.Path)
		}
	}
	if appendSlash && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return loc.Host + sep + p
}

func (c *Copier) run(ctx context.Context, argv []string) status.Status {
	logger := zerolog.Ctx(ctx).With().Str("copier", "rsync").Logger()

	runCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	stdout := newLogWriter(&logger, zerolog.DebugLevel, "stdout")
	stderr := newLogWriter(&logger, zerolog.WarnLevel, "stderr")

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return status.NewFatalError("rsync copier is already running a copy")
	}
	logger.Info().Strs("argv", argv).Msg("starting rsync")
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		if ctx.Err() != nil {
			return status.NewRetriableError("rsync interrupted: %v", ctx.Err())
		}
		return status.NewFatalError("starting rsync: %v", err)
	}
	p := &process{cmd: cmd}
	c.current = p
	c.mu.Unlock()

	waitErr := cmd.Wait()

	c.mu.Lock()
	p.exited = true
	c.current = nil
	terminated := p.terminated
	c.mu.Unlock()

	stdout.Flush()
	stderr.Flush()

	switch {
	case terminated:
		logger.Warn().Msg("rsync was terminated")
		return status.TerminatedStatus
	case waitErr == nil:
		return status.Success
	case ctx.Err() != nil:
		return status.NewRetriableError("rsync interrupted: %v", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return status.NewRetriableError("rsync timed out after %s", c.opts.Timeout)
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return status.NewFatalError("running rsync: %v", waitErr)
	}
	code := exitErr.ExitCode()
	if code < 0 {
		return status.NewFatalError("rsync killed: %v", waitErr)
	}

	st := StatusFor(code)
	logger.Warn().Int("exit_code", code).Str("last_error", stderr.LastLine()).Object("status", st).Msg("rsync failed")
	return st
}

// 🛑 Terminate kills the running rsync process. It returns false, leaving the copy
// status alone, when no process is running or the process already exited, even if
// Wait has not collected it yet.
func (c *Copier) Terminate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.current
	if p == nil || p.exited || p.cmd.Process == nil {
		return false
	}
	if exitedUnreaped(p.cmd.Process.Pid) {
		return false
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return false
	}
	p.terminated = true
	return true
}

// IsRunning reports whether an rsync process is in flight
func (c *Copier) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func firstLine(b []byte) string {
	s := bufio.NewScanner(bytes.NewReader(b))
	if s.Scan() {
		return s.Text()
	}
	return ""
}
