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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse decodes the config from bytes without validating it
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

const (
	DefaultRsyncExecutable   = "rsync"
	DefaultLinkExecutable    = "ln"
	DefaultFilesystemTimeout = 10 * time.Second
)

// 🔄 Rsync configures the rsync copier
type Rsync struct {
	Executable       string   `json:"executable,omitempty" yaml:"executable,omitempty" hcl:"executable,optional"`
	SSHExecutable    string   `json:"ssh_executable,omitempty" yaml:"ssh_executable,omitempty" hcl:"ssh_executable,optional"`
	RemoteExecutable string   `json:"remote_executable,omitempty" yaml:"remote_executable,omitempty" hcl:"remote_executable,optional"`
	Overwrite        bool     `json:"overwrite,omitempty" yaml:"overwrite,omitempty" hcl:"overwrite,optional"`
	Flags            []string `json:"flags,omitempty" yaml:"flags,omitempty" hcl:"flags,optional"`
	AdditionalFlags  []string `json:"additional_flags,omitempty" yaml:"additional_flags,omitempty" hcl:"additional_flags,optional"`
	Timeout          string   `json:"timeout,omitempty" yaml:"timeout,omitempty" hcl:"timeout,optional"`
	Module           string   `json:"rsync_module,omitempty" yaml:"rsync_module,omitempty" hcl:"rsync_module,optional"`
	PasswordFile     string   `json:"password_file,omitempty" yaml:"password_file,omitempty" hcl:"password_file,optional"`

	timeout time.Duration
}

// 🔗 HardLink configures the hard link copier
type HardLink struct {
	Executable string `json:"executable,omitempty" yaml:"executable,omitempty" hcl:"executable,optional"`
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty" hcl:"enabled,optional"`
}

// 🏷️ Markers configures marker file maintenance
type Markers struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty" hcl:"enabled,optional"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Source            string    `json:"source" yaml:"source" hcl:"source"`
	Destination       string    `json:"destination" yaml:"destination" hcl:"destination"`
	Rsync             *Rsync    `json:"rsync,omitempty" yaml:"rsync,omitempty" hcl:"rsync,block"`
	HardLink          *HardLink `json:"hard_link,omitempty" yaml:"hard_link,omitempty" hcl:"hard_link,block"`
	Markers           *Markers  `json:"markers,omitempty" yaml:"markers,omitempty" hcl:"markers,block"`
	FilesystemTimeout string    `json:"filesystem_timeout,omitempty" yaml:"filesystem_timeout,omitempty" hcl:"filesystem_timeout,optional"`
	IgnorePatterns    []string  `json:"ignore_patterns,omitempty" yaml:"ignore_patterns,omitempty" hcl:"ignore_patterns,optional"`
	Parallel          int       `json:"parallel,omitempty" yaml:"parallel,omitempty" hcl:"parallel,optional"`

	// ManualIntervention receives source items whose copy failed fatally
	ManualIntervention string `json:"manual_intervention,omitempty" yaml:"manual_intervention,omitempty" hcl:"manual_intervention,optional"`

	filesystemTimeout time.Duration
}

// 🎯 Load loads and validates the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(filepath.Base(path))
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, nil
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.Source == "" {
		return errors.Errorf("source is required")
	}
	if cfg.Destination == "" {
		return errors.Errorf("destination is required")
	}
	if store.ParseLocation(cfg.Source).IsRemote() {
		return errors.Errorf("source must be a local directory: %s", cfg.Source)
	}
	cfg.Source = filepath.Clean(cfg.Source)

	if cfg.Rsync == nil {
		cfg.Rsync = &Rsync{}
	}
	if cfg.Rsync.Executable == "" {
		cfg.Rsync.Executable = DefaultRsyncExecutable
	}
	if cfg.Rsync.Timeout != "" {
		d, err := time.ParseDuration(cfg.Rsync.Timeout)
		if err != nil {
			return errors.Errorf("rsync.timeout: %w", err)
		}
		cfg.Rsync.timeout = d
	}

	remote := cfg.DestinationLocation().IsRemote()

	if cfg.HardLink == nil {
		cfg.HardLink = &HardLink{}
	}
	if cfg.HardLink.Executable == "" {
		cfg.HardLink.Executable = DefaultLinkExecutable
	}
	if cfg.HardLink.Enabled && remote {
		return errors.Errorf("hard_link requires a local destination: %s", cfg.Destination)
	}

	if cfg.Markers == nil {
		cfg.Markers = &Markers{}
	}
	if cfg.Markers.Enabled == nil {
		enabled := !remote
		cfg.Markers.Enabled = &enabled
	}
	if *cfg.Markers.Enabled && remote {
		return errors.Errorf("markers require a local destination: %s", cfg.Destination)
	}

	cfg.filesystemTimeout = DefaultFilesystemTimeout
	if cfg.FilesystemTimeout != "" {
		d, err := time.ParseDuration(cfg.FilesystemTimeout)
		if err != nil {
			return errors.Errorf("filesystem_timeout: %w", err)
		}
		if d <= 0 {
			return errors.Errorf("filesystem_timeout must be positive: %s", cfg.FilesystemTimeout)
		}
		cfg.filesystemTimeout = d
	}

	for _, pattern := range cfg.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	if cfg.ManualIntervention != "" {
		if store.ParseLocation(cfg.ManualIntervention).IsRemote() {
			return errors.Errorf("manual_intervention must be a local directory: %s", cfg.ManualIntervention)
		}
		cfg.ManualIntervention = filepath.Clean(cfg.ManualIntervention)
		if rel, err := filepath.Rel(cfg.Source, cfg.ManualIntervention); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return errors.Errorf("manual_intervention must be outside the source: %s", cfg.ManualIntervention)
		}
	}

	if cfg.Parallel < 0 {
		return errors.Errorf("parallel must not be negative: %d", cfg.Parallel)
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = 1
	}

	return nil
}

// SourceLocation returns the parsed source store root
func (cfg *Config) SourceLocation() store.Location {
	return store.ParseLocation(cfg.Source)
}

// DestinationLocation returns the parsed destination store root
func (cfg *Config) DestinationLocation() store.Location {
	return store.ParseLocation(cfg.Destination)
}

// RsyncTimeout returns the per-run rsync timeout; zero means no limit
func (cfg *Config) RsyncTimeout() time.Duration {
	if cfg.Rsync == nil {
		return 0
	}
	return cfg.Rsync.timeout
}

// FilesystemQueryTimeout returns the bound for filesystem queries
func (cfg *Config) FilesystemQueryTimeout() time.Duration {
	if cfg.filesystemTimeout == 0 {
		return DefaultFilesystemTimeout
	}
	return cfg.filesystemTimeout
}

// MarkersEnabled reports whether marker files are maintained
func (cfg *Config) MarkersEnabled() bool {
	return cfg.Markers != nil && cfg.Markers.Enabled != nil && *cfg.Markers.Enabled
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	copier := "rsync"
	if cfg.HardLink != nil && cfg.HardLink.Enabled {
		copier = "hard_link+rsync"
	}
	return fmt.Sprintf("%s -> %s (%s, parallel=%d)", cfg.Source, cfg.Destination, copier, cfg.Parallel)
}
