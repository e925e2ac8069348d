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
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	runtimedebug "runtime/debug"

	"github.com/spf13/cobra"
	"github.com/walteh/datamover/pkg/copier/rsync"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ BuildInfo describes the datamover binary and the copy tool it would drive
type BuildInfo struct {
	Module   string `json:"module"`
	Version  string `json:"version"`
	Commit   string `json:"commit,omitempty"`
	Dirty    bool   `json:"dirty,omitempty"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
	Rsync    string `json:"rsync,omitempty"`
}

func readBuildInfo() BuildInfo {
	info := BuildInfo{
		Module:   "github.com/walteh/datamover",
		Version:  "dev",
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := runtimedebug.ReadBuildInfo()
	if !ok {
		return info
	}
	if bi.Main.Path != "" {
		info.Module = bi.Main.Path
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

func (b BuildInfo) write(w io.Writer) {
	commit := b.Commit
	if commit == "" {
		commit = "unknown"
	}
	if b.Dirty {
		commit += "+dirty"
	}
	fmt.Fprintf(w, "datamover %s (%s)\n", b.Version, commit)
	fmt.Fprintf(w, "  module:   %s\n", b.Module)
	fmt.Fprintf(w, "  go:       %s %s\n", b.Go, b.Platform)
	if b.Rsync != "" {
		fmt.Fprintf(w, "  rsync:    %s\n", b.Rsync)
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	var rsyncExecutable string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		// runs without a config file
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := readBuildInfo()
			if rsyncExecutable != "" {
				c, err := rsync.New(rsync.Options{Executable: rsyncExecutable})
				if err != nil {
					return errors.Errorf("locating rsync: %w", err)
				}
				if err := c.Check(cmd.Context()); err != nil {
					return errors.Errorf("checking rsync: %w", err)
				}
				v, _ := c.Version()
				info.Rsync = v.String()
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			info.write(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().StringVar(&rsyncExecutable, "rsync", "", "also report the version of this rsync executable")
	return cmd
}
