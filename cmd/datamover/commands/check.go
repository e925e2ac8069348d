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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/walteh/datamover/cmd/datamover/opts"
	"gitlab.com/tozd/go/errors"
)

// NewCheckCmd creates the check command
func NewCheckCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the configured stores and copy tools are usable",
		Long: `Check verifies the setup before moving anything.
It will:
1. Run rsync --version locally (and on the remote host over ssh)
2. Confirm the source store exists within the filesystem timeout
3. Report the free space of the local stores`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.WithCommand(cmd.Context(), "check")

			saved := o.SkipCheck
			o.SkipCheck = false
			rs, err := o.NewRsync(ctx)
			o.SkipCheck = saved
			if err != nil {
				return err
			}

			if v, ok := rs.Version(); ok {
				o.Console.Successf("rsync %s at %s (%s mode)", v, rs.Executable(), rs.Mode(o.Config.DestinationLocation().Host))
			}

			monitored := o.NewMonitored()
			exists, err := monitored.Exists(ctx, o.Config.Source).Get()
			if err != nil {
				return errors.Errorf("checking source store: %w", err)
			}
			if !exists {
				return errors.Errorf("source store %s does not exist", o.Config.Source)
			}
			o.Console.Successf("source store %s exists", o.Config.Source)

			return reportFreeSpace(cmd, o, localRoots(o))
		},
	}

	return cmd
}

// NewFreeSpaceCmd creates the free-space command
func NewFreeSpaceCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "free-space [path...]",
		Short: "Report free space of the local stores, bounded by the filesystem timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = localRoots(o)
			}
			return reportFreeSpace(cmd, o, paths)
		},
	}

	return cmd
}

func localRoots(o *opts.RootOpts) []string {
	roots := []string{o.Config.Source}
	if dest := o.Config.DestinationLocation(); !dest.IsRemote() {
		roots = append(roots, dest.Path)
	}
	return roots
}

func reportFreeSpace(cmd *cobra.Command, o *opts.RootOpts, paths []string) error {
	ctx := opts.WithCommand(cmd.Context(), "free-space")
	monitored := o.NewMonitored()

	failed := 0
	for _, p := range paths {
		res := monitored.FreeSpace(ctx, p)
		if !res.OK() {
			failed++
			if res.TimedOut {
				o.Console.Warningf("%s: no answer within %s", p, o.Config.FilesystemQueryTimeout())
			} else {
				o.Console.Errorf("%s: %s", p, res.Diagnostic)
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", p, HumanBytes(res.Value))
	}

	if failed > 0 {
		return errors.Errorf("free space unknown for %d of %d paths", failed, len(paths))
	}
	return nil
}

// HumanBytes formats a byte count with a binary unit
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
