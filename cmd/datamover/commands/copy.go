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
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/walteh/datamover/cmd/datamover/opts"
	"github.com/walteh/datamover/pkg/marker"
	"gitlab.com/tozd/go/errors"
)

// NewCopyCmd creates the copy command
func NewCopyCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy path",
		Short: "Copy a path into the destination store without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.WithCommand(cmd.Context(), "copy")

			pc, err := o.NewCopier(ctx)
			if err != nil {
				return err
			}

			source, err := filepath.Abs(args[0])
			if err != nil {
				return errors.Errorf("resolving path: %w", err)
			}
			name := filepath.Base(source)

			st := pc.Copy(ctx, source, o.Config.DestinationLocation().Path)
			o.Console.LogCopy(ctx, name, st)
			if !st.IsOK() {
				return errors.Errorf("copying %s: %s", name, st)
			}
			return nil
		},
	}

	return cmd
}

// NewCleanCmd creates the clean command
func NewCleanCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove markers whose item no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.WithCommand(cmd.Context(), "clean")

			roots := []string{o.Config.Source}
			if dest := o.Config.DestinationLocation(); !dest.IsRemote() {
				roots = append(roots, dest.Path)
			}

			for _, root := range roots {
				removed, err := marker.NewDir(root).RemoveOrphans(ctx)
				if err != nil {
					return errors.Errorf("cleaning %s: %w", root, err)
				}
				for _, name := range removed {
					o.Console.Info(fmt.Sprintf("removed %s", filepath.Join(root, name)))
				}
				o.Console.Successf("%s: %d orphaned markers removed", root, len(removed))
			}
			return nil
		},
	}

	return cmd
}
