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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/datamover/cmd/datamover/commands"
	"github.com/walteh/datamover/cmd/datamover/opts"
	"github.com/walteh/datamover/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootOpts := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "datamover",
		Short: "Move items between data stores",
		Long: `datamover moves files and directories from a source store to a destination
store with rsync or hard links. Destination copies are marked finished before the
source is removed, so consumers never see partial data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := setupLogging()
			rootOpts.Console = log.New(cmd.OutOrStdout(), level)
			return loadRootOpts(cmd.Context(), rootOpts)
		},
	}

	addRootFlags(rootCmd, rootOpts)

	rootCmd.AddCommand(
		commands.NewMoveCmd(rootOpts),
		commands.NewRetryDeletionCmd(rootOpts),
		commands.NewCopyCmd(rootOpts),
		commands.NewCleanCmd(rootOpts),
		commands.NewCheckCmd(rootOpts),
		commands.NewFreeSpaceCmd(rootOpts),
		newVersionCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
