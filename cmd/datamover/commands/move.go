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
	"context"

	"github.com/spf13/cobra"
	"github.com/walteh/datamover/cmd/datamover/opts"
	"github.com/walteh/datamover/pkg/log"
	"github.com/walteh/datamover/pkg/mover"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// NewMoveCmd creates the move command
func NewMoveCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move [item...]",
		Short: "Move items from the source store to the destination store",
		Long: `Move copies every item (or the named items) of the source store into the
destination store and removes it from the source afterwards.
For each item it will:
1. Copy the item, unless an earlier move already finished the copy and only the
   deletion is pending
2. Mark the destination copy finished
3. Remove the item from the source

Items with a deletion-in-progress marker are skipped; use retry-deletion for them.
Interrupting the command terminates running copies; affected items report COPY_FAILED
and can be moved again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.WithCommand(cmd.Context(), "move")

			items, err := ListItems(ctx, o.Config, args)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				o.Console.Info("nothing to move")
				return nil
			}

			o.Console.Header("moving items")
			return runBatch(ctx, cmd, o, items, (*mover.Runner).Run, o.Config.ManualIntervention)
		},
	}

	return cmd
}

// NewRetryDeletionCmd creates the retry-deletion command
func NewRetryDeletionCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry-deletion [item...]",
		Short: "Remove source items whose copy already finished",
		Long: `Retry-deletion repeats only the deletion stage for items that were reported as
COPY_OK_DELETION_FAILED. Without arguments it picks every source item that carries a
deletion-in-progress marker. Items are never copied again; with markers enabled an item
without a finished destination copy is left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.WithCommand(cmd.Context(), "retry-deletion")

			items, err := ListPendingDeletions(ctx, o.Config, args)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				o.Console.Info("no deletions pending")
				return nil
			}

			o.Console.Header("retrying deletion")
			return runBatch(ctx, cmd, o, items, (*mover.Runner).RetryDeletion, "")
		},
	}

	return cmd
}

type batchFunc func(r *mover.Runner, ctx context.Context, items []store.Item) ([]mover.Result, error)

// runBatch runs items through a Runner and reports them. A non-empty asideDir receives
// source items whose copy failed fatally.
func runBatch(ctx context.Context, cmd *cobra.Command, o *opts.RootOpts, items []store.Item, run batchFunc, asideDir string) error {
	o.Console.StartBatch(ctx, log.BatchOperation{
		Source:      o.Config.Source,
		Destination: o.Config.Destination,
		Items:       len(items),
	})

	runner := mover.NewRunner(o.MoverFactory(ctx), o.ParallelWorkers(), mover.WithResultHandler(func(res mover.Result) {
		o.Console.LogMove(ctx, ToMoveOperation(res))
	}))

	stop := context.AfterFunc(ctx, runner.Stop)
	defer stop()

	results, runErr := run(runner, ctx, items)
	moves := o.Console.EndBatch(ctx)

	if asideDir != "" {
		SetAsideFailures(ctx, o, results, asideDir)
	}

	o.Console.LogNewline()
	if err := RenderSummary(cmd.OutOrStdout(), moves); err != nil {
		return err
	}

	if runErr != nil {
		return errors.Errorf("running batch: %w", runErr)
	}
	if failed := CountFailures(moves); failed > 0 {
		return errors.Errorf("%d of %d items not moved", failed, len(items))
	}

	o.Console.Successf("%d items moved", len(items))
	return nil
}

// SetAsideFailures moves every source item whose copy failed fatally into dir and
// returns the new paths
func SetAsideFailures(ctx context.Context, o *opts.RootOpts, results []mover.Result, dir string) []string {
	var moved []string
	for _, res := range results {
		if !mover.NeedsIntervention(res) {
			continue
		}
		p, err := mover.SetAside(ctx, o.Config.Source, dir, res.Item)
		if err != nil {
			o.Console.Warningf("%s: cannot set aside: %v", res.Item, err)
			continue
		}
		o.Console.Warningf("%s: needs manual intervention, moved to %s", res.Item, p)
		moved = append(moved, p)
	}
	return moved
}
