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
	"io"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/walteh/datamover/pkg/log"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// SummaryData returns the rows of the per-status summary table, header first
func SummaryData(moves []log.MoveOperation) [][]string {
	counts := log.Summarize(moves)
	skipped := 0
	for _, m := range moves {
		if m.Skipped() {
			skipped++
		}
	}

	return [][]string{
		{"Status", "Items"},
		{store.MoveOK.String(), strconv.Itoa(counts[store.MoveOK])},
		{store.CopyOKDeletionFailed.String(), strconv.Itoa(counts[store.CopyOKDeletionFailed])},
		{store.CopyFailed.String(), strconv.Itoa(counts[store.CopyFailed] - skipped)},
		{"SKIPPED", strconv.Itoa(skipped)},
	}
}

// FailureData returns the rows of the failed items table, header first. It returns
// nil when every item was moved.
func FailureData(moves []log.MoveOperation) [][]string {
	var rows [][]string
	for _, m := range moves {
		if m.Status == store.MoveOK || m.Skipped() {
			continue
		}
		rows = append(rows, []string{m.Item, m.Stage, m.Status.String(), m.Detail()})
	}
	if len(rows) == 0 {
		return nil
	}
	return append([][]string{{"Item", "Stage", "Status", "Detail"}}, rows...)
}

// 📊 RenderSummary writes the summary tables of a batch
func RenderSummary(w io.Writer, moves []log.MoveOperation) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(SummaryData(moves)).Srender()
	if err != nil {
		return errors.Errorf("rendering summary: %w", err)
	}
	fmt.Fprintln(w, table)

	if failures := FailureData(moves); failures != nil {
		table, err := pterm.DefaultTable.WithHasHeader().WithData(failures).Srender()
		if err != nil {
			return errors.Errorf("rendering failures: %w", err)
		}
		fmt.Fprintln(w, table)
	}
	return nil
}

// CountFailures returns the number of items that were not fully moved
func CountFailures(moves []log.MoveOperation) int {
	n := 0
	for _, m := range moves {
		if m.Status != store.MoveOK {
			n++
		}
	}
	return n
}
