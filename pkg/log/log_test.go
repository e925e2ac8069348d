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

package log

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/store"
	"gitlab.com/tozd/go/errors"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_batch",
			op: func(t *testing.T, logger *Logger) {
				logger.StartBatch(context.Background(), BatchOperation{
					Source:      "/data/incoming",
					Destination: "archive:/data/store",
					Items:       3,
				})
			},
			wantLogs: []string{
				"[moving archive:/data/store]",
				"◆ /data/incoming • 3 items",
			},
		},
		{
			name: "log_copy",
			op: func(t *testing.T, logger *Logger) {
				logger.LogCopy(context.Background(), "sample", status.NewRetriableError("Error in socket I/O"))
			},
			wantLogs: []string{
				"⟳ sample                              copy       RETRIABLE_ERROR Error in socket I/O",
			},
		},
		{
			name: "log_progress",
			op: func(t *testing.T, logger *Logger) {
				logger.Progress(1, 4)
				logger.Progress(4, 4)
			},
			wantLogs: []string{
				"⏳ Progress: 1/4 (25%)",
				"✅ Progress: 4/4 (100%)",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("moving items")
			},
			wantLogs: []string{
				"datamover • moving items",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.InfoLevel)

			tt.op(t, logger)

			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	logger := New(io.Discard, zerolog.InfoLevel)

	ctx := NewContext(context.Background(), logger)

	got := FromContext(ctx)
	assert.Same(t, logger, got, "logger from context should be the same instance")

	assert.Panics(t, func() {
		FromContext(context.Background())
	}, "FromContext should panic when logger is missing")
}

func TestMoveOperationFormatting(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name string
		op   MoveOperation
		want string
	}{
		{
			name: "moved",
			op:   MoveOperation{Item: "a.dat", Stage: "done", Status: store.MoveOK, Copy: status.Success},
			want: "    ✓ a.dat                               done       MOVE_OK                  ",
		},
		{
			name: "deletion_failed",
			op:   MoveOperation{Item: "b.dat", Stage: "delete", Status: store.CopyOKDeletionFailed, Copy: status.Success, Err: errors.New("removing source: busy")},
			want: "    ⟳ b.dat                               delete     COPY_OK_DELETION_FAILED   removing source: busy",
		},
		{
			name: "copy_failed",
			op:   MoveOperation{Item: "c.dat", Stage: "copy", Status: store.CopyFailed, Copy: status.NewRetriableError("Error in file I/O")},
			want: "    ✗ c.dat                               copy       COPY_FAILED               Error in file I/O",
		},
		{
			name: "terminated",
			op:   MoveOperation{Item: "d.dat", Stage: "copy", Status: store.CopyFailed, Copy: status.TerminatedStatus},
			want: "    ■ d.dat                               copy       COPY_FAILED               Process was terminated.",
		},
		{
			name: "skipped",
			op:   MoveOperation{Item: "e.dat", Stage: "skipped", Status: store.CopyFailed},
			want: "    - e.dat                               skipped    COPY_FAILED              ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.InfoLevel)

			logger.LogMove(context.Background(), tt.op)

			assert.Equal(t, tt.want, strings.TrimRight(buf.String(), "\n"), "formatted output should match")
		})
	}
}

func TestEndBatch(t *testing.T) {
	logger := New(io.Discard, zerolog.InfoLevel)
	ctx := context.Background()

	assert.Nil(t, logger.EndBatch(ctx), "no batch in progress")

	logger.StartBatch(ctx, BatchOperation{Source: "/in", Destination: "/out", Items: 3})
	logger.LogMove(ctx, MoveOperation{Item: "a", Stage: "done", Status: store.MoveOK})
	logger.LogMove(ctx, MoveOperation{Item: "b", Stage: "done", Status: store.MoveOK})
	logger.LogMove(ctx, MoveOperation{Item: "c", Stage: "copy", Status: store.CopyFailed})

	moves := logger.EndBatch(ctx)
	require.Len(t, moves, 3)

	counts := Summarize(moves)
	assert.Equal(t, 2, counts[store.MoveOK])
	assert.Equal(t, 1, counts[store.CopyFailed])
	assert.Zero(t, counts[store.CopyOKDeletionFailed])
}
