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
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/datamover/pkg/status"
	"github.com/walteh/datamover/pkg/store"
)

// 🎨 Display configuration
const (
	itemIndent  = 4  // spaces to indent item entries
	nameWidth   = 35 // Base width for item name
	stageWidth  = 10 // Width for stage
	statusWidth = 25 // Width for move status text
)

// 🎯 MoveOperation represents the outcome of moving one item
type MoveOperation struct {
	Item     string           // Item name relative to the store root
	Stage    string           // Last stage reached (copy/mark/delete/done/skipped)
	Status   store.MoveStatus // Three-way move outcome
	Copy     status.Status    // Copy stage status, zero when the copy was skipped
	Err      error            // Marker or deletion error
	Duration time.Duration    // Time spent on the item
}

// Skipped reports whether the item was never attempted
func (op MoveOperation) Skipped() bool {
	return op.Stage == "skipped"
}

// Detail returns the most specific explanation of a failed move
func (op MoveOperation) Detail() string {
	switch {
	case op.Err != nil:
		return op.Err.Error()
	case op.Copy.Message != "":
		return op.Copy.Message
	default:
		return ""
	}
}

// 📦 BatchOperation represents a batch of moves between two stores
type BatchOperation struct {
	Source      string // Source store root
	Destination string // Destination store root
	Items       int    // Number of items in the batch
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog      zerolog.Logger
	console   io.Writer
	formatter status.Formatter
	mu        sync.Mutex
	currentOp *BatchOperation
	moves     []MoveOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:      zlog,
		console:   console,
		formatter: status.NewDefaultFormatter(),
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatMoveOperation formats a move for display
func (l *Logger) formatMoveOperation(op MoveOperation) string {
	var symbol string
	var symbolColor color.Attribute
	switch {
	case op.Status == store.MoveOK:
		symbol, symbolColor = "✓", color.FgGreen
	case op.Status == store.CopyOKDeletionFailed:
		symbol, symbolColor = "⟳", color.FgYellow
	case op.Skipped():
		symbol, symbolColor = "-", color.FgHiBlack
	case op.Copy.IsTerminated():
		symbol, symbolColor = "■", color.FgHiBlack
	default:
		symbol, symbolColor = "✗", color.FgRed
	}

	line := fmt.Sprintf("%s%s %s %s %s",
		strings.Repeat(" ", itemIndent),
		color.New(symbolColor).Sprint(symbol),
		fmt.Sprintf("%-*s", nameWidth, op.Item),
		color.New(color.FgCyan).Sprint(fmt.Sprintf("%-*s", stageWidth, op.Stage)),
		fmt.Sprintf("%-*s", statusWidth, op.Status.String()))
	if detail := op.Detail(); detail != "" && op.Status != store.MoveOK {
		line += " " + color.New(color.Faint).Sprint(detail)
	}
	return line
}

// 📝 LogMove logs the outcome of one move
func (l *Logger) LogMove(ctx context.Context, op MoveOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.moves = append(l.moves, op)

	fmt.Fprintln(l.console, l.formatMoveOperation(op))

	event := l.zlog.Info()
	if op.Status != store.MoveOK {
		event = l.zlog.Warn()
	}
	event.
		Str("item", op.Item).
		Str("stage", op.Stage).
		Str("move_status", op.Status.String()).
		Object("copy_status", op.Copy).
		AnErr("error", op.Err).
		Dur("duration", op.Duration).
		Msg("item moved")
}

// 📝 LogCopy logs the outcome of a copy that is not part of a move
func (l *Logger) LogCopy(ctx context.Context, name string, st status.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, status.FormatLine(name, "copy", st))
	l.zlog.Info().Str("item", name).Object("status", st).Msg(l.formatter.FormatStatus(name, st))
}

// 📝 Progress logs batch progress
func (l *Logger) Progress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console, color.New(color.Faint).Sprint(l.formatter.FormatProgress(current, total)))
}

// 📝 StartBatch starts a new batch operation
func (l *Logger) StartBatch(ctx context.Context, op BatchOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.moves = nil

	fmt.Fprintf(l.console, "[moving %s]\n",
		color.New(color.FgCyan).Sprint(op.Destination))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Source),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d items", op.Items))

	l.zlog.Info().
		Str("source", op.Source).
		Str("destination", op.Destination).
		Int("items", op.Items).
		Msg("starting batch")
}

// 📝 EndBatch ends the current batch operation and returns its moves
func (l *Logger) EndBatch(ctx context.Context) []MoveOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return nil
	}

	counts := Summarize(l.moves)
	l.zlog.Info().
		Str("source", l.currentOp.Source).
		Int("moved", counts[store.MoveOK]).
		Int("deletion_failed", counts[store.CopyOKDeletionFailed]).
		Int("copy_failed", counts[store.CopyFailed]).
		Msg("batch complete")

	moves := l.moves
	l.currentOp = nil
	l.moves = nil
	return moves
}

// Summarize counts moves per MoveStatus
func Summarize(moves []MoveOperation) map[store.MoveStatus]int {
	counts := map[store.MoveStatus]int{}
	for _, m := range moves {
		counts[m.Status]++
	}
	return counts
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("datamover")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
