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

package status

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	lineIndent  = 4  // spaces to indent entries
	nameWidth   = 35 // Base width for item name
	stageWidth  = 10 // Width for stage
	statusWidth = 15 // Width for status text
)

// 🎯 FormatLine formats the status of one item for console display
func FormatLine(name, stage string, s Status) string {
	var prefix string
	switch s.Flag {
	case OK:
		prefix = color.GreenString("✓")
	case RetriableError:
		prefix = color.YellowString("⟳")
	case Terminated:
		prefix = color.HiBlackString("■")
	default:
		prefix = color.RedString("✗")
	}

	line := fmt.Sprintf("%s%s %s %s %s",
		strings.Repeat(" ", lineIndent),
		prefix,
		fmt.Sprintf("%-*s", nameWidth, name),
		fmt.Sprintf("%-*s", stageWidth, stage),
		fmt.Sprintf("%-*s", statusWidth, s.Flag.String()),
	)
	if s.Message != "" {
		line += " " + color.New(color.Faint).Sprint(s.Message)
	}
	return line
}

// MarshalZerologObject adds the status fields to a log event
func (s Status) MarshalZerologObject(e *zerolog.Event) {
	e.Str("flag", s.Flag.String())
	if s.Message != "" {
		e.Str("message", s.Message)
	}
}
