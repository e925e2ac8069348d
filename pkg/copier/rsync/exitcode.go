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

package rsync

import (
	"fmt"

	"github.com/walteh/datamover/pkg/status"
)

var exitMessages = map[int]string{
	0:  "Success",
	1:  "Syntax or usage error",
	2:  "Protocol incompatibility",
	3:  "Errors selecting input/output files, dirs",
	4:  "Requested action not supported",
	5:  "Error starting client-server protocol",
	6:  "Daemon unable to append to log-file",
	10: "Error in socket I/O",
	11: "Error in file I/O",
	12: "Error in rsync protocol data stream",
	13: "Errors with program diagnostics",
	14: "Error in IPC code",
	20: "Received SIGUSR1 or SIGINT",
	21: "Some error returned by waitpid()",
	22: "Error allocating core memory buffers",
	23: "Partial transfer due to error",
	24: "Partial transfer due to vanished source files",
	25: "The --max-delete limit stopped deletions",
	30: "Timeout in data send/receive",
	35: "Timeout waiting for daemon connection",
}

// exit codes worth another attempt: transport, I/O and partial-transfer failures
var retriableExitCodes = map[int]bool{
	5:  true,
	10: true,
	11: true,
	12: true,
	23: true,
	24: true,
	30: true,
	35: true,
}

// Message returns rsync's documented meaning of an exit code
func Message(code int) string {
	if msg, ok := exitMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown rsync exit code %d", code)
}

// Translate maps an rsync exit code to a status flag
func Translate(code int) status.Flag {
	switch {
	case code == 0:
		return status.OK
	case retriableExitCodes[code]:
		return status.RetriableError
	default:
		return status.FatalError
	}
}

// 🔢 StatusFor builds the Status reported for an rsync exit code
func StatusFor(code int) status.Status {
	switch Translate(code) {
	case status.OK:
		return status.Success
	case status.RetriableError:
		return status.NewRetriableError("%s", Message(code))
	default:
		return status.NewFatalError("%s", Message(code))
	}
}
