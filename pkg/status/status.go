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
)

// 📊 Flag classifies the outcome of an operation
type Flag int

const (
	OK             Flag = iota // Operation succeeded
	RetriableError             // Safe to retry the same operation unchanged
	FatalError                 // Needs operator intervention before a retry
	Terminated                 // Operation was cancelled on request
)

// String returns a string representation of Flag
func (f Flag) String() string {
	switch f {
	case OK:
		return "OK"
	case RetriableError:
		return "RETRIABLE_ERROR"
	case FatalError:
		return "FATAL_ERROR"
	case Terminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("Flag(%d)", int(f))
	}
}

// 📄 Status is the result of a copy or filesystem operation.
//
// The flag alone decides whether the producing operation may be retried as-is.
// Status is an immutable value and safe to share between goroutines.
type Status struct {
	Flag    Flag
	Message string
}

var (
	// Success is the Status returned by operations that completed
	Success = Status{Flag: OK}

	// TerminatedStatus is returned by an operation whose process was killed on request
	TerminatedStatus = Status{Flag: Terminated, Message: "Process was terminated."}
)

// 🏭 NewRetriableError creates a Status for a transient failure
func NewRetriableError(format string, args ...any) Status {
	return Status{Flag: RetriableError, Message: fmt.Sprintf(format, args...)}
}

// 🏭 NewFatalError creates a Status for a failure that will not resolve itself
func NewFatalError(format string, args ...any) Status {
	return Status{Flag: FatalError, Message: fmt.Sprintf(format, args...)}
}

// 🏭 NewError creates a retriable or fatal Status depending on retriable
func NewError(retriable bool, format string, args ...any) Status {
	if retriable {
		return NewRetriableError(format, args...)
	}
	return NewFatalError(format, args...)
}

// IsOK reports whether the operation succeeded
func (s Status) IsOK() bool {
	return s.Flag == OK
}

// IsRetriable reports whether the operation may be retried unchanged
func (s Status) IsRetriable() bool {
	return s.Flag == RetriableError
}

// IsTerminated reports whether the operation was cancelled on request
func (s Status) IsTerminated() bool {
	return s.Flag == Terminated
}

// String returns "FLAG" or "FLAG: message"
func (s Status) String() string {
	if s.Message == "" {
		return s.Flag.String()
	}
	return s.Flag.String() + ": " + s.Message
}
