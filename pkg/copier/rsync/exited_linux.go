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

//go:build linux

package rsync

import (
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// exitedUnreaped reports whether pid has already exited but was not yet reaped by
// Wait. The zombie is left in place for Wait to collect.
func exitedUnreaped(pid int) bool {
	var info unix.Siginfo
	err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOHANG|unix.WNOWAIT, nil)
	if errors.Is(err, unix.ECHILD) {
		// already reaped
		return true
	}
	if err != nil {
		return false
	}
	// with WNOHANG and nothing to report, the kernel leaves info zeroed
	return info.Signo == int32(unix.SIGCHLD)
}
