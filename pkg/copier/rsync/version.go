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
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`version\s+v?(\d+)\.(\d+)\.(\d+)(\S*)`)

// Version is a parsed rsync version
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// ParseVersionLine parses the first line of `rsync --version`, e.g.
// "rsync  version 3.2.7  protocol version 31"
func ParseVersionLine(line string) (Version, bool) {
	m := versionPattern.FindStringSubmatch(line)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch, Suffix: m[4]}, true
}

// AtLeast reports whether v is major.minor.patch or newer
func (v Version) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// IsPreRelease reports whether the version carries a pre-release suffix such as "pre1"
func (v Version) IsPreRelease() bool {
	return strings.Contains(strings.ToLower(v.Suffix), "pre")
}

// SupportsAppend reports whether --append is available (2.6.7 and newer)
func (v Version) SupportsAppend() bool {
	return v.AtLeast(2, 6, 7)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Suffix)
}
