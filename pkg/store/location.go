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

package store

import "strings"

// 📍 Location is a store root: a local directory or a directory on a remote host
type Location struct {
	Host string
	Path string
}

// Local creates a Location for a local directory
func Local(path string) Location {
	return Location{Path: path}
}

// Remote creates a Location for a directory on host
func Remote(host, path string) Location {
	return Location{Host: host, Path: path}
}

// ParseLocation parses "[host:]dir". A colon only separates a host when the part
// before it contains no path separator, so "./a:b" and "/x:y" stay local.
func ParseLocation(s string) Location {
	i := strings.Index(s, ":")
	if i <= 0 || strings.Contains(s[:i], "/") {
		return Local(s)
	}
	return Remote(s[:i], s[i+1:])
}

// IsRemote reports whether the location lives on another host
func (l Location) IsRemote() bool {
	return l.Host != ""
}

func (l Location) String() string {
	if l.IsRemote() {
		return l.Host + ":" + l.Path
	}
	return l.Path
}
