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

// Package marker names and manages the sentinel files that make multi-step
// transfers look atomic to readers of a store.
//
// A "copy finished" marker is created only after the data of its item is fully
// written; its presence is the sole signal a reader may rely on. A "deletion in
// progress" marker flags an item whose removal has started but not completed.
// The two kinds use disjoint prefixes and never collide.
package marker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/walteh/datamover/pkg/store"
)

const (
	// CopyFinishedPrefix starts the name of every "copy finished" marker
	CopyFinishedPrefix = ".MARKER_is_finished_"
	// DeletionInProgressPrefix starts the name of every "deletion in progress" marker
	DeletionInProgressPrefix = ".MARKER_is_deletion_in_progress_"
	// RequiresDeletionBeforeCreationName flags a store whose entries must be cleared
	// before a new entry of the same name is created
	RequiresDeletionBeforeCreationName = ".MARKER_requires_deletion_before_creation"
)

// 🏷️ CopyFinishedName returns the name of the "copy finished" marker for name.
// Only the base name is prefixed, so markers of nested items live next to them.
func CopyFinishedName(name string) string {
	return prefixed(CopyFinishedPrefix, name)
}

// IsCopyFinished reports whether name is a "copy finished" marker
func IsCopyFinished(name string) bool {
	return strings.HasPrefix(filepath.Base(name), CopyFinishedPrefix)
}

// OriginalFromCopyFinished returns the item name a "copy finished" marker refers to.
// It panics if markerName is not such a marker.
func OriginalFromCopyFinished(markerName string) string {
	if !IsCopyFinished(markerName) {
		panic(fmt.Sprintf("marker: %q is not a copy finished marker", markerName))
	}
	return unprefixed(CopyFinishedPrefix, markerName)
}

// 🏷️ DeletionInProgressName returns the name of the "deletion in progress" marker for name
func DeletionInProgressName(name string) string {
	return prefixed(DeletionInProgressPrefix, name)
}

// IsDeletionInProgress reports whether name is a "deletion in progress" marker
func IsDeletionInProgress(name string) bool {
	return strings.HasPrefix(filepath.Base(name), DeletionInProgressPrefix)
}

// OriginalFromDeletionInProgress returns the item name a "deletion in progress" marker
// refers to. It panics if markerName is not such a marker.
func OriginalFromDeletionInProgress(markerName string) string {
	if !IsDeletionInProgress(markerName) {
		panic(fmt.Sprintf("marker: %q is not a deletion in progress marker", markerName))
	}
	return unprefixed(DeletionInProgressPrefix, markerName)
}

// RequiresDeletionBeforeCreation returns the store-level sentinel item
func RequiresDeletionBeforeCreation() store.Item {
	return store.NewItem(RequiresDeletionBeforeCreationName)
}

// IsMarker reports whether name is any kind of marker
func IsMarker(name string) bool {
	base := filepath.Base(name)
	return IsCopyFinished(base) || IsDeletionInProgress(base) || base == RequiresDeletionBeforeCreationName
}

func prefixed(prefix, name string) string {
	dir, base := filepath.Split(name)
	return dir + prefix + base
}

func unprefixed(prefix, name string) string {
	dir, base := filepath.Split(name)
	return dir + strings.TrimPrefix(base, prefix)
}
