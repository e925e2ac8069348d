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

import (
	"context"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrInvalidName means an item name is empty, absolute or escapes the store root
var ErrInvalidName = errors.New("invalid item name")

// 📦 Item identifies an entry (file or directory) by its name relative to a store root.
//
// Item is a lookup key only and never holds a file handle.
type Item struct {
	name string
}

// 🏭 NewItem creates an Item from a name relative to a store root
func NewItem(name string) Item {
	return Item{name: filepath.Clean(name)}
}

// 🔍 ParseItem creates an Item from an untrusted name and rejects names that do not
// resolve strictly below a store root
func ParseItem(name string) (Item, error) {
	item := NewItem(name)
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Validate reports ErrInvalidName when the item does not resolve strictly below a
// store root
func (i Item) Validate() error {
	switch {
	case i.IsZero():
		return errors.Errorf("%w: empty name", ErrInvalidName)
	case filepath.IsAbs(i.name):
		return errors.Errorf("%w: %q is absolute", ErrInvalidName, i.name)
	case i.name == ".." || strings.HasPrefix(i.name, ".."+string(filepath.Separator)):
		return errors.Errorf("%w: %q escapes the store root", ErrInvalidName, i.name)
	}
	return nil
}

// Name returns the relative name of the item
func (i Item) Name() string {
	return i.name
}

// String returns the relative name of the item
func (i Item) String() string {
	return i.name
}

// IsZero reports whether the item has no name
func (i Item) IsZero() bool {
	return i.name == "" || i.name == "."
}

// PathIn resolves the item below the given store root
func (i Item) PathIn(root string) string {
	return filepath.Join(root, i.name)
}

// Compare orders items by name
func (i Item) Compare(other Item) int {
	return strings.Compare(i.name, other.name)
}

// 🚦 MoveStatus is the outcome of moving one item. It cannot be reduced to a
// success flag: the value selects which stage a caller must retry.
type MoveStatus int

const (
	// CopyFailed means the destination holds no valid copy and the source is untouched.
	// Retrying the whole move is safe.
	CopyFailed MoveStatus = iota
	// CopyOKDeletionFailed means the destination holds a complete copy but the source
	// is still present. Only the deletion may be retried; never copy again.
	CopyOKDeletionFailed
	// MoveOK means the source is gone and the destination is complete.
	MoveOK
)

// String returns a string representation of MoveStatus
func (s MoveStatus) String() string {
	switch s {
	case CopyFailed:
		return "COPY_FAILED"
	case CopyOKDeletionFailed:
		return "COPY_OK_DELETION_FAILED"
	case MoveOK:
		return "MOVE_OK"
	default:
		return "UNKNOWN"
	}
}

// 🚚 Mover moves store items from one store to another
type Mover interface {
	// Move copies the item to the destination store, marks it complete and removes the source
	Move(ctx context.Context, item Item) MoveStatus
	// IsStopped reports whether the mover was asked to stop; callers check it between items
	IsStopped() bool
}

// 🤝 Handler handles store items and only reports success or failure
type Handler interface {
	Handle(ctx context.Context, item Item) bool
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, item Item) bool

// Handle calls f(ctx, item)
func (f HandlerFunc) Handle(ctx context.Context, item Item) bool {
	return f(ctx, item)
}

// AsHandler exposes a Mover as a Handler. Anything other than MoveOK is a failure.
func AsHandler(m Mover) Handler {
	return HandlerFunc(func(ctx context.Context, item Item) bool {
		return m.Move(ctx, item) == MoveOK
	})
}
