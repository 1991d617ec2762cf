// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package fsys wraps the few OS-specific file operations the container
// writers need: an advisory single-writer lock and a data-only sync.
package fsys

import (
	"errors"
)

// ErrLocked is returned when another writer holds the lock on a file.
var ErrLocked = errors.New("file is locked by another writer")
