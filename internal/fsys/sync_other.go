// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build !linux

package fsys

import (
	"os"
)

// Datasync flushes f to stable storage.
func Datasync(f *os.File) error {
	return f.Sync()
}
