// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fsys

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Datasync flushes f's data (but not necessarily its metadata) to stable storage.
func Datasync(f *os.File) error {
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return fmt.Errorf("fdatasync(%s): %w", f.Name(), err)
	}
	return nil
}
