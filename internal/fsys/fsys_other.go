// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build !unix

package fsys

import (
	"os"
)

// Lock is a no-op on platforms without flock.
func Lock(f *os.File) error {
	return nil
}

func Unlock(f *os.File) error {
	return nil
}
