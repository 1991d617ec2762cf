// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zero provides functions to zero slices of specific types.
package zero

// Slice sets every element of s to its zero value, keeping len and cap.
func Slice[T any](s []T) {
	var zero T
	for i := range s {
		s[i] = zero
	}
}

// ByteSlices drops the references held by b so flushed records can be
// collected while the backing array is reused.
func ByteSlices(b [][]byte) {
	Slice(b)
}
