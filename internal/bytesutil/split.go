// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package bytesutil has small allocation-free helpers for parsing
// frame directories.
package bytesutil

import (
	"bytes"
)

// Split3 slices s around the first two instances of sep.  ok is false
// when s holds fewer than two separators; the third field keeps any
// further separators.
//
// Split3 returns slices of the original slice s, not copies.
func Split3(s []byte, sep byte) (a, b, c []byte, ok bool) {
	a, rest, found := bytes.Cut(s, []byte{sep})
	if !found {
		return s, nil, nil, false
	}
	b, c, found = bytes.Cut(rest, []byte{sep})
	if !found {
		return s, nil, nil, false
	}
	return a, b, c, true
}

// Lines calls fn for each '\n' terminated line in s, stopping at the
// first false return.  A final unterminated line is passed too.
func Lines(s []byte, fn func(line []byte) bool) {
	for len(s) > 0 {
		line, rest, _ := bytes.Cut(s, []byte{'\n'})
		if !fn(line) {
			return
		}
		s = rest
	}
}
