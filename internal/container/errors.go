// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"errors"
	"fmt"

	"github.com/bpowers/icf/internal/fsys"
)

var (
	// ErrFormat means the file isn't a container we recognize.
	ErrFormat = errors.New("not an icf container or header corrupted")
	// ErrProtocolMismatch means the file uses a protocol version or
	// feature this library can't handle.
	ErrProtocolMismatch = errors.New("unsupported container protocol")
	ErrOutOfRange       = errors.New("record index out of range")
	// ErrCorruption is wrapped by every *CorruptionError.
	ErrCorruption = errors.New("container corrupted")
	ErrReadOnly   = errors.New("container opened read-only")
	ErrClosed     = errors.New("container closed")
	ErrLocked     = fsys.ErrLocked
	ErrTooLarge   = errors.New("record or bunch too large")
)

// CorruptionError reports on-disk data that fails validation at a known
// file offset.
type CorruptionError struct {
	Offset int64
	Msg    string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("offset %d: %s: %s", e.Offset, e.Msg, ErrCorruption)
}

func (e *CorruptionError) Unwrap() error {
	return ErrCorruption
}

func corruptf(off int64, format string, args ...any) error {
	return &CorruptionError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}
