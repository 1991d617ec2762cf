// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package container reads and writes record containers: append-only
// files holding a sequence of opaque byte records addressable by index.
//
// Three on-disk protocols exist.  Every file starts with a 24-byte
// header, optionally followed by extension bytes:
//
//	legacy: custom u64 | version u32 = 0 | reserved u32 × 3
//	sof:    "SOF\0" | ident [4]byte | version u32 = 1 | timestamp u64 | compressor u16 | extlen u16
//	icf:    "ICF\0" | ident [4]byte | version u16 = 0 | compressor u16 = 0 | timestamp u64 | reserved u16 | extlen u16
//
// Legacy files follow the header with one chunk per record:
//
//	┌────────────┬────────────┬──────────────────┐
//	│ length u32 │ crc32 u32  │ record bytes...  │
//	└────────────┴────────────┴──────────────────┘
//
// SOF and ICF files group records into bunches.  A bunch is written
// with a single write and ends with a trailer that points back at the
// previous trailer, so a reader finds every bunch by walking backward
// from the end of the file:
//
//	sof bunch                      icf bunch
//	┌───────────────────┐          ┌───────────────────┐
//	│ payload           │          │ payload           │
//	│ (maybe compressed)│          │                   │
//	├───────────────────┤          ├───────────────────┤
//	│ record sizes      │          │ trailer (44 B)    │
//	│ n × u32           │          ├───────────────────┤
//	├───────────────────┤          │ record sizes      │
//	│ trailer (34 B)    │          │ n × u32           │
//	└───────────────────┘          ├───────────────────┤
//	                               │ footer u32        │
//	                               └───────────────────┘
//
// Trailers record the distance back to the previous trailer (zero for
// the first bunch) and the distance from the start of the sub-file.
// Files of the same protocol can be concatenated byte-wise; each
// original file becomes a sub-file and its records follow those of the
// files before it.
//
// Bytes after the last complete bunch are an interrupted or in-progress
// write.  Readers ignore them and appenders truncate them.
package container
