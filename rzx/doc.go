// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package rzx implements the RZX input-recording container format.
//
// An RZX file holds a deterministic input-replay log for an emulated
// machine: a sequence of per-frame input samples interleaved with full
// machine-state snapshots, enough to reconstruct execution exactly.
//
// The file is block-structured. A fixed 10-byte header (signature "RZX!",
// version, flags) is followed by a sequence of typed, self-delimiting
// blocks, each introduced by a 5-byte envelope (1 byte id, 4 byte size,
// size inclusive of the envelope). Unknown block ids are legal and are
// skipped using the size field alone. All multi-byte fields are
// little-endian.
//
// Three block types are interpreted here:
//
//	- Creator (0x10): identifies the program that wrote the file.
//	- Snapshot (0x30): an opaque machine-state blob plus a filename
//	  extension tag identifying its format. Snapshot contents are never
//	  interpreted by this package.
//	- Input recording (0x80): a frame stream. Each frame carries the
//	  number of instructions executed during the emulated frame and the
//	  input bytes sampled in it. A frame whose input count is 0xFFFF
//	  reuses the previous frame's inputs and carries no input bytes of
//	  its own; held or idle inputs are the common case, so this is the
//	  format's main space optimization.
//
// Snapshot and input recording payloads may be zlib-compressed (payload
// flags bit 0x2). The Deflater and Inflater types thread a persistent
// compression stream through incremental file reads and writes, which
// lets a recording session append frames to a compressed block one at a
// time and backpatch the block's envelope when it closes.
//
// Two read paths are offered. Parse and Load decode a whole file into a
// File value. Scan walks only the block envelopes (plus the Creator
// payload), which is enough to validate a file and position a reader
// without decoding any frame data.
package rzx
