// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"github.com/pkg/errors"
)

// Signature is the 4-byte magic that opens every RZX file.
const Signature = "RZX!"

// Format version written by this package.
const (
	VersionMajor byte = 0
	VersionMinor byte = 13
)

// Block ids.
const (
	// BlockCreator identifies the program that wrote the file.
	BlockCreator byte = 0x10

	// BlockSecurityInfo and BlockSecuritySignature are recognized ids whose
	// payloads are not interpreted by this package.
	BlockSecurityInfo      byte = 0x20
	BlockSecuritySignature byte = 0x21

	// BlockSnapshot holds an opaque machine-state blob.
	BlockSnapshot byte = 0x30

	// BlockRecord is an input recording block (IRB): a frame stream.
	BlockRecord byte = 0x80
)

// FlagCompressed marks a Snapshot or Record payload as zlib-compressed.
const FlagCompressed uint32 = 0x2

// SentinelRepeat is the input count that marks a frame as reusing the
// previous frame's inputs. Such a frame carries no inputs field of its own.
const SentinelRepeat uint16 = 0xFFFF

// Fixed wire sizes.
const (
	HeaderSize   = 10 // signature + major + minor + u32 flags
	EnvelopeSize = 5  // id + u32 size, size inclusive of the envelope

	creatorAuthorSize  = 20
	creatorPayloadSize = creatorAuthorSize + 4 // author + u16 major + u16 minor

	snapshotHeaderSize = 12 // u32 flags + 4-byte extension + u32 uncompressed size
	recordHeaderSize   = 13 // u32 frames + u8 reserved + u32 tstates + u32 flags
)

// Format errors. These are always fatal to the load or scan that produced
// them; a partially-decoded result is never returned alongside one.
var (
	// ErrBadSignature is returned when a file does not open with Signature.
	ErrBadSignature = errors.New("rzx: bad file signature")

	// ErrMalformedBlock is returned when a block envelope declares an
	// impossible size or a payload is shorter than its fixed header.
	ErrMalformedBlock = errors.New("rzx: malformed block")

	// ErrBadFrame is returned when a frame stream cannot be decoded, for
	// example when the first frame of a stream is a repeat sentinel.
	ErrBadFrame = errors.New("rzx: bad frame data")

	// ErrSizeMismatch is returned when a decompressed snapshot payload does
	// not match its declared uncompressed size.
	ErrSizeMismatch = errors.New("rzx: decompressed size mismatch")
)

// Header is the fixed file header. It is written once when a file is
// created and never revisited.
type Header struct {
	Major byte
	Minor byte
	Flags uint32
}

// Creator identifies the program that wrote a file.
type Creator struct {
	// Author is the writing program's name. On the wire it occupies a
	// fixed 20-byte NUL-padded field; longer names are truncated.
	Author string

	Major uint16
	Minor uint16
}

// Snapshot is a decoded machine-state snapshot.
//
// The snapshot bytes are opaque to this package; Extension tags the
// external format they are encoded in (for example "z80" or "szx").
type Snapshot struct {
	Flags     uint32
	Extension string
	Data      []byte
}

// Frame is one emulated frame's worth of recorded input, plus the number
// of instructions executed since the previous frame.
type Frame struct {
	InstructionCount uint16
	Inputs           []byte
}

// RecordHeader is the fixed header of an input recording block.
type RecordHeader struct {
	NumFrames      uint32
	TStatesAtStart uint32
	Flags          uint32
}

// Compressed reports whether the block's frame stream is zlib-compressed.
func (rh *RecordHeader) Compressed() bool { return rh.Flags&FlagCompressed != 0 }
