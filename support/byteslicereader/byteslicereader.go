// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package byteslicereader offers R, a slice-backed reader with zero-copy
// options.
//
// Standard io.Reader methods require that data be copied into a target
// buffer. The zero-copy option, Next, returns data as slices of R's
// underlying buffer instead. Holding a reference into the underlying buffer
// means that the buffer must persist as long as that reference is valid.
//
// R allows APIs that want to be zero-copy conditionally to set an AlwaysCopy
// flag. If set, R's zero-copy operations return copies of the underlying
// buffer, decoupling them from their base state.
package byteslicereader

import (
	"io"

	"github.com/pkg/errors"
)

// R is an io.Reader-inspired type that can return sections of its backing
// byte slice, instead of filling a supplied byte slice.
//
// R can be copied, creating a snapshot of its current state.
type R struct {
	// Buffer is the backing buffer for this reader.
	Buffer []byte

	// AlwaysCopy, if true, causes zero-copy methods to return copies of their
	// backing data instead of direct references.
	AlwaysCopy bool

	// pos is the reader's position within Buffer.
	pos int64
}

var _ interface {
	io.Reader
	io.ByteReader
	io.Seeker
} = (*R)(nil)

func (r *R) remainingSlice() []byte {
	if r.pos >= int64(len(r.Buffer)) {
		return nil
	}
	return r.Buffer[r.pos:]
}

// Remaining returns the number of bytes remaining in the reader, from the
// current position.
func (r *R) Remaining() int { return len(r.remainingSlice()) }

// Offset returns the reader's current position within its buffer.
func (r *R) Offset() int64 { return r.pos }

// Read implements io.Reader.
//
// Note that Read causes data to be copied.
func (r *R) Read(b []byte) (amt int, err error) {
	remaining := r.remainingSlice()
	amt = copy(b, remaining)

	r.pos += int64(amt)
	if r.pos >= int64(len(r.Buffer)) {
		err = io.EOF
	}
	return
}

// ReadByte implements io.ByteReader.
func (r *R) ReadByte() (b byte, err error) {
	if r.pos >= int64(len(r.Buffer)) {
		return 0, io.EOF
	}

	b, r.pos = r.Buffer[r.pos], r.pos+1
	return
}

// Next returns the next count bytes as a slice of the underlying buffer,
// advancing the reader past them.
//
// If fewer than count bytes remain, Next returns what remains alongside
// io.ErrUnexpectedEOF.
//
// The returned slice aliases the underlying buffer unless AlwaysCopy is set.
func (r *R) Next(count int) ([]byte, error) {
	remaining := r.remainingSlice()

	var err error
	if count > len(remaining) {
		count, err = len(remaining), io.ErrUnexpectedEOF
	}

	b := remaining[:count:count]
	r.pos += int64(count)

	if r.AlwaysCopy {
		clone := make([]byte, len(b))
		copy(clone, b)
		b = clone
	}
	return b, err
}

// Skip advances the reader past count bytes without returning them.
func (r *R) Skip(count int) error {
	if count > r.Remaining() {
		r.pos = int64(len(r.Buffer))
		return io.ErrUnexpectedEOF
	}
	r.pos += int64(count)
	return nil
}

// Seek implements io.Seeker.
//
// Seeking past the end of the buffer is legal; subsequent reads will return
// io.EOF. Seeking before the start of the buffer is an error.
func (r *R) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = int64(len(r.Buffer)) + offset
	default:
		return 0, errors.Errorf("unknown whence value %d", whence)
	}

	if newPos < 0 {
		return 0, errors.Errorf("seek position %d is before start of buffer", newPos)
	}
	r.pos = newPos
	return r.pos, nil
}
