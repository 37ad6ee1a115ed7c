// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package dataio

import (
	"encoding/binary"
	"io"
)

// ReadU16 reads a little-endian 16-bit value from r.
func ReadU16(r io.Reader) (uint16, error) {
	var d [2]byte
	if err := ReadFull(r, d[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d[:]), nil
}

// ReadU32 reads a little-endian 32-bit value from r.
func ReadU32(r io.Reader) (uint32, error) {
	var d [4]byte
	if err := ReadFull(r, d[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d[:]), nil
}

// WriteU16 writes a little-endian 16-bit value to w.
func WriteU16(w io.Writer, v uint16) error {
	var d [2]byte
	binary.LittleEndian.PutUint16(d[:], v)
	_, err := w.Write(d[:])
	return err
}

// WriteU32 writes a little-endian 32-bit value to w.
func WriteU32(w io.Writer, v uint32) error {
	var d [4]byte
	binary.LittleEndian.PutUint32(d[:], v)
	_, err := w.Write(d[:])
	return err
}

// PutU32 encodes a little-endian 32-bit value into b.
//
// b must be at least 4 bytes long.
func PutU32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// U16 decodes a little-endian 16-bit value from b.
func U16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// U32 decodes a little-endian 32-bit value from b.
func U32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
