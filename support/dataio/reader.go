// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package dataio

import (
	"io"
)

// Reader is a Reader that can read both individual bytes and sequences of
// bytes.
type Reader interface {
	io.Reader
	io.ByteReader
}

// MakeReader returns a Reader for r, wrapping it if it does not already
// support byte-level reads.
func MakeReader(r io.Reader) Reader {
	if dr, ok := r.(Reader); ok {
		return dr
	}
	return &simulatedReader{r}
}

type simulatedReader struct {
	io.Reader
}

func (r *simulatedReader) ReadByte() (v byte, err error) {
	var d [1]byte
	var amt int

	amt, err = r.Read(d[:])
	if amt == 1 {
		v = d[0]
	}
	return
}

// ReadFull reads from r until buf is full, or until an error is encountered.
//
// This accommodates the fact that io.Reader is allowed to return less than
// the full buffer size without erroring. Unlike io.ReadFull, a clean EOF on
// the final byte is not reported as an error.
func ReadFull(r io.Reader, buf []byte) error {
	for remaining := buf; len(remaining) > 0; {
		amt, err := r.Read(remaining)
		remaining = remaining[amt:]
		if err != nil {
			if err == io.EOF && len(remaining) == 0 {
				// Finished read and returned EOF.
				return nil
			}

			// Either did not finish read, or returned a non-EOF error.
			return err
		}
	}
	return nil
}
