// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"bytes"
	"compress/zlib"
	"io"
	"io/ioutil"

	"github.com/danjacques/gorzx/support/byteslicereader"

	"github.com/pkg/errors"
)

// Compression selects how Snapshot and Record payloads are written.
type Compression int

// Compression values.
const (
	// CompressionNone writes raw payload bytes.
	CompressionNone Compression = iota

	// CompressionZlib writes zlib-deflated payload bytes and sets the
	// payload's compressed flag (FlagCompressed).
	CompressionZlib
)

var compressionNames = map[Compression]string{
	CompressionNone: "NONE",
	CompressionZlib: "ZLIB",
}

var compressionValues = map[string]Compression{
	"NONE": CompressionNone,
	"ZLIB": CompressionZlib,
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// PayloadFlags returns the Snapshot/Record flag bits implied by c.
func (c Compression) PayloadFlags() uint32 {
	if c == CompressionZlib {
		return FlagCompressed
	}
	return 0
}

// deflateAll compresses data in one shot, returning the compressed bytes.
//
// A negative level selects zlib's default compression level.
func deflateAll(data []byte, level int) ([]byte, error) {
	if level < 0 {
		level = zlib.DefaultCompression
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "creating zlib writer")
	}
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "compressing payload")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "finishing zlib stream")
	}
	return buf.Bytes(), nil
}

// inflateAll decompresses data in one shot and verifies that the result
// matches the declared uncompressed size.
func inflateAll(data []byte, uncompressedSize uint32) ([]byte, error) {
	zr, err := zlib.NewReader(&byteslicereader.R{Buffer: data})
	if err != nil {
		return nil, errors.Wrap(err, "creating zlib reader")
	}
	defer func() {
		_ = zr.Close()
	}()

	out, err := ioutil.ReadAll(io.LimitReader(zr, int64(uncompressedSize)+1))
	if err != nil {
		return nil, errors.Wrap(err, "decompressing payload")
	}
	if uint32(len(out)) != uncompressedSize {
		return nil, errors.Wrapf(ErrSizeMismatch, "got %d bytes, declared %d", len(out), uncompressedSize)
	}
	return out, nil
}
