// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"bufio"
	"compress/zlib"
	"io"

	"github.com/danjacques/gorzx/support/dataio"

	"github.com/pkg/errors"
)

// streamBufferSize is the buffer used between a compression stream and its
// underlying file.
const streamBufferSize = 16 * 1024

// countingWriter counts the bytes that actually reach the underlying
// writer. The count is what a recording session backpatches into a block
// envelope, so it must sit below any compression or buffering.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	amt, err := cw.w.Write(p)
	cw.n += int64(amt)
	return amt, err
}

// Deflater pushes a byte stream onto an underlying writer, optionally
// through a persistent zlib stream.
//
// The zlib state survives across Write calls, so callers can feed
// arbitrary chunks - one encoded frame at a time, in practice - and the
// output forms a single continuous compressed stream. Finish must be
// called exactly once to drain pending compressed output before the
// surrounding block is closed.
type Deflater struct {
	cw       *countingWriter
	zw       *zlib.Writer // nil in raw mode
	out      io.Writer
	finished bool
}

// NewDeflater returns a Deflater writing to w, which must be positioned at
// the first payload byte. A negative level selects the default level.
func NewDeflater(w io.Writer, comp Compression, level int) (*Deflater, error) {
	d := Deflater{
		cw: &countingWriter{w: w},
	}
	d.out = d.cw

	if comp == CompressionZlib {
		if level < 0 {
			level = zlib.DefaultCompression
		}
		zw, err := zlib.NewWriterLevel(d.cw, level)
		if err != nil {
			return nil, errors.Wrap(err, "creating zlib writer")
		}
		d.zw = zw
		d.out = zw
	}
	return &d, nil
}

// Write pushes p into the stream. Completed output is flushed to the
// underlying writer as the compressor's internal buffer fills; bytes
// already flushed are never rolled back on error.
func (d *Deflater) Write(p []byte) (int, error) {
	if d.finished {
		return 0, errors.New("rzx: write after Finish")
	}
	return d.out.Write(p)
}

// Finish drains all remaining compressed output to the underlying writer.
// After Finish, BytesWritten reports the stream's final encoded length.
func (d *Deflater) Finish() error {
	if d.finished {
		return errors.New("rzx: Finish called twice")
	}
	d.finished = true

	if d.zw != nil {
		if err := d.zw.Close(); err != nil {
			return errors.Wrap(err, "finishing zlib stream")
		}
	}
	return nil
}

// BytesWritten returns the number of encoded bytes emitted to the
// underlying writer so far.
func (d *Deflater) BytesWritten() int64 { return d.cw.n }

// Inflater pulls decompressed bytes from an underlying reader, refilling
// its input buffer from the reader as it drains.
//
// The underlying reader is consumed with internal buffering, so its file
// position is unspecified while an Inflater is open; callers that need to
// continue past the compressed stream must seek to the following block by
// offset.
type Inflater struct {
	br *bufio.Reader
	zr io.ReadCloser // nil in raw mode
	in dataio.Reader
}

// NewInflater returns an Inflater reading from r, which must be positioned
// at the first payload byte.
func NewInflater(r io.Reader, comp Compression) (*Inflater, error) {
	i := Inflater{
		br: bufio.NewReaderSize(r, streamBufferSize),
	}
	i.in = i.br

	if comp == CompressionZlib {
		zr, err := zlib.NewReader(i.br)
		if err != nil {
			return nil, errors.Wrap(err, "creating zlib reader")
		}
		i.zr = zr
		i.in = dataio.MakeReader(zr)
	}
	return &i, nil
}

// Read implements io.Reader over the decompressed stream.
func (i *Inflater) Read(p []byte) (int, error) { return i.in.Read(p) }

// ReadByte implements io.ByteReader over the decompressed stream.
func (i *Inflater) ReadByte() (byte, error) { return i.in.ReadByte() }

// ReadFull fills buf from the decompressed stream, returning an error if
// the stream ends first.
func (i *Inflater) ReadFull(buf []byte) error {
	if err := dataio.ReadFull(i.in, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// Close releases the decompression state. The underlying reader is left
// open; it is not owned by the Inflater.
func (i *Inflater) Close() error {
	if i.zr == nil {
		return nil
	}
	err := i.zr.Close()
	i.zr = nil
	return err
}
