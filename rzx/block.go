// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"bytes"
	"io"

	"github.com/danjacques/gorzx/support/dataio"

	"github.com/pkg/errors"
)

// WriteFileHeader writes the fixed 10-byte file header.
func WriteFileHeader(w io.Writer, h Header) error {
	var d [HeaderSize]byte
	copy(d[:4], Signature)
	d[4] = h.Major
	d[5] = h.Minor
	dataio.PutU32(d[6:], h.Flags)

	_, err := w.Write(d[:])
	return errors.Wrap(err, "writing file header")
}

// ReadFileHeader reads and verifies the fixed 10-byte file header.
func ReadFileHeader(r io.Reader) (Header, error) {
	var d [HeaderSize]byte
	if err := dataio.ReadFull(r, d[:]); err != nil {
		return Header{}, errors.Wrap(err, "reading file header")
	}
	if string(d[:4]) != Signature {
		return Header{}, ErrBadSignature
	}

	return Header{
		Major: d[4],
		Minor: d[5],
		Flags: dataio.U32(d[6:]),
	}, nil
}

// WriteEnvelope writes a block envelope. size is inclusive of the envelope
// itself.
func WriteEnvelope(w io.Writer, id byte, size uint32) error {
	var d [EnvelopeSize]byte
	d[0] = id
	dataio.PutU32(d[1:], size)

	_, err := w.Write(d[:])
	return errors.Wrapf(err, "writing envelope for block 0x%02x", id)
}

// ReadEnvelope reads a block envelope. io.EOF is returned untouched when
// the reader is exhausted exactly at a block boundary, so callers can
// detect a clean end of file.
func ReadEnvelope(r io.Reader) (id byte, size uint32, err error) {
	var d [EnvelopeSize]byte
	if err = dataio.ReadFull(r, d[:]); err != nil {
		if err == io.EOF {
			return 0, 0, io.EOF
		}
		return 0, 0, errors.Wrap(err, "reading block envelope")
	}

	id, size = d[0], dataio.U32(d[1:])
	if size < EnvelopeSize {
		return 0, 0, errors.Wrapf(ErrMalformedBlock, "block 0x%02x declares size %d", id, size)
	}
	return id, size, nil
}

// WriteCreatorBlock writes a Creator block. The author is NUL-padded to its
// fixed 20-byte field and truncated if longer.
func WriteCreatorBlock(w io.Writer, c Creator) error {
	if err := WriteEnvelope(w, BlockCreator, EnvelopeSize+creatorPayloadSize); err != nil {
		return err
	}

	var author [creatorAuthorSize]byte
	copy(author[:], c.Author)
	if _, err := w.Write(author[:]); err != nil {
		return errors.Wrap(err, "writing creator author")
	}
	if err := dataio.WriteU16(w, c.Major); err != nil {
		return errors.Wrap(err, "writing creator version")
	}
	return errors.Wrap(dataio.WriteU16(w, c.Minor), "writing creator version")
}

// decodeCreator decodes a Creator block payload. Custom data past the fixed
// fields is ignored.
func decodeCreator(payload []byte) (Creator, error) {
	if len(payload) < creatorPayloadSize {
		return Creator{}, errors.Wrapf(ErrMalformedBlock, "creator payload is %d bytes", len(payload))
	}

	author := payload[:creatorAuthorSize]
	if i := bytes.IndexByte(author, 0); i >= 0 {
		author = author[:i]
	}
	return Creator{
		Author: string(author),
		Major:  dataio.U16(payload[creatorAuthorSize:]),
		Minor:  dataio.U16(payload[creatorAuthorSize+2:]),
	}, nil
}

// WriteSnapshotBlock writes a Snapshot block containing snap's bytes,
// compressed per comp. The block size is computed from the actual encoded
// payload length.
func WriteSnapshotBlock(w io.Writer, snap *Snapshot, comp Compression, level int) error {
	data := snap.Data
	if comp == CompressionZlib {
		var err error
		if data, err = deflateAll(snap.Data, level); err != nil {
			return err
		}
	}

	size := uint32(EnvelopeSize + snapshotHeaderSize + len(data))
	if err := WriteEnvelope(w, BlockSnapshot, size); err != nil {
		return err
	}

	var hdr [snapshotHeaderSize]byte
	dataio.PutU32(hdr[0:], snap.Flags&^FlagCompressed|comp.PayloadFlags())
	copy(hdr[4:8], snap.Extension)
	dataio.PutU32(hdr[8:], uint32(len(snap.Data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "writing snapshot header")
	}

	_, err := w.Write(data)
	return errors.Wrap(err, "writing snapshot data")
}

// DecodeSnapshot decodes a Snapshot block payload, decompressing it when
// its compressed flag is set. The decompressed length must match the
// payload's declared uncompressed size.
func DecodeSnapshot(payload []byte) (*Snapshot, error) {
	if len(payload) < snapshotHeaderSize {
		return nil, errors.Wrapf(ErrMalformedBlock, "snapshot payload is %d bytes", len(payload))
	}

	snap := Snapshot{
		Flags:     dataio.U32(payload),
		Extension: string(bytes.TrimRight(payload[4:8], "\x00")),
	}
	uncompressedSize := dataio.U32(payload[8:])
	data := payload[snapshotHeaderSize:]

	if snap.Flags&FlagCompressed != 0 {
		var err error
		if data, err = inflateAll(data, uncompressedSize); err != nil {
			return nil, err
		}
	} else {
		if uint32(len(data)) != uncompressedSize {
			return nil, errors.Wrapf(ErrSizeMismatch, "got %d raw bytes, declared %d", len(data), uncompressedSize)
		}
		// Decouple from the parse buffer.
		data = append([]byte(nil), data...)
	}

	snap.Data = data
	return &snap, nil
}

// WriteRecordBlockHeader writes an input recording block's envelope and
// fixed header.
//
// A recording session first writes a provisional header with a zero size
// and frame count, then seeks back and rewrites it with the true values
// when the block closes. The provisional form is deliberately invalid (its
// size is below the envelope minimum), so a file whose recording was
// interrupted before backpatching cannot be mistaken for a complete one.
func WriteRecordBlockHeader(w io.Writer, size uint32, rh RecordHeader) error {
	var d [EnvelopeSize + recordHeaderSize]byte
	d[0] = BlockRecord
	dataio.PutU32(d[1:], size)
	dataio.PutU32(d[5:], rh.NumFrames)
	d[9] = 0 // reserved
	dataio.PutU32(d[10:], rh.TStatesAtStart)
	dataio.PutU32(d[14:], rh.Flags)

	_, err := w.Write(d[:])
	return errors.Wrap(err, "writing record block header")
}

// ReadRecordHeader reads an input recording block's fixed header. The
// block envelope must already have been consumed.
func ReadRecordHeader(r io.Reader) (RecordHeader, error) {
	var d [recordHeaderSize]byte
	if err := dataio.ReadFull(r, d[:]); err != nil {
		return RecordHeader{}, errors.Wrap(err, "reading record header")
	}

	return RecordHeader{
		NumFrames:      dataio.U32(d[0:]),
		TStatesAtStart: dataio.U32(d[5:]),
		Flags:          dataio.U32(d[9:]),
	}, nil
}

// RecordBlockSize returns the total on-disk size of a record block whose
// encoded frame stream occupies streamBytes.
func RecordBlockSize(streamBytes int64) uint32 {
	return uint32(int64(EnvelopeSize+recordHeaderSize) + streamBytes)
}
