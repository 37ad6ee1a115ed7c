// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"os"

	"github.com/danjacques/gorzx/support/byteslicereader"
	"github.com/danjacques/gorzx/support/dataio"

	"github.com/pkg/errors"
)

// File is a fully-decoded recording.
//
// At most two snapshots are retained: the session-start snapshot and the
// most recent continuation snapshot. A file containing further Snapshot
// blocks keeps only the latest one in the continuation slot.
type File struct {
	Header  Header
	Creator Creator

	// SessionStart is the first Snapshot block in the file, or nil.
	SessionStart *Snapshot
	// Continuation is the most recent later Snapshot block, or nil.
	Continuation *Snapshot

	// TStatesAtStart is the starting clock value of the first input
	// recording block.
	TStatesAtStart uint32

	// Frames is the accumulated frame list of all input recording blocks,
	// in file order. Repeat sentinels are resolved during decoding; every
	// Frame here carries its full inputs.
	Frames []Frame

	sawRecord bool
}

// Load reads and decodes the file at path.
func Load(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return Parse(data)
}

// Parse decodes a whole in-memory file.
//
// Any decode failure aborts the parse; a partially-decoded File is never
// returned. Blocks with unrecognized ids are skipped using their size
// field and leave no residue in the result.
func Parse(data []byte) (*File, error) {
	r := byteslicereader.R{Buffer: data}

	hdr, err := ReadFileHeader(&r)
	if err != nil {
		return nil, err
	}
	f := File{Header: hdr}

	for {
		id, size, err := ReadEnvelope(&r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		payload, err := r.Next(int(size) - EnvelopeSize)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedBlock, "block 0x%02x payload truncated", id)
		}

		switch id {
		case BlockCreator:
			if f.Creator, err = decodeCreator(payload); err != nil {
				return nil, err
			}

		case BlockSnapshot:
			snap, err := DecodeSnapshot(payload)
			if err != nil {
				return nil, err
			}
			f.addSnapshot(snap)

		case BlockRecord:
			if err := f.decodeRecordPayload(payload); err != nil {
				return nil, err
			}

		default:
			// Unknown block; size alone was enough to skip it.
		}
	}

	return &f, nil
}

// addSnapshot stores snap in the session-start slot if it is empty, and in
// the continuation slot otherwise. The continuation slot is overwritten by
// each later snapshot.
func (f *File) addSnapshot(snap *Snapshot) {
	if f.SessionStart == nil {
		f.SessionStart = snap
		return
	}
	f.Continuation = snap
}

// decodeRecordPayload decodes one input recording block's entire frame
// stream, appending its frames to f.
func (f *File) decodeRecordPayload(payload []byte) error {
	if len(payload) < recordHeaderSize {
		return errors.Wrapf(ErrMalformedBlock, "record payload is %d bytes", len(payload))
	}

	rh, err := ReadRecordHeader(bytes.NewReader(payload[:recordHeaderSize]))
	if err != nil {
		return err
	}
	if !f.sawRecord {
		f.TStatesAtStart = rh.TStatesAtStart
		f.sawRecord = true
	}

	stream := &byteslicereader.R{Buffer: payload[recordHeaderSize:], AlwaysCopy: true}

	var in io.Reader = stream
	if rh.Compressed() {
		infl, err := NewInflater(stream, CompressionZlib)
		if err != nil {
			return err
		}
		defer func() {
			_ = infl.Close()
		}()
		in = infl
	}
	in = dataio.MakeReader(in)

	// A repeat sentinel refers to the previous frame of the same stream;
	// it is never resolved across block boundaries.
	var prev []byte
	for i := uint32(0); i < rh.NumFrames; i++ {
		frame, err := DecodeFrame(in, prev)
		if err != nil {
			return errors.Wrapf(err, "decoding frame %d of %d", i, rh.NumFrames)
		}
		prev = frame.Inputs
		if prev == nil {
			prev = []byte{}
		}
		f.Frames = append(f.Frames, frame)
	}
	return nil
}

// Save serializes f to a new file at path.
//
// Retained snapshot slots are written highest-index first, so the
// continuation snapshot precedes the session-start snapshot when both
// exist. The accumulated frame list is compressed as one continuous stream
// into a single record block. All block sizes are computed from the actual
// serialized payload lengths.
func (f *File) Save(path string, comp Compression, level int) (err error) {
	fd, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %q", path)
	}
	defer func() {
		closeErr := fd.Close()
		if err == nil {
			err = closeErr
		}
	}()

	bw := bufio.NewWriterSize(fd, streamBufferSize)
	if err := f.writeTo(bw, comp, level); err != nil {
		return err
	}
	return errors.Wrap(bw.Flush(), "flushing output")
}

func (f *File) writeTo(w io.Writer, comp Compression, level int) error {
	hdr := f.Header
	if hdr.Major == 0 && hdr.Minor == 0 {
		hdr.Major, hdr.Minor = VersionMajor, VersionMinor
	}
	if err := WriteFileHeader(w, hdr); err != nil {
		return err
	}
	if err := WriteCreatorBlock(w, f.Creator); err != nil {
		return err
	}

	for _, snap := range []*Snapshot{f.Continuation, f.SessionStart} {
		if snap == nil {
			continue
		}
		if err := WriteSnapshotBlock(w, snap, comp, level); err != nil {
			return err
		}
	}

	if len(f.Frames) == 0 {
		return nil
	}

	// Encode every frame literally; the sentinel optimization belongs to
	// live recording, and resolved frames round-trip either way.
	var stream bytes.Buffer
	for _, frame := range f.Frames {
		if _, err := EncodeFrame(&stream, frame.InstructionCount, frame.Inputs, nil); err != nil {
			return err
		}
	}

	data := stream.Bytes()
	if comp == CompressionZlib {
		var err error
		if data, err = deflateAll(data, level); err != nil {
			return err
		}
	}

	rh := RecordHeader{
		NumFrames:      uint32(len(f.Frames)),
		TStatesAtStart: f.TStatesAtStart,
		Flags:          comp.PayloadFlags(),
	}
	if err := WriteRecordBlockHeader(w, RecordBlockSize(int64(len(data))), rh); err != nil {
		return err
	}
	_, err := w.Write(data)
	return errors.Wrap(err, "writing frame stream")
}
