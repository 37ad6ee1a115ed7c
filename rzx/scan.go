// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"io"
	"strings"

	"github.com/danjacques/gorzx/support/dataio"

	"github.com/pkg/errors"
)

// ScannedBlock is one block envelope observed by Scan.
type ScannedBlock struct {
	// ID is the block's type id.
	ID byte
	// Offset is the file offset of the block's envelope.
	Offset int64
	// Size is the block's envelope-inclusive size.
	Size uint32
}

// ScanResult is the outcome of a positional scan.
type ScanResult struct {
	Header Header

	// Creator is the decoded Creator payload, or nil if the file carries no
	// Creator block.
	Creator *Creator

	// Blocks lists every block envelope seen, in file order.
	Blocks []ScannedBlock

	// SnapshotCount is the number of Snapshot blocks seen.
	SnapshotCount int
}

// Scan walks the block structure of r without decoding any payload except
// the Creator's.
//
// On success, r is left positioned immediately after the file header, ready
// for a playback session to locate its first input block. Blocks that
// extend past the end of the file terminate the scan at the last complete
// block; a recording interrupted mid-block is still scannable up to that
// point.
func Scan(r io.ReadSeeker) (*ScanResult, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking to file start")
	}

	hdr, err := ReadFileHeader(r)
	if err != nil {
		return nil, err
	}
	sr := ScanResult{Header: hdr}

	offset := int64(HeaderSize)
	for {
		id, size, err := ReadEnvelope(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if id == BlockCreator {
			payload := make([]byte, size-EnvelopeSize)
			if err := dataio.ReadFull(r, payload); err != nil {
				return nil, errors.Wrap(ErrMalformedBlock, "creator payload truncated")
			}
			creator, err := decodeCreator(payload)
			if err != nil {
				return nil, err
			}
			sr.Creator = &creator
		} else {
			// Skip the payload; the size field alone delimits it.
			if _, err := r.Seek(offset+int64(size), io.SeekStart); err != nil {
				return nil, errors.Wrap(err, "seeking past block payload")
			}
		}

		if id == BlockSnapshot {
			sr.SnapshotCount++
		}

		sr.Blocks = append(sr.Blocks, ScannedBlock{ID: id, Offset: offset, Size: size})
		offset += int64(size)
	}

	// Rewind to the first block for the caller.
	if _, err := r.Seek(HeaderSize, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "rewinding past header")
	}
	return &sr, nil
}

// ValidSession reports whether the scanned file is a resumable session
// file: its Creator author must contain marker, and it must retain both a
// session-start and a continuation snapshot.
func (sr *ScanResult) ValidSession(marker string) bool {
	if sr.Creator == nil || !strings.Contains(sr.Creator.Author, marker) {
		return false
	}
	return sr.SnapshotCount >= 2
}
