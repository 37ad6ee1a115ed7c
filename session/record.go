// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package session

import (
	"io"
	"os"

	"github.com/danjacques/gorzx/rzx"

	"github.com/pkg/errors"
)

// Record opens path for writing and transitions the session from Idle to
// Recording.
//
// The file header and Creator block are written immediately and never
// revisited. When startSnapshot is not nil it is written as the
// session-start Snapshot block, so the resulting file can be played back
// from a known machine state; its bytes are opaque to the session.
//
// On failure the created file is removed and the session stays Idle.
func (s *Session) Record(path string, startSnapshot *rzx.Snapshot) error {
	if s.mode != ModeIdle {
		return errors.Wrapf(ErrSessionActive, "session is %s", s.mode)
	}

	fd, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %q", path)
	}

	err = func() error {
		hdr := rzx.Header{Major: rzx.VersionMajor, Minor: rzx.VersionMinor}
		if err := rzx.WriteFileHeader(fd, hdr); err != nil {
			return err
		}

		creator := rzx.Creator{
			Author: s.cfg.author(),
			Major:  s.cfg.VersionMajor,
			Minor:  s.cfg.VersionMinor,
		}
		if err := rzx.WriteCreatorBlock(fd, creator); err != nil {
			return err
		}

		if startSnapshot != nil {
			if err := rzx.WriteSnapshotBlock(fd, startSnapshot, s.cfg.Compression, s.cfg.level()); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		_ = fd.Close()
		_ = os.Remove(path)
		return err
	}

	s.f = fd
	s.mode = ModeRecording
	s.framesRecorded = 0
	recordingGauge.Inc()

	s.logger.Infof("Recording to %q.", path)
	return nil
}

// AddInstructions adds to the instruction counter that the next recorded
// frame will carry. The emulated machine drives this side channel as it
// executes; RecordFrame consumes and resets the counter.
func (s *Session) AddInstructions(n uint16) { s.pendingInstructions += n }

// RecordFrame records one emulated frame's sampled inputs.
//
// If no input recording block is open, one is opened lazily at the current
// file position with a provisional header; the header is backpatched with
// the true frame count and size when the block closes. When inputs is
// identical to the previous frame's, the frame is written as a repeat
// sentinel carrying no input bytes.
//
// A failed tick leaves the file valid up to the last closed block; the
// caller is expected to Close the session.
func (s *Session) RecordFrame(inputs []byte, tstates uint32) error {
	if s.mode != ModeRecording {
		return errors.Wrapf(ErrNotRecording, "session is %s", s.mode)
	}

	if !s.irbOpen {
		if err := s.openRecordBlock(tstates); err != nil {
			recorderErrors.WithLabelValues("open").Inc()
			return err
		}
	}

	instructions := s.pendingInstructions
	s.pendingInstructions = 0

	sentinel, err := rzx.EncodeFrame(s.defl, instructions, inputs, s.lastInputs)
	if err != nil {
		recorderErrors.WithLabelValues("encode").Inc()
		return err
	}

	if !sentinel {
		s.lastInputs = append(s.lastInputs[:0], inputs...)
		if s.lastInputs == nil {
			s.lastInputs = []byte{}
		}
	}

	s.irbFrames++
	s.framesRecorded++
	recordedFrames.Inc()
	if sentinel {
		sentinelFrames.Inc()
	}
	return nil
}

// openRecordBlock begins a new input recording block at the current file
// position, remembering the envelope offset for the close-time backpatch.
func (s *Session) openRecordBlock(tstates uint32) error {
	off, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "finding block offset")
	}

	rh := rzx.RecordHeader{
		TStatesAtStart: tstates,
		Flags:          s.cfg.Compression.PayloadFlags(),
	}
	if err := rzx.WriteRecordBlockHeader(s.f, 0, rh); err != nil {
		return err
	}

	defl, err := rzx.NewDeflater(s.f, s.cfg.Compression, s.cfg.level())
	if err != nil {
		return err
	}

	s.defl = defl
	s.irbOpen = true
	s.irbStart = off
	s.irbTStates = tstates
	s.irbFrames = 0
	s.lastInputs = nil

	s.logger.Debugf("Opened input recording block at offset %d (tstates=%d).", off, tstates)
	return nil
}

// closeCurrentBlock finalizes the open input recording block: it drains
// the compression stream, then seeks back to the block's envelope and
// rewrites it with the true frame count and byte size. A block that never
// received a frame is abandoned instead; the file is rewound and truncated
// to the block's start offset.
func (s *Session) closeCurrentBlock() error {
	if !s.irbOpen {
		return nil
	}
	s.irbOpen = false
	s.lastInputs = nil

	defl := s.defl
	s.defl = nil
	if err := defl.Finish(); err != nil {
		recorderErrors.WithLabelValues("finish").Inc()
		return err
	}

	if s.irbFrames == 0 {
		if _, err := s.f.Seek(s.irbStart, io.SeekStart); err != nil {
			return errors.Wrap(err, "rewinding abandoned block")
		}
		return errors.Wrap(s.f.Truncate(s.irbStart), "truncating abandoned block")
	}

	end, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "finding block end")
	}

	if _, err := s.f.Seek(s.irbStart, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking to block envelope")
	}
	rh := rzx.RecordHeader{
		NumFrames:      s.irbFrames,
		TStatesAtStart: s.irbTStates,
		Flags:          s.cfg.Compression.PayloadFlags(),
	}
	if err := rzx.WriteRecordBlockHeader(s.f, uint32(end-s.irbStart), rh); err != nil {
		return err
	}
	if _, err := s.f.Seek(end, io.SeekStart); err != nil {
		return errors.Wrap(err, "resuming at block end")
	}

	s.logger.Debugf("Closed input recording block: %d frames, %d bytes.", s.irbFrames, end-s.irbStart)
	return nil
}
