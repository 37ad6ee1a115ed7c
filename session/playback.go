// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package session

import (
	"io"
	"os"

	"github.com/danjacques/gorzx/rzx"
	"github.com/danjacques/gorzx/support/dataio"

	"github.com/pkg/errors"
)

// Playback opens path for reading and transitions the session from Idle to
// Playback.
//
// The file's signature is verified and its block structure scanned before
// anything is decoded; a bad signature or scan failure is returned with no
// session state retained. The session then locates the first input block,
// delivering CreatorInfo and SnapshotLoaded notifications for the metadata
// and snapshots it passes over. Playback fails if the file holds no input
// recording block.
func (s *Session) Playback(path string) error {
	if s.mode != ModeIdle {
		return errors.Wrapf(ErrSessionActive, "session is %s", s.mode)
	}

	fd, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %q", path)
	}

	sr, err := rzx.Scan(fd)
	if err != nil {
		_ = fd.Close()
		return err
	}

	// Scan left the file positioned at the first block.
	s.f = fd
	if sr.Creator != nil {
		s.notifier.CreatorInfo(*sr.Creator)
	}

	if err := s.locateNextInputBlock(); err != nil {
		s.f = nil
		_ = fd.Close()
		if errors.Cause(err) == io.EOF {
			err = errors.Wrapf(ErrExhausted, "%q has no input recording block", path)
		}
		return err
	}

	s.mode = ModePlayback
	playbackGauge.Inc()

	s.logger.Infof("Playing back %q (%d blocks).", path, len(sr.Blocks))
	return nil
}

// AdvanceFrame decodes the next playback frame and exposes it to the
// caller for input polling.
//
// When the open input recording block is exhausted, the session moves to
// the next one, delivering a SnapshotLoaded notification for any snapshot
// encountered on the way. When no input block remains, the session closes
// its file, returns to Idle, and reports ErrExhausted.
func (s *Session) AdvanceFrame() (rzx.Frame, error) {
	if s.mode != ModePlayback {
		return rzx.Frame{}, errors.Wrapf(ErrNotPlaying, "session is %s", s.mode)
	}

	for s.remaining == 0 {
		if err := s.nextInputBlock(); err != nil {
			s.teardownPlayback()
			if errors.Cause(err) == io.EOF {
				err = ErrExhausted
			}
			return rzx.Frame{}, err
		}
	}

	frame, err := rzx.DecodeFrame(s.frameReader(), s.prevInputs)
	if err != nil {
		playerErrors.Inc()
		return rzx.Frame{}, err
	}

	s.remaining--
	s.prevInputs = frame.Inputs
	if s.prevInputs == nil {
		s.prevInputs = []byte{}
	}
	s.current = frame
	playedFrames.Inc()
	return frame, nil
}

// Remaining returns the number of frames left in the open input recording
// block.
func (s *Session) Remaining() uint32 { return s.remaining }

// nextInputBlock releases the exhausted block's decompression state, seeks
// past it, and locates the following input block.
func (s *Session) nextInputBlock() error {
	if s.infl != nil {
		if err := s.infl.Close(); err != nil {
			return errors.Wrap(err, "closing inflater")
		}
		s.infl = nil
	}

	// The inflater reads ahead of the frame stream, so the file position is
	// unspecified here; the next block lives at a known offset.
	if _, err := s.f.Seek(s.nextBlock, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking to next block")
	}
	return s.locateNextInputBlock()
}

// locateNextInputBlock walks blocks from the current file position until
// it enters an input recording block.
//
// Snapshot blocks on the way are decoded (respecting their compression
// flag) and delivered to the Notifier; unknown blocks are skipped by
// seeking past their payload. Reaching end of file without finding an
// input block returns io.EOF.
func (s *Session) locateNextInputBlock() error {
	for {
		off, err := s.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.Wrap(err, "finding block offset")
		}

		id, size, err := rzx.ReadEnvelope(s.f)
		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			return err
		}
		next := off + int64(size)

		switch id {
		case rzx.BlockSnapshot:
			payload := make([]byte, size-rzx.EnvelopeSize)
			if err := dataio.ReadFull(s.f, payload); err != nil {
				return errors.Wrap(rzx.ErrMalformedBlock, "snapshot payload truncated")
			}
			snap, err := rzx.DecodeSnapshot(payload)
			if err != nil {
				return err
			}
			s.notifier.SnapshotLoaded(snap.Extension, snap.Data)

		case rzx.BlockRecord:
			rh, err := rzx.ReadRecordHeader(s.f)
			if err != nil {
				return err
			}

			comp := rzx.CompressionNone
			if rh.Compressed() {
				comp = rzx.CompressionZlib
			}
			infl, err := rzx.NewInflater(s.f, comp)
			if err != nil {
				return err
			}

			s.infl = infl
			s.remaining = rh.NumFrames
			s.nextBlock = next
			s.prevInputs = nil
			s.notifier.RecordStarted(rh.TStatesAtStart)
			return nil

		default:
			// Unknown (or uninterpreted) block; skip it by size.
			if _, err := s.f.Seek(next, io.SeekStart); err != nil {
				return errors.Wrap(err, "skipping block")
			}
		}
	}
}

// frameReader returns the reader positioned at the next encoded frame.
func (s *Session) frameReader() io.Reader { return s.infl }
