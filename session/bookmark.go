// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package session

import (
	"io"

	"github.com/danjacques/gorzx/rzx"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// rollbackFrameThreshold is the minimum number of frames that must have
// been recorded past a bookmark for Rollback to target it. Below the
// threshold - roughly half a second of emulated frames at 50 frames per
// second - the bookmark was taken essentially at the rollback point, and
// restoring it would thrash; the previous bookmark is restored instead.
const rollbackFrameThreshold = 25

// bookmark is a recording checkpoint: a machine-state snapshot paired with
// the clock value and file offset at which recording resumed after it.
//
// Snapshot blobs are full machine states and a session can accumulate many
// bookmarks, so the retained copy is snappy-compressed.
type bookmark struct {
	extension  string
	compressed []byte
	tstates    uint32

	// resumeOffset is the file offset immediately after the bookmark's
	// continuation snapshot block; Rollback rewinds the write position
	// here.
	resumeOffset int64

	// frames is the session frame counter when the bookmark was taken.
	frames uint64
}

func (b *bookmark) snapshot() ([]byte, error) {
	data, err := snappy.Decode(nil, b.compressed)
	return data, errors.Wrap(err, "decoding bookmark snapshot")
}

// Bookmark takes a recording checkpoint.
//
// The open input recording block is closed and backpatched, a continuation
// Snapshot block holding snapshot is appended to the file, and recording
// resumes with a fresh lazily-opened block after it. The snapshot bytes
// are opaque; extension tags their external format.
//
// Bookmarks exist only during recording and are cleared on Close.
func (s *Session) Bookmark(extension string, snapshot []byte, tstates uint32) error {
	if s.mode != ModeRecording {
		return errors.Wrapf(ErrNotRecording, "session is %s", s.mode)
	}

	if err := s.closeCurrentBlock(); err != nil {
		return err
	}

	snap := rzx.Snapshot{Extension: extension, Data: snapshot}
	if err := rzx.WriteSnapshotBlock(s.f, &snap, s.cfg.Compression, s.cfg.level()); err != nil {
		return err
	}

	off, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "finding resume offset")
	}

	s.bookmarks = append(s.bookmarks, &bookmark{
		extension:    extension,
		compressed:   snappy.Encode(nil, snapshot),
		tstates:      tstates,
		resumeOffset: off,
		frames:       s.framesRecorded,
	})
	bookmarksTaken.Inc()

	s.logger.Debugf("Bookmark #%d at offset %d (tstates=%d).", len(s.bookmarks), off, tstates)
	return nil
}

// Rollback reverts the recording to a bookmark.
//
// If fewer than rollbackFrameThreshold frames have been recorded since the
// most recent bookmark, that bookmark is discarded and the previous one
// (when one exists) is restored instead. The file's write position is
// rewound to the restored bookmark's resume offset and the stale tail is
// truncated, so the next recording tick starts a fresh block there.
//
// The bookmark's clock value and snapshot blob are delivered through the
// Notifier; the caller is expected to reload machine state externally.
func (s *Session) Rollback() error {
	if s.mode != ModeRecording {
		return errors.Wrapf(ErrNotRecording, "session is %s", s.mode)
	}
	if len(s.bookmarks) == 0 {
		return ErrNoBookmark
	}

	if err := s.closeCurrentBlock(); err != nil {
		return err
	}

	active := s.bookmarks[len(s.bookmarks)-1]
	if s.framesRecorded-active.frames < rollbackFrameThreshold && len(s.bookmarks) > 1 {
		// The active bookmark was taken a moment ago; restoring it would
		// thrash. Drop it and revert to the one before.
		s.bookmarks = s.bookmarks[:len(s.bookmarks)-1]
		active = s.bookmarks[len(s.bookmarks)-1]
	}

	snapshot, err := active.snapshot()
	if err != nil {
		return err
	}

	if _, err := s.f.Seek(active.resumeOffset, io.SeekStart); err != nil {
		return errors.Wrap(err, "rewinding to bookmark")
	}
	if err := s.f.Truncate(active.resumeOffset); err != nil {
		return errors.Wrap(err, "truncating rolled-back recording")
	}

	s.framesRecorded = active.frames
	s.lastInputs = nil
	rollbacks.Inc()

	s.notifier.BookmarkRestored(active.tstates, snapshot)

	s.logger.Infof("Rolled back to bookmark #%d (tstates=%d).", len(s.bookmarks), active.tstates)
	return nil
}

// DiscardBookmarks clears all bookmarks and the buffered previous-inputs
// delta state. The open file is not touched.
func (s *Session) DiscardBookmarks() {
	s.bookmarks = nil
	s.lastInputs = nil
}

// Bookmarks returns the number of bookmarks currently held.
func (s *Session) Bookmarks() int { return len(s.bookmarks) }
