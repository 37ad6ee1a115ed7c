// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package session

import (
	"os"

	"github.com/danjacques/gorzx/rzx"
	"github.com/danjacques/gorzx/support/logging"

	"github.com/pkg/errors"
)

// DefaultAuthor is the Creator author written when Config.Author is empty.
// It doubles as the session-file marker checked by IsSessionFile.
const DefaultAuthor = "gorzx"

// Session misuse errors. These are rejected at the API boundary with no
// side effects.
var (
	// ErrSessionActive is returned when Record or Playback is called on a
	// session that already has a file open.
	ErrSessionActive = errors.New("session: a file is already open")

	// ErrNotRecording is returned when a recording operation is invoked
	// outside of the Recording state.
	ErrNotRecording = errors.New("session: not recording")

	// ErrNotPlaying is returned when a playback operation is invoked outside
	// of the Playback state.
	ErrNotPlaying = errors.New("session: not playing")

	// ErrNoBookmark is returned by Rollback when no bookmark exists.
	ErrNoBookmark = errors.New("session: no bookmark to roll back to")

	// ErrExhausted is returned when playback reaches the end of the last
	// input recording block. The session transitions back to Idle.
	ErrExhausted = errors.New("session: no input blocks remain")
)

// Mode is a session's current state.
type Mode int

// Session states. Transitions are explicit API calls: Record moves Idle to
// Recording, Playback moves Idle to Playback, and Close (or playback
// exhaustion) returns to Idle.
const (
	ModeIdle Mode = iota
	ModeRecording
	ModePlayback
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "Idle"
	case ModeRecording:
		return "Recording"
	case ModePlayback:
		return "Playback"
	default:
		return "Unknown"
	}
}

// Notifier receives session notifications. All notifications are delivered
// synchronously, on the calling thread, during the operation that
// triggered them.
type Notifier interface {
	// CreatorInfo is delivered when a file's Creator metadata is discovered
	// during playback open.
	CreatorInfo(c rzx.Creator)

	// SnapshotLoaded is delivered when a Snapshot block is decoded during
	// playback. The receiver is expected to reload machine state from the
	// blob; the session does not interpret it.
	SnapshotLoaded(extension string, data []byte)

	// RecordStarted is delivered when playback enters an input recording
	// block.
	RecordStarted(tstates uint32)

	// BookmarkRestored is delivered by Rollback with the restored
	// bookmark's clock value and snapshot blob.
	BookmarkRestored(tstates uint32, snapshot []byte)
}

type nopNotifier struct{}

func (nopNotifier) CreatorInfo(c rzx.Creator)                     {}
func (nopNotifier) SnapshotLoaded(extension string, data []byte)  {}
func (nopNotifier) RecordStarted(tstates uint32)                  {}
func (nopNotifier) BookmarkRestored(tstates uint32, data []byte)  {}

// Config configures a Session.
type Config struct {
	// Compression selects how snapshot and frame payloads are written.
	Compression rzx.Compression
	// CompressionLevel is the zlib level to compress with. Zero selects the
	// default level.
	CompressionLevel int

	// Author and the version pair identify this program in the Creator
	// block of recorded files. An empty Author is replaced by
	// DefaultAuthor.
	Author       string
	VersionMajor uint16
	VersionMinor uint16

	// Notifier receives session notifications. If nil, notifications are
	// dropped.
	Notifier Notifier

	// Logger is the logger instance to use. If nil, no logging will be
	// performed.
	Logger logging.L
}

func (cfg *Config) author() string {
	if cfg.Author == "" {
		return DefaultAuthor
	}
	return cfg.Author
}

func (cfg *Config) level() int {
	if cfg.CompressionLevel == 0 {
		return -1
	}
	return cfg.CompressionLevel
}

// New creates an idle Session.
func New(cfg Config) *Session {
	s := Session{
		cfg:      cfg,
		logger:   logging.Must(cfg.Logger),
		notifier: cfg.Notifier,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	return &s
}

// Session is a live recording or playback session over a single file.
//
// A Session owns its file handle and compression context exclusively; both
// are released by Close, including on error paths.
type Session struct {
	cfg      Config
	logger   logging.L
	notifier Notifier

	mode Mode
	f    *os.File

	// Recording state.
	irbOpen    bool
	irbStart   int64 // file offset of the open block's envelope
	irbTStates uint32
	irbFrames  uint32
	defl       *rzx.Deflater

	// pendingInstructions accumulates AddInstructions calls until the next
	// recorded frame consumes them.
	pendingInstructions uint16

	// lastInputs is the previous frame's inputs within the open block, used
	// for the repeat-sentinel delta encoding. It is non-nil once a frame
	// has been written, and reset at every block boundary.
	lastInputs []byte

	// framesRecorded counts frames across the whole recording, for the
	// rollback anti-thrash threshold.
	framesRecorded uint64

	bookmarks []*bookmark

	// Playback state.
	remaining  uint32
	nextBlock  int64 // offset of the block after the open one
	infl       *rzx.Inflater
	prevInputs []byte // previous frame's inputs within the open block
	current    rzx.Frame
}

// Mode returns the session's current state.
func (s *Session) Mode() Mode { return s.mode }

// Frame returns the most recently decoded playback frame. It is valid
// after a successful AdvanceFrame and until the next one.
func (s *Session) Frame() rzx.Frame { return s.current }

// Close closes the session, finalizing any open input recording block and
// releasing the file handle and compression context.
//
// Close is safe to call on an Idle session. The file handle is released
// even if finalizing the open block fails.
func (s *Session) Close() error {
	var firstErr error

	if s.mode == ModeRecording {
		if err := s.closeCurrentBlock(); err != nil {
			firstErr = err
		}
	}

	if s.infl != nil {
		if err := s.infl.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "closing inflater")
		}
		s.infl = nil
	}

	if s.f != nil {
		if err := s.f.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "closing file")
		}
		s.f = nil
	}

	switch s.mode {
	case ModeRecording:
		recordingGauge.Dec()
	case ModePlayback:
		playbackGauge.Dec()
	}

	s.mode = ModeIdle
	s.defl = nil
	s.irbOpen = false
	s.lastInputs = nil
	s.prevInputs = nil
	s.pendingInstructions = 0
	s.framesRecorded = 0
	s.bookmarks = nil
	s.remaining = 0
	s.current = rzx.Frame{}
	return firstErr
}

// teardownPlayback releases playback resources and returns the session to
// Idle. Used when playback fails or exhausts its input blocks.
func (s *Session) teardownPlayback() {
	if s.infl != nil {
		_ = s.infl.Close()
		s.infl = nil
	}
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	if s.mode == ModePlayback {
		playbackGauge.Dec()
	}
	s.mode = ModeIdle
	s.remaining = 0
	s.prevInputs = nil
}

// IsSessionFile reports whether the file at path is a resumable session
// file written by this program (or by author, when non-empty): it must
// scan cleanly, its Creator author must contain the marker, and it must
// retain both a session-start and a continuation snapshot.
func IsSessionFile(path, author string) (bool, error) {
	if author == "" {
		author = DefaultAuthor
	}

	fd, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "opening %q", path)
	}
	defer func() {
		_ = fd.Close()
	}()

	sr, err := rzx.Scan(fd)
	if err != nil {
		return false, err
	}
	return sr.ValidSession(author), nil
}
