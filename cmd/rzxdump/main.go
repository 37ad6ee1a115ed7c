// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Command rzxdump prints the block structure and decoded contents of RZX
// recording files.
package main

import (
	"fmt"
	"os"

	"github.com/danjacques/gorzx/rzx"
	"github.com/danjacques/gorzx/session"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var blockNames = map[byte]string{
	rzx.BlockCreator:           "Creator",
	rzx.BlockSecurityInfo:      "SecurityInfo",
	rzx.BlockSecuritySignature: "SecuritySignature",
	rzx.BlockSnapshot:          "Snapshot",
	rzx.BlockRecord:            "InputRecording",
}

var (
	scanOnly = pflag.Bool("scan-only", false,
		"Only scan block envelopes; do not decode payloads.")
	sessionMarker = pflag.String("session-marker", session.DefaultAuthor,
		"Creator marker used to report whether a file is a resumable session file.")
	rewrite = pflag.String("rewrite", "",
		"Rewrite the decoded file to this path (single input only).")
	play = pflag.Bool("play", false,
		"Play each file through the live session engine and report the frame count.")

	compression = rzx.CompressionFlag(rzx.CompressionZlib)
)

func main() {
	pflag.Var(&compression, "compression",
		fmt.Sprintf("Compression for -rewrite output. Options: %s.", rzx.CompressionFlagValues()))
	pflag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger := zl.Sugar()

	paths := pflag.Args()
	if len(paths) == 0 {
		logger.Error("Usage: rzxdump [flags] <file.rzx>...")
		os.Exit(2)
	}
	if *rewrite != "" && len(paths) != 1 {
		logger.Error("-rewrite accepts exactly one input file.")
		os.Exit(2)
	}

	failed := false
	for _, path := range paths {
		if err := dump(logger, path); err != nil {
			logger.Errorf("Failed to dump %q: %s", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func dump(logger *zap.SugaredLogger, path string) error {
	fd, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = fd.Close()
	}()

	sr, err := rzx.Scan(fd)
	if err != nil {
		return err
	}

	fmt.Printf("%s: version %d.%d, flags 0x%08x\n", path, sr.Header.Major, sr.Header.Minor, sr.Header.Flags)
	if c := sr.Creator; c != nil {
		fmt.Printf("  creator: %q v%d.%d\n", c.Author, c.Major, c.Minor)
	}
	for _, b := range sr.Blocks {
		name, ok := blockNames[b.ID]
		if !ok {
			name = "Unknown"
		}
		fmt.Printf("  %8d  0x%02x %-17s %d bytes\n", b.Offset, b.ID, name, b.Size)
	}
	fmt.Printf("  session file: %v\n", sr.ValidSession(*sessionMarker))

	if *scanOnly {
		return nil
	}

	f, err := rzx.Load(path)
	if err != nil {
		return err
	}

	for _, snap := range []struct {
		name string
		s    *rzx.Snapshot
	}{
		{"session-start", f.SessionStart},
		{"continuation", f.Continuation},
	} {
		if snap.s == nil {
			continue
		}
		fmt.Printf("  %s snapshot: .%s, %d bytes\n", snap.name, snap.s.Extension, len(snap.s.Data))
	}

	inputBytes := 0
	for _, frame := range f.Frames {
		inputBytes += len(frame.Inputs)
	}
	fmt.Printf("  frames: %d (%d input bytes), tstates at start: %d\n",
		len(f.Frames), inputBytes, f.TStatesAtStart)

	if *rewrite != "" {
		if err := f.Save(*rewrite, compression.Value(), -1); err != nil {
			return err
		}
		logger.Infof("Rewrote %q to %q (%s).", path, *rewrite, compression.Value())
	}

	if *play {
		if err := playFile(logger, path); err != nil {
			return err
		}
	}
	return nil
}

// playFile runs path through the live playback engine, decoding every frame
// the way an attached emulator would.
func playFile(logger *zap.SugaredLogger, path string) error {
	s := session.New(session.Config{Logger: logger})
	if err := s.Playback(path); err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	frames := 0
	for {
		if _, err := s.AdvanceFrame(); err != nil {
			if errors.Cause(err) == session.ErrExhausted {
				break
			}
			return err
		}
		frames++
	}
	fmt.Printf("  played: %d frames\n", frames)
	return nil
}
