// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package session

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/danjacques/gorzx/rzx"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/pkg/errors"
)

// captureNotifier records every notification it receives.
type captureNotifier struct {
	creators   []rzx.Creator
	extensions []string
	snapshots  [][]byte
	records    []uint32
	restored   []uint32
	blobs      [][]byte
}

func (cn *captureNotifier) CreatorInfo(c rzx.Creator) { cn.creators = append(cn.creators, c) }

func (cn *captureNotifier) SnapshotLoaded(extension string, data []byte) {
	cn.extensions = append(cn.extensions, extension)
	cn.snapshots = append(cn.snapshots, data)
}

func (cn *captureNotifier) RecordStarted(tstates uint32) { cn.records = append(cn.records, tstates) }

func (cn *captureNotifier) BookmarkRestored(tstates uint32, snapshot []byte) {
	cn.restored = append(cn.restored, tstates)
	cn.blobs = append(cn.blobs, snapshot)
}

var _ = Describe("Session", func() {
	var (
		tdir     string
		path     string
		notifier *captureNotifier
	)

	BeforeEach(func() {
		var err error
		tdir, err = ioutil.TempDir("", "session_test")
		Expect(err).ToNot(HaveOccurred())
		path = filepath.Join(tdir, "session.rzx")
		notifier = &captureNotifier{}
	})

	AfterEach(func() {
		if tdir != "" {
			_ = os.RemoveAll(tdir)
			tdir = ""
		}
	})

	newSession := func(comp rzx.Compression) *Session {
		return New(Config{
			Compression: comp,
			Author:      "gorzx test",
			Notifier:    notifier,
		})
	}

	frameInputs := func(n int) [][]byte {
		inputs := make([][]byte, n)
		for i := range inputs {
			inputs[i] = []byte{byte(i), byte(i >> 8), 0x42}
		}
		return inputs
	}

	recordFrames := func(s *Session, inputs [][]byte, startTState uint32) {
		for i, in := range inputs {
			s.AddInstructions(uint16(10 + i))
			Expect(s.RecordFrame(in, startTState+uint32(i))).To(Succeed())
		}
	}

	DescribeTable("records and plays back a session", func(comp rzx.Compression) {
		start := rzx.Snapshot{Extension: "z80", Data: []byte("initial machine state")}
		inputs := frameInputs(40)

		s := newSession(comp)
		Expect(s.Record(path, &start)).To(Succeed())
		Expect(s.Mode()).To(Equal(ModeRecording))
		recordFrames(s, inputs, 1000)
		Expect(s.Close()).To(Succeed())
		Expect(s.Mode()).To(Equal(ModeIdle))

		// The file is independently loadable.
		f, err := rzx.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(f.Creator.Author).To(Equal("gorzx test"))
		Expect(f.SessionStart).ToNot(BeNil())
		Expect(f.SessionStart.Data).To(Equal(start.Data))
		Expect(f.TStatesAtStart).To(Equal(uint32(1000)))
		Expect(f.Frames).To(HaveLen(len(inputs)))
		for i, frame := range f.Frames {
			Expect(frame.InstructionCount).To(Equal(uint16(10 + i)))
			Expect(frame.Inputs).To(Equal(inputs[i]))
		}

		// Live playback decodes the same frames and delivers the snapshot.
		p := newSession(comp)
		Expect(p.Playback(path)).To(Succeed())
		Expect(p.Mode()).To(Equal(ModePlayback))

		Expect(notifier.creators).To(HaveLen(1))
		Expect(notifier.creators[0].Author).To(Equal("gorzx test"))
		Expect(notifier.extensions).To(Equal([]string{"z80"}))
		Expect(notifier.snapshots[0]).To(Equal(start.Data))
		Expect(notifier.records).To(Equal([]uint32{1000}))

		for i := range inputs {
			frame, err := p.AdvanceFrame()
			Expect(err).ToNot(HaveOccurred())
			Expect(frame.InstructionCount).To(Equal(uint16(10 + i)))
			Expect(frame.Inputs).To(Equal(inputs[i]))
		}

		// Exhaustion returns the session to Idle.
		_, err = p.AdvanceFrame()
		Expect(errors.Cause(err)).To(Equal(ErrExhausted))
		Expect(p.Mode()).To(Equal(ModeIdle))
	},
		Entry("NONE", rzx.CompressionNone),
		Entry("ZLIB", rzx.CompressionZlib),
	)

	Describe("sentinel encoding", func() {
		// With no start snapshot, the input recording block begins right
		// after the header and Creator block.
		const irbOffset = rzx.HeaderSize + rzx.EnvelopeSize + 24

		It("writes one literal frame and two sentinels for identical inputs", func() {
			inputs := []byte{0x01, 0x02, 0x03}

			s := newSession(rzx.CompressionNone)
			Expect(s.Record(path, nil)).To(Succeed())
			for i := 0; i < 3; i++ {
				Expect(s.RecordFrame(inputs, uint32(i))).To(Succeed())
			}
			Expect(s.Close()).To(Succeed())

			raw, err := ioutil.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())

			stream := raw[irbOffset+rzx.EnvelopeSize+13:]
			Expect(stream).To(Equal([]byte{
				0x00, 0x00, 0x03, 0x00, 0x01, 0x02, 0x03,
				0x00, 0x00, 0xFF, 0xFF,
				0x00, 0x00, 0xFF, 0xFF,
			}))

			// Decoding reproduces three frames with identical inputs.
			f, err := rzx.Load(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Frames).To(HaveLen(3))
			for _, frame := range f.Frames {
				Expect(frame.Inputs).To(Equal(inputs))
			}
		})

		It("backpatches the true size and frame count", func() {
			const numFrames = 30
			inputs := frameInputs(numFrames)

			s := newSession(rzx.CompressionZlib)
			Expect(s.Record(path, nil)).To(Succeed())
			recordFrames(s, inputs, 500)
			Expect(s.Close()).To(Succeed())

			raw, err := ioutil.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())

			// Re-read the envelope at the block's start offset.
			Expect(raw[irbOffset]).To(Equal(rzx.BlockRecord))
			size := binary.LittleEndian.Uint32(raw[irbOffset+1:])
			Expect(int(size)).To(Equal(len(raw) - irbOffset))

			frames := binary.LittleEndian.Uint32(raw[irbOffset+rzx.EnvelopeSize:])
			Expect(frames).To(Equal(uint32(numFrames)))
		})

		It("abandons a block that received no frames", func() {
			s := newSession(rzx.CompressionZlib)
			Expect(s.Record(path, nil)).To(Succeed())
			Expect(s.Close()).To(Succeed())

			raw, err := ioutil.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(raw).To(HaveLen(irbOffset))

			f, err := rzx.Load(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Frames).To(BeEmpty())
		})
	})

	Describe("bookmarks and rollback", func() {
		var s *Session
		start := rzx.Snapshot{Extension: "z80", Data: []byte("session start state")}

		BeforeEach(func() {
			s = newSession(rzx.CompressionZlib)
			Expect(s.Record(path, &start)).To(Succeed())
		})

		AfterEach(func() {
			_ = s.Close()
		})

		It("rejects rollback with no bookmarks", func() {
			Expect(errors.Cause(s.Rollback())).To(Equal(ErrNoBookmark))
		})

		It("restores the previous bookmark below the frame threshold", func() {
			recordFrames(s, frameInputs(30), 0)
			Expect(s.Bookmark("z80", []byte("state A"), 1000)).To(Succeed())

			recordFrames(s, frameInputs(30), 1000)
			Expect(s.Bookmark("z80", []byte("state B"), 2000)).To(Succeed())

			// Fewer than 25 frames since bookmark B: B is discarded and A is
			// restored instead.
			recordFrames(s, frameInputs(10), 2000)
			Expect(s.Rollback()).To(Succeed())

			Expect(notifier.restored).To(Equal([]uint32{1000}))
			Expect(notifier.blobs).To(Equal([][]byte{[]byte("state A")}))
			Expect(s.Bookmarks()).To(Equal(1))
		})

		It("restores the just-taken bookmark past the frame threshold", func() {
			recordFrames(s, frameInputs(30), 0)
			Expect(s.Bookmark("z80", []byte("state A"), 1000)).To(Succeed())

			recordFrames(s, frameInputs(30), 1000)
			Expect(s.Bookmark("z80", []byte("state B"), 2000)).To(Succeed())

			recordFrames(s, frameInputs(25), 2000)
			Expect(s.Rollback()).To(Succeed())

			Expect(notifier.restored).To(Equal([]uint32{2000}))
			Expect(notifier.blobs).To(Equal([][]byte{[]byte("state B")}))
			Expect(s.Bookmarks()).To(Equal(2))
		})

		It("keeps a lone bookmark even below the threshold", func() {
			recordFrames(s, frameInputs(30), 0)
			Expect(s.Bookmark("z80", []byte("only state"), 1000)).To(Succeed())

			recordFrames(s, frameInputs(5), 1000)
			Expect(s.Rollback()).To(Succeed())

			Expect(notifier.restored).To(Equal([]uint32{1000}))
			Expect(s.Bookmarks()).To(Equal(1))
		})

		It("truncates rolled-back history and resumes recording", func() {
			recordFrames(s, frameInputs(30), 0)
			Expect(s.Bookmark("szx", []byte("bookmark state"), 1000)).To(Succeed())

			// These frames are history to be discarded.
			recordFrames(s, frameInputs(40), 1000)
			Expect(s.Rollback()).To(Succeed())

			// Frames recorded after the rollback overwrite the stale tail.
			resumed := frameInputs(12)
			recordFrames(s, resumed, 1000)
			Expect(s.Close()).To(Succeed())

			f, err := rzx.Load(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Frames).To(HaveLen(30 + len(resumed)))
			for i, in := range resumed {
				Expect(f.Frames[30+i].Inputs).To(Equal(in))
			}

			// The continuation snapshot block survives the rollback.
			Expect(f.SessionStart.Data).To(Equal(start.Data))
			Expect(f.Continuation).ToNot(BeNil())
			Expect(f.Continuation.Data).To(Equal([]byte("bookmark state")))
		})

		It("produces a resumable session file", func() {
			recordFrames(s, frameInputs(30), 0)
			Expect(s.Bookmark("z80", []byte("bookmark state"), 1000)).To(Succeed())
			recordFrames(s, frameInputs(30), 1000)
			Expect(s.Close()).To(Succeed())

			ok, err := IsSessionFile(path, "gorzx")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			// A recording without bookmarks only holds one snapshot.
			other := filepath.Join(tdir, "plain.rzx")
			p := newSession(rzx.CompressionZlib)
			Expect(p.Record(other, &start)).To(Succeed())
			recordFrames(p, frameInputs(5), 0)
			Expect(p.Close()).To(Succeed())

			ok, err = IsSessionFile(other, "gorzx")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("API misuse", func() {
		It("rejects operations in the wrong state", func() {
			s := newSession(rzx.CompressionZlib)

			Expect(errors.Cause(s.RecordFrame([]byte{1}, 0))).To(Equal(ErrNotRecording))
			_, err := s.AdvanceFrame()
			Expect(errors.Cause(err)).To(Equal(ErrNotPlaying))
			Expect(errors.Cause(s.Bookmark("z80", nil, 0))).To(Equal(ErrNotRecording))
			Expect(errors.Cause(s.Rollback())).To(Equal(ErrNotRecording))

			Expect(s.Record(path, nil)).To(Succeed())
			defer func() {
				_ = s.Close()
			}()

			Expect(errors.Cause(s.Record(path, nil))).To(Equal(ErrSessionActive))
			Expect(errors.Cause(s.Playback(path))).To(Equal(ErrSessionActive))
		})

		It("fails playback of a file with a bad signature", func() {
			Expect(ioutil.WriteFile(path, []byte("not an rzx file"), 0644)).To(Succeed())

			s := newSession(rzx.CompressionZlib)
			Expect(errors.Cause(s.Playback(path))).To(Equal(rzx.ErrBadSignature))
			Expect(s.Mode()).To(Equal(ModeIdle))
		})

		It("fails playback of a file with no input blocks", func() {
			f := rzx.File{
				Creator:      rzx.Creator{Author: "gorzx test"},
				SessionStart: &rzx.Snapshot{Extension: "z80", Data: []byte("state")},
			}
			Expect(f.Save(path, rzx.CompressionZlib, -1)).To(Succeed())

			s := newSession(rzx.CompressionZlib)
			Expect(errors.Cause(s.Playback(path))).To(Equal(ErrExhausted))
			Expect(s.Mode()).To(Equal(ModeIdle))
		})
	})

	Describe("multi-block playback", func() {
		It("crosses block boundaries and notifies continuation snapshots", func() {
			first := frameInputs(30)
			second := frameInputs(8)

			s := newSession(rzx.CompressionZlib)
			Expect(s.Record(path, &rzx.Snapshot{Extension: "z80", Data: []byte("start")})).To(Succeed())
			recordFrames(s, first, 0)
			Expect(s.Bookmark("szx", []byte("midpoint"), 5000)).To(Succeed())
			recordFrames(s, second, 5000)
			Expect(s.Close()).To(Succeed())

			p := newSession(rzx.CompressionZlib)
			Expect(p.Playback(path)).To(Succeed())

			total := 0
			for {
				frame, err := p.AdvanceFrame()
				if err != nil {
					Expect(errors.Cause(err)).To(Equal(ErrExhausted))
					break
				}
				var want []byte
				if total < len(first) {
					want = first[total]
				} else {
					want = second[total-len(first)]
				}
				Expect(frame.Inputs).To(Equal(want))
				total++
			}
			Expect(total).To(Equal(len(first) + len(second)))

			// Both snapshots were surfaced, in file order.
			Expect(notifier.extensions).To(Equal([]string{"z80", "szx"}))
			Expect(notifier.snapshots[1]).To(Equal([]byte("midpoint")))
			Expect(notifier.records).To(Equal([]uint32{0, 5000}))
		})
	})
})

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing session")
}
