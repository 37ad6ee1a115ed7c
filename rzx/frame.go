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

// EncodeFrame writes one frame to w.
//
// prev is the previous frame's inputs within the same stream, or nil if no
// frame has been written yet. When inputs matches prev in both length and
// contents, the frame is written as a repeat sentinel with no inputs field;
// this is the format's delta encoding, and the returned boolean reports
// whether it was applied.
//
// A previous frame with zero inputs must be passed as an empty non-nil
// slice so that it remains distinguishable from "no previous frame".
func EncodeFrame(w io.Writer, instructionCount uint16, inputs, prev []byte) (sentinel bool, err error) {
	if len(inputs) >= int(SentinelRepeat) {
		return false, errors.Wrapf(ErrBadFrame, "%d input bytes cannot be encoded", len(inputs))
	}

	sentinel = prev != nil && bytes.Equal(inputs, prev)

	if err := dataio.WriteU16(w, instructionCount); err != nil {
		return false, errors.Wrap(err, "writing instruction count")
	}

	if sentinel {
		err := dataio.WriteU16(w, SentinelRepeat)
		return true, errors.Wrap(err, "writing input count")
	}

	if err := dataio.WriteU16(w, uint16(len(inputs))); err != nil {
		return false, errors.Wrap(err, "writing input count")
	}
	if len(inputs) > 0 {
		if _, err := w.Write(inputs); err != nil {
			return false, errors.Wrap(err, "writing inputs")
		}
	}
	return false, nil
}

// DecodeFrame reads one frame from r.
//
// prev is the inputs of the previous frame decoded from the same stream,
// or nil if this is the stream's first frame. A repeat sentinel resolves to
// prev; the returned frame shares prev's backing bytes in that case. A
// sentinel with no previous frame is a decode failure.
func DecodeFrame(r io.Reader, prev []byte) (Frame, error) {
	instructionCount, err := dataio.ReadU16(r)
	if err != nil {
		return Frame{}, errors.Wrap(err, "reading instruction count")
	}
	inputCount, err := dataio.ReadU16(r)
	if err != nil {
		return Frame{}, errors.Wrap(err, "reading input count")
	}

	f := Frame{InstructionCount: instructionCount}

	if inputCount == SentinelRepeat {
		if prev == nil {
			return Frame{}, errors.Wrap(ErrBadFrame, "repeat sentinel with no previous frame")
		}
		f.Inputs = prev
		return f, nil
	}

	f.Inputs = make([]byte, inputCount)
	if err := dataio.ReadFull(r, f.Inputs); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, errors.Wrap(err, "reading inputs")
	}
	return f, nil
}
