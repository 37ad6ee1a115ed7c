// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package session records and plays back RZX input logs one frame at a
// time.
//
// A Session owns exactly one file and at most one compression context. It
// is driven synchronously by an emulated machine's frame loop: during
// recording, the driver calls RecordFrame once per emulated frame with the
// inputs it sampled; during playback, it calls AdvanceFrame once per frame
// and polls inputs from the returned frame. Every operation runs to
// completion on the calling thread; a Session is not safe for concurrent
// use.
//
// Recording writes the file incrementally. An input recording block is
// opened lazily on the first frame after a block boundary, with a
// provisional header; when the block closes - on Bookmark, Rollback or
// Close - the session seeks back and backpatches the true frame count and
// byte size. A provisional header is never readable as a valid block, so
// an interrupted recording leaves the file truncated but parseable up to
// the last closed block.
//
// Bookmarks pair a machine-state snapshot with a clock value during
// recording. Each bookmark appends a continuation snapshot block to the
// file and remembers the file offset recording resumed at; Rollback
// rewinds the file to a bookmarked offset, truncates the stale tail, and
// hands the bookmark's snapshot back to the driver to reload machine state
// externally.
package session
