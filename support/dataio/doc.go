// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package dataio supplies byte-level reader/writer interfaces and the
// little-endian field helpers used by wire codecs.
//
// Every multi-byte field helper in this package is explicitly little-endian
// and operates through io.Reader/io.Writer; no codec built on dataio depends
// on in-memory structure layout matching a wire format.
package dataio
