// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rzx

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// CompressionFlag is a pflag.Value implementation that stores a compression
// value.
type CompressionFlag Compression

var _ pflag.Value = (*CompressionFlag)(nil)

func (cf *CompressionFlag) String() string { return Compression(*cf).String() }

// Set implements pflag.Value.
func (cf *CompressionFlag) Set(v string) error {
	if cv, ok := compressionValues[strings.ToUpper(v)]; ok {
		*cf = CompressionFlag(cv)
		return nil
	}
	return errors.Errorf("unknown compression type: %q", v)
}

// Type implements pflag.Value.
func (cf *CompressionFlag) Type() string { return "rzx.Compression" }

// Value returns the compression value held by this flag.
func (cf CompressionFlag) Value() Compression { return Compression(cf) }

// CompressionFlagValues returns the list of possible values for a
// CompressionFlag.
func CompressionFlagValues() string {
	opts := make([]string, 0, len(compressionValues))
	for name := range compressionValues {
		opts = append(opts, name)
	}
	sort.Strings(opts)
	return strings.Join(opts, ", ")
}
