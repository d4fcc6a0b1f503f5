// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Extract orchestrates header parsing, property enumeration and stream
// materialization into the single entry point the cmd/cmd extract and locate
// commands call through (internal/fuse instead uses EnumerateProperties,
// BuildTree and ReadStream from tree.go). It is deliberately
// the thinnest file in the package: everything it does is delegate, in the
// order spec.md's component list lays the pipeline out.
package cfb

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// StreamInfo describes one materialized stream, handed to the Consumer
// alongside its bytes.
type StreamInfo struct {
	Name       string
	Size       int64
	StartBlock int32
	MiniFAT    bool
	Entry      *Property
}

// Consumer receives one decoded stream at a time. Returning an error wrapped
// around ErrAborted stops extraction entirely; any other error is logged and
// extraction continues with the next stream, since spec.md treats per-stream
// failures as isolated, not fatal.
type Consumer func(StreamInfo, []byte) error

// Extract decodes the compound file exposed by src and calls consume once
// per stream entry found in the property tree. It returns any header-level
// warnings collected along the way (non-standard block sizes, unusual
// mini-stream cutoffs) plus the first fatal error encountered.
//
// Header-level errors (bad magic, truncated header, implausible block
// sizes) abort immediately. Per-stream errors are logged through logger (nil
// is accepted, in which case they are simply swallowed) and the stream is
// skipped, unless consume itself returns an error wrapping ErrAborted, which
// propagates out of Extract unchanged.
func Extract(src Source, logger *slog.Logger, consume Consumer) ([]string, error) {
	header, warnings, err := ParseHeader(src)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, w := range warnings {
		logger.Warn("cfb: header warning", "detail", w)
	}

	// Enumerate every property entry before materializing any stream. This
	// also resolves header.SbatRootStart as soon as the root storage entry
	// is seen, regardless of where in storage order it falls -- a
	// container whose root entry comes after a small stream in enumeration
	// order must still resolve correctly, so mini-stream reads are
	// deferred until every entry (and therefore the root) has been seen.
	var entries []*Property
	if err := walkProperties(src, header, func(p *Property) error {
		entries = append(entries, p)
		return nil
	}); err != nil {
		return warnings, fmt.Errorf("cfb: property tree enumeration failed: %w", err)
	}

	for _, p := range entries {
		if !p.IsStream() {
			continue
		}

		name := p.Name
		if name == "" {
			name = syntheticName()
		}

		data, err := readStream(src, header, p)
		if err != nil {
			logger.Warn("cfb: skipping stream", "name", name, "error", err)
			continue
		}

		info := StreamInfo{
			Name:       name,
			Size:       p.Size,
			StartBlock: p.StartBlock,
			MiniFAT:    p.Size < int64(header.SbatCutoff),
			Entry:      p,
		}
		if err := consume(info, data); err != nil {
			if errors.Is(err, ErrAborted) {
				return warnings, err
			}
			logger.Warn("cfb: consumer rejected stream", "name", name, "error", err)
		}
	}

	return warnings, nil
}
