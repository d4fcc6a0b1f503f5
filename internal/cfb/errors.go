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
package cfb

import "errors"

// Header-level errors abort the whole extraction.
var (
	// ErrBadMagic is returned when the 8-byte signature does not match the
	// compound file magic. Historically mapped to ClamAV's CL_EOLE2.
	ErrBadMagic  = errors.New("cfb: bad magic, not a compound file")
	ErrBadHeader = errors.New("cfb: truncated or unreadable header")
	ErrBlockSize = errors.New("cfb: unsupported or oversized block size")
)

// Per-stream / per-chain errors abandon only the stream being processed.
var (
	ErrShortRead     = errors.New("cfb: short read")
	ErrShortWrite    = errors.New("cfb: short write")
	ErrFatIndexRange = errors.New("cfb: FAT sector index out of range")
	ErrBrokenChain   = errors.New("cfb: broken block chain")
	ErrNoMiniRoot    = errors.New("cfb: mini-stream root not yet known")
	ErrChainCycle    = errors.New("cfb: block chain cycle detected")
	ErrAborted       = errors.New("cfb: aborted by consumer")
)
