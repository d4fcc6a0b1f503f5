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

import (
	"fmt"
	"io"
	"math"
)

// Source is a positioned random-access byte source. Any io.ReaderAt
// satisfies it directly: *os.File, internal/mmap.MmapFile and
// internal/disk.DiskInfo all qualify.
type Source interface {
	io.ReaderAt
}

// readFull reads exactly n bytes at off from src, failing with ErrShortRead
// rather than returning a partial buffer. This is the ByteSource adapter's
// read_at(offset, len) contract from the design: callers never see a
// half-filled block.
func readFull(src Source, off int64, n int) ([]byte, error) {
	if off < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrShortRead, off)
	}
	buf := make([]byte, n)
	read, err := src.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	if read != n {
		return nil, fmt.Errorf("%w: wanted %d bytes at offset %d, got %d", ErrShortRead, n, off, read)
	}
	return buf, nil
}

// blockOffset computes the absolute file offset of big block n, guarding
// against a signed 64-bit overflow on maliciously large indices.
func blockOffset(n int64, blockSize int) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative block index %d", ErrShortRead, n)
	}
	if n > (math.MaxInt64-headerSize)/int64(blockSize) {
		return 0, fmt.Errorf("%w: block index %d overflows offset computation", ErrShortRead, n)
	}
	return headerSize + n*int64(blockSize), nil
}
