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

// The on-disk compound file format is always little-endian, regardless of
// host byte order, so these helpers never branch on runtime.GOARCH the way
// the original C decoder did under #ifdef WORDS_LITTLEENDIAN.
package cfb

import "encoding/binary"

func le16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func le32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// leI32 decodes a signed 32-bit block index. Block indices must never be
// widened to unsigned before comparison against the sentinel values, since
// -1/-2/-3/-4 are meaningful only as signed quantities.
func leI32(b []byte) int32 {
	return int32(le32(b))
}
