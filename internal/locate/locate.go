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

// Package locate finds compound files embedded inside a larger byte source,
// such as a raw disk image or a volume that was not itself produced as a
// standalone .doc/.xls/.ppt file. internal/cfb only decodes a container
// once its starting offset is known; this package finds that offset.
package locate

import (
	"fmt"
	"io"

	"github.com/ostafen/cfbx/internal/cfb"
	"github.com/ostafen/cfbx/internal/disk"
)

// Candidate is a compound file signature found at Offset within the
// searched source.
type Candidate struct {
	Offset uint64
}

// Partitions reads the MBR at the start of src and returns one disk.Partition
// per non-empty partition table entry, plus whether a valid MBR was found at
// all. It returns a single partition spanning all of size when src does not
// carry a valid MBR (e.g. a bare .doc file, or an image of a single
// unpartitioned filesystem) rather than treating that as an error: most
// inputs to this package are not partitioned disks.
func Partitions(src io.ReaderAt, size uint64) ([]disk.Partition, bool, error) {
	sector := make([]byte, 512)
	if _, err := src.ReadAt(sector, 0); err != nil {
		return nil, false, fmt.Errorf("locate: failed to read boot sector: %w", err)
	}

	mbr, err := disk.ParseMBR(sector)
	if err != nil {
		return []disk.Partition{{Offset: 0, Size: size, BlockSize: disk.DefaultBlocksize}}, false, nil
	}

	var partitions []disk.Partition
	for i, entry := range mbr.PartitionEntries {
		if entry.PartitionType == disk.PartitionTypeEmpty {
			continue
		}
		offset := uint64(entry.ReadStartLBA()) * disk.DefaultSectorSize
		length := uint64(entry.ReadTotalSectors()) * disk.DefaultSectorSize
		if offset >= size || length == 0 {
			continue
		}
		if offset+length > size {
			length = size - offset
		}
		partitions = append(partitions, disk.Partition{
			Num:       i + 1,
			Offset:    offset,
			Size:      length,
			BlockSize: disk.DefaultBlocksize,
		})
	}

	if len(partitions) == 0 {
		return []disk.Partition{{Offset: 0, Size: size, BlockSize: disk.DefaultBlocksize}}, false, nil
	}
	return partitions, true, nil
}

// Scan probes every disk.DefaultBlocksize-aligned offset inside each
// partition for the compound file signature, returning one Candidate per
// hit. A container is only ever found at a sector boundary, so this never
// needs to probe every single byte offset.
func Scan(src io.ReaderAt, partitions []disk.Partition) []Candidate {
	var found []Candidate
	for _, p := range partitions {
		for off := p.Offset; off+512 <= p.Offset+p.Size; off += disk.DefaultBlocksize {
			if cfb.ProbeMagic(offsetSource{src, int64(off)}, 0) {
				found = append(found, Candidate{Offset: off})
			}
		}
	}
	return found
}

// GuessAlignment infers the common block size and offset shared by a set of
// candidate offsets found by Scan, the way disk.GuessBlockSize infers a
// carved image's cluster size from a list of recovered file offsets. It is
// only meaningful when Scan ran without a partition table to say where
// containers should start (hadMBR == false from Partitions): with a real
// partition table, the alignment is already known from the MBR itself.
func GuessAlignment(candidates []Candidate) (blockSize, offset uint64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	offsets := make([]uint64, len(candidates))
	for i, c := range candidates {
		offsets[i] = c.Offset
	}
	return disk.GuessBlockSize(offsets)
}

// Open opens path as a raw device or disk image through disk.Stat, first
// normalizing Windows volume paths (e.g. "C:") with disk.NormalizeVolumePath.
func Open(path string) (*disk.DiskInfo, error) {
	return disk.Stat(disk.NormalizeVolumePath(path), 0, 0)
}

// offsetSource rebases an io.ReaderAt so a candidate container can be handed
// to internal/cfb as if it started at offset 0, without copying the
// underlying bytes.
type offsetSource struct {
	src  io.ReaderAt
	base int64
}

func (s offsetSource) ReadAt(p []byte, off int64) (int, error) {
	return s.src.ReadAt(p, s.base+off)
}

// AtOffset returns a cfb.Source presenting src as if the container found at
// offset started at byte 0.
func AtOffset(src io.ReaderAt, offset uint64) cfb.Source {
	return offsetSource{src: src, base: int64(offset)}
}
