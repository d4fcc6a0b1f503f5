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

// Block-chain walking: the regular FAT (with its DIFAT/XBAT extension) and
// the mini-FAT that threads the mini-stream. The arithmetic here is ported
// from libclamav's ole2_get_next_bat_block/ole2_get_next_xbat_block/
// ole2_get_sbat_data_block, cross-checked against the DIFAT-chasing logic in
// richardlehane/mscfb's header.go and its block sentinel constants in
// mscfb.go.
package cfb

import "fmt"

// Block-index sentinels. These are signed; never compare them after
// widening to an unsigned type.
const (
	blockFree      int32 = -1
	blockEndOfChain int32 = -2
	blockFAT       int32 = -3
	blockDIF       int32 = -4
)

// readBigBlock reads one big block (header.BigBlockSize bytes) at the given
// block number.
func readBigBlock(src Source, h *Header, block int32) ([]byte, error) {
	if block < 0 {
		return nil, fmt.Errorf("%w: attempted to read sentinel block %d", ErrBrokenChain, block)
	}
	off, err := blockOffset(int64(block), h.BigBlockSize)
	if err != nil {
		return nil, err
	}
	return readFull(src, off, h.BigBlockSize)
}

// fatSectorBlock resolves the big-block number holding the FAT sector at
// fatSectorIndex, chasing the DIFAT/XBAT chain when the index falls beyond
// the header's 109 direct entries.
func fatSectorBlock(src Source, h *Header, fatSectorIndex int32) (int32, error) {
	if fatSectorIndex < 0 {
		return 0, fmt.Errorf("%w: negative FAT sector index %d", ErrFatIndexRange, fatSectorIndex)
	}
	if fatSectorIndex < batArrayEntries {
		return h.BatArray[fatSectorIndex], nil
	}

	entriesPerXbat := h.entriesPerBigBlock() - 1 // last slot links to the next XBAT block
	rel := fatSectorIndex - batArrayEntries
	hop := rel / entriesPerXbat
	slot := rel % entriesPerXbat

	cur := h.XbatStart
	for i := int32(0); i < hop; i++ {
		if cur < 0 {
			return 0, fmt.Errorf("%w: XBAT chain ended before reaching sector %d", ErrBrokenChain, fatSectorIndex)
		}
		if i > h.XbatCount {
			return 0, fmt.Errorf("%w: XBAT chain exceeds declared xbat_count", ErrChainCycle)
		}
		buf, err := readBigBlock(src, h, cur)
		if err != nil {
			return 0, err
		}
		linkOff := entriesPerXbat * 4
		cur = leI32(buf[linkOff : linkOff+4])
	}
	if cur < 0 {
		return 0, fmt.Errorf("%w: XBAT chain ended before reaching sector %d", ErrBrokenChain, fatSectorIndex)
	}
	buf, err := readBigBlock(src, h, cur)
	if err != nil {
		return 0, err
	}
	return leI32(buf[slot*4 : slot*4+4]), nil
}

// nextBig returns the block number following current in the regular FAT
// chain.
func nextBig(src Source, h *Header, current int32) (int32, error) {
	if current < 0 {
		return 0, fmt.Errorf("%w: cannot follow sentinel block %d", ErrFatIndexRange, current)
	}
	entriesPerBlock := h.entriesPerBigBlock()
	fatSectorIndex := current / entriesPerBlock
	slot := current % entriesPerBlock

	sector, err := fatSectorBlock(src, h, fatSectorIndex)
	if err != nil {
		return 0, err
	}
	buf, err := readBigBlock(src, h, sector)
	if err != nil {
		return 0, err
	}
	return leI32(buf[slot*4 : slot*4+4]), nil
}

// nextSmall returns the mini-block index following current in the mini-FAT
// chain. Mini-FAT sectors are themselves big blocks chained through the
// regular FAT starting at header.SbatStart.
func nextSmall(src Source, h *Header, current int32) (int32, error) {
	if current < 0 {
		return 0, fmt.Errorf("%w: cannot follow sentinel mini-block %d", ErrFatIndexRange, current)
	}
	entriesPerBlock := h.entriesPerBigBlock()
	sectorIndex := current / entriesPerBlock
	slot := current % entriesPerBlock

	cur := h.SbatStart
	for i := int32(0); i < sectorIndex; i++ {
		if cur < 0 {
			return 0, fmt.Errorf("%w: mini-FAT chain ended before sector %d", ErrBrokenChain, sectorIndex)
		}
		if i > h.SbatBlockCount {
			return 0, fmt.Errorf("%w: mini-FAT chain exceeds declared sbat_block_count", ErrChainCycle)
		}
		next, err := nextBig(src, h, cur)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	if cur < 0 {
		return 0, fmt.Errorf("%w: mini-FAT chain ended before sector %d", ErrBrokenChain, sectorIndex)
	}
	buf, err := readBigBlock(src, h, cur)
	if err != nil {
		return 0, err
	}
	return leI32(buf[slot*4 : slot*4+4]), nil
}

// sbatDataBlock returns the SmallBlockSize bytes of mini-stream data for
// mini-block index sbatIndex. The mini-stream is the big-block chain rooted
// at the root property entry's start block, resolved once the property
// enumerator finds the root (type 5) entry and sets header.SbatRootStart.
func sbatDataBlock(src Source, h *Header, sbatIndex int32) ([]byte, error) {
	if h.SbatRootStart < 0 {
		return nil, ErrNoMiniRoot
	}
	if sbatIndex < 0 {
		return nil, fmt.Errorf("%w: negative mini-block index %d", ErrFatIndexRange, sbatIndex)
	}

	blocksPerBig := int32(h.BigBlockSize / h.SmallBlockSize)
	hop := sbatIndex / blocksPerBig
	offset := int(sbatIndex%blocksPerBig) * h.SmallBlockSize

	cur := h.SbatRootStart
	for i := int32(0); i < hop; i++ {
		if cur < 0 {
			return nil, fmt.Errorf("%w: mini-stream chain ended before block %d", ErrBrokenChain, sbatIndex)
		}
		next, err := nextBig(src, h, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if cur < 0 {
		return nil, fmt.Errorf("%w: mini-stream chain ended before block %d", ErrBrokenChain, sbatIndex)
	}
	buf, err := readBigBlock(src, h, cur)
	if err != nil {
		return nil, err
	}
	return buf[offset : offset+h.SmallBlockSize], nil
}
