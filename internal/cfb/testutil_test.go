package cfb

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// Minimal synthetic compound file builder used across this package's
// tests. It assembles a single-FAT-sector container (at most 128 big
// blocks) since the scenarios this package tests don't need more than
// that; XBAT-chasing arithmetic is exercised directly in block_test.go
// against a hand-built header instead of through a full 110+ sector image.

const (
	testBigBlockSize   = 512
	testSmallBlockSize = 64
	testSbatCutoff     = 4096
)

type builder struct {
	blocks [][]byte       // big block contents, index = block number
	links  map[int32]int32 // block -> next block in its chain (regular FAT)
}

func newBuilder() *builder {
	return &builder{links: make(map[int32]int32)}
}

func (b *builder) alloc() int32 {
	b.blocks = append(b.blocks, make([]byte, testBigBlockSize))
	return int32(len(b.blocks) - 1)
}

func (b *builder) set(i int32, data []byte) {
	copy(b.blocks[i], data)
}

// chain allocates n big blocks, writes data across them (padded with zero
// in the last block), links them via the regular FAT, and returns the
// first block number.
func (b *builder) chain(data []byte) int32 {
	if len(data) == 0 {
		return blockEndOfChain
	}
	n := (len(data) + testBigBlockSize - 1) / testBigBlockSize
	nums := make([]int32, n)
	for i := 0; i < n; i++ {
		nums[i] = b.alloc()
	}
	for i := 0; i < n; i++ {
		start := i * testBigBlockSize
		end := start + testBigBlockSize
		if end > len(data) {
			end = len(data)
		}
		b.set(nums[i], data[start:end])
		if i+1 < n {
			b.links[nums[i]] = nums[i+1]
		} else {
			b.links[nums[i]] = blockEndOfChain
		}
	}
	return nums[0]
}

// miniChain allocates small blocks inside the mini-stream (whose own
// backing big blocks are allocated separately by the caller) and links
// them in the mini-FAT. It returns the starting mini-block index.
func (b *builder) miniChain(miniLinks map[int32]int32, nextMiniIndex *int32, data []byte) int32 {
	if len(data) == 0 {
		return blockEndOfChain
	}
	n := (len(data) + testSmallBlockSize - 1) / testSmallBlockSize
	nums := make([]int32, n)
	for i := 0; i < n; i++ {
		nums[i] = *nextMiniIndex
		*nextMiniIndex++
	}
	for i := 0; i < n; i++ {
		if i+1 < n {
			miniLinks[nums[i]] = nums[i+1]
		} else {
			miniLinks[nums[i]] = blockEndOfChain
		}
	}
	return nums[0]
}

// writeFATSector serializes the regular FAT (single sector, 128 entries)
// from b.links, defaulting unlinked entries to blockFree, and marks
// fatBlock itself with blockFAT.
func (b *builder) writeFATSector(fatBlock int32) {
	entries := make([]int32, testBigBlockSize/4)
	for i := range entries {
		entries[i] = blockFree
	}
	for from, to := range b.links {
		entries[from] = to
	}
	entries[fatBlock] = blockFAT
	buf := make([]byte, testBigBlockSize)
	for i, v := range entries {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	b.set(fatBlock, buf)
}

// writeMiniFATSectors serializes the mini-FAT chain (possibly spanning
// several big blocks, themselves linked via the regular FAT) from
// miniLinks, and returns the chain's first big block and its sector count.
func (b *builder) writeMiniFATSectors(miniLinks map[int32]int32, miniCount int32) (int32, int32) {
	entriesPerBlock := int32(testBigBlockSize / 4)
	sectors := (miniCount + entriesPerBlock - 1) / entriesPerBlock
	if sectors == 0 {
		sectors = 1
	}
	nums := make([]int32, sectors)
	for i := range nums {
		nums[i] = b.alloc()
	}
	for i := int32(0); i < sectors; i++ {
		entries := make([]int32, entriesPerBlock)
		for j := range entries {
			entries[j] = blockFree
		}
		base := i * entriesPerBlock
		for idx, next := range miniLinks {
			if idx >= base && idx < base+entriesPerBlock {
				entries[idx-base] = next
			}
		}
		buf := make([]byte, testBigBlockSize)
		for j, v := range entries {
			binary.LittleEndian.PutUint32(buf[j*4:], uint32(v))
		}
		b.set(nums[i], buf)
		if i+1 < sectors {
			b.links[nums[i]] = nums[i+1]
		} else {
			b.links[nums[i]] = blockEndOfChain
		}
	}
	return nums[0], sectors
}

func writeLE16(buf []byte, v uint16) { binary.LittleEndian.PutUint16(buf, v) }
func writeLE32(buf []byte, v int32)  { binary.LittleEndian.PutUint32(buf, uint32(v)) }

func buildPropertyEntry(name string, ptype byte, start int32, size uint32) []byte {
	buf := make([]byte, propertyEntrySize)
	if name != "" {
		units := utf16.Encode([]rune(name))
		for i, u := range units {
			writeLE16(buf[i*2:i*2+2], u)
		}
		writeLE16(buf[64:66], uint16((len(units)+1)*2))
	}
	buf[66] = ptype
	buf[67] = 0
	writeLE32(buf[68:72], -1)
	writeLE32(buf[72:76], -1)
	writeLE32(buf[76:80], -1)
	writeLE32(buf[116:120], start)
	binary.LittleEndian.PutUint32(buf[120:124], size)
	return buf
}

// buildHeader serializes a 512-byte header from the given fields.
func buildHeader(batCount, propStart, sbatCutoff, sbatStart, sbatBlockCount, xbatStart, xbatCount int32, batArray [109]int32) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], magic[:])
	writeLE16(buf[0x1E:0x20], defaultBigBlockLog2)
	writeLE16(buf[0x20:0x22], defaultSmallBlockLog2)
	writeLE32(buf[0x2C:0x30], batCount)
	writeLE32(buf[0x30:0x34], propStart)
	writeLE32(buf[0x38:0x3C], sbatCutoff)
	writeLE32(buf[0x3C:0x40], sbatStart)
	writeLE32(buf[0x40:0x44], sbatBlockCount)
	writeLE32(buf[0x44:0x48], xbatStart)
	writeLE32(buf[0x48:0x4C], xbatCount)
	for i, v := range batArray {
		off := 0x4C + i*4
		writeLE32(buf[off:off+4], v)
	}
	return buf
}

// assemble concatenates a header with the builder's big blocks into one
// byte slice, suitable for wrapping in a bytes.Reader as a Source.
func (b *builder) assemble(hdr []byte) []byte {
	var out bytes.Buffer
	out.Write(hdr)
	for _, blk := range b.blocks {
		out.Write(blk)
	}
	return out.Bytes()
}
