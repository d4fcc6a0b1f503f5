package cfb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildContainer assembles a full single-FAT-sector compound file with a
// root entry, one mini-FAT-backed stream and one regular-FAT-backed stream.
func buildContainer(t *testing.T, miniData, bigData []byte) []byte {
	t.Helper()
	b := newBuilder()

	miniBacking := make([]byte, ((len(miniData)+testSmallBlockSize-1)/testSmallBlockSize)*testSmallBlockSize)
	copy(miniBacking, miniData)
	rootStart := b.chain(miniBacking)

	miniLinks := make(map[int32]int32)
	var nextMiniIdx int32
	miniStart := b.miniChain(miniLinks, &nextMiniIdx, miniData)
	b.writeMiniFATSectors(miniLinks, nextMiniIdx)

	bigStart := b.chain(bigData)

	entries := make([]byte, 0, testBigBlockSize)
	entries = append(entries, buildPropertyEntry("Root Entry", PropTypeRoot, rootStart, 0)...)
	entries = append(entries, buildPropertyEntry("Stream1", PropTypeStream, miniStart, uint32(len(miniData)))...)
	entries = append(entries, buildPropertyEntry("Stream2", PropTypeStream, bigStart, uint32(len(bigData)))...)
	entries = append(entries, make([]byte, propertyEntrySize)...)
	propBlock := b.alloc()
	b.set(propBlock, entries)
	b.links[propBlock] = blockEndOfChain

	fatBlock := b.alloc()
	b.writeFATSector(fatBlock)

	var bat [109]int32
	bat[0] = fatBlock
	hdr := buildHeader(1, propBlock, testSbatCutoff, -1, 0, -1, 0, bat)

	return b.assemble(hdr)
}

func TestExtract_MiniAndBigStreams(t *testing.T) {
	miniData := []byte("hello mini stream")
	bigData := bytes.Repeat([]byte{0x42}, 5000)

	img := buildContainer(t, miniData, bigData)
	results := map[string][]byte{}

	warnings, err := Extract(bytes.NewReader(img), nil, func(info StreamInfo, data []byte) error {
		cp := append([]byte(nil), data...)
		results[info.Name] = cp
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, miniData, results["Stream1"])
	require.Equal(t, bigData, results["Stream2"])
}

func TestExtract_BadMagicAborts(t *testing.T) {
	buf := make([]byte, headerSize)
	_, err := Extract(bytes.NewReader(buf), nil, func(StreamInfo, []byte) error { return nil })
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestExtract_ConsumerAbortStopsExtraction(t *testing.T) {
	miniData := []byte("hello mini stream")
	bigData := bytes.Repeat([]byte{0x42}, 5000)
	img := buildContainer(t, miniData, bigData)

	var seen int
	_, err := Extract(bytes.NewReader(img), nil, func(info StreamInfo, data []byte) error {
		seen++
		return errors.Join(ErrAborted, errors.New("stop right there"))
	})
	require.ErrorIs(t, err, ErrAborted)
	require.Equal(t, 1, seen)
}

func TestExtract_BrokenChainSkipsOnlyThatStream(t *testing.T) {
	miniData := []byte("hello mini stream")
	bigData := bytes.Repeat([]byte{0x42}, 5000)
	img := buildContainer(t, miniData, bigData)

	// Corrupt Stream2's FAT entry so its chain is broken, while leaving
	// Stream1 (mini-FAT) intact. The FAT sector is the last 512-byte block
	// in the image.
	fatOff := len(img) - testBigBlockSize
	writeLE32(img[fatOff+4*9:fatOff+4*9+4], blockFree) // break an arbitrary mid-chain link

	results := map[string][]byte{}
	_, err := Extract(bytes.NewReader(img), nil, func(info StreamInfo, data []byte) error {
		cp := append([]byte(nil), data...)
		results[info.Name] = cp
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, miniData, results["Stream1"])
}
