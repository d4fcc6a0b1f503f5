package locate

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ostafen/cfbx/internal/disk"
)

type byteSource []byte

func (b byteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, nil
	}
	n := copy(p, b[off:])
	return n, nil
}

var cfbMagic = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func buildMBRImage(t *testing.T, size int, startLBA, totalSectors uint32) []byte {
	t.Helper()

	img := make([]byte, size)

	entryOff := 0x1BE
	img[entryOff+0x00] = 0x00 // not bootable
	img[entryOff+0x04] = byte(disk.PartitionTypeFAT32LBA)
	binary.LittleEndian.PutUint32(img[entryOff+0x08:], startLBA)
	binary.LittleEndian.PutUint32(img[entryOff+0x0C:], totalSectors)

	binary.LittleEndian.PutUint16(img[0x1FE:], 0xAA55)

	dataOffset := int(startLBA) * disk.DefaultSectorSize
	copy(img[dataOffset:], cfbMagic[:])

	return img
}

func TestPartitions_FindsNonEmptyEntry(t *testing.T) {
	img := buildMBRImage(t, 4096, 2, 4)

	regions, hadMBR, err := Partitions(byteSource(img), uint64(len(img)))
	require.NoError(t, err)
	require.True(t, hadMBR)
	require.Len(t, regions, 1)
	require.EqualValues(t, 1024, regions[0].Offset)
	require.EqualValues(t, 2048, regions[0].Size)
}

func TestPartitions_FallsBackToWholeImageWithoutMBR(t *testing.T) {
	img := make([]byte, 2048)

	regions, hadMBR, err := Partitions(byteSource(img), uint64(len(img)))
	require.NoError(t, err)
	require.False(t, hadMBR)
	require.Len(t, regions, 1)
	require.EqualValues(t, 0, regions[0].Offset)
	require.EqualValues(t, 2048, regions[0].Size)
}

func TestScan_FindsEmbeddedContainer(t *testing.T) {
	img := buildMBRImage(t, 4096, 2, 4)

	regions, _, err := Partitions(byteSource(img), uint64(len(img)))
	require.NoError(t, err)

	found := Scan(byteSource(img), regions)
	require.Len(t, found, 1)
	require.EqualValues(t, 1024, found[0].Offset)
}

func TestGuessAlignment_InfersCommonBlockSize(t *testing.T) {
	candidates := []Candidate{{Offset: 4096}, {Offset: 8192}, {Offset: 12288}}

	blockSize, offset := GuessAlignment(candidates)
	require.EqualValues(t, 4096, blockSize)
	require.EqualValues(t, 0, offset)
}

func TestGuessAlignment_EmptyInput(t *testing.T) {
	blockSize, offset := GuessAlignment(nil)
	require.EqualValues(t, 0, blockSize)
	require.EqualValues(t, 0, offset)
}

func TestScan_NoContainerPresent(t *testing.T) {
	img := make([]byte, 2048)
	regions := []disk.Partition{{Offset: 0, Size: uint64(len(img))}}

	found := Scan(byteSource(img), regions)
	require.Empty(t, found)
}

func TestAtOffset_RebasesReads(t *testing.T) {
	img := buildMBRImage(t, 4096, 2, 4)

	src := AtOffset(byteSource(img), 1024)
	buf := make([]byte, 8)
	n, err := src.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, cfbMagic[:], buf)
}
