package cfb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeader_BadMagic(t *testing.T) {
	buf := make([]byte, headerSize)
	copy(buf, []byte("NOTANOLE"))
	_, _, err := ParseHeader(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestParseHeader_ShortFile(t *testing.T) {
	buf := make([]byte, 10)
	_, _, err := ParseHeader(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestParseHeader_StandardValues(t *testing.T) {
	var bat [109]int32
	bat[0] = 1
	hdr := buildHeader(1, 2, testSbatCutoff, -1, 0, -1, 0, bat)

	h, warnings, err := ParseHeader(bytes.NewReader(hdr))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, testBigBlockSize, h.BigBlockSize)
	require.Equal(t, testSmallBlockSize, h.SmallBlockSize)
	require.Equal(t, int32(-1), h.SbatRootStart)
	require.Equal(t, int32(1), h.BatArray[0])
}

func TestParseHeader_WarnsOnNonStandardCutoff(t *testing.T) {
	var bat [109]int32
	hdr := buildHeader(1, 2, 1024, -1, 0, -1, 0, bat)

	_, warnings, err := ParseHeader(bytes.NewReader(hdr))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestParseHeader_RejectsNonPositiveBatCount(t *testing.T) {
	var bat [109]int32
	hdr := buildHeader(0, 2, testSbatCutoff, -1, 0, -1, 0, bat)

	_, _, err := ParseHeader(bytes.NewReader(hdr))
	require.True(t, errors.Is(err, ErrBadHeader))
}
