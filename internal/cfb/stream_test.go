package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadStream_ZeroSizeReturnsNil(t *testing.T) {
	h := &Header{BigBlockSize: testBigBlockSize, SmallBlockSize: testSmallBlockSize, SbatCutoff: testSbatCutoff}
	p := &Property{Size: 0, StartBlock: blockEndOfChain}

	data, err := readStream(newRawSource(), h, p)
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestSyntheticName_IsDeterministicAndDistinct(t *testing.T) {
	a := syntheticName()
	b := syntheticName()
	require.Len(t, a, 10)
	require.NotEqual(t, a, b)
}

func TestReadStream_MiniWithoutRootFails(t *testing.T) {
	h := &Header{BigBlockSize: testBigBlockSize, SmallBlockSize: testSmallBlockSize, SbatCutoff: testSbatCutoff, SbatRootStart: -1}
	p := &Property{Size: 10, StartBlock: 0, Name: "orphan"}

	_, err := readStream(newRawSource(), h, p)
	require.ErrorIs(t, err, ErrNoMiniRoot)
}

// TestReadStream_SizeAtMiniBigBoundary pins the dispatch rule in readStream:
// a stream sized one byte below SbatCutoff goes through the mini-stream
// reader, one at SbatCutoff goes through the big-stream reader. The two
// paths are told apart by the distinct error each hits first with no
// further setup: the mini path fails fast on a missing SbatRootStart, the
// big path fails fast on a chain that ends immediately.
func TestReadStream_SizeAtMiniBigBoundary(t *testing.T) {
	cases := []struct {
		name    string
		size    int64
		wantErr error
	}{
		{"one byte below cutoff dispatches to mini-stream", int64(testSbatCutoff) - 1, ErrNoMiniRoot},
		{"at cutoff dispatches to big stream", int64(testSbatCutoff), ErrBrokenChain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &Header{BigBlockSize: testBigBlockSize, SmallBlockSize: testSmallBlockSize, SbatCutoff: testSbatCutoff, SbatRootStart: -1}
			p := &Property{Size: tc.size, StartBlock: blockEndOfChain, Name: "boundary"}

			_, err := readStream(newRawSource(), h, p)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
