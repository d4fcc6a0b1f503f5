package cfb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeProperty_NameAndEscaping(t *testing.T) {
	buf := buildPropertyEntry("Root Entry", PropTypeRoot, 5, 0)
	p, err := decodeProperty(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "Root Entry", p.Name)
	require.Equal(t, byte(PropTypeRoot), p.Type)
	require.Equal(t, int32(5), p.StartBlock)
}

func TestEscapePropertyName_NonPrintable(t *testing.T) {
	// BEL (0x07) is a control byte in 0-9, so it escapes to "_7_"; the
	// literal '7' that follows it is printable ASCII and passes through.
	require.Equal(t, "ab_7_7cd", escapePropertyName("ab\a7cd"))
	// \x01 and \x02 are also control bytes in 0-9, each escaping to "_N_".
	require.Equal(t, "ab_1__2_cd", escapePropertyName("ab\x01\x02cd"))
	// A non-printable byte of 10 or above (not a "digit" control byte)
	// collapses to a single "_".
	require.Equal(t, "ab_cd", escapePropertyName("ab\x1bcd"))
}

func TestWalkProperties_SetsRootStart(t *testing.T) {
	b := newBuilder()
	entries := make([]byte, 0, testBigBlockSize)
	entries = append(entries, buildPropertyEntry("Root Entry", PropTypeRoot, 9, 0)...)
	entries = append(entries, buildPropertyEntry("Stream1", PropTypeStream, 0, 10)...)
	entries = append(entries, make([]byte, propertyEntrySize)...) // invalid/unused slot
	entries = append(entries, make([]byte, propertyEntrySize)...)
	propBlock := b.alloc()
	b.set(propBlock, entries)
	b.links[propBlock] = blockEndOfChain

	fatBlock := b.alloc()
	b.writeFATSector(fatBlock)

	var bat [109]int32
	bat[0] = fatBlock
	h := &Header{BigBlockSize: testBigBlockSize, PropStart: propBlock, SbatRootStart: -1}
	h.BatArray = bat

	src := bytes.NewReader(b.assemble(make([]byte, headerSize)))

	var seen []string
	err := walkProperties(src, h, func(p *Property) error {
		seen = append(seen, p.Name)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Root Entry", "Stream1"}, seen)
	require.Equal(t, int32(9), h.SbatRootStart)
}

// TestWalkProperties_SelfReferencingChainHitsChainCycle builds a property
// block whose FAT entry links back to itself, so the chain never reaches
// end-of-chain on its own; walkProperties must still terminate, bounded by
// its visited/maxBlocks guard, rather than looping forever.
func TestWalkProperties_SelfReferencingChainHitsChainCycle(t *testing.T) {
	b := newBuilder()
	entries := make([]byte, 0, testBigBlockSize)
	entries = append(entries, buildPropertyEntry("Root Entry", PropTypeRoot, 9, 0)...)
	entries = append(entries, make([]byte, propertyEntrySize)...)
	entries = append(entries, make([]byte, propertyEntrySize)...)
	entries = append(entries, make([]byte, propertyEntrySize)...)
	propBlock := b.alloc()
	b.set(propBlock, entries)
	b.links[propBlock] = propBlock // self-loop: never reaches end-of-chain

	fatBlock := b.alloc()
	b.writeFATSector(fatBlock)

	var bat [109]int32
	bat[0] = fatBlock
	h := &Header{BigBlockSize: testBigBlockSize, BatCount: 1, PropStart: propBlock, SbatRootStart: -1}
	h.BatArray = bat

	src := bytes.NewReader(b.assemble(make([]byte, headerSize)))

	err := walkProperties(src, h, func(p *Property) error { return nil })
	require.ErrorIs(t, err, ErrChainCycle)
}

func TestWalkProperties_RootAfterStreamInOrder(t *testing.T) {
	b := newBuilder()
	entries := make([]byte, 0, testBigBlockSize)
	entries = append(entries, buildPropertyEntry("Stream1", PropTypeStream, 0, 10)...)
	entries = append(entries, buildPropertyEntry("Root Entry", PropTypeRoot, 9, 0)...)
	entries = append(entries, make([]byte, propertyEntrySize)...)
	entries = append(entries, make([]byte, propertyEntrySize)...)
	propBlock := b.alloc()
	b.set(propBlock, entries)
	b.links[propBlock] = blockEndOfChain

	fatBlock := b.alloc()
	b.writeFATSector(fatBlock)

	var bat [109]int32
	bat[0] = fatBlock
	h := &Header{BigBlockSize: testBigBlockSize, PropStart: propBlock, SbatRootStart: -1}
	h.BatArray = bat

	src := bytes.NewReader(b.assemble(make([]byte, headerSize)))

	var streamSeenBeforeRoot bool
	err := walkProperties(src, h, func(p *Property) error {
		if p.Name == "Stream1" {
			streamSeenBeforeRoot = h.SbatRootStart < 0
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, streamSeenBeforeRoot, "stream entry enumerated before root resolved SbatRootStart")
	require.Equal(t, int32(9), h.SbatRootStart)
}
