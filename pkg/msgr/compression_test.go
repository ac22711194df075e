package msgr

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressSegmentsSkipsBelowThreshold(t *testing.T) {
	segments := [][]byte{bytes.Repeat([]byte("a"), compressionThreshold-1)}
	_, _, ok, err := compressSegments(segments)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompressSegmentsSkipsIncompressibleData(t *testing.T) {
	raw := make([]byte, compressionThreshold)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	_, _, ok, err := compressSegments([][]byte{raw})
	require.NoError(t, err)
	require.False(t, ok, "random data should not clear the shrink check")
}

func TestCompressSegmentsRoundTrip(t *testing.T) {
	segments := [][]byte{
		bytes.Repeat([]byte("repetitive monitor payload "), 64),
		bytes.Repeat([]byte("more repetitive data "), 32),
	}
	raw := append(append([]byte(nil), segments[0]...), segments[1]...)

	compressed, rawLen, ok, err := compressSegments(segments)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(raw), rawLen)
	require.Less(t, len(compressed), rawLen)

	got, err := decompressSegment(compressed, rawLen)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestDecompressIfNeededLeavesPlainSegmentsAlone(t *testing.T) {
	p := Preamble{Tag: TagMessage, SegmentCount: 1}
	segments := [][]byte{[]byte("plain payload")}

	frame, err := decompressIfNeeded(p, segments)
	require.NoError(t, err)
	require.Equal(t, segments, frame.Segments)
}

func TestDecompressIfNeededReversesCompressedSegmentZero(t *testing.T) {
	raw := bytes.Repeat([]byte("compress me please "), 64)
	compressed, rawLen, ok, err := compressSegments([][]byte{raw})
	require.NoError(t, err)
	require.True(t, ok)

	p := Preamble{Tag: TagMessage, SegmentCount: 1, Flags: FlagEarlyDataCompressed}
	p.Segments[0] = SegmentDescriptor{Length: uint32(len(compressed)), Alignment: uint16(rawLen)}

	frame, err := decompressIfNeeded(p, [][]byte{compressed})
	require.NoError(t, err)
	require.Equal(t, raw, frame.Segments[0])
}
