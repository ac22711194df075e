package msgr

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreambleCRCUsesFinalComplement(t *testing.T) {
	data := make([]byte, preambleContentSize)
	for i := range data {
		data[i] = byte(i)
	}
	got := preambleCRC(data)
	require.Equal(t, ^crc32cExtend(0xFFFFFFFF, data), got)
	require.NotEqual(t, crc32.Checksum(data, castagnoliTable), got)
}

func TestSegmentCRCHasNoFinalComplement(t *testing.T) {
	data := []byte("some segment payload bytes")
	require.Equal(t, crc32cExtend(0xFFFFFFFF, data), segmentCRC(data))
}

func TestPreambleRoundTrip(t *testing.T) {
	p := Preamble{
		Tag:          TagMessage,
		SegmentCount: 2,
		Flags:        FlagLateStatus,
	}
	p.Segments[0] = SegmentDescriptor{Length: 100, Alignment: 8}
	p.Segments[1] = SegmentDescriptor{Length: 50, Alignment: 0}

	wire := EncodePreamble(p)
	require.Len(t, wire, PreambleSize)

	got, err := DecodePreamble(wire)
	require.NoError(t, err)
	require.Equal(t, p.Tag, got.Tag)
	require.Equal(t, p.SegmentCount, got.SegmentCount)
	require.Equal(t, p.Flags, got.Flags)
	require.Equal(t, p.Segments[0], got.Segments[0])
	require.Equal(t, p.Segments[1], got.Segments[1])
}

func TestDecodePreambleRejectsBadCRC(t *testing.T) {
	p := Preamble{Tag: TagHello, SegmentCount: 0}
	wire := EncodePreamble(p)
	wire[0] ^= 0xFF // corrupt the tag byte after CRC was computed

	_, err := DecodePreamble(wire)
	require.Error(t, err)
}

func TestDecodePreambleRejectsUnknownTag(t *testing.T) {
	p := Preamble{Tag: Tag(200), SegmentCount: 0}
	wire := EncodePreamble(p)

	_, err := DecodePreamble(wire)
	require.Error(t, err)
}

func TestDecodePreambleRejectsTooManySegments(t *testing.T) {
	wire := EncodePreamble(Preamble{Tag: TagMessage, SegmentCount: 0})
	wire[1] = 5 // exceeds MaxSegments
	// Recompute CRC so the corruption isn't masked by a CRC failure.
	crc := preambleCRC(wire[:preambleContentSize])
	wire[preambleContentSize] = byte(crc)
	wire[preambleContentSize+1] = byte(crc >> 8)
	wire[preambleContentSize+2] = byte(crc >> 16)
	wire[preambleContentSize+3] = byte(crc >> 24)

	_, err := DecodePreamble(wire)
	require.Error(t, err)
}

func TestPlainSingleSegmentRoundTrip(t *testing.T) {
	segment := []byte("a monitor command payload")
	wire := EncodePlainSingleSegment(TagMessage, segment)

	p, err := DecodePreamble(wire[:PreambleSize])
	require.NoError(t, err)
	require.Equal(t, TagMessage, p.Tag)
	require.EqualValues(t, 1, p.SegmentCount)

	got, err := DecodePlainSingleSegment(p, wire[PreambleSize:])
	require.NoError(t, err)
	require.Equal(t, segment, got)
}

func TestPlainSingleSegmentRejectsCorruption(t *testing.T) {
	segment := []byte("payload")
	wire := EncodePlainSingleSegment(TagMessage, segment)
	wire[len(wire)-5] ^= 0xFF // corrupt last segment byte, crc untouched

	p, err := DecodePreamble(wire[:PreambleSize])
	require.NoError(t, err)
	_, err = DecodePlainSingleSegment(p, wire[PreambleSize:])
	require.Error(t, err)
}

func TestPlainMultiSegmentRoundTrip(t *testing.T) {
	segments := [][]byte{
		[]byte("header segment"),
		[]byte("data segment, somewhat longer than the header"),
		[]byte("trailer"),
	}
	wire, err := EncodePlainMultiSegment(TagMessage, segments)
	require.NoError(t, err)

	p, err := DecodePreamble(wire[:PreambleSize])
	require.NoError(t, err)
	require.Equal(t, TagMessage, p.Tag)
	require.EqualValues(t, len(segments), p.SegmentCount)
	require.NotZero(t, p.Flags&FlagLateStatus)

	got, err := DecodePlainMultiSegment(p, wire[PreambleSize:])
	require.NoError(t, err)
	require.Equal(t, segments, got)
}

func TestPlainMultiSegmentRejectsSegmentZeroCorruption(t *testing.T) {
	segments := [][]byte{[]byte("first"), []byte("second")}
	wire, err := EncodePlainMultiSegment(TagMessage, segments)
	require.NoError(t, err)

	p, err := DecodePreamble(wire[:PreambleSize])
	require.NoError(t, err)
	body := wire[PreambleSize:]
	body[0] ^= 0xFF // corrupt a byte inside segment 0, its inline CRC untouched

	_, err = DecodePlainMultiSegment(p, body)
	require.Error(t, err)
}

func TestPlainMultiSegmentRejectsEpilogueCorruption(t *testing.T) {
	segments := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	wire, err := EncodePlainMultiSegment(TagMessage, segments)
	require.NoError(t, err)

	p, err := DecodePreamble(wire[:PreambleSize])
	require.NoError(t, err)
	body := wire[PreambleSize:]
	body[len(body)-1] ^= 0xFF // corrupt the last epilogue CRC byte

	_, err = DecodePlainMultiSegment(p, body)
	require.Error(t, err)
}

func TestEncodePlainMultiSegmentRejectsOutOfRangeCount(t *testing.T) {
	_, err := EncodePlainMultiSegment(TagMessage, nil)
	require.Error(t, err)

	tooMany := make([][]byte, MaxSegments+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	_, err = EncodePlainMultiSegment(TagMessage, tooMany)
	require.Error(t, err)
}

func TestRawLengthStashedInSegmentZeroAlignment(t *testing.T) {
	p := Preamble{Tag: TagMessage, SegmentCount: 1, Flags: FlagEarlyDataCompressed}
	p.Segments[0] = SegmentDescriptor{Length: 30, Alignment: 4096}

	require.EqualValues(t, 4096, p.RawLength())
}
