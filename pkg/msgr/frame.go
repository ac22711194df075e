package msgr

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/radosclient/pkg/raderr"
)

const component = "msgr"

// MaxSegments is the maximum number of segments a single frame may
// carry.
const MaxSegments = 4

// PreambleSize is the fixed on-wire size of a frame preamble: 28
// content bytes followed by a 4-byte CRC.
const PreambleSize = 32

const preambleContentSize = 28

// Flag bits carried in the preamble.
const (
	FlagEarlyDataCompressed uint8 = 1 << 0
	FlagLateStatus          uint8 = 1 << 1 // epilogue present (multi-segment plaintext)
)

func protoErr(format string, args ...any) error {
	return raderr.New(raderr.KindProtocol, component, fmt.Sprintf(format, args...))
}

// SegmentDescriptor describes one segment's logical length and
// alignment requirement. When FlagEarlyDataCompressed is set, segment
// 0's Alignment field is repurposed to carry the pre-compression raw
// length, since compressed frames have nothing to align.
type SegmentDescriptor struct {
	Length    uint32
	Alignment uint16
}

// Preamble is the fixed 32-byte header preceding every frame's
// segments.
type Preamble struct {
	Tag          Tag
	SegmentCount uint8
	Segments     [MaxSegments]SegmentDescriptor
	Flags        uint8
}

// RawLength returns the pre-compression size hint stashed in segment
// 0's Alignment field when FlagEarlyDataCompressed is set.
func (p Preamble) RawLength() uint32 {
	return uint32(p.Segments[0].Alignment)
}

// EncodePreamble serializes p into exactly PreambleSize bytes,
// computing the trailing CRC over the first 28 content bytes.
func EncodePreamble(p Preamble) []byte {
	buf := make([]byte, PreambleSize)
	buf[0] = uint8(p.Tag)
	buf[1] = p.SegmentCount
	off := 2
	for i := 0; i < MaxSegments; i++ {
		binary.LittleEndian.PutUint32(buf[off:], p.Segments[i].Length)
		off += 4
		binary.LittleEndian.PutUint16(buf[off:], p.Segments[i].Alignment)
		off += 2
	}
	buf[off] = p.Flags
	off++
	buf[off] = 0 // reserved
	off++
	// off should now be exactly preambleContentSize (28).

	crc := preambleCRC(buf[:preambleContentSize])
	binary.LittleEndian.PutUint32(buf[preambleContentSize:], crc)
	return buf
}

// DecodePreamble parses and CRC-validates a 32-byte preamble.
func DecodePreamble(buf []byte) (Preamble, error) {
	if len(buf) != PreambleSize {
		return Preamble{}, protoErr("preamble must be %d bytes, got %d", PreambleSize, len(buf))
	}

	wantCRC := binary.LittleEndian.Uint32(buf[preambleContentSize:])
	gotCRC := preambleCRC(buf[:preambleContentSize])
	if wantCRC != gotCRC {
		return Preamble{}, protoErr("preamble CRC mismatch: wire=%08x computed=%08x", wantCRC, gotCRC)
	}

	var p Preamble
	p.Tag = Tag(buf[0])
	if !IsKnown(p.Tag) {
		return Preamble{}, protoErr("unknown frame tag %d", buf[0])
	}
	p.SegmentCount = buf[1]
	if p.SegmentCount > MaxSegments {
		return Preamble{}, protoErr("segment count %d exceeds maximum %d", p.SegmentCount, MaxSegments)
	}
	off := 2
	for i := 0; i < MaxSegments; i++ {
		p.Segments[i].Length = binary.LittleEndian.Uint32(buf[off:])
		off += 4
		p.Segments[i].Alignment = binary.LittleEndian.Uint16(buf[off:])
		off += 2
	}
	p.Flags = buf[off]
	return p, nil
}

// Frame is a fully decoded frame: its preamble plus each segment's
// raw bytes (still compressed/encrypted-stripped by the caller before
// construction).
type Frame struct {
	Preamble Preamble
	Segments [][]byte
}

// EncodePlainSingleSegment builds revision-1 framing for the common
// single-segment, non-secure case: preamble || segment ||
// CRC32C(segment).
func EncodePlainSingleSegment(tag Tag, segment []byte) []byte {
	p := Preamble{Tag: tag, SegmentCount: 1}
	p.Segments[0].Length = uint32(len(segment))
	return encodePlainFrame(p, [][]byte{segment})
}

// EncodePlainMultiSegment builds revision-1 plaintext framing for one
// or more segments (§4.3.1): preamble || segment[0] ||
// CRC32C(segment[0]) || segment[1..n-1] || epilogue(late_status +
// per-segment CRCs for segments 1..n-1). Segment 0's CRC travels
// inline rather than in the epilogue.
func EncodePlainMultiSegment(tag Tag, segments [][]byte) ([]byte, error) {
	if len(segments) == 0 || len(segments) > MaxSegments {
		return nil, protoErr("multi-segment frame needs 1..%d segments, got %d", MaxSegments, len(segments))
	}
	p := Preamble{Tag: tag, SegmentCount: uint8(len(segments))}
	if len(segments) > 1 {
		p.Flags |= FlagLateStatus
	}
	for i, s := range segments {
		p.Segments[i].Length = uint32(len(s))
	}
	return encodePlainFrame(p, segments), nil
}

// encodePlainFrame serializes an already-built preamble and its
// segments into the §4.3.1 plaintext wire form.
func encodePlainFrame(p Preamble, segments [][]byte) []byte {
	seg0 := []byte(nil)
	if len(segments) > 0 {
		seg0 = segments[0]
	}
	out := make([]byte, 0, PreambleSize+len(seg0)+4)
	out = append(out, EncodePreamble(p)...)
	out = append(out, seg0...)
	out = appendCRC(out, segmentCRC(seg0))

	if p.SegmentCount <= 1 {
		return out
	}
	for _, s := range segments[1:] {
		out = append(out, s...)
	}
	out = append(out, 0) // late_status: this client never sets late flags
	for _, s := range segments[1:] {
		out = appendCRC(out, segmentCRC(s))
	}
	return out
}

func appendCRC(buf []byte, crc uint32) []byte {
	crcBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBuf, crc)
	return append(buf, crcBuf...)
}

// DecodePlainSingleSegment reverses EncodePlainSingleSegment given an
// already-parsed preamble and the bytes following it, verifying the
// segment CRC.
func DecodePlainSingleSegment(p Preamble, rest []byte) ([]byte, error) {
	if p.SegmentCount != 1 {
		return nil, protoErr("expected single segment, preamble declares %d", p.SegmentCount)
	}
	segments, err := DecodePlainMultiSegment(p, rest)
	if err != nil {
		return nil, err
	}
	return segments[0], nil
}

// DecodePlainMultiSegment reverses EncodePlainMultiSegment (and
// EncodePlainSingleSegment, when p.SegmentCount is 1), verifying
// segment 0's inline CRC and, for multi-segment frames, the
// late_status byte and remaining segments' CRCs carried in the
// epilogue.
func DecodePlainMultiSegment(p Preamble, rest []byte) ([][]byte, error) {
	if p.SegmentCount < 1 || p.SegmentCount > MaxSegments {
		return nil, protoErr("segment count %d out of range", p.SegmentCount)
	}

	seg0Len := int(p.Segments[0].Length)
	if seg0Len+4 > len(rest) {
		return nil, protoErr("frame body too short for segment 0: need %d, got %d", seg0Len+4, len(rest))
	}
	seg0 := rest[:seg0Len]
	off := seg0Len
	wantCRC := binary.LittleEndian.Uint32(rest[off:])
	off += 4
	if gotCRC := segmentCRC(seg0); gotCRC != wantCRC {
		return nil, protoErr("segment 0 CRC mismatch: wire=%08x computed=%08x", wantCRC, gotCRC)
	}

	segments := make([][]byte, p.SegmentCount)
	segments[0] = seg0
	if p.SegmentCount == 1 {
		if off != len(rest) {
			return nil, protoErr("trailing bytes after single segment")
		}
		return segments, nil
	}

	for i := 1; i < int(p.SegmentCount); i++ {
		segLen := int(p.Segments[i].Length)
		if off+segLen > len(rest) {
			return nil, protoErr("frame body too short for segment %d", i)
		}
		segments[i] = rest[off : off+segLen]
		off += segLen
	}

	if off >= len(rest) {
		return nil, protoErr("missing epilogue")
	}
	off++ // late_status
	for i := 1; i < int(p.SegmentCount); i++ {
		if off+4 > len(rest) {
			return nil, protoErr("epilogue truncated at segment %d crc", i)
		}
		wantCRC := binary.LittleEndian.Uint32(rest[off:])
		off += 4
		if gotCRC := segmentCRC(segments[i]); gotCRC != wantCRC {
			return nil, protoErr("segment %d CRC mismatch: wire=%08x computed=%08x", i, wantCRC, gotCRC)
		}
	}
	if off != len(rest) {
		return nil, protoErr("trailing bytes after epilogue")
	}
	return segments, nil
}

// plainFrameBodyLen returns the number of wire bytes following the
// preamble for a plaintext frame matching p: segment payloads, the
// inline segment 0 CRC, and — for more than one segment — the
// late_status byte and one CRC per remaining segment.
func plainFrameBodyLen(p Preamble) int {
	n := 4
	for i := 0; i < int(p.SegmentCount); i++ {
		n += int(p.Segments[i].Length)
	}
	if p.SegmentCount > 1 {
		n += 1 + 4*(int(p.SegmentCount)-1)
	}
	return n
}
