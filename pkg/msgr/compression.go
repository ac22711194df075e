package msgr

import (
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/marmos91/radosclient/pkg/raderr"
)

// compressionThreshold is the minimum combined segment size, in
// bytes, above which a connection with compression negotiated
// concatenates its segments into one and compresses it (§4.3.1:
// "segments may be concatenated into a single compressed segment when
// their total size exceeds a configured threshold").
const compressionThreshold = 256

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

// zstdCodec lazily builds the package's shared encoder/decoder pair.
// Both types are safe for concurrent use by multiple goroutines.
func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil)
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdInitErr
}

// compressSegments concatenates segments and compresses the result
// into a single segment when it clears compressionThreshold, actually
// shrinks, and its raw length still fits the preamble's 16-bit
// RawLength hint. It reports whether compression was applied.
func compressSegments(segments [][]byte) (compressed []byte, rawLen int, ok bool, err error) {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	if total < compressionThreshold || total > math.MaxUint16 {
		return nil, 0, false, nil
	}

	enc, _, err := zstdCodec()
	if err != nil {
		return nil, 0, false, raderr.Wrap(raderr.KindProtocol, component, "zstd encoder", err)
	}
	raw := make([]byte, 0, total)
	for _, s := range segments {
		raw = append(raw, s...)
	}
	out := enc.EncodeAll(raw, nil)
	if len(out) >= len(raw) {
		return nil, 0, false, nil
	}
	return out, len(raw), true, nil
}

// decompressSegment reverses compressSegments given the raw
// (pre-compression) length stashed in the preamble.
func decompressSegment(compressed []byte, rawLen int) ([]byte, error) {
	_, dec, err := zstdCodec()
	if err != nil {
		return nil, raderr.Wrap(raderr.KindProtocol, component, "zstd decoder", err)
	}
	out, err := dec.DecodeAll(compressed, make([]byte, 0, rawLen))
	if err != nil {
		return nil, raderr.Wrap(raderr.KindProtocol, component, "zstd decode", err)
	}
	return out, nil
}

// decompressIfNeeded reverses the FRAME_EARLY_DATA_COMPRESSED segment
// 0 substitution compressSegments performs on send, leaving other
// segments untouched.
func decompressIfNeeded(p Preamble, segments [][]byte) (Frame, error) {
	if p.Flags&FlagEarlyDataCompressed != 0 && len(segments) > 0 {
		raw, err := decompressSegment(segments[0], int(p.RawLength()))
		if err != nil {
			return Frame{}, err
		}
		segments[0] = raw
	}
	return Frame{Preamble: p, Segments: segments}, nil
}
