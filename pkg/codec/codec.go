// Package codec implements the wire encoding shared by CephX, msgr2
// framing, and every cluster-map structure: little-endian primitives,
// length-prefixed byte slices and strings, ordered maps/sets, and
// versioned records with a forward-compatibility skip rule.
//
// This is not XDR. Where the teacher's internal/protocol/xdr package
// reads RFC 4506 big-endian data padded to 4-byte boundaries, every
// integer and length prefix here is little-endian and unpadded, per
// the wire-format contract this client must interoperate with.
package codec

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/marmos91/radosclient/pkg/raderr"
)

// FeatureMask is the 64-bit capability bitset negotiated with a peer.
// Encoder and Decoder do not carry one; code whose wire shape depends
// on a negotiated feature is handed the mask itself and reads the
// relevant bit out of it to choose an encoding version.
type FeatureMask uint64

// Has reports whether bit is set in m.
func (m FeatureMask) Has(bit uint64) bool {
	return uint64(m)&bit != 0
}

const component = "codec"

func errf(format string, args ...any) error {
	return raderr.New(raderr.KindProtocol, component, fmt.Sprintf(format, args...))
}

// wrapf annotates a lower-level error (typically ErrShortBuffer from
// this package's own decoders) with the caller's context while
// preserving its kind.
func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := raderr.KindProtocol
	if k, ok := raderr.KindOf(err); ok {
		kind = k
	}
	return raderr.Wrap(kind, component, fmt.Sprintf(format, args...), err)
}

// validateUTF8 is the shared check behind GetString: the contract
// says decoding rejects invalid UTF-8 even though encoding never
// produces it from a well-formed Go string.
func validateUTF8(b []byte) error {
	if !utf8.Valid(b) {
		return errf("invalid utf-8 string")
	}
	return nil
}

// sortedKeys returns the keys of m in ascending order, used by
// PutSortedMap so two encoders never disagree about
// ordering for the same content.
func sortedKeys[K ~string | ~int | ~int32 | ~int64 | ~uint32 | ~uint64, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
