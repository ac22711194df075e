package codec

import (
	"encoding/binary"
)

// Encoder accumulates little-endian wire bytes into a growable buffer.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with buf pre-sized to size, mirroring
// the fixed-size-aggregate path of the contract: callers that can
// compute a value's encoded size up front avoid reallocation.
func NewEncoder(size int) *Encoder {
	return &Encoder{buf: make([]byte, 0, size)}
}

// Bytes returns the accumulated buffer. The returned slice aliases the
// Encoder's internal storage.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len reports the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// PutU8 appends a single byte.
func (e *Encoder) PutU8(v uint8) { e.buf = append(e.buf, v) }

// PutU16 appends a little-endian uint16.
func (e *Encoder) PutU16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

// PutU32 appends a little-endian uint32.
func (e *Encoder) PutU32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// PutU64 appends a little-endian uint64.
func (e *Encoder) PutU64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// PutI32 appends a little-endian two's-complement int32.
func (e *Encoder) PutI32(v int32) { e.PutU32(uint32(v)) }

// PutI64 appends a little-endian two's-complement int64.
func (e *Encoder) PutI64(v int64) { e.PutU64(uint64(v)) }

// PutBool appends v as a single 0/1 byte.
func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutU8(1)
	} else {
		e.PutU8(0)
	}
}

// PutBytes appends a 4-byte little-endian length prefix followed by b.
func (e *Encoder) PutBytes(b []byte) {
	e.PutU32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// PutRaw appends b with no length prefix, for fixed-size fields whose
// length the reader already knows from context (e.g. a 16-byte IV).
func (e *Encoder) PutRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// PutString appends a 4-byte little-endian length prefix followed by
// the string's UTF-8 bytes.
func (e *Encoder) PutString(s string) {
	e.PutBytes([]byte(s))
}

// PutSet encodes an ordered set: a 4-byte count followed by each
// element via enc, visited in the order given. There is no sorted-set
// variant; a caller that needs sorted order sorts items first.
func PutSet[T any](e *Encoder, items []T, enc func(*Encoder, T)) {
	e.PutU32(uint32(len(items)))
	for _, it := range items {
		enc(e, it)
	}
}

// PutMap encodes an insertion-ordered mapping: a 4-byte count followed
// by count (key, value) pairs in the order of keys given.
func PutMap[K comparable, V any](e *Encoder, keys []K, m map[K]V, encKey func(*Encoder, K), encVal func(*Encoder, V)) {
	e.PutU32(uint32(len(keys)))
	for _, k := range keys {
		encKey(e, k)
		encVal(e, m[k])
	}
}

// PutSortedMap encodes a mapping sorted by key, for the "ordered
// mapping" type class variants whose reference implementation iterates
// a BTreeMap rather than an insertion-ordered one.
func PutSortedMap[K ~string | ~int | ~int32 | ~int64 | ~uint32 | ~uint64, V any](e *Encoder, m map[K]V, encKey func(*Encoder, K), encVal func(*Encoder, V)) {
	keys := sortedKeys(m)
	PutMap(e, keys, m, encKey, encVal)
}

// PutVersioned writes a versioned record: (u8 version, u8 compat, u32
// length) followed by the bytes body produces. length covers body
// only, matching §6's "length covers body only."
func (e *Encoder) PutVersioned(version, compat uint8, body func(*Encoder)) {
	e.PutU8(version)
	e.PutU8(compat)

	lenOffset := len(e.buf)
	e.PutU32(0) // backfilled below

	bodyStart := len(e.buf)
	body(e)
	bodyLen := len(e.buf) - bodyStart

	binary.LittleEndian.PutUint32(e.buf[lenOffset:lenOffset+4], uint32(bodyLen))
}
