package codec

import (
	"encoding/binary"
)

// Decoder walks a little-endian byte slice with a cursor, matching
// the teacher's io.Reader-based xdr decoders in spirit but operating
// on an in-memory slice so segments can be decoded zero-copy straight
// out of a received frame buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder positioned at the start of buf. The
// Decoder does not take ownership of buf; callers must not mutate it
// concurrently with decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining reports how many bytes are left to consume.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Pos reports the current cursor offset.
func (d *Decoder) Pos() int { return d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return errf("short buffer: need %d bytes, have %d", n, d.Remaining())
	}
	return nil
}

// GetU8 reads a single byte.
func (d *Decoder) GetU8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// GetU16 reads a little-endian uint16.
func (d *Decoder) GetU16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// GetU32 reads a little-endian uint32.
func (d *Decoder) GetU32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// GetU64 reads a little-endian uint64.
func (d *Decoder) GetU64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// GetI32 reads a little-endian two's-complement int32.
func (d *Decoder) GetI32() (int32, error) {
	v, err := d.GetU32()
	return int32(v), err
}

// GetI64 reads a little-endian two's-complement int64.
func (d *Decoder) GetI64() (int64, error) {
	v, err := d.GetU64()
	return int64(v), err
}

// GetBool reads a single byte and reports it as a bool (any nonzero
// byte is true, matching the reference implementation's relaxed
// decode of boolean fields).
func (d *Decoder) GetBool() (bool, error) {
	v, err := d.GetU8()
	return v != 0, err
}

// GetRaw reads exactly n unprefixed bytes. The returned slice aliases
// the Decoder's backing buffer; callers that retain it beyond the
// buffer's lifetime must copy.
func (d *Decoder) GetRaw(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

// GetBytes reads a 4-byte little-endian length prefix and that many
// bytes. The returned slice aliases the Decoder's backing buffer.
func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetU32()
	if err != nil {
		return nil, err
	}
	return d.GetRaw(int(n))
}

// GetString reads a length-prefixed byte slice and validates it as
// UTF-8, rejecting the decode otherwise per the codec contract.
func (d *Decoder) GetString() (string, error) {
	b, err := d.GetBytes()
	if err != nil {
		return "", err
	}
	if err := validateUTF8(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// GetSet reads a 4-byte count followed by count elements decoded by
// dec, appending them to a freshly allocated slice in wire order.
func GetSet[T any](d *Decoder, dec func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.GetU32()
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := dec(d)
		if err != nil {
			return nil, wrapf(err, "set element %d", i)
		}
		items = append(items, v)
	}
	return items, nil
}

// GetMap reads a 4-byte count followed by count (key, value) pairs in
// wire order, inserting them into a freshly allocated map.
func GetMap[K comparable, V any](d *Decoder, decKey func(*Decoder) (K, error), decVal func(*Decoder) (V, error)) (map[K]V, error) {
	n, err := d.GetU32()
	if err != nil {
		return nil, err
	}
	m := make(map[K]V, n)
	for i := uint32(0); i < n; i++ {
		k, err := decKey(d)
		if err != nil {
			return nil, wrapf(err, "map key %d", i)
		}
		v, err := decVal(d)
		if err != nil {
			return nil, wrapf(err, "map value %d", i)
		}
		m[k] = v
	}
	return m, nil
}

// GetVersioned reads a versioned record's (version, compat, length)
// header, hands body a sub-decoder bounded to exactly length bytes,
// and enforces the forward-compatibility rule: decode fails when the
// record's declared compat floor exceeds knownVersion (this reader
// cannot understand anything the writer requires); any bytes body
// leaves unconsumed within the bounded region are silently skipped, so
// a reader that knows up to knownVersion can still decode a record
// produced by a newer writer as long as that writer's compat floor
// did not rise above knownVersion.
func (d *Decoder) GetVersioned(knownVersion uint8, body func(version uint8, sub *Decoder) error) error {
	version, err := d.GetU8()
	if err != nil {
		return err
	}
	compat, err := d.GetU8()
	if err != nil {
		return err
	}
	length, err := d.GetU32()
	if err != nil {
		return err
	}
	if compat > knownVersion {
		return errf("versioned record requires compat %d, reader knows %d", compat, knownVersion)
	}

	content, err := d.GetRaw(int(length))
	if err != nil {
		return err
	}

	sub := NewDecoder(content)
	if err := body(version, sub); err != nil {
		return wrapf(err, "versioned record body (version %d)", version)
	}
	// Trailing bytes within the length-scoped content belong to a
	// newer version this reader doesn't know; skip rather than fail.
	return nil
}
