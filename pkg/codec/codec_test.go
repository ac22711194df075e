package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	e := NewEncoder(0)
	e.PutU8(0xAB)
	e.PutU16(0x1234)
	e.PutU32(0xDEADBEEF)
	e.PutU64(0x0102030405060708)
	e.PutI32(-1)
	e.PutBool(true)

	d := NewDecoder(e.Bytes())
	u8, err := d.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := d.GetU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := d.GetU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := d.GetU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	i32, err := d.GetI32()
	require.NoError(t, err)
	require.Equal(t, int32(-1), i32)

	b, err := d.GetBool()
	require.NoError(t, err)
	require.True(t, b)

	require.Equal(t, 0, d.Remaining())
}

func TestU32LittleEndianOnWire(t *testing.T) {
	e := NewEncoder(0)
	e.PutU32(1)
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, e.Bytes())
}

func TestBytesLengthPrefixIsU32LittleEndian(t *testing.T) {
	e := NewEncoder(0)
	e.PutBytes([]byte("abc"))
	require.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c'}, e.Bytes())
}

func TestStringRoundTrip(t *testing.T) {
	e := NewEncoder(0)
	e.PutString("client.admin")

	d := NewDecoder(e.Bytes())
	s, err := d.GetString()
	require.NoError(t, err)
	require.Equal(t, "client.admin", s)
}

func TestStringDecodeRejectsInvalidUTF8(t *testing.T) {
	e := NewEncoder(0)
	e.PutBytes([]byte{0xff, 0xfe, 0xfd})

	d := NewDecoder(e.Bytes())
	_, err := d.GetString()
	require.Error(t, err)
}

func TestShortBufferIsDetected(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	_, err := d.GetU32()
	require.Error(t, err)
}

func TestSetRoundTrip(t *testing.T) {
	items := []uint32{5, 3, 9}
	e := NewEncoder(0)
	PutSet(e, items, func(e *Encoder, v uint32) { e.PutU32(v) })

	d := NewDecoder(e.Bytes())
	got, err := GetSet(d, func(d *Decoder) (uint32, error) { return d.GetU32() })
	require.NoError(t, err)
	require.Equal(t, items, got)
}

func TestSortedMapRoundTripIsDeterministic(t *testing.T) {
	m := map[uint32]string{3: "c", 1: "a", 2: "b"}

	e1 := NewEncoder(0)
	PutSortedMap(e1, m, func(e *Encoder, k uint32) { e.PutU32(k) }, func(e *Encoder, v string) { e.PutString(v) })

	e2 := NewEncoder(0)
	PutSortedMap(e2, m, func(e *Encoder, k uint32) { e.PutU32(k) }, func(e *Encoder, v string) { e.PutString(v) })

	require.Equal(t, e1.Bytes(), e2.Bytes())

	d := NewDecoder(e1.Bytes())
	got, err := GetMap(d, func(d *Decoder) (uint32, error) { return d.GetU32() }, func(d *Decoder) (string, error) { return d.GetString() })
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestVersionedRecordRoundTrip(t *testing.T) {
	e := NewEncoder(0)
	e.PutVersioned(2, 1, func(e *Encoder) {
		e.PutU32(42)
		e.PutString("hello")
	})

	d := NewDecoder(e.Bytes())
	var got uint32
	var s string
	err := d.GetVersioned(2, func(version uint8, sub *Decoder) error {
		require.Equal(t, uint8(2), version)
		var err error
		got, err = sub.GetU32()
		if err != nil {
			return err
		}
		s, err = sub.GetString()
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint32(42), got)
	require.Equal(t, "hello", s)
}

func TestVersionedRecordForwardCompatibilitySkipsTrailingBytes(t *testing.T) {
	// A future writer (version 3, compat 1) appends a field this reader
	// (knownVersion 2) doesn't understand; it must still decode the
	// fields it knows and ignore the rest.
	e := NewEncoder(0)
	e.PutVersioned(3, 1, func(e *Encoder) {
		e.PutU32(7)
		e.PutU32(0xFFFFFFFF) // unknown trailing field
	})

	d := NewDecoder(e.Bytes())
	var got uint32
	err := d.GetVersioned(2, func(version uint8, sub *Decoder) error {
		var err error
		got, err = sub.GetU32()
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint32(7), got)
}

func TestVersionedRecordRejectsCompatAboveKnown(t *testing.T) {
	e := NewEncoder(0)
	e.PutVersioned(5, 4, func(e *Encoder) { e.PutU32(1) })

	d := NewDecoder(e.Bytes())
	err := d.GetVersioned(2, func(version uint8, sub *Decoder) error {
		_, err := sub.GetU32()
		return err
	})
	require.Error(t, err)
}

func TestFeatureMaskHas(t *testing.T) {
	m := FeatureMask(0b101)
	require.True(t, m.Has(0b001))
	require.True(t, m.Has(0b100))
	require.False(t, m.Has(0b010))
}
