package codec

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntityAddrIPv4RoundTrip(t *testing.T) {
	a := EntityAddr{
		Type:  AddrTypeMsgr2,
		Nonce: 0xAABBCCDD,
		IP:    net.ParseIP("10.0.0.7"),
		Port:  6789,
	}

	e := NewEncoder(0)
	a.Encode(e)

	d := NewDecoder(e.Bytes())
	got, err := DecodeEntityAddr(d)
	require.NoError(t, err)
	require.Equal(t, a.Type, got.Type)
	require.Equal(t, a.Nonce, got.Nonce)
	require.True(t, a.IP.Equal(got.IP))
	require.Equal(t, a.Port, got.Port)
	require.Equal(t, 0, d.Remaining())
}

func TestEntityAddrPortIsBigEndianOnWire(t *testing.T) {
	a := EntityAddr{Type: AddrTypeMsgr2, IP: net.ParseIP("127.0.0.1"), Port: 0x1A2B}
	e := NewEncoder(0)
	a.Encode(e)

	// type(4 LE) + nonce(4 LE) = 8 bytes, then family u16, then port u16.
	raw := e.Bytes()
	portBytes := raw[10:12]
	require.Equal(t, byte(0x1A), portBytes[0])
	require.Equal(t, byte(0x2B), portBytes[1])
}

func TestEntityAddrIPv6RoundTrip(t *testing.T) {
	a := EntityAddr{
		Type:     AddrTypeMsgr2,
		Nonce:    1,
		IP:       net.ParseIP("fe80::1"),
		Port:     3300,
		FlowInfo: 0x11223344,
		ScopeID:  0x55667788,
	}

	e := NewEncoder(0)
	a.Encode(e)

	d := NewDecoder(e.Bytes())
	got, err := DecodeEntityAddr(d)
	require.NoError(t, err)
	require.True(t, a.IP.Equal(got.IP))
	require.Equal(t, a.FlowInfo, got.FlowInfo)
	require.Equal(t, a.ScopeID, got.ScopeID)
}

func TestAddrVecRoundTrip(t *testing.T) {
	vec := AddrVec{
		{Type: AddrTypeMsgr2, IP: net.ParseIP("10.0.0.1"), Port: 6789, Nonce: 1},
		{Type: AddrTypeLegacy, IP: net.ParseIP("10.0.0.1"), Port: 6790, Nonce: 1},
	}

	e := NewEncoder(0)
	EncodeAddrVec(e, vec)

	d := NewDecoder(e.Bytes())
	got, err := DecodeAddrVec(d)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, vec[0].Port, got[0].Port)
	require.Equal(t, vec[1].Type, got[1].Type)
}
