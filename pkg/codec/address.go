package codec

import (
	"net"
	"strconv"
)

// AddrType distinguishes the three ways an EntityAddr can be reached.
type AddrType uint32

const (
	AddrTypeLegacy AddrType = 0 // msgr1, retained for compatibility decode
	AddrTypeMsgr2  AddrType = 1
	AddrTypeAny    AddrType = 2
)

const (
	sockFamilyNone AddrType = 0
	afINET                  = 2
	afINET6                 = 10
)

// EntityAddr is a single reachable address for an entity: a
// sockaddr_storage-compatible socket address plus the msgr2 nonce that
// distinguishes concurrent incarnations of a process bound to the
// same IP.
type EntityAddr struct {
	Type  AddrType
	Nonce uint32
	IP    net.IP // 4-byte (v4) or 16-byte (v6) form
	Port  uint16
	// FlowInfo and ScopeID are only meaningful for IPv6 addresses; they
	// are always present on the wire (zero for v4) to keep the fixed
	// sockaddr_storage shape the reference encoder uses.
	FlowInfo uint32
	ScopeID  uint32
}

// AddrVec is an ordered set of ways to reach a single entity, most
// preferred first.
type AddrVec []EntityAddr

// String renders a as a dialable "host:port", the form msgr's Connect
// consumes directly.
func (a EntityAddr) String() string {
	if a.IP == nil {
		return ""
	}
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// Encode writes a as sockaddr_storage: family little-endian, port
// big-endian, address bytes in network order, IPv4 padded to 8 bytes,
// IPv6 carrying big-endian flowinfo and scope id.
func (a EntityAddr) Encode(e *Encoder) {
	e.PutU32(uint32(a.Type))
	e.PutU32(a.Nonce)

	switch {
	case a.IP.To4() != nil:
		e.PutU16(afINET)
		e.PutU16(beU16(a.Port))
		e.PutRaw(a.IP.To4())
		e.PutRaw(make([]byte, 8-net.IPv4len)) // pad to 8 bytes total
	case a.IP.To16() != nil:
		e.PutU16(afINET6)
		e.PutU16(beU16(a.Port))
		e.PutU32(beU32(a.FlowInfo))
		e.PutRaw(a.IP.To16())
		e.PutU32(beU32(a.ScopeID))
	default:
		e.PutU16(uint16(sockFamilyNone))
		e.PutU16(0)
		e.PutRaw(make([]byte, 8))
	}
}

// DecodeEntityAddr reads one EntityAddr from d.
func DecodeEntityAddr(d *Decoder) (EntityAddr, error) {
	var a EntityAddr

	t, err := d.GetU32()
	if err != nil {
		return a, err
	}
	a.Type = AddrType(t)

	a.Nonce, err = d.GetU32()
	if err != nil {
		return a, err
	}

	family, err := d.GetU16()
	if err != nil {
		return a, err
	}
	portBE, err := d.GetU16()
	if err != nil {
		return a, err
	}
	a.Port = beU16(portBE)

	switch family {
	case afINET:
		raw, err := d.GetRaw(8)
		if err != nil {
			return a, err
		}
		a.IP = net.IP(append([]byte(nil), raw[:net.IPv4len]...))
	case afINET6:
		flowBE, err := d.GetU32()
		if err != nil {
			return a, err
		}
		a.FlowInfo = beU32(flowBE)
		raw, err := d.GetRaw(16)
		if err != nil {
			return a, err
		}
		a.IP = net.IP(append([]byte(nil), raw...))
		scopeBE, err := d.GetU32()
		if err != nil {
			return a, err
		}
		a.ScopeID = beU32(scopeBE)
	default:
		if _, err := d.GetRaw(8); err != nil {
			return a, err
		}
	}

	return a, nil
}

// EncodeAddrVec writes vec as a 4-byte count followed by each address
// in order.
func EncodeAddrVec(e *Encoder, vec AddrVec) {
	PutSet(e, vec, func(e *Encoder, a EntityAddr) { a.Encode(e) })
}

// DecodeAddrVec reads an AddrVec written by EncodeAddrVec.
func DecodeAddrVec(d *Decoder) (AddrVec, error) {
	return GetSet(d, DecodeEntityAddr)
}

// beU16 byte-swaps a little-endian-read uint16 into the value a
// big-endian field actually holds, and vice versa (the swap is its
// own inverse).
func beU16(v uint16) uint16 {
	return v<<8 | v>>8
}

// beU32 byte-swaps a little-endian-read uint32 into the value a
// big-endian field actually holds, and vice versa.
func beU32(v uint32) uint32 {
	return v<<24 | (v<<8)&0x00FF0000 | (v>>8)&0x0000FF00 | v>>24
}
