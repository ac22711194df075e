package msgr

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"io"

	"github.com/marmos91/radosclient/pkg/raderr"
)

// nonceSize is the GCM nonce width msgr2 secure mode uses: 96 bits.
const nonceSize = 12

// nonceCounter is a 96-bit little-endian counter that must never
// repeat for a given key. It increments by one per encrypt or decrypt
// operation; wrapping back through zero is a fatal error rather than a
// silent reuse, since nonce reuse breaks GCM's confidentiality
// guarantee entirely.
type nonceCounter struct {
	value   [nonceSize]byte
	wrapped bool
}

// Next returns the current counter value as a GCM nonce and advances
// it by one.
func (n *nonceCounter) Next() ([]byte, error) {
	if n.wrapped {
		return nil, raderr.New(raderr.KindCryptographic, component, "nonce counter rolled over")
	}
	nonce := append([]byte(nil), n.value[:]...)
	if incrementLE(n.value[:]) {
		n.wrapped = true
	}
	return nonce, nil
}

// incrementLE adds one to the little-endian counter in place and
// reports whether the addition carried out of the most significant
// byte (i.e. the counter wrapped back to zero).
func incrementLE(b []byte) bool {
	for i := range b {
		b[i]++
		if b[i] != 0 {
			return false
		}
	}
	return true
}

// EncryptionContext holds the AES-128-GCM key and per-direction nonce
// counters for a connection in secure mode. Nonces are assigned by
// role via the "crossed" convention: the client's rx counter is the
// server's tx counter and vice versa, both parties sharing one key.
type EncryptionContext struct {
	key    []byte // 16 bytes
	aead   cipher.AEAD
	rxOnce nonceCounter
	txOnce nonceCounter
}

// NewEncryptionContext constructs an EncryptionContext from the
// 128-bit secret negotiated during authentication.
func NewEncryptionContext(key []byte) (*EncryptionContext, error) {
	if len(key) != 16 {
		return nil, raderr.New(raderr.KindCryptographic, component, "encryption key must be 16 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, raderr.Wrap(raderr.KindCryptographic, component, "new cipher", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, raderr.Wrap(raderr.KindCryptographic, component, "new GCM", err)
	}
	return &EncryptionContext{key: key, aead: aead}, nil
}

// Seal encrypts plaintext (which may include a preamble prefix, per
// §4.3.1's combined-preamble-and-segment GCM record), advancing the tx
// nonce counter.
func (c *EncryptionContext) Seal(plaintext []byte) ([]byte, error) {
	nonce, err := c.txOnce.Next()
	if err != nil {
		return nil, err
	}
	return c.aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext, advancing the rx nonce counter.
func (c *EncryptionContext) Open(ciphertext []byte) ([]byte, error) {
	nonce, err := c.rxOnce.Next()
	if err != nil {
		return nil, err
	}
	pt, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, raderr.Wrap(raderr.KindCryptographic, component, "AEAD tag mismatch", err)
	}
	return pt, nil
}

// Overhead returns the AEAD tag length appended to every sealed
// record (16 bytes for GCM).
func (c *EncryptionContext) Overhead() int { return c.aead.Overhead() }

// roundUp16 rounds n up to the next multiple of 16, the secure-mode
// segment block-alignment rule.
func roundUp16(n int) int {
	return (n + 15) &^ 15
}

// secureFirstBlockPT is the fixed plaintext size of a secure-mode
// frame's first GCM record: the 32-byte preamble plus the first 48
// bytes of combined, block-padded segment payload (§4.3.1: "80
// plaintext → 96 on wire including 16-byte tag").
const secureFirstBlockPT = PreambleSize + 48

// secureEpilogueSize is the fixed size of the epilogue block secure
// multi-segment frames append inside the second GCM record.
const secureEpilogueSize = 16

// packSegments concatenates segments, padding each to a 16-byte block
// boundary, producing the combined payload secure framing encrypts.
func packSegments(segments [][]byte) []byte {
	total := 0
	for _, s := range segments {
		total += roundUp16(len(s))
	}
	out := make([]byte, 0, total)
	for _, s := range segments {
		out = append(out, s...)
		if pad := roundUp16(len(s)) - len(s); pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
	}
	return out
}

// secureEpilogue builds the fixed 16-byte epilogue block multi-segment
// secure frames seal inside their second GCM record: a late_status
// byte followed by one CRC32C per segment after the first. With
// MaxSegments capped at 4, at most 3 CRCs (12 bytes) are ever needed,
// so the block has room to spare and is zero-padded.
func secureEpilogue(segments [][]byte) []byte {
	buf := make([]byte, secureEpilogueSize)
	buf[0] = 0 // late_status: this client never sets late flags
	off := 1
	for _, s := range segments[1:] {
		binary.LittleEndian.PutUint32(buf[off:], segmentCRC(s))
		off += 4
	}
	return buf
}

// sealSecureFrame builds the msgr2.1 secure-mode wire form of a frame
// (§4.3.1): the preamble and the first 48 bytes of combined segment
// payload are sealed together as one GCM record; the remaining
// payload, plus a 16-byte epilogue when there is more than one
// segment, is sealed as a second, independently-nonced GCM record.
// When there is neither, no second record is written.
func (c *EncryptionContext) sealSecureFrame(p Preamble, segments [][]byte) ([]byte, error) {
	payload := packSegments(segments)
	firstLen := secureFirstBlockPT - PreambleSize
	block1 := make([]byte, firstLen)
	var block2 []byte
	if len(payload) <= firstLen {
		copy(block1, payload)
	} else {
		copy(block1, payload[:firstLen])
		block2 = payload[firstLen:]
	}

	pt1 := make([]byte, 0, secureFirstBlockPT)
	pt1 = append(pt1, EncodePreamble(p)...)
	pt1 = append(pt1, block1...)
	ct1, err := c.Seal(pt1)
	if err != nil {
		return nil, err
	}

	pt2 := append([]byte(nil), block2...)
	if p.SegmentCount > 1 {
		pt2 = append(pt2, secureEpilogue(segments)...)
	}
	if len(pt2) == 0 {
		return ct1, nil
	}
	ct2, err := c.Seal(pt2)
	if err != nil {
		return nil, err
	}
	return append(ct1, ct2...), nil
}

// openSecureFrame reverses sealSecureFrame, reading exactly the two
// GCM records the preamble's segment lengths imply from r.
func (c *EncryptionContext) openSecureFrame(r io.Reader) (Frame, error) {
	wire1 := make([]byte, secureFirstBlockPT+c.Overhead())
	if _, err := io.ReadFull(r, wire1); err != nil {
		return Frame{}, raderr.Wrap(raderr.KindProtocol, component, "read secure record 1", err)
	}
	pt1, err := c.Open(wire1)
	if err != nil {
		return Frame{}, err
	}
	p, err := DecodePreamble(pt1[:PreambleSize])
	if err != nil {
		return Frame{}, err
	}
	block1 := pt1[PreambleSize:]

	totalPadded := 0
	for i := 0; i < int(p.SegmentCount); i++ {
		totalPadded += roundUp16(int(p.Segments[i].Length))
	}
	epilogueLen := 0
	if p.SegmentCount > 1 {
		epilogueLen = secureEpilogueSize
	}
	tailLen := 0
	if totalPadded > len(block1) {
		tailLen = totalPadded - len(block1)
	}

	var pt2 []byte
	if pt2Len := tailLen + epilogueLen; pt2Len > 0 {
		wire2 := make([]byte, pt2Len+c.Overhead())
		if _, err := io.ReadFull(r, wire2); err != nil {
			return Frame{}, raderr.Wrap(raderr.KindProtocol, component, "read secure record 2", err)
		}
		pt2, err = c.Open(wire2)
		if err != nil {
			return Frame{}, err
		}
	}

	payloadTail := pt2
	var epilogue []byte
	if epilogueLen > 0 {
		if len(pt2) < epilogueLen {
			return Frame{}, protoErr("secure epilogue truncated")
		}
		epilogue = pt2[len(pt2)-epilogueLen:]
		payloadTail = pt2[:len(pt2)-epilogueLen]
	}

	head := block1
	if len(head) > totalPadded {
		head = head[:totalPadded]
	}
	combined := make([]byte, 0, totalPadded)
	combined = append(combined, head...)
	combined = append(combined, payloadTail...)
	if len(combined) != totalPadded {
		return Frame{}, protoErr("secure payload length mismatch: want %d got %d", totalPadded, len(combined))
	}

	segments := make([][]byte, p.SegmentCount)
	off := 0
	for i := 0; i < int(p.SegmentCount); i++ {
		segLen := int(p.Segments[i].Length)
		segments[i] = append([]byte(nil), combined[off:off+segLen]...)
		off += roundUp16(segLen)
	}

	if p.SegmentCount > 1 {
		eoff := 1 // skip late_status
		for i := 1; i < int(p.SegmentCount); i++ {
			wantCRC := binary.LittleEndian.Uint32(epilogue[eoff:])
			eoff += 4
			if gotCRC := segmentCRC(segments[i]); gotCRC != wantCRC {
				return Frame{}, protoErr("secure segment %d CRC mismatch: wire=%08x computed=%08x", i, wantCRC, gotCRC)
			}
		}
	}

	return decompressIfNeeded(p, segments)
}

// nonceAsUint64Pair is a debugging helper exposing the counter as two
// little-endian words; used only by tests that need to assert
// monotonic advancement without reaching into the unexported struct
// fields directly.
func nonceAsUint64Pair(n []byte) (uint64, uint32) {
	lo := binary.LittleEndian.Uint64(n[0:8])
	hi := binary.LittleEndian.Uint32(n[8:12])
	return lo, hi
}
