package cephx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/radosclient/pkg/raderr"
)

const component = "cephx"

// cephIV is the literal 16-byte IV the reference implementation uses
// for every AES-128-CBC operation in the handshake and authorizer
// paths. It is a fixed constant, not a nonce: CephX relies on the
// keys themselves (session keys, freshly negotiated per handshake)
// for uniqueness, not on IV randomness.
var cephIV = []byte("cephsageyudagreg")

func errf(format string, args ...any) error {
	return raderr.New(raderr.KindCryptographic, component, fmt.Sprintf(format, args...))
}

// secretToAESKey extracts the 16-byte AES-128 key embedded in a raw
// secret's byte representation: skip the 12-byte key header (type,
// created-time), take the next 16 bytes.
func secretToAESKey(secret []byte) ([]byte, error) {
	if len(secret) < 28 {
		return nil, errf("secret too short for AES key extraction: %d bytes", len(secret))
	}
	return secret[12:28], nil
}

// pkcs7Pad pads data to a multiple of aes.BlockSize.
func pkcs7Pad(data []byte) []byte {
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	if padLen == 0 {
		padLen = aes.BlockSize
	}
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, errf("pkcs7 unpad: invalid length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, errf("pkcs7 unpad: invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errf("pkcs7 unpad: malformed padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// cbcEncrypt encrypts plaintext under key with the fixed CephX IV and
// PKCS#7 padding.
func cbcEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errf("new cipher: %v", err)
	}
	padded := pkcs7Pad(plaintext)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, cephIV).CryptBlocks(out, padded)
	return out, nil
}

// cbcDecrypt decrypts ciphertext under key with the fixed CephX IV and
// strips PKCS#7 padding.
func cbcDecrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errf("ciphertext length %d is not a multiple of block size", len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errf("new cipher: %v", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, cephIV).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

// foldU64 implements the reference "fold" reduction: prepend a u32
// length, then XOR together every complete 8-byte little-endian u64
// chunk of the result, discarding a trailing partial chunk.
func foldU64(data []byte) uint64 {
	withLen := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(withLen, uint32(len(data)))
	copy(withLen[4:], data)

	var acc uint64
	n := len(withLen) / 8
	for i := 0; i < n; i++ {
		acc ^= binary.LittleEndian.Uint64(withLen[i*8 : i*8+8])
	}
	return acc
}

// deriveSessionKey computes session_key = fold( AES-128-CBC-encrypt(
// challengeBlob, secretKey ) ), the "Authenticate" step's key
// derivation. challengeBlob is the 16-byte (server_challenge ||
// client_challenge) plaintext block.
func deriveSessionKey(secretKey []byte, serverChallenge, clientChallenge uint64) (uint64, error) {
	blob := make([]byte, 16)
	binary.LittleEndian.PutUint64(blob[0:8], serverChallenge)
	binary.LittleEndian.PutUint64(blob[8:16], clientChallenge)

	ct, err := cbcEncrypt(secretKey, blob)
	if err != nil {
		return 0, err
	}
	return foldU64(ct), nil
}

// randomU64 draws a fresh 64-bit value from a cryptographically
// secure source, used for client_challenge and authorizer nonces.
func randomU64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errf("read random: %v", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// hmacSHA256 computes HMAC-SHA256(key, data), used both for the
// 16-byte AES-128 session keys this package derives and passed
// verbatim to msgr's pre-auth transcript signature check.
func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// hmacEqual performs a constant-time comparison of two HMAC tags.
func hmacEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
