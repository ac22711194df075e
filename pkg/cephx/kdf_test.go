package cephx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCephIVLiteral(t *testing.T) {
	require.Equal(t, []byte("cephsageyudagreg"), cephIV)
	require.Len(t, cephIV, 16)
}

func TestSecretToAESKeySkipsHeader(t *testing.T) {
	secret := make([]byte, 28)
	for i := range secret {
		secret[i] = byte(i)
	}
	key, err := secretToAESKey(secret)
	require.NoError(t, err)
	require.Equal(t, secret[12:28], key)
}

func TestSecretToAESKeyRejectsShortSecret(t *testing.T) {
	_, err := secretToAESKey(make([]byte, 10))
	require.Error(t, err)
}

func TestCBCRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	plaintext := []byte("a 16-byte block!")

	ct, err := cbcEncrypt(key, plaintext)
	require.NoError(t, err)
	require.Equal(t, 0, len(ct)%16)

	pt, err := cbcDecrypt(key, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestCBCRoundTripWithPadding(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 16)
	plaintext := []byte("short")

	ct, err := cbcEncrypt(key, plaintext)
	require.NoError(t, err)

	pt, err := cbcDecrypt(key, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestFoldU64IgnoresTrailingPartialChunk(t *testing.T) {
	// 4 (length prefix) + 13 data bytes = 17 bytes => two complete
	// 8-byte chunks plus one trailing byte that must not be folded in.
	// Chunk 1 is 0x0D,0,0,0,0xAA x4 (0xAAAAAAAA0000000D), chunk 2 is
	// 0xAA x8; their XOR is 0x00000000AAAAAAA7.
	data := bytes.Repeat([]byte{0xAA}, 13)
	got := foldU64(data)
	require.Equal(t, uint64(0x00000000AAAAAAA7), got)
}

func TestFoldU64Deterministic(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, foldU64(data), foldU64(data))
}

func TestDeriveSessionKeyDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 16)
	k1, err := deriveSessionKey(key, 0x1111, 0x2222)
	require.NoError(t, err)
	k2, err := deriveSessionKey(key, 0x1111, 0x2222)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestHMACEqualConstantTime(t *testing.T) {
	a := hmacSHA256([]byte("key"), []byte("data"))
	b := hmacSHA256([]byte("key"), []byte("data"))
	c := hmacSHA256([]byte("key"), []byte("other"))

	require.True(t, hmacEqual(a, b))
	require.False(t, hmacEqual(a, c))
}
