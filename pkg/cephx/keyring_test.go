package cephx

import (
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeArmoredSecret(t *testing.T, keyBytes []byte) string {
	t.Helper()
	require.Len(t, keyBytes, 16)
	raw := make([]byte, 12+len(keyBytes))
	binary.LittleEndian.PutUint16(raw[0:2], 1) // type
	binary.LittleEndian.PutUint32(raw[2:6], uint32(time.Now().Unix()))
	binary.LittleEndian.PutUint16(raw[10:12], uint16(len(keyBytes)))
	copy(raw[12:], keyBytes)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestParseSecretKeyRoundTrip(t *testing.T) {
	keyBytes := make([]byte, 16)
	for i := range keyBytes {
		keyBytes[i] = byte(i + 1)
	}
	armored := makeArmoredSecret(t, keyBytes)

	sk, err := ParseSecretKey(armored)
	require.NoError(t, err)
	aesKey, err := sk.AESKey()
	require.NoError(t, err)
	require.Equal(t, keyBytes, aesKey)
}

func TestLoadKeyringFindsNamedSection(t *testing.T) {
	keyBytes := make([]byte, 16)
	for i := range keyBytes {
		keyBytes[i] = byte(0xA0 + i)
	}
	armored := makeArmoredSecret(t, keyBytes)

	dir := t.TempDir()
	path := filepath.Join(dir, "ceph.client.admin.keyring")
	content := "[client.other]\n\tkey = notused\n\n[client.admin]\n\tkey = " + armored + "\n\tcaps mon = \"allow *\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	sk, err := LoadKeyring(path, EntityName{Type: EntityTypeClient, ID: "admin"})
	require.NoError(t, err)
	aesKey, err := sk.AESKey()
	require.NoError(t, err)
	require.Equal(t, keyBytes, aesKey)
}

func TestLoadKeyringMissingEntity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k")
	require.NoError(t, os.WriteFile(path, []byte("[client.other]\n\tkey = xx\n"), 0o600))

	_, err := LoadKeyring(path, EntityName{Type: EntityTypeClient, ID: "admin"})
	require.Error(t, err)
}
