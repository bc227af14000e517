package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildBeginConnection(t *testing.T) {
	require.Equal(t, []byte{PktBeginConnection, Version}, BuildBeginConnection())
}

func TestBuildCommandCarriesBareText(t *testing.T) {
	frame := BuildCommand("map map07")
	require.Equal(t, PktCommand, frame[0])
	require.Equal(t, "map map07", string(frame[1:]))
}

func TestBuildEmptyPayloadFrames(t *testing.T) {
	require.Equal(t, []byte{PktPong}, BuildPong())
	require.Equal(t, []byte{PktDisconnect}, BuildDisconnect())
}

func TestBuildPassword(t *testing.T) {
	digest := "deadbeefdeadbeefdeadbeefdeadbeef"
	frame := BuildPassword(digest)
	require.Equal(t, PktPassword, frame[0])
	require.Equal(t, digest, string(frame[1:]))
}

func TestBuildTabComplete(t *testing.T) {
	frame := BuildTabComplete("map_")
	require.Equal(t, PktTabCompleteRequest, frame[0])
	require.Equal(t, "map_", string(frame[1:]))
}

func TestPacketBuilderChaining(t *testing.T) {
	b := NewPacketBuilder(PktUpdate).
		WriteByte(UpdateMap).
		WriteText("MAP01").
		WriteBytes([]byte{0})

	require.Equal(t, 8, b.Len())
	require.Equal(t, []byte{PktUpdate, UpdateMap, 'M', 'A', 'P', '0', '1', 0}, b.Build())
}

func TestLoginDigest(t *testing.T) {
	// RFC 1321 test vectors pin both the hash and the salt-then-password
	// concatenation order.
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", LoginDigest(nil, ""))
	require.Equal(t, "900150983cd24fb0d6963f7d28e17f72", LoginDigest([]byte("a"), "bc"))

	salt := make([]byte, SaltLength)
	for i := range salt {
		salt[i] = byte(i)
	}
	digest := LoginDigest(salt, "hunter2")
	require.Len(t, digest, 32)
	require.NotEqual(t, digest, LoginDigest(salt, "hunter3"))
	require.Equal(t, digest, LoginDigest(salt, "hunter2"))
}
