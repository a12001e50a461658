package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Packet{
		Handshake{PublicKey: []byte{1, 2, 3}, Signature: []byte{4, 5, 6}},
		HandshakeResponse{PublicKey: []byte{7, 8}, Signature: []byte{9}},
		List{Files: []FileEntry{
			{Index: 0, Name: "a.txt", Size: 10},
			{Index: 1, Name: "b.bin", Size: 65535},
		}},
		Chunk{Sequence: 42, Bytes: []byte("some chunk bytes")},
		Progress{Index: 3, Progress: 100},
	}

	for _, want := range cases {
		encoded, err := Encode(want)
		require.NoError(t, err)

		got, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeEmptyPacketFails(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)
}

func TestDecodeUnknownTagFails(t *testing.T) {
	_, err := Decode([]byte{200})
	assert.Error(t, err)
}

func TestDecodeTruncatedBodyFails(t *testing.T) {
	encoded, err := Encode(Chunk{Sequence: 1, Bytes: []byte("full chunk payload")})
	require.NoError(t, err)

	_, err = Decode(encoded[:len(encoded)-5])
	assert.Error(t, err)
}

func TestChunkCapBoundary(t *testing.T) {
	bytes := make([]byte, 65535)
	for i := range bytes {
		bytes[i] = byte(i)
	}
	want := Chunk{Sequence: 0, Bytes: bytes}

	encoded, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
