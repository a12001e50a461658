package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeAgreesOnSessionKey(t *testing.T) {
	secret, err := NewHMACSecret()
	require.NoError(t, err)

	senderKey, err := NewEphemeralKey()
	require.NoError(t, err)
	receiverKey, err := NewEphemeralKey()
	require.NoError(t, err)

	senderPub := senderKey.PublicKey().Bytes()
	senderSig := Sign(secret, senderPub)
	assert.True(t, Verify(secret, senderPub, senderSig))

	receiverPub := receiverKey.PublicKey().Bytes()
	receiverSig := Sign(secret, receiverPub)
	assert.True(t, Verify(secret, receiverPub, receiverSig))

	senderSessionKey, err := DeriveSessionKey(senderKey, receiverPub)
	require.NoError(t, err)
	receiverSessionKey, err := DeriveSessionKey(receiverKey, senderPub)
	require.NoError(t, err)

	assert.Equal(t, senderSessionKey, receiverSessionKey)
	assert.Len(t, senderSessionKey, SessionKeySize)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	secret, err := NewHMACSecret()
	require.NoError(t, err)
	key, err := NewEphemeralKey()
	require.NoError(t, err)

	pub := key.PublicKey().Bytes()
	sig := Sign(secret, pub)
	sig[0] ^= 0xFF

	assert.False(t, Verify(secret, pub, sig))
}

func TestDeriveSessionKeyRejectsBadPeerKey(t *testing.T) {
	key, err := NewEphemeralKey()
	require.NoError(t, err)

	_, err = DeriveSessionKey(key, []byte("not a valid point"))
	assert.Error(t, err)
}
